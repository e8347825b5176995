// Package homeauto implements the home-automation collaborator HTTP
// client used by the Intent Handler (spec.md §4.6, L6): posting a
// recognized intent's event type and entity data to a configured base URL.
package homeauto

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vocalmind/vocalmind/internal/metrics"
)

// Auth selects how requests to the collaborator authenticate. Exactly one
// of these is in effect per Client, resolved by a priority list of
// configuration sources at construction time (spec.md §4.6: "bearer token,
// pre-set token, API-password header").
type Auth struct {
	BearerToken string // "Authorization: Bearer <token>"
	AccessToken string // "Authorization: Bearer <token>", used when BearerToken is empty
	APIPassword string // "X-API-Password: <value>"
}

// ResolveAuth picks the first non-empty credential from the priority list
// bearer > access token > API password, matching spec.md §4.6's "priority
// list of configuration sources".
func ResolveAuth(bearerToken, accessToken, apiPassword string) Auth {
	return Auth{BearerToken: bearerToken, AccessToken: accessToken, APIPassword: apiPassword}
}

func (a Auth) apply(req *http.Request) {
	switch {
	case a.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+a.BearerToken)
	case a.AccessToken != "":
		req.Header.Set("Authorization", "Bearer "+a.AccessToken)
	case a.APIPassword != "":
		req.Header.Set("X-API-Password", a.APIPassword)
	}
}

// Client posts home-automation events over HTTP, grounded on the teacher's
// pooled-transport idiom (internal/pipeline/httpclient.go's
// NewPooledHTTPClient).
type Client struct {
	baseURL string
	auth    Auth
	http    *http.Client
}

// New creates a client targeting baseURL (no trailing slash expected) with
// the given auth and a connection pool sized poolSize.
func New(baseURL string, auth Auth, poolSize int) *Client {
	return &Client{
		baseURL: baseURL,
		auth:    auth,
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        poolSize,
				MaxIdleConnsPerHost: poolSize,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
	}
}

// PostEvent sends entityData as the JSON body of a POST to
// <baseURL>/api/events/<eventType>, per spec.md §4.6/§3.
func (c *Client) PostEvent(ctx context.Context, eventType string, entityData map[string]string) error {
	payload, err := json.Marshal(entityData)
	if err != nil {
		return fmt.Errorf("homeauto: marshal event data: %w", err)
	}

	url := fmt.Sprintf("%s/api/events/%s", c.baseURL, eventType)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("homeauto: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.auth.apply(req)

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.StageDuration.WithLabelValues("handle").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Errors.WithLabelValues("handler", "http").Inc()
		return fmt.Errorf("homeauto: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		metrics.Errors.WithLabelValues("handler", "status").Inc()
		return fmt.Errorf("homeauto: status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
