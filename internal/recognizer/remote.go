package recognizer

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

// RemoteStrategy is the remote/HTTP-parser recognizer variant (spec.md
// §4.5 strategy 4): POSTs the transcript to a configured endpoint and
// returns the parsed JSON result. Grounded on the same pooled-HTTP-client
// idiom as internal/decoder.HTTPBackend.
type RemoteStrategy struct {
	url    string
	client *http.Client
}

// NewRemoteStrategy creates a client posting transcripts to url.
func NewRemoteStrategy(url string, poolSize int) *RemoteStrategy {
	return &RemoteStrategy{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        poolSize,
				MaxIdleConnsPerHost: poolSize,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type remoteRequest struct {
	Text             string  `json:"text"`
	SpeechConfidence float64 `json:"speech_confidence"`
}

// Recognize implements Strategy.
func (s *RemoteStrategy) Recognize(text string, speechConfidence float64) (Result, error) {
	payload, err := json.Marshal(remoteRequest{Text: text, SpeechConfidence: speechConfidence})
	if err != nil {
		return emptyResult(text, speechConfidence), fmt.Errorf("recognizer: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return emptyResult(text, speechConfidence), fmt.Errorf("recognizer: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		metrics.Errors.WithLabelValues("recognizer", "http").Inc()
		return emptyResult(text, speechConfidence), fmt.Errorf("recognizer: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		metrics.Errors.WithLabelValues("recognizer", "status").Inc()
		return emptyResult(text, speechConfidence), fmt.Errorf("recognizer: status %d: %s", resp.StatusCode, string(body))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return emptyResult(text, speechConfidence), fmt.Errorf("recognizer: decode response: %w", err)
	}
	if result.Entities == nil {
		result.Entities = []Entity{}
	}
	return result, nil
}
