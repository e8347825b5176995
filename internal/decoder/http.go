package decoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/vocalmind/vocalmind/internal/audio"
	"github.com/vocalmind/vocalmind/internal/metrics"
)

// HTTPBackend is the remote speech-decoder variant: posts a WAV-encoded
// utterance to a community ASR server (e.g. a whisper.cpp HTTP server) and
// parses its JSON response. Grounded on the teacher's ASRClient.
type HTTPBackend struct {
	url    string
	client *http.Client
}

// NewHTTPBackend creates a client pointing at the decoder server's base
// URL, with a pooled transport sized to poolSize concurrent requests.
func NewHTTPBackend(url string, poolSize int) *HTTPBackend {
	return &HTTPBackend{
		url:    url,
		client: newPooledHTTPClient(poolSize, 30*time.Second),
	}
}

func newPooledHTTPClient(poolSize int, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:          poolSize,
			MaxIdleConnsPerHost:   poolSize,
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			ForceAttemptHTTP2:     true,
		},
	}
}

// Load is a no-op: the remote server manages its own model lifecycle.
func (h *HTTPBackend) Load(ctx context.Context) error { return nil }

// Close releases the pooled transport's idle connections.
func (h *HTTPBackend) Close() error {
	h.client.CloseIdleConnections()
	return nil
}

type decodeResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Transcribe implements Backend.
func (h *HTTPBackend) Transcribe(ctx context.Context, samples []float32) (Result, error) {
	start := time.Now()

	body, contentType, err := buildMultipartWAV(samples)
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url+"/transcribe", body)
	if err != nil {
		return Result{}, fmt.Errorf("decoder: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := h.client.Do(req)
	if err != nil {
		metrics.Errors.WithLabelValues("decoder", "http").Inc()
		return Result{}, fmt.Errorf("decoder: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		metrics.Errors.WithLabelValues("decoder", "status").Inc()
		return Result{}, fmt.Errorf("decoder: status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed decodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Result{}, fmt.Errorf("decoder: decode response: %w", err)
	}

	metrics.StageDuration.WithLabelValues("decode").Observe(time.Since(start).Seconds())
	return Result{Text: parsed.Text, Confidence: parsed.Confidence}, nil
}

func buildMultipartWAV(samples []float32) (*bytes.Buffer, string, error) {
	wavData := audio.SamplesToWAV(samples, 16000)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return nil, "", fmt.Errorf("decoder: create form file: %w", err)
	}
	if _, err := part.Write(wavData); err != nil {
		return nil, "", fmt.Errorf("decoder: write wav data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("decoder: close multipart writer: %w", err)
	}

	return &body, writer.FormDataContentType(), nil
}
