package decoder

import "context"

// StubBackend is a deterministic Backend for tests and the "dummy" profile
// variant: it returns a fixed transcript regardless of input, or LoadErr if
// configured to simulate a load failure.
type StubBackend struct {
	Text          string
	Confidence    float64
	LoadErr       error
	TranscribeErr error

	loadCalls int
}

// Load implements Backend.
func (s *StubBackend) Load(ctx context.Context) error {
	s.loadCalls++
	return s.LoadErr
}

// Transcribe implements Backend.
func (s *StubBackend) Transcribe(ctx context.Context, samples []float32) (Result, error) {
	if s.TranscribeErr != nil {
		return Result{}, s.TranscribeErr
	}
	return Result{Text: s.Text, Confidence: s.Confidence}, nil
}

// Close implements Backend.
func (s *StubBackend) Close() error { return nil }
