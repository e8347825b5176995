package wake

import "github.com/vocalmind/vocalmind/internal/audio"

// StubDetector is a deterministic Detector for tests and the "dummy"
// profile variant: it reports a match exactly once, on the MatchOnFrame-th
// frame it processes (counted from 1 over the detector's lifetime). Load and
// Close do not reset the count, so later frames never match again.
type StubDetector struct {
	NameToReport   string
	MatchOnFrame   int
	PreferredBytes int
	LoadErr        error

	loaded bool
	count  int
}

// Load implements Detector.
func (s *StubDetector) Load() error {
	if s.LoadErr != nil {
		return s.LoadErr
	}
	s.loaded = true
	return nil
}

// FrameBytes implements Detector.
func (s *StubDetector) FrameBytes() int {
	if s.PreferredBytes == 0 {
		return 320
	}
	return s.PreferredBytes
}

// Process implements Detector.
func (s *StubDetector) Process(frame audio.Frame) (bool, string) {
	s.count++
	if s.MatchOnFrame > 0 && s.count == s.MatchOnFrame {
		return true, s.NameToReport
	}
	return false, ""
}

// Close implements Detector.
func (s *StubDetector) Close() error { return nil }
