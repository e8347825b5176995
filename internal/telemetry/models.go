package telemetry

import "time"

// Session represents one wake-to-sleep listening session of the dialogue
// coordinator (spec.md §4.7).
type Session struct {
	ID        string     `json:"id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	TurnCount int        `json:"turn_count,omitempty"`
}

// Turn represents one wake-or-trigger -> transcribe -> recognize -> handle
// cycle within a session (spec.md §4.7's "session" state sequence from
// awake through handling back to ready/asleep).
type Turn struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs float64   `json:"duration_ms,omitempty"`
	Transcript string    `json:"transcript,omitempty"`
	Intent     string    `json:"intent,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	Status     string    `json:"status"`
	SpanCount  int       `json:"span_count,omitempty"`
}

// Span represents one pipeline stage's execution within a turn (e.g.
// "decode", "recognize", "handle").
type Span struct {
	ID         string    `json:"id"`
	TurnID     string    `json:"turn_id"`
	Name       string    `json:"name"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs float64   `json:"duration_ms"`
	Input      string    `json:"input,omitempty"`
	Output     string    `json:"output,omitempty"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
}

// TrainingRun represents one invocation of a training stage (T1-T5, spec.md
// §6) via internal/train.Pipeline.
type TrainingRun struct {
	ID         string    `json:"id"`
	Stage      string    `json:"stage"` // "sentences", "speech", "intent"
	StartedAt  time.Time `json:"started_at"`
	DurationMs float64   `json:"duration_ms,omitempty"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
}
