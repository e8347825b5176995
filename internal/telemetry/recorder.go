package telemetry

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	// maxFieldLen caps transcript/input/output string length stored per
	// row, so one long command capture can't bloat the database.
	maxFieldLen = 500

	// channelBuffer is how many telemetry messages can queue before the
	// background drain goroutine writes them to the store.
	channelBuffer = 64
)

type recordMsg struct {
	kind string // "session_create", "session_end", "turn_create", "turn_update", "span", "training_create", "training_update"

	sessionID string

	turnID     string
	durationMs float64
	transcript string
	intent     string
	confidence float64
	status     string
	errMsg     string

	span Span

	trainingID    string
	trainingStage string
}

// Recorder writes telemetry asynchronously via a buffered channel, the
// same background-drain-goroutine-over-channel pattern as the teacher's
// trace.Tracer. All methods are nil-safe (no-op on a nil receiver), so a
// deployment without a configured Postgres DSN simply runs without
// telemetry.
type Recorder struct {
	store *Store
	ch    chan recordMsg
	done  chan struct{}
}

// NewRecorder creates a recorder over store and launches its background
// drain goroutine. Callers must call Close to flush pending writes and
// stop the goroutine.
func NewRecorder(store *Store) *Recorder {
	r := &Recorder{
		store: store,
		ch:    make(chan recordMsg, channelBuffer),
		done:  make(chan struct{}),
	}
	go r.drain()
	return r
}

func (r *Recorder) drain() {
	defer close(r.done)
	for m := range r.ch {
		if err := r.dispatch(m); err != nil {
			slog.Warn("telemetry: write failed", "kind", m.kind, "error", err)
		}
	}
}

func (r *Recorder) dispatch(m recordMsg) error {
	switch m.kind {
	case "session_create":
		return r.store.CreateSession(m.sessionID)
	case "session_end":
		return r.store.EndSession(m.sessionID)
	case "turn_create":
		return r.store.CreateTurn(m.turnID, m.sessionID)
	case "turn_update":
		return r.store.UpdateTurn(m.turnID, m.durationMs, m.confidence, m.transcript, m.intent, m.status)
	case "span":
		return r.store.CreateSpan(m.span)
	case "training_create":
		return r.store.CreateTrainingRun(m.trainingID, m.trainingStage)
	case "training_update":
		return r.store.UpdateTrainingRun(m.trainingID, m.durationMs, m.status, m.errMsg)
	default:
		return nil
	}
}

// StartSession begins a new session and returns its ID.
func (r *Recorder) StartSession() string {
	if r == nil {
		return ""
	}
	id := uuid.NewString()
	r.ch <- recordMsg{kind: "session_create", sessionID: id}
	return id
}

// EndSession finalizes a session.
func (r *Recorder) EndSession(sessionID string) {
	if r == nil || sessionID == "" {
		return
	}
	r.ch <- recordMsg{kind: "session_end", sessionID: sessionID}
}

// StartTurn begins a new turn within sessionID and returns its ID.
func (r *Recorder) StartTurn(sessionID string) string {
	if r == nil {
		return ""
	}
	id := uuid.NewString()
	r.ch <- recordMsg{kind: "turn_create", turnID: id, sessionID: sessionID}
	return id
}

// EndTurn finalizes a turn.
func (r *Recorder) EndTurn(turnID string, durationMs, confidence float64, transcript, intent, status string) {
	if r == nil || turnID == "" {
		return
	}
	r.ch <- recordMsg{
		kind:       "turn_update",
		turnID:     turnID,
		durationMs: durationMs,
		transcript: truncate(transcript, maxFieldLen),
		intent:     intent,
		confidence: confidence,
		status:     status,
	}
}

// RecordSpan records a completed pipeline-stage span within a turn.
func (r *Recorder) RecordSpan(turnID, name string, startedAt time.Time, durationMs float64, input, output, status, errMsg string) {
	if r == nil || turnID == "" {
		return
	}
	r.ch <- recordMsg{
		kind: "span",
		span: Span{
			ID:         uuid.NewString(),
			TurnID:     turnID,
			Name:       name,
			StartedAt:  startedAt,
			DurationMs: durationMs,
			Input:      truncate(input, maxFieldLen),
			Output:     truncate(output, maxFieldLen),
			Status:     status,
			Error:      errMsg,
		},
	}
}

// StartTrainingRun begins a new training run for the named stage ("sentences",
// "speech", "intent") and returns its ID.
func (r *Recorder) StartTrainingRun(stage string) string {
	if r == nil {
		return ""
	}
	id := uuid.NewString()
	r.ch <- recordMsg{kind: "training_create", trainingID: id, trainingStage: stage}
	return id
}

// EndTrainingRun finalizes a training run.
func (r *Recorder) EndTrainingRun(id string, durationMs float64, status, errMsg string) {
	if r == nil || id == "" {
		return
	}
	r.ch <- recordMsg{kind: "training_update", trainingID: id, durationMs: durationMs, status: status, errMsg: errMsg}
}

// Close drains pending writes and shuts down the background goroutine.
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	close(r.ch)
	<-r.done
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
