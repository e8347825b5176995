package telemetry

import (
	"strings"
	"testing"
	"time"
)

func TestTruncateLeavesShortStringsUnchanged(t *testing.T) {
	if got := truncate("short", 500); got != "short" {
		t.Fatalf("truncate = %q, want unchanged", got)
	}
}

func TestTruncateCutsLongStringsAtMaxFieldLen(t *testing.T) {
	s := strings.Repeat("a", maxFieldLen+50)
	got := truncate(s, maxFieldLen)
	if len(got) != maxFieldLen {
		t.Fatalf("len(truncate(...)) = %d, want %d", len(got), maxFieldLen)
	}
}

// A nil *Recorder must behave as a no-op store, the same contract the
// teacher's trace.Tracer gives a nil receiver, so callers can wire
// telemetry unconditionally and simply leave it nil when no DSN is
// configured.
func TestNilRecorderMethodsAreNoOps(t *testing.T) {
	var r *Recorder

	if id := r.StartSession(); id != "" {
		t.Fatalf("StartSession on nil recorder = %q, want empty", id)
	}
	r.EndSession("some-session")

	if id := r.StartTurn("some-session"); id != "" {
		t.Fatalf("StartTurn on nil recorder = %q, want empty", id)
	}
	r.EndTurn("turn-id", 12.5, 0.9, "transcript", "GetTime", "ok")
	r.RecordSpan("turn-id", "decode", time.Now(), 10, "in", "out", "ok", "")

	if id := r.StartTrainingRun("sentences"); id != "" {
		t.Fatalf("StartTrainingRun on nil recorder = %q, want empty", id)
	}
	r.EndTrainingRun("training-id", 1.0, "ok", "")

	r.Close() // must not panic or block
}
