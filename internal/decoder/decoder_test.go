package decoder

import (
	"context"
	"errors"
	"testing"

	"github.com/vocalmind/vocalmind/internal/audio"
)

func sampleWAV() []byte {
	samples := make([]float32, 1600)
	return audio.SamplesToWAV(samples, 16000)
}

func TestTranscribeLazilyLoadsOnFirstCall(t *testing.T) {
	backend := &StubBackend{Text: "turn on the kitchen light", Confidence: 0.91}
	d := New(context.Background(), backend, Config{})
	defer d.Close()

	if backend.loadCalls != 0 {
		t.Fatalf("expected lazy load, got %d load calls before first Transcribe", backend.loadCalls)
	}

	result, err := d.Transcribe(context.Background(), sampleWAV())
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.Text != "turn on the kitchen light" || result.Confidence != 0.91 {
		t.Fatalf("unexpected result %+v", result)
	}
	if backend.loadCalls != 1 {
		t.Fatalf("expected exactly 1 load call, got %d", backend.loadCalls)
	}

	if _, err := d.Transcribe(context.Background(), sampleWAV()); err != nil {
		t.Fatalf("second Transcribe: %v", err)
	}
	if backend.loadCalls != 1 {
		t.Fatalf("expected load not repeated on second Transcribe, got %d", backend.loadCalls)
	}
}

func TestPreloadLoadsEagerly(t *testing.T) {
	backend := &StubBackend{Text: "ok"}
	d := New(context.Background(), backend, Config{Preload: true})
	defer d.Close()

	if backend.loadCalls != 1 {
		t.Fatalf("expected preload to call Load once eagerly, got %d", backend.loadCalls)
	}
}

func TestTranscribeErrorReturnsEmptyResult(t *testing.T) {
	backend := &StubBackend{TranscribeErr: errors.New("engine crashed")}
	d := New(context.Background(), backend, Config{})
	defer d.Close()

	result, err := d.Transcribe(context.Background(), sampleWAV())
	if err == nil {
		t.Fatal("expected error from failing backend")
	}
	if result.Text != "" || result.Confidence != 0 {
		t.Fatalf("expected empty result on error, got %+v", result)
	}
}

func TestReloadForcesFreshLoad(t *testing.T) {
	backend := &StubBackend{Text: "ok"}
	d := New(context.Background(), backend, Config{})
	defer d.Close()

	if _, err := d.Transcribe(context.Background(), sampleWAV()); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if err := d.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if backend.loadCalls != 2 {
		t.Fatalf("expected 2 load calls after reload, got %d", backend.loadCalls)
	}
}
