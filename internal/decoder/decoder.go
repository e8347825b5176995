// Package decoder implements the Speech Decoder (spec.md §4.4, L4):
// transcribes a WAV buffer to text against the profile's language model and
// dictionary, via a pluggable Backend.
package decoder

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vocalmind/vocalmind/internal/audio"
)

// Result is the decoder's output contract (spec.md §4.4 / §3).
type Result struct {
	Text       string
	Confidence float64
}

// Backend is the pluggable transcription strategy. Real deployments point
// this at a concrete ASR engine (Pocketsphinx, Kaldi, a whisper.cpp-style
// HTTP server); those engines are out of scope per spec.md §1 ("we specify
// the contract the pipeline requires of them, not their internals").
type Backend interface {
	// Load preloads acoustic/language models. Called lazily on first
	// Transcribe unless Preload is configured, and again whenever Reload
	// is called after a retrain.
	Load(ctx context.Context) error
	// Transcribe decodes 16-bit/16kHz/mono PCM samples already normalized
	// by NormalizeWAV.
	Transcribe(ctx context.Context, samples []float32) (Result, error)
	// Close releases resources Load acquired.
	Close() error
}

// Config controls preload/eager-load behavior.
type Config struct {
	Preload bool
}

// Decoder is the L4 Speech Decoder. It is not an actor: the dialogue
// coordinator already serializes one transcription at a time per session,
// and Transcribe itself may be called concurrently by out-of-band requests
// (spec.md §4.7), so state is protected by a plain mutex around load/reload
// rather than a mailbox.
type Decoder struct {
	backend Backend
	cfg     Config

	mu     sync.Mutex
	loaded bool
}

// New creates a decoder over the given backend. If cfg.Preload is set,
// Load is attempted immediately; a preload failure is logged but does not
// prevent construction (spec.md §4.4: decoder errors surface through the
// result envelope, not as a fatal startup condition).
func New(ctx context.Context, backend Backend, cfg Config) *Decoder {
	d := &Decoder{backend: backend, cfg: cfg}
	if cfg.Preload {
		if err := d.ensureLoaded(ctx); err != nil {
			slog.Error("decoder: preload failed", "error", err)
		}
	}
	return d
}

func (d *Decoder) ensureLoaded(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.loaded {
		return nil
	}
	if err := d.backend.Load(ctx); err != nil {
		return err
	}
	d.loaded = true
	return nil
}

// Transcribe decodes buf (a WAV buffer, any supported format) to text. On
// any engine or load error, returns Result{Text: "", Confidence: 0} and the
// error (spec.md §4.4: "return empty text with confidence 0 and surface
// the error through the result envelope").
func (d *Decoder) Transcribe(ctx context.Context, buf []byte) (Result, error) {
	if err := d.ensureLoaded(ctx); err != nil {
		return Result{}, err
	}

	samples, err := audio.NormalizeWAV(buf)
	if err != nil {
		return Result{}, err
	}

	result, err := d.backend.Transcribe(ctx, samples)
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

// Reload discards the current backend state and loads fresh models,
// following a completed retrain (spec.md §4.4, §5: "swap-on-retrain is
// done by spinning up fresh component instances and discarding the old
// ones").
func (d *Decoder) Reload(ctx context.Context) error {
	d.mu.Lock()
	d.loaded = false
	d.mu.Unlock()
	return d.ensureLoaded(ctx)
}

// Close releases the backend's resources.
func (d *Decoder) Close() error { return d.backend.Close() }
