package decoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/vocalmind/vocalmind/internal/audio"
)

// CommandBackend is the command-subprocess decoder variant: spawns a fresh
// process per utterance, writes the WAV buffer to its standard input, and
// parses a JSON {"text":..., "confidence":...} object from its standard
// output. Grounded on the same subprocess-invocation idiom as
// internal/wake's CommandDetector, here run once per call rather than
// held open, since a full-utterance decode has no notion of a
// frame-by-frame streaming session.
type CommandBackend struct {
	Path string
	Args []string
}

// NewCommandBackend configures a command-subprocess decoder.
func NewCommandBackend(path string, args []string) *CommandBackend {
	return &CommandBackend{Path: path, Args: args}
}

// Load is a no-op: there is no persistent subprocess to warm up.
func (c *CommandBackend) Load(ctx context.Context) error { return nil }

// Close is a no-op: no persistent resources are held between calls.
func (c *CommandBackend) Close() error { return nil }

// Transcribe implements Backend.
func (c *CommandBackend) Transcribe(ctx context.Context, samples []float32) (Result, error) {
	wav := audio.SamplesToWAV(samples, 16000)

	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Stdin = bytes.NewReader(wav)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Result{}, fmt.Errorf("decoder: command failed: %w (stderr: %s)", err, stderr.String())
	}

	var parsed decodeResponse
	if err := json.Unmarshal(stdout.Bytes(), &parsed); err != nil {
		return Result{}, fmt.Errorf("decoder: parse command output: %w", err)
	}
	return Result{Text: parsed.Text, Confidence: parsed.Confidence}, nil
}
