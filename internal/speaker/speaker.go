// Package speaker implements internal/dialogue.Speaker (spec.md §1: the TTS
// engine itself, eSpeak/picoTTS/MaryTTS/Piper, is out of scope; only the
// contract a deployment wires a concrete engine behind is specified here).
package speaker

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
)

// CommandSpeaker is the command-subprocess TTS variant: spawns a fresh
// process per utterance with the text on standard input, and separate
// fire-and-forget subprocesses for the wake/captured chimes. Grounded on
// internal/decoder.CommandBackend and internal/wake.CommandDetector's
// one-shot-subprocess-per-call idiom.
type CommandSpeaker struct {
	Path     string
	Args     []string
	ChimeCmd []string // argv0 + args for playing a short sound file; empty disables chimes
}

// NewCommandSpeaker configures a command-subprocess speaker.
func NewCommandSpeaker(path string, args []string, chimeCmd []string) *CommandSpeaker {
	return &CommandSpeaker{Path: path, Args: args, ChimeCmd: chimeCmd}
}

// Speak implements dialogue.Speaker: writes text to the subprocess's
// standard input and waits for it to exit.
func (s *CommandSpeaker) Speak(ctx context.Context, text string) error {
	cmd := exec.CommandContext(ctx, s.Path, s.Args...)
	cmd.Stdin = bytes.NewReader([]byte(text))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		slog.Warn("speaker: command failed", "error", err, "stderr", stderr.String())
		return err
	}
	return nil
}

// PlayWakeChime implements dialogue.Speaker.
func (s *CommandSpeaker) PlayWakeChime() { s.playChime() }

// PlayCapturedChime implements dialogue.Speaker.
func (s *CommandSpeaker) PlayCapturedChime() { s.playChime() }

// playChime runs ChimeCmd in the background, logging but not surfacing
// failure: a missed chime is a minor UX defect, never a reason to disturb
// session state (spec.md §4.7 treats chimes as fire-and-forget).
func (s *CommandSpeaker) playChime() {
	if len(s.ChimeCmd) == 0 {
		return
	}
	cmd := exec.Command(s.ChimeCmd[0], s.ChimeCmd[1:]...)
	go func() {
		if err := cmd.Run(); err != nil {
			slog.Warn("speaker: chime command failed", "error", err)
		}
	}()
}

// NullSpeaker is a no-op Speaker, used by the "dummy" profile and tests,
// the same role internal/mic.DummyCapturer plays for microphone capture.
type NullSpeaker struct{}

// Speak implements dialogue.Speaker.
func (NullSpeaker) Speak(ctx context.Context, text string) error { return nil }

// PlayWakeChime implements dialogue.Speaker.
func (NullSpeaker) PlayWakeChime() {}

// PlayCapturedChime implements dialogue.Speaker.
func (NullSpeaker) PlayCapturedChime() {}
