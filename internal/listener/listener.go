// Package listener implements the Command Listener (spec.md §4.3, L3): the
// before → in_phrase → after_phrase → done state machine that brackets a
// spoken voice command out of a continuous PCM stream using a VAD
// classifier, and frames the result as a WAV buffer.
package listener

import (
	"github.com/vocalmind/vocalmind/internal/audio"
	"github.com/vocalmind/vocalmind/internal/vad"
)

type phase int

const (
	phaseBefore phase = iota
	phaseInPhrase
	phaseAfterPhrase
	phaseDone
)

// VoiceCommand is the bracketed capture handed to the speech decoder:
// WAV-encoded 16-bit PCM plus the flags spec.md §3 defines for it.
type VoiceCommand struct {
	WAV          []byte
	TimedOut     bool
	HandleIntent bool
}

// Listener runs one bracketing session frame-by-frame. It is not an actor:
// the dialogue coordinator drives it synchronously from within its own
// state machine, one PushFrame call per incoming frame.
type Listener struct {
	cfg        vad.Config
	classifier vad.Classifier

	phase           phase
	framesSeen      int
	throwawayLeft   int
	leadingStreak   int
	trailingSilence int
	buffered        []byte
	done            bool
	result          VoiceCommand
}

// New creates a Listener ready to bracket one command under cfg.
func New(cfg vad.Config, classifier vad.Classifier) *Listener {
	cfg.Derive()
	return &Listener{
		cfg:           cfg,
		classifier:    classifier,
		phase:         phaseBefore,
		throwawayLeft: cfg.ThrowawayFrames,
	}
}

// PushFrame feeds one frame into the bracketing state machine. It returns
// true once the session has concluded (either "done" or "timeout"); Result
// then returns the captured VoiceCommand. Calling PushFrame after
// completion is a no-op returning true.
func (l *Listener) PushFrame(frame audio.Frame) bool {
	if l.done {
		return true
	}

	// An end-of-stream marker means the microphone source failed; there is
	// no more audio coming, so bracket whatever was captured so far rather
	// than feeding a zero-length frame through the phase logic below (which
	// assumes a frame of the stream's fixed, non-zero size).
	if frame.IsEndOfStream() {
		l.finish(true)
		return true
	}

	l.framesSeen++
	speech := l.classifier.IsSpeech(frame)

	switch l.phase {
	case phaseBefore:
		l.handleBefore(frame, speech)
	case phaseInPhrase:
		l.handleInPhrase(frame, speech)
	case phaseAfterPhrase:
		l.handleAfterPhrase(frame)
	}

	if !l.done && l.framesSeen >= l.cfg.MaxFrames {
		l.finish(true)
	}

	return l.done
}

func (l *Listener) handleBefore(frame audio.Frame, speech bool) {
	if l.throwawayLeft > 0 {
		l.throwawayLeft--
		return
	}

	if !speech {
		l.leadingStreak = 0
		return
	}

	l.leadingStreak++
	if l.leadingStreak < l.cfg.LeadingSpeechFrames {
		// Confirming but not yet past the leading-margin threshold: this
		// frame is discarded entirely, not buffered, matching
		// original_source/rhasspy/command_listener.py's speech_buffers_left
		// countdown (frames counted down are skipped, never appended).
		return
	}

	// Transition to in_phrase: only the frame that confirmed the leading
	// run starts the capture (self.buffer = data, not +=, in the original).
	l.phase = phaseInPhrase
	l.trailingSilence = 0
	l.buffered = append(l.buffered, frame...)
}

func (l *Listener) handleInPhrase(frame audio.Frame, speech bool) {
	l.buffered = append(l.buffered, frame...)

	phraseFrames := len(l.buffered) / len(frame)
	if phraseFrames < l.cfg.MinPhraseFrames {
		return // spec.md §4.3: ignore silence until min_phrase_frames accumulated
	}

	if speech {
		l.trailingSilence = 0
		return
	}
	l.trailingSilence++
	if l.trailingSilence >= l.cfg.SilenceFrames {
		l.phase = phaseAfterPhrase
		l.trailingSilence = 0
	}
}

func (l *Listener) handleAfterPhrase(frame audio.Frame) {
	l.buffered = append(l.buffered, frame...)
	l.trailingSilence++
	if l.trailingSilence >= l.cfg.SilenceFrames {
		l.finish(false)
	}
}

func (l *Listener) finish(timedOut bool) {
	l.done = true
	l.phase = phaseDone
	l.result = VoiceCommand{
		WAV:          audio.EncodeWAV(l.buffered, l.cfg.SampleRate, 1),
		TimedOut:     timedOut,
		HandleIntent: true,
	}
}

// Result returns the bracketed command. Valid only after PushFrame returns
// true.
func (l *Listener) Result() VoiceCommand { return l.result }

// Done reports whether the session has concluded.
func (l *Listener) Done() bool { return l.done }
