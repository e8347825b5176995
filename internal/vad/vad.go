// Package vad classifies individual PCM frames as speech or silence, the
// building block the command listener (internal/listener) brackets voice
// commands with (spec.md §4.3).
package vad

import (
	"math"

	"github.com/vocalmind/vocalmind/internal/audio"
)

// Config carries the command listener's VAD-related profile parameters
// (spec.md §4.3), plus the derived frame counts computed from them.
type Config struct {
	SampleRate          int
	FrameMs             int
	Aggressiveness      int // 0..3, least to most aggressive about calling a frame silence
	MinCommandSec       float64
	SilenceTrailingSec  float64
	MaxCommandSec       float64
	ThrowawayFrames     int
	LeadingSpeechFrames int

	// Derived.
	MaxFrames       int
	SilenceFrames   int
	MinPhraseFrames int
}

// DefaultConfig matches Rhasspy's stock command-listener tuning.
func DefaultConfig() Config {
	c := Config{
		SampleRate:          16000,
		FrameMs:             30,
		Aggressiveness:      3,
		MinCommandSec:       2.0,
		SilenceTrailingSec:  0.5,
		MaxCommandSec:       30.0,
		ThrowawayFrames:     0,
		LeadingSpeechFrames: 5,
	}
	c.Derive()
	return c
}

// Derive recomputes MaxFrames, SilenceFrames and MinPhraseFrames from the
// configured durations (spec.md §4.3: "max_frames = ⌈max_command_sec /
// frame_sec⌉" etc). Call after changing any *Sec field.
func (c *Config) Derive() {
	frameSec := float64(c.FrameMs) / 1000.0
	c.MaxFrames = ceilFrames(c.MaxCommandSec, frameSec)
	c.SilenceFrames = ceilFrames(c.SilenceTrailingSec, frameSec)
	c.MinPhraseFrames = ceilFrames(c.MinCommandSec, frameSec)
}

func ceilFrames(seconds, frameSec float64) int {
	return int(math.Ceil(seconds / frameSec))
}

// FrameBytes is the byte length of one frame under this configuration.
func (c Config) FrameBytes() int {
	return audio.FrameBytes(c.SampleRate, c.FrameMs)
}

// Classifier decides whether one PCM frame contains speech.
type Classifier interface {
	IsSpeech(frame audio.Frame) bool
}

// energyClassifier is grounded on the teacher's adaptive dB-threshold
// energy VAD, generalized here to the aggressiveness knob spec.md calls
// for in place of the teacher's fixed SpeechThresholdDB. No webrtc-vad (or
// equivalent) binding exists anywhere in the example pack, so this
// implements the same energy-threshold approach the teacher used rather
// than a proper spectral/ML classifier — see DESIGN.md.
type energyClassifier struct {
	thresholdDB float64
}

// aggressivenessThresholds maps spec.md's 0..3 aggressiveness levels to a
// speech-floor in dBFS: higher aggressiveness requires louder frames to
// count as speech, i.e. it classifies more frames as silence.
var aggressivenessThresholds = [4]float64{-50, -45, -40, -35}

// NewEnergyClassifier builds a Classifier from the configured aggressiveness
// level. Aggressiveness is clamped to [0,3].
func NewEnergyClassifier(aggressiveness int) Classifier {
	if aggressiveness < 0 {
		aggressiveness = 0
	}
	if aggressiveness > 3 {
		aggressiveness = 3
	}
	return &energyClassifier{thresholdDB: aggressivenessThresholds[aggressiveness]}
}

func (e *energyClassifier) IsSpeech(frame audio.Frame) bool {
	if frame.IsEndOfStream() {
		return false
	}
	return computeEnergyDB(frame) >= e.thresholdDB
}

// computeEnergyDB computes the RMS energy of 16-bit little-endian PCM
// samples in dBFS, the same metric the teacher's VAD used for its
// threshold comparison.
func computeEnergyDB(frame audio.Frame) float64 {
	if len(frame) < 2 {
		return -math.MaxFloat64
	}
	var sumSquares float64
	n := len(frame) / 2
	for i := 0; i < n; i++ {
		sample := int16(uint16(frame[2*i]) | uint16(frame[2*i+1])<<8)
		normalized := float64(sample) / 32768.0
		sumSquares += normalized * normalized
	}
	rms := math.Sqrt(sumSquares / float64(n))
	if rms <= 0 {
		return -math.MaxFloat64
	}
	return 20 * math.Log10(rms)
}
