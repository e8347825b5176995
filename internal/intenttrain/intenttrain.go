// Package intenttrain implements the Intent-Recognizer Trainer (spec.md
// §4.12, T5): it produces whatever artifact the configured recognizer
// strategy needs from a compiled intent grammar. Sentence samples are drawn
// from internal/fst's path-enumeration/sampling primitives and decoded via
// internal/fst.Decode, then shaped into the artifact each recognizer
// strategy variant expects (internal/recognizer.Example,
// internal/recognizer.IntentRule, or a remote HTTP payload). The FST
// acceptor strategy needs no artifact beyond the already-compiled union FST
// and is not represented here.
package intenttrain

import "github.com/vocalmind/vocalmind/internal/fst"

// SampleMode selects how sentences are drawn from a per-intent FST (spec.md
// §4.12: "obtained either by exhaustive enumeration or by bounded random
// sampling of paths through the per-intent FST").
type SampleMode int

const (
	Exhaustive SampleMode = iota
	Random
)

// Options configures sentence sampling shared by every artifact builder.
type Options struct {
	Mode SampleMode

	// MaxSentences caps the exhaustive enumeration, or is the target count
	// for random sampling.
	MaxSentences int

	// Next drives fst.SamplePaths's random choice; required when Mode ==
	// Random. Tests pass a deterministic sequence; production code backs
	// this with math/rand.
	Next func(choices int) int
}

// Sentence is one sampled sentence together with its decoded intent and
// entities.
type Sentence struct {
	Intent   string
	Words    []string
	Entities []fst.EntitySpan
}

// sampleIntent draws sentences from one intent's compiled FST per opts,
// decoding each path's output sequence into its intent label and entity
// spans.
func sampleIntent(name string, machine *fst.FST, opts Options) (sentences []Sentence, truncated bool) {
	var paths []fst.Path
	switch opts.Mode {
	case Random:
		paths = machine.SamplePaths(opts.MaxSentences, opts.Next)
	default:
		paths, truncated = machine.EnumeratePaths(opts.MaxSentences)
	}

	sentences = make([]Sentence, 0, len(paths))
	for _, p := range paths {
		intent, entities := fst.Decode(p.Outputs)
		if intent == "" {
			intent = name
		}
		sentences = append(sentences, Sentence{Intent: intent, Words: p.Words, Entities: entities})
	}
	return sentences, truncated
}

// SampleAll draws sentences for every intent in perIntent (as returned by
// internal/fstcompile.CompileEach), reporting whether any intent's
// enumeration was truncated by opts.MaxSentences.
func SampleAll(perIntent map[string]*fst.FST, names []string, opts Options) (map[string][]Sentence, bool) {
	out := make(map[string][]Sentence, len(names))
	anyTruncated := false
	for _, name := range names {
		sentences, truncated := sampleIntent(name, perIntent[name], opts)
		out[name] = sentences
		anyTruncated = anyTruncated || truncated
	}
	return out, anyTruncated
}
