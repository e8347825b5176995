package fst

import "sort"

// Path is one accepted word sequence through an FST, together with the
// meta-token-annotated output sequence Decode would produce for it.
type Path struct {
	Words   []string
	Outputs []string
}

// EnumeratePaths walks every accepting path from the start state by
// depth-first search, collecting input words in order along with their
// interleaved output markers. Grammars compiled by internal/fstcompile are
// guaranteed acyclic (rule references are cycle-checked at compile time),
// so this always terminates; maxPaths bounds the result size regardless,
// since alternatives and optionals still multiply out combinatorially.
// Used by the language-model builder (T4, spec.md §4.11: "convert the
// intent FST to an n-gram count FST") and the intent-recognizer trainer's
// exhaustive sampling mode (T5, spec.md §4.12: "Sentence samples are
// obtained either by exhaustive enumeration or by bounded random sampling
// of paths through the per-intent FST").
func (f *FST) EnumeratePaths(maxPaths int) (paths []Path, truncated bool) {
	var words, outputs []string
	var walk func(s StateID) bool // returns false once maxPaths is reached
	walk = func(s StateID) bool {
		if _, ok := f.IsFinal(s); ok {
			pathWords := append([]string(nil), words...)
			pathOutputs := append([]string(nil), outputs...)
			paths = append(paths, Path{Words: pathWords, Outputs: pathOutputs})
			if len(paths) >= maxPaths {
				return false
			}
		}
		for _, t := range f.TransitionsFrom(s) {
			if t.OutputLabel != "" {
				outputs = append(outputs, t.OutputLabel)
			}
			if t.InputLabel != "" {
				words = append(words, t.InputLabel)
				outputs = append(outputs, t.InputLabel)
			}
			cont := walk(t.To)
			if t.InputLabel != "" {
				words = words[:len(words)-1]
				outputs = outputs[:len(outputs)-1]
			}
			if t.OutputLabel != "" {
				outputs = outputs[:len(outputs)-1]
			}
			if !cont {
				return false
			}
		}
		return true
	}
	walk(f.Start())
	return paths, len(paths) >= maxPaths
}

// SamplePaths returns up to n paths through the FST chosen by a random
// walk from the start state: at each state, next(choices) picks either one
// of the outgoing transitions or, when the state is final, the extra
// "stop here" choice at index choices-1 (injected so callers control
// randomness without this package touching math/rand directly). Duplicate
// word sequences are discarded. Returns fewer than n paths if the FST's
// language is smaller than n or a walk dead-ends without reaching a final
// state (which a well-formed compiled grammar never does).
func (f *FST) SamplePaths(n int, next func(choices int) int) []Path {
	seen := map[string]bool{}
	var out []Path

	for attempt := 0; attempt < n*4 && len(out) < n; attempt++ {
		words, ok := f.samplePath(next)
		if !ok {
			continue
		}
		key := joinWords(words.Words)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, words)
	}

	sort.Slice(out, func(i, j int) bool { return joinWords(out[i].Words) < joinWords(out[j].Words) })
	return out
}

// samplePath performs one random walk, returning ok=false if it dead-ends
// (exhausts maxSampleSteps or reaches a non-final state with no outgoing
// transitions) without ever reaching a final state.
func (f *FST) samplePath(next func(choices int) int) (Path, bool) {
	var words, outputs []string
	s := f.Start()
	for steps := 0; steps < maxSampleSteps; steps++ {
		trans := f.TransitionsFrom(s)
		_, final := f.IsFinal(s)

		choices := len(trans)
		if final {
			choices++
		}
		if choices == 0 {
			return Path{}, false
		}

		idx := next(choices)
		if idx < 0 || idx >= choices {
			idx = 0
		}
		if final && idx == len(trans) {
			return Path{Words: words, Outputs: outputs}, true
		}

		t := trans[idx]
		if t.OutputLabel != "" {
			outputs = append(outputs, t.OutputLabel)
		}
		if t.InputLabel != "" {
			words = append(words, t.InputLabel)
			outputs = append(outputs, t.InputLabel)
		}
		s = t.To
	}
	return Path{}, false
}

const maxSampleSteps = 64

func joinWords(words []string) string {
	out := ""
	for i, w := range words {
		if i > 0 {
			out += " "
		}
		out += w
	}
	return out
}
