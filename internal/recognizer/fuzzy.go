package recognizer

import "github.com/antzucaro/matchr"

// Example is one labeled training sentence the fuzzy strategy compares
// input transcripts against (spec.md §4.5 strategy 2, §4.12(b) artifact).
type Example struct {
	Intent   string
	Text     string
	Entities []Entity
}

// FuzzyStrategy is the fuzzy string-match recognizer variant: finds the
// training example with the highest word-level similarity to the input and
// returns its intent if the similarity clears MinConfidence.
type FuzzyStrategy struct {
	Examples      []Example
	MinConfidence float64
}

// NewFuzzyStrategy builds a fuzzy matcher over the given per-intent example
// sentences.
func NewFuzzyStrategy(examples []Example, minConfidence float64) *FuzzyStrategy {
	return &FuzzyStrategy{Examples: examples, MinConfidence: minConfidence}
}

// Recognize implements Strategy.
func (s *FuzzyStrategy) Recognize(text string, speechConfidence float64) (Result, error) {
	tokens := tokenize(text)

	var best Example
	bestScore := -1.0
	for _, ex := range s.Examples {
		score := wordSimilarity(tokens, tokenize(ex.Text))
		if score > bestScore {
			bestScore = score
			best = ex
		}
	}

	if bestScore < s.MinConfidence {
		return emptyResult(text, speechConfidence), nil
	}

	return Result{
		Text:             text,
		Confidence:       bestScore,
		Intent:           Intent{Name: best.Intent, Confidence: bestScore},
		Entities:         best.Entities,
		RawText:          text,
		SpeechConfidence: speechConfidence,
	}, nil
}

// wordSimilarity returns 1 - normalized word-level edit distance, in
// [0,1], 1.0 meaning an exact match. Generalizes the same two-row
// Levenshtein DP the teacher used for word-error-rate evaluation
// (internal/pipeline/wer.go) to a similarity score instead of an error
// rate.
func wordSimilarity(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	dist := levenshteinWords(a, b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1.0
	}
	score := 1.0 - dist/float64(maxLen)
	if score < 0 {
		return 0
	}
	return score
}

// levenshteinWords computes the word-level edit distance between a and b
// using a two-row dynamic program, the same shape as the teacher's
// internal/pipeline/wer.go DP. Substitution cost is fractional rather than
// a flat 1: two different words cost 1-JaroWinkler(word1, word2), so a
// mishearing that is phonetically close to the expected word ("kichen" for
// "kitchen") costs less than an unrelated substitution, the same
// fuzzy-candidate idea the MrWong99-glyphoxa transcript matcher applies to
// entity names.
func levenshteinWords(a, b []string) float64 {
	prev := make([]float64, len(b)+1)
	curr := make([]float64, len(b)+1)
	for j := range prev {
		prev[j] = float64(j)
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = float64(i)
		for j := 1; j <= len(b); j++ {
			cost := 0.0
			if a[i-1] != b[j-1] {
				cost = 1 - matchr.JaroWinkler(a[i-1], b[j-1], false)
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution/match
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c float64) float64 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
