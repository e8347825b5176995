// Package lm implements the Language Model Builder (spec.md §4.11, T4):
// it converts the intent FST into an n-gram count model, normalises counts
// to probabilities, and emits a standard ARPA n-gram language model,
// optionally interpolated with a cached base language model at a
// configured mixing weight.
package lm

import (
	"sort"
	"strings"

	"github.com/vocalmind/vocalmind/internal/fst"
)

const (
	startSymbol = "<s>"
	endSymbol   = "</s>"
)

// Model is an n-gram count model built from a corpus of word sequences.
type Model struct {
	Order  int
	counts []map[string]int // counts[n] keyed by the n-word gram, space-joined; counts[0] is unused
}

// BuildFromFST enumerates every accepted sentence of machine (up to
// maxSentences) and counts n-grams over them (spec.md §4.11: "Convert the
// intent FST to an n-gram count FST"). truncated reports whether the
// language was larger than maxSentences, in which case the model was
// built from a strict subset of the grammar's sentences.
func BuildFromFST(machine *fst.FST, order, maxSentences int) (model *Model, truncated bool) {
	paths, truncated := machine.EnumeratePaths(maxSentences)
	sentences := make([][]string, len(paths))
	for i, p := range paths {
		sentences[i] = p.Words
	}
	return BuildFromSentences(sentences, order), truncated
}

// BuildFromSentences counts every 1..order gram across sentences, each
// padded with order-1 leading "<s>" markers and one trailing "</s>"
// marker, the standard n-gram sentence-boundary convention.
func BuildFromSentences(sentences [][]string, order int) *Model {
	m := &Model{Order: order, counts: make([]map[string]int, order+1)}
	for n := 1; n <= order; n++ {
		m.counts[n] = map[string]int{}
	}

	pad := order - 1
	if pad < 0 {
		pad = 0
	}
	for _, sentence := range sentences {
		padded := make([]string, 0, len(sentence)+pad+1)
		for i := 0; i < pad; i++ {
			padded = append(padded, startSymbol)
		}
		padded = append(padded, sentence...)
		padded = append(padded, endSymbol)

		for n := 1; n <= order; n++ {
			for i := 0; i+n <= len(padded); i++ {
				gram := strings.Join(padded[i:i+n], " ")
				m.counts[n][gram]++
			}
		}
	}
	return m
}

// count returns the raw count for a space-joined gram at the given order.
func (m *Model) count(order int, gram string) int {
	if order < 1 || order > m.Order {
		return 0
	}
	return m.counts[order][gram]
}

// contextOf returns the (n-1)-gram prefix of a space-joined n-gram.
func contextOf(gram string) string {
	i := strings.LastIndexByte(gram, ' ')
	if i < 0 {
		return ""
	}
	return gram[:i]
}

// probability returns the maximum-likelihood conditional probability of
// the last word of gram given its preceding context: count(gram) /
// count(context), or count(w) / total-unigram-tokens for order 1.
func (m *Model) probability(order int, gram string) float64 {
	c := m.count(order, gram)
	if c == 0 {
		return 0
	}
	if order == 1 {
		total := 0
		for _, n := range m.counts[1] {
			total += n
		}
		if total == 0 {
			return 0
		}
		return float64(c) / float64(total)
	}
	ctxCount := m.count(order-1, contextOf(gram))
	if ctxCount == 0 {
		return 0
	}
	return float64(c) / float64(ctxCount)
}

// grams returns every distinct gram recorded at the given order, sorted
// for deterministic ARPA output (spec.md §8 "Deterministic training").
func (m *Model) grams(order int) []string {
	if order < 1 || order > m.Order {
		return nil
	}
	out := make([]string, 0, len(m.counts[order]))
	for g := range m.counts[order] {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}
