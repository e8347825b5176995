package recognizer

import (
	"strings"

	"github.com/vocalmind/vocalmind/internal/fst"
	"github.com/vocalmind/vocalmind/internal/fstcompile"
)

// FSTStrategy is the FST-acceptor recognizer variant (spec.md §4.5
// strategy 1): tokenises the transcript, optionally drops out-of-vocabulary
// tokens, and composes the result against the compiled intent FST.
type FSTStrategy struct {
	Machine       *fst.FST
	DropOOV       bool
	MinConfidence float64

	// Aliases resolves an entity's decoded literal value to the
	// "[value](entity:normalized)" alias the source grammar declared for
	// it, if any (spec.md §3/§6); nil disables normalisation lookup.
	Aliases fstcompile.AliasMap
}

// NewFSTStrategy wraps a compiled intent FST (spec.md §4.9 T2 output) as a
// recognizer strategy.
func NewFSTStrategy(machine *fst.FST, dropOOV bool) *FSTStrategy {
	return &FSTStrategy{Machine: machine, DropOOV: dropOOV}
}

// Recognize implements Strategy.
func (s *FSTStrategy) Recognize(text string, speechConfidence float64) (Result, error) {
	tokens := tokenize(text)
	if s.DropOOV {
		alphabet := s.Machine.Alphabet()
		filtered := tokens[:0]
		for _, tok := range tokens {
			if _, ok := alphabet[tok]; ok {
				filtered = append(filtered, tok)
			}
		}
		tokens = filtered
	}

	accepted, ok := s.Machine.Accept(tokens)
	if !ok {
		return emptyResult(text, speechConfidence), nil
	}

	intentName, spans := fst.Decode(accepted.Outputs)
	entities := make([]Entity, 0, len(spans))
	for _, span := range spans {
		start, end := span.Start, span.End
		value := span.Value
		if s.Aliases != nil {
			if norm, ok := s.Aliases.Lookup(span.Entity, value); ok {
				value = norm
			}
		}
		entities = append(entities, Entity{
			Entity: span.Entity,
			Value:  value,
			Start:  &start,
			End:    &end,
		})
	}

	confidence := weightToConfidence(accepted.TotalWeight)
	return Result{
		Text:             text,
		Confidence:       confidence,
		Intent:           Intent{Name: intentName, Confidence: confidence},
		Entities:         entities,
		RawText:          text,
		SpeechConfidence: speechConfidence,
	}, nil
}

// weightToConfidence maps a non-negative FST path weight (lower is better,
// 0 is a perfect match) onto (0,1] as 1/(1+weight), the same
// normalisation spec.md §4.5 requires of every strategy ("confidence is
// normalised to [0,1]").
func weightToConfidence(weight float64) float64 {
	if weight <= 0 {
		return 1.0
	}
	c := 1.0 / (1.0 + weight)
	if c < 0 {
		return 0
	}
	return c
}

// tokenize lowercases and splits text on whitespace, the normalisation
// spec.md §4.5 calls for before FST composition.
func tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}
