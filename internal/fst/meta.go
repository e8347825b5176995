package fst

import "strings"

const (
	labelPrefix = "__label__"
	beginPrefix = "__begin__"
	endPrefix   = "__end__"
)

// LabelOutput returns the output symbol for an intent label marker.
func LabelOutput(intent string) string { return labelPrefix + intent }

// BeginOutput returns the output symbol marking the start of an entity span.
func BeginOutput(entity string) string { return beginPrefix + entity }

// EndOutput returns the output symbol marking the end of an entity span.
func EndOutput(entity string) string { return endPrefix + entity }

// IsMeta reports whether sym is one of the __label__/__begin__/__end__
// meta-tokens rather than an ordinary word output.
func IsMeta(sym string) bool {
	return strings.HasPrefix(sym, labelPrefix) || strings.HasPrefix(sym, beginPrefix) || strings.HasPrefix(sym, endPrefix)
}

// EntitySpan is one recognized entity occurrence, built by walking the
// output sequence between a __begin__<entity> and the matching
// __end__<entity> marker.
type EntitySpan struct {
	Entity string
	Value  string // joined word tokens between the markers
	Start  int    // word index of the first token inside the span
	End    int    // word index one past the last token inside the span
}

// Decode walks an Accept result's output sequence (interleaved with the
// word tokens that produced it) and extracts the intent label and entity
// spans. Word positions are tracked by counting non-meta outputs, which in
// a compiled grammar FST correspond 1:1 with consumed input tokens (spec.md
// §3: "every accepted token sequence maps to exactly one intent label and
// a well-nested set of begin/end entity markers").
func Decode(outputs []string) (intent string, entities []EntitySpan) {
	var openEntity string
	var openStart int
	var openWords []string
	wordIdx := 0

	for _, out := range outputs {
		switch {
		case strings.HasPrefix(out, labelPrefix):
			intent = strings.TrimPrefix(out, labelPrefix)
		case strings.HasPrefix(out, beginPrefix):
			openEntity = strings.TrimPrefix(out, beginPrefix)
			openStart = wordIdx
			openWords = nil
		case strings.HasPrefix(out, endPrefix):
			entity := strings.TrimPrefix(out, endPrefix)
			if entity == openEntity && openEntity != "" {
				entities = append(entities, EntitySpan{
					Entity: entity,
					Value:  strings.Join(openWords, " "),
					Start:  openStart,
					End:    wordIdx,
				})
			}
			openEntity = ""
			openWords = nil
		default:
			if openEntity != "" {
				openWords = append(openWords, out)
			}
			wordIdx++
		}
	}
	return intent, entities
}
