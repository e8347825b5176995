package intenttrain

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/vocalmind/vocalmind/internal/recognizer"
)

// BuildExamples shapes sampled sentences into the artifact the fuzzy
// strategy needs (spec.md §4.12(b): "a JSON of example sentences per
// intent"): one recognizer.Example per sampled sentence, its text the
// sentence's words space-joined and its entities converted from the
// decoded fst.EntitySpan values.
func BuildExamples(sentencesByIntent map[string][]Sentence, names []string) []recognizer.Example {
	var out []recognizer.Example
	for _, name := range names {
		for _, s := range sentencesByIntent[name] {
			out = append(out, recognizer.Example{
				Intent:   s.Intent,
				Text:     strings.Join(s.Words, " "),
				Entities: entitiesFrom(s),
			})
		}
	}
	return out
}

func entitiesFrom(s Sentence) []recognizer.Entity {
	if len(s.Entities) == 0 {
		return nil
	}
	out := make([]recognizer.Entity, 0, len(s.Entities))
	for _, e := range s.Entities {
		out = append(out, recognizer.Entity{Entity: e.Entity, Value: e.Value})
	}
	return out
}

// WriteExamplesJSON serializes examples as a JSON array, the format the
// fuzzy strategy's example-set loader reads back.
func WriteExamplesJSON(w io.Writer, examples []recognizer.Example) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(examples)
}
