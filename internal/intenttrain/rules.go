package intenttrain

import (
	"encoding/json"
	"io"
	"sort"

	"github.com/vocalmind/vocalmind/internal/recognizer"
)

// BuildRules shapes sampled sentences into the artifact the keyword/rule
// engine strategy needs (spec.md §4.12(c): "required tokens are those
// appearing in every sampled sentence for the intent; optional ones appear
// in some but not all"). Entity slots recovered in at least one sentence
// are folded in as "<intent>.<entity>" keys alongside plain word tokens,
// required if the entity occurs in every sentence and optional otherwise —
// the same "<intent>." prefix convention recognizer.KeywordStrategy already
// strips back off when recovering entity names.
func BuildRules(sentencesByIntent map[string][]Sentence, names []string) []recognizer.IntentRule {
	var out []recognizer.IntentRule
	for _, name := range names {
		sentences := sentencesByIntent[name]
		if len(sentences) == 0 {
			out = append(out, recognizer.IntentRule{Intent: name})
			continue
		}

		counts := map[string]int{}
		for _, s := range sentences {
			for tok := range tokenSet(s) {
				counts[tok]++
			}
		}

		var required, optional []string
		for tok, n := range counts {
			if n == len(sentences) {
				required = append(required, tok)
			} else {
				optional = append(optional, tok)
			}
		}
		sort.Strings(required)
		sort.Strings(optional)
		out = append(out, recognizer.IntentRule{Intent: name, Required: required, Optional: optional})
	}
	return out
}

// tokenSet returns the distinct plain word tokens and "<intent>.<entity>"
// slot keys present in one sampled sentence.
func tokenSet(s Sentence) map[string]struct{} {
	set := map[string]struct{}{}
	for _, w := range s.Words {
		set[w] = struct{}{}
	}
	for _, e := range s.Entities {
		set[s.Intent+"."+e.Entity] = struct{}{}
	}
	return set
}

// WriteRulesJSON serializes rules as a JSON array, the keyword/rule
// engine's config-file format.
func WriteRulesJSON(w io.Writer, rules []recognizer.IntentRule) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rules)
}
