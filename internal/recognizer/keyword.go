package recognizer

import "strings"

// IntentRule is one intent's required/optional token sets for the
// keyword/rule engine strategy (spec.md §4.5 strategy 3, §4.12(c)
// artifact: "required tokens are those appearing in every sampled sentence
// for the intent; optional ones appear in some but not all").
type IntentRule struct {
	Intent   string
	Required []string
	Optional []string
}

// KeywordStrategy is the keyword/rule engine recognizer variant: the
// intent whose required tokens are all present in the transcript, with the
// most optional tokens also present, wins.
type KeywordStrategy struct {
	Rules         []IntentRule
	MinConfidence float64
}

// NewKeywordStrategy builds a keyword/rule engine over the given per-intent
// rules.
func NewKeywordStrategy(rules []IntentRule, minConfidence float64) *KeywordStrategy {
	return &KeywordStrategy{Rules: rules, MinConfidence: minConfidence}
}

// Recognize implements Strategy.
func (s *KeywordStrategy) Recognize(text string, speechConfidence float64) (Result, error) {
	tokenSet := map[string]struct{}{}
	for _, tok := range tokenize(text) {
		tokenSet[tok] = struct{}{}
	}

	var best IntentRule
	bestScore := -1.0
	matched := false
	for _, rule := range s.Rules {
		if !allPresent(rule.Required, tokenSet) {
			continue
		}
		score := ruleConfidence(rule, tokenSet)
		if score > bestScore {
			bestScore = score
			best = rule
			matched = true
		}
	}

	if !matched || bestScore < s.MinConfidence {
		return emptyResult(text, speechConfidence), nil
	}

	// spec.md §4.5 strategy 3: "entity keys prefixed with '<intent>.' are
	// mapped back to slot names" — the rule engine itself returns slot
	// values as generic key/value pairs named "<intent>.<slot>"; strip the
	// intent prefix here to recover the bare slot name.
	entities := make([]Entity, 0, len(best.Required)+len(best.Optional))
	prefix := best.Intent + "."
	for _, key := range append(append([]string{}, best.Required...), best.Optional...) {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		entities = append(entities, Entity{Entity: strings.TrimPrefix(key, prefix), Value: key})
	}

	return Result{
		Text:             text,
		Confidence:       bestScore,
		Intent:           Intent{Name: best.Intent, Confidence: bestScore},
		Entities:         entities,
		RawText:          text,
		SpeechConfidence: speechConfidence,
	}, nil
}

func allPresent(required []string, have map[string]struct{}) bool {
	for _, tok := range required {
		if _, ok := have[tok]; !ok {
			return false
		}
	}
	return true
}

func ruleConfidence(rule IntentRule, have map[string]struct{}) float64 {
	if len(rule.Optional) == 0 {
		return 1.0
	}
	present := 0
	for _, tok := range rule.Optional {
		if _, ok := have[tok]; ok {
			present++
		}
	}
	return float64(len(rule.Required)+present) / float64(len(rule.Required)+len(rule.Optional))
}
