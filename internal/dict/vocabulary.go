package dict

import "sort"

// alphabetSource is the subset of *fst.FST that vocabulary collection
// needs; satisfied by internal/fst.FST, kept narrow here so this package
// never imports internal/fst for anything but this one shape.
type alphabetSource interface {
	Alphabet() map[string]struct{}
}

// CollectVocabulary walks the intent FST's input alphabet and adds any
// tokens appearing in the wake keyphrase (spec.md §4.10: "add any tokens
// appearing in the configured wake keyphrase when using a local spotter").
// When includeBaseVocab is true, the entire base dictionary's vocabulary is
// folded in too ("optionally add the entire base-dictionary vocabulary when
// language-model mixing is enabled"). The result is sorted and deduplicated.
func CollectVocabulary(machine alphabetSource, wakeKeyphrase []string, includeBaseVocab bool, base Dictionary) []string {
	seen := map[string]struct{}{}
	for tok := range machine.Alphabet() {
		seen[tok] = struct{}{}
	}
	for _, tok := range wakeKeyphrase {
		seen[tok] = struct{}{}
	}
	if includeBaseVocab {
		for _, word := range base.Words() {
			seen[word] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for tok := range seen {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}
