package dict

import "fmt"

// MergePolicy selects how pronunciations are chosen when both the base and
// custom dictionaries provide one for the same word (spec.md §4.10).
type MergePolicy int

const (
	// MergeAll keeps every variant from every source.
	MergeAll MergePolicy = iota
	// MergeFirst takes the first source that provides one; the custom
	// dictionary is checked before the base dictionary.
	MergeFirst
)

// BuildOptions configures one dictionary-build pass.
type BuildOptions struct {
	Policy MergePolicy
	// Number enables "word(2)", "word(3)" duplicate-variant numbering on
	// write (WriteTo's "number" argument is driven from this).
	Number bool
	// FailOnUnknown makes Build return an error naming every unknown word
	// instead of leaving them unresolved (spec.md §4.10: "If unknowns
	// remain after guessing and the profile sets 'fail on unknown words',
	// training fails with the list of offending words").
	FailOnUnknown bool
}

// BuildResult is the outcome of a dictionary build.
type BuildResult struct {
	// Dictionary is the run-time dictionary: one entry per required word
	// that could be resolved, from base, custom, or G2P.
	Dictionary Dictionary
	// Guessed holds the words resolved by G2P, keyed by word (a map, so
	// it records no guessing order); spec.md §4.10 requires these also be appended to the
	// persisted custom-words file.
	Guessed Dictionary
	// Unknown lists required words that could not be resolved even after
	// G2P guessing (or because no G2P model was configured).
	Unknown []string
}

// UnknownWordsError reports the required words a build could not resolve,
// returned when BuildOptions.FailOnUnknown is set (spec.md §4.10).
type UnknownWordsError struct {
	Words []string
}

func (e *UnknownWordsError) Error() string {
	return fmt.Sprintf("dict: unknown words: %v", e.Words)
}

// Build resolves pronunciations for required against base and custom,
// falling back to g2p (nil disables guessing) for anything still missing
// (spec.md §4.10's full merge policy).
func Build(required []string, base, custom Dictionary, g2p G2PModel, opts BuildOptions) (BuildResult, error) {
	result := Dictionary{}
	var unknown []string

	for _, word := range required {
		prons := mergePronunciations(word, base, custom, opts.Policy)
		if len(prons) > 0 {
			result[word] = prons
			continue
		}
		unknown = append(unknown, word)
	}

	guessed := Dictionary{}
	if g2p != nil && len(unknown) > 0 {
		guesses, err := g2p.Guess(unknown)
		if err != nil {
			return BuildResult{}, fmt.Errorf("dict: g2p guess: %w", err)
		}
		remaining := unknown[:0]
		for _, word := range unknown {
			if pron, ok := guesses[word]; ok && pron != "" {
				result[word] = []string{pron}
				guessed[word] = []string{pron}
				continue
			}
			remaining = append(remaining, word)
		}
		unknown = remaining
	}

	if opts.FailOnUnknown && len(unknown) > 0 {
		return BuildResult{}, &UnknownWordsError{Words: unknown}
	}

	return BuildResult{Dictionary: result, Guessed: guessed, Unknown: unknown}, nil
}

// mergePronunciations applies the configured merge policy for one word
// across the custom (precedence) and base dictionaries.
func mergePronunciations(word string, base, custom Dictionary, policy MergePolicy) []string {
	customPron, hasCustom := custom.Lookup(word)
	basePron, hasBase := base.Lookup(word)

	switch policy {
	case MergeFirst:
		if hasCustom && len(customPron) > 0 {
			return customPron
		}
		if hasBase {
			return basePron
		}
		return nil
	default: // MergeAll
		all := make([]string, 0, len(customPron)+len(basePron))
		all = append(all, customPron...)
		all = append(all, basePron...)
		return all
	}
}
