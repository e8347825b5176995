package dict

// RuntimeLookup answers the dialogue coordinator's out-of-band
// "pronunciations" request (spec.md §4.7; original_source/rhasspy/
// pronounce.py's GetWordPronunciations). Unlike Build, this is inference
// only: an unknown word's G2P guess is returned to the caller but never
// written back to the dictionary or a custom-words file.
type RuntimeLookup struct {
	Dictionary Dictionary
	G2P        G2PModel
}

// Lookup implements internal/dialogue.PronunciationLookup.
func (r *RuntimeLookup) Lookup(words []string) map[string][]string {
	result := make(map[string][]string, len(words))
	var unknown []string
	for _, w := range words {
		if prons, ok := r.Dictionary.Lookup(w); ok {
			result[w] = prons
		} else {
			unknown = append(unknown, w)
		}
	}

	if r.G2P != nil && len(unknown) > 0 {
		guesses, err := r.G2P.Guess(unknown)
		if err == nil {
			for _, w := range unknown {
				if pron, ok := guesses[w]; ok && pron != "" {
					result[w] = []string{pron}
				}
			}
		}
	}
	return result
}
