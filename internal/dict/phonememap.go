package dict

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// PhonemeMap remaps sphinx phoneme symbols to a target phoneme set (spec.md
// §6: "Phoneme map. Lines sphinx_phoneme target_phoneme, comments with #"),
// used optionally when writing the run-time dictionary
// (original_source/rhasspy/pronounce.py's dict2phonemes.py remapping).
type PhonemeMap map[string]string

// LoadPhonemeMap parses a phoneme-map file.
func LoadPhonemeMap(r io.Reader) (PhonemeMap, error) {
	m := PhonemeMap{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("dict: malformed phoneme map line %q", line)
		}
		m[fields[0]] = fields[1]
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// Apply returns a copy of d with every phoneme token remapped through m;
// tokens with no entry in m pass through unchanged.
func (m PhonemeMap) Apply(d Dictionary) Dictionary {
	out := make(Dictionary, len(d))
	for word, prons := range d {
		remapped := make([]string, len(prons))
		for i, pron := range prons {
			phonemes := strings.Fields(pron)
			for j, p := range phonemes {
				if target, ok := m[p]; ok {
					phonemes[j] = target
				}
			}
			remapped[i] = strings.Join(phonemes, " ")
		}
		out[word] = remapped
	}
	return out
}
