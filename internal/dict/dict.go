// Package dict implements the Vocabulary & Dictionary Builder (spec.md
// §4.10, T3): it collects every token an intent FST can emit, looks up
// pronunciations in a base and custom CMU-compatible dictionary, falls
// back to a G2P model for the remainder, and writes the run-time
// dictionary consumed by the speech decoder.
package dict

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Dictionary maps a word to its ordered list of pronunciation strings,
// each a whitespace-separated phoneme sequence (spec.md §3 "Pronunciation
// Dictionary").
type Dictionary map[string][]string

// Read parses a CMU-compatible dictionary (spec.md §6: lines "WORD P1 P2
// …"; duplicate variants as "WORD(2)", "WORD(3)", …; blank lines and
// "#"-comments ignored).
func Read(r io.Reader) (Dictionary, error) {
	d := Dictionary{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("dict: malformed line %q", line)
		}
		word := baseWord(fields[0])
		d[word] = append(d[word], strings.Join(fields[1:], " "))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return d, nil
}

// baseWord strips a "(n)" duplicate-variant suffix, e.g. "WORD(2)" -> "WORD".
func baseWord(field string) string {
	if i := strings.IndexByte(field, '('); i > 0 && strings.HasSuffix(field, ")") {
		return field[:i]
	}
	return field
}

// WriteTo writes one line per pronunciation in sorted word order, numbering
// duplicate variants as "word(2)", "word(3)", … when number is true (spec.md
// §4.10: "the first variant is plain, subsequent are word(2), word(3), …
// when numbering is enabled").
func (d Dictionary) WriteTo(w io.Writer, number bool) error {
	words := make([]string, 0, len(d))
	for word := range d {
		words = append(words, word)
	}
	sort.Strings(words)

	for _, word := range words {
		for i, pron := range d[word] {
			label := word
			if number && i > 0 {
				label = fmt.Sprintf("%s(%d)", word, i+1)
			}
			if _, err := fmt.Fprintf(w, "%s %s\n", label, pron); err != nil {
				return err
			}
		}
	}
	return nil
}

// Lookup returns the pronunciation variants for word, if any are present.
func (d Dictionary) Lookup(word string) ([]string, bool) {
	v, ok := d[word]
	return v, ok
}

// Words returns the dictionary's vocabulary, sorted.
func (d Dictionary) Words() []string {
	words := make([]string, 0, len(d))
	for word := range d {
		words = append(words, word)
	}
	sort.Strings(words)
	return words
}
