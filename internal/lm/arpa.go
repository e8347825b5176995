package lm

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Entry is one ARPA n-gram line: a log10 probability and, for every order
// below the model's maximum, a log10 backoff weight.
type Entry struct {
	LogProb    float64
	Backoff    float64
	HasBackoff bool
}

// ARPA is a parsed/constructed ARPA n-gram language model (spec.md §6:
// "Standard ARPA n-gram with explicit \data\, \N-grams:, and \end\
// sections").
type ARPA struct {
	Order int
	Grams []map[string]Entry // Grams[n] for n in 1..Order, index 0 unused
}

// floorLogProb stands in for "no probability mass recorded" when a gram
// has zero count; real ARPA tools reserve probability mass for unseen
// grams via discounting (Katz, Kneser-Ney). This grammar-constrained
// model has no open vocabulary to discount against, so unseen grams are
// simply absent from the model rather than assigned a reserved floor
// (documented as an Open Question resolution in DESIGN.md).
const floorLogProb = -99.0

// ToARPA converts the count model to probability/backoff form. Every
// order below m.Order gets a flat zero log10 backoff weight (log10(1)):
// this model has no discounting scheme, so it carries no probability mass
// held back for unseen extensions, and a flat weight is the simplest
// correct placeholder that keeps the file a valid ARPA model.
func (m *Model) ToARPA() *ARPA {
	a := &ARPA{Order: m.Order, Grams: make([]map[string]Entry, m.Order+1)}
	for n := 1; n <= m.Order; n++ {
		grams := m.grams(n)
		a.Grams[n] = make(map[string]Entry, len(grams))
		for _, g := range grams {
			p := m.probability(n, g)
			logProb := floorLogProb
			if p > 0 {
				logProb = math.Log10(p)
			}
			entry := Entry{LogProb: logProb}
			if n < m.Order {
				entry.Backoff = 0
				entry.HasBackoff = true
			}
			a.Grams[n][g] = entry
		}
	}
	return a
}

// WriteTo serialises the model as a standard ARPA file.
func (a *ARPA) WriteTo(w io.Writer) error {
	if _, err := fmt.Fprintln(w, `\data\`); err != nil {
		return err
	}
	for n := 1; n <= a.Order; n++ {
		if _, err := fmt.Fprintf(w, "ngram %d=%d\n", n, len(a.Grams[n])); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}

	for n := 1; n <= a.Order; n++ {
		if _, err := fmt.Fprintf(w, "\\%d-grams:\n", n); err != nil {
			return err
		}
		grams := make([]string, 0, len(a.Grams[n]))
		for g := range a.Grams[n] {
			grams = append(grams, g)
		}
		sort.Strings(grams)

		for _, g := range grams {
			e := a.Grams[n][g]
			if e.HasBackoff {
				if _, err := fmt.Fprintf(w, "%.6f\t%s\t%.6f\n", e.LogProb, g, e.Backoff); err != nil {
					return err
				}
			} else {
				if _, err := fmt.Fprintf(w, "%.6f\t%s\n", e.LogProb, g); err != nil {
					return err
				}
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(w, `\end\`)
	return err
}

// ParseARPA parses a standard ARPA n-gram file, used to load a base
// language model (spec.md §4.11).
func ParseARPA(r io.Reader) (*ARPA, error) {
	scanner := bufio.NewScanner(r)
	var order int
	a := &ARPA{}
	currentOrder := 0

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "" || line == `\data\`:
			continue
		case line == `\end\`:
			return a, nil
		case strings.HasPrefix(line, "ngram "):
			var n, count int
			if _, err := fmt.Sscanf(line, "ngram %d=%d", &n, &count); err != nil {
				return nil, fmt.Errorf("lm: malformed ngram count line %q: %w", line, err)
			}
			if n > order {
				order = n
			}
			if a.Grams == nil {
				a.Order = order
			}
		case strings.HasPrefix(line, `\`) && strings.HasSuffix(line, "-grams:"):
			var n int
			if _, err := fmt.Sscanf(line, "\\%d-grams:", &n); err != nil {
				return nil, fmt.Errorf("lm: malformed order header %q: %w", line, err)
			}
			currentOrder = n
			if a.Grams == nil {
				a.Order = order
				a.Grams = make([]map[string]Entry, order+1)
			}
			if a.Grams[currentOrder] == nil {
				a.Grams[currentOrder] = map[string]Entry{}
			}
		default:
			if currentOrder == 0 {
				return nil, fmt.Errorf("lm: gram line outside any order section: %q", line)
			}
			fields := strings.Split(line, "\t")
			if len(fields) < 2 {
				return nil, fmt.Errorf("lm: malformed gram line %q", line)
			}
			logProb, err := strconv.ParseFloat(fields[0], 64)
			if err != nil {
				return nil, fmt.Errorf("lm: malformed log prob %q: %w", fields[0], err)
			}
			entry := Entry{LogProb: logProb}
			if len(fields) >= 3 {
				backoff, err := strconv.ParseFloat(fields[2], 64)
				if err != nil {
					return nil, fmt.Errorf("lm: malformed backoff %q: %w", fields[2], err)
				}
				entry.Backoff = backoff
				entry.HasBackoff = true
			}
			a.Grams[currentOrder][fields[1]] = entry
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return a, nil
}
