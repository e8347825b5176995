// Package grammar implements the Sentence Grammar Compiler (spec.md §4.8,
// T1): it parses the declarative, [IntentName]-sectioned sentence grammar
// file (spec.md §3/§6) into one JSGF grammar per intent, ready for the
// JSGF→FST Compiler (T2, internal/fstcompile) to consume.
package grammar

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vocalmind/vocalmind/internal/jsgf"
)

// Compile parses a declarative sentence grammar and returns one JSGF
// grammar per [IntentName] section, keyed by intent name.
func Compile(r io.Reader) (map[string]*jsgf.Grammar, error) {
	sections, order, err := splitSections(r)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*jsgf.Grammar, len(order))
	for _, intent := range order {
		g, err := compileSection(intent, sections[intent])
		if err != nil {
			return nil, fmt.Errorf("grammar: intent %q: %w", intent, err)
		}
		out[intent] = g
	}
	return out, nil
}

// splitSections groups non-blank, non-comment lines under their enclosing
// [IntentName] header, preserving first-seen section order.
func splitSections(r io.Reader) (sections map[string][]string, order []string, err error) {
	sections = map[string][]string{}
	var current string

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), " \t\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if isSectionHeader(trimmed) {
			name := strings.TrimSuffix(strings.TrimPrefix(trimmed, "["), "]")
			if !jsgf.ValidIdentifier(name) {
				return nil, nil, fmt.Errorf("grammar: line %d: invalid intent name %q", lineNo, name)
			}
			if _, seen := sections[name]; !seen {
				order = append(order, name)
			}
			current = name
			continue
		}
		if current == "" {
			return nil, nil, fmt.Errorf("grammar: line %d: sentence outside any [Intent] section", lineNo)
		}
		sections[current] = append(sections[current], line)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	return sections, order, nil
}

// isSectionHeader reports whether line is a "[IntentName]" section header
// rather than an escaped literal sentence ("\[..." per spec.md §6).
func isSectionHeader(line string) bool {
	return strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") && !strings.HasPrefix(line, `\[`)
}

func compileSection(intent string, lines []string) (*jsgf.Grammar, error) {
	g := &jsgf.Grammar{Name: intent}
	var alternatives []jsgf.Node

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if key, body, ok := splitRuleDef(trimmed); ok {
			if !jsgf.ValidIdentifier(key) {
				return nil, fmt.Errorf("invalid rule name %q", key)
			}
			node, err := parseSentence(body)
			if err != nil {
				return nil, fmt.Errorf("rule %q: %w", key, err)
			}
			g.Rules = append(g.Rules, jsgf.Rule{
				Name: key,
				Body: jsgf.Alternative{Items: []jsgf.Node{node}},
			})
			continue
		}

		node, err := parseSentenceLine(trimmed)
		if err != nil {
			return nil, err
		}
		alternatives = append(alternatives, node)
	}

	if len(alternatives) == 0 {
		return nil, fmt.Errorf("no sentences defined")
	}

	publicRule := jsgf.Rule{
		Name:   intent,
		Public: true,
		Body:   jsgf.Alternative{Items: alternatives},
	}
	g.Rules = append([]jsgf.Rule{publicRule}, g.Rules...)
	return g, nil
}

// splitRuleDef recognizes a "key = value" internal rule definition (spec.md
// §4.8: "k = v lines become internal rules <k> = (v);"), distinguishing it
// from a plain sentence that happens to contain an "=" by requiring
// everything before the first "=" to be a single bare identifier.
func splitRuleDef(line string) (key, body string, ok bool) {
	idx := strings.Index(line, "=")
	if idx < 0 {
		return "", "", false
	}
	candidate := strings.TrimSpace(line[:idx])
	if !jsgf.ValidIdentifier(candidate) {
		return "", "", false
	}
	return candidate, strings.TrimSpace(line[idx+1:]), true
}

// Write renders each intent's grammar to "<dir>/<Intent>.jsgf", first
// deleting any ".jsgf" file in dir that no longer corresponds to a produced
// intent (spec.md §4.8: "Optional pre-step deletes stale grammar files in
// the grammar directory").
func Write(dir string, grammars map[string]*jsgf.Grammar) error {
	existing, err := filepath.Glob(filepath.Join(dir, "*.jsgf"))
	if err != nil {
		return fmt.Errorf("grammar: listing %s: %w", dir, err)
	}
	keep := make(map[string]bool, len(grammars))
	for intent := range grammars {
		keep[filepath.Join(dir, intent+".jsgf")] = true
	}
	for _, path := range existing {
		if keep[path] {
			continue
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("grammar: removing stale file %s: %w", path, err)
		}
	}

	intents := make([]string, 0, len(grammars))
	for intent := range grammars {
		intents = append(intents, intent)
	}
	sort.Strings(intents) // deterministic write order, spec.md §8

	for _, intent := range intents {
		path := filepath.Join(dir, intent+".jsgf")
		if err := os.WriteFile(path, []byte(grammars[intent].String()), 0o644); err != nil {
			return fmt.Errorf("grammar: writing %s: %w", path, err)
		}
	}
	return nil
}
