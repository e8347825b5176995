// Package fstcompile implements the JSGF→FST Compiler (spec.md §4.9, T2):
// it expands a set of per-intent JSGF grammars (internal/jsgf) into
// weighted FSTs (internal/fst), resolving rule references by inlining,
// slot references by substitution against a file-backed value list, and
// merges every intent's FST into one union FST carrying per-intent
// __label__ and per-entity __begin__/__end__ output markers.
package fstcompile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vocalmind/vocalmind/internal/fst"
	"github.com/vocalmind/vocalmind/internal/jsgf"
)

// WordCase selects the casing normalisation applied uniformly to every
// input symbol compiled into the FST (spec.md §4.9).
type WordCase int

const (
	CaseLower WordCase = iota
	CaseUpper
	CasePreserve
)

func normalizeWord(w string, wc WordCase) string {
	switch wc {
	case CaseUpper:
		return strings.ToUpper(w)
	case CasePreserve:
		return w
	default:
		return strings.ToLower(w)
	}
}

// Options configures one compilation pass.
type Options struct {
	WordCase WordCase
}

// SlotLoader resolves a slot reference ($name) to its value list (spec.md
// §4.9: "Slot references $name are resolved by loading the corresponding
// slot file... one value per line").
type SlotLoader interface {
	Load(name string) ([]string, error)
}

// AliasMap records the entity normalisation aliases declared in source
// grammars as "[value](entity:normalized)" (spec.md §3/§6). The compiled
// FST's output alphabet has no room for a third "normalized value" symbol
// (spec.md §3 defines only __label__/__begin__/__end__ meta-tokens plus
// pass-through word tokens), so normalisation is carried out of band: the
// recognizer looks up a decoded entity's literal value here and, on a hit,
// substitutes the normalized one.
type AliasMap map[string]map[string]string

func (a AliasMap) add(entity, literal, normalized string) {
	if literal == "" || normalized == "" {
		return
	}
	if a[entity] == nil {
		a[entity] = map[string]string{}
	}
	a[entity][literal] = normalized
}

func (a AliasMap) merge(other AliasMap) {
	for entity, vals := range other {
		for lit, norm := range vals {
			a.add(entity, lit, norm)
		}
	}
}

// Lookup returns the normalized alias for entity/value, if the source
// grammar declared one.
func (a AliasMap) Lookup(entity, value string) (string, bool) {
	vals, ok := a[entity]
	if !ok {
		return "", false
	}
	norm, ok := vals[value]
	return norm, ok
}

// CompileAll compiles every intent grammar and merges the results into one
// union FST (spec.md §4.9: "All intent FSTs are merged into one union FST
// with per-intent __label__<intent> output markers"). Intents are compiled
// and merged in sorted name order so that, given fixed inputs, repeated
// compilation produces a structurally identical FST (spec.md §8
// "Deterministic training").
func CompileAll(grammars map[string]*jsgf.Grammar, slots SlotLoader, opts Options) (*fst.FST, AliasMap, error) {
	perIntent, aliases, names, err := CompileEach(grammars, slots, opts)
	if err != nil {
		return nil, nil, err
	}

	merged := fst.New()
	start := merged.Start()
	for _, name := range names {
		subStart := mergeInto(merged, perIntent[name])
		merged.AddTransition(start, fst.Transition{To: subStart, Weight: 0})
	}
	return merged, aliases, nil
}

// CompileEach compiles every intent grammar into its own standalone FST
// without merging them, for callers that need per-intent access — the
// intent-recognizer trainer (T5, spec.md §4.12) samples sentences from one
// intent's FST at a time rather than the merged union. Returns the compiled
// FSTs, the merged alias map, and the sorted intent name order CompileAll
// itself iterates in.
func CompileEach(grammars map[string]*jsgf.Grammar, slots SlotLoader, opts Options) (map[string]*fst.FST, AliasMap, []string, error) {
	names := make([]string, 0, len(grammars))
	for name := range grammars {
		names = append(names, name)
	}
	sort.Strings(names)

	perIntent := make(map[string]*fst.FST, len(names))
	aliases := AliasMap{}
	for _, name := range names {
		f, a, err := compileIntent(name, grammars[name], slots, opts)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("fstcompile: intent %q: %w", name, err)
		}
		perIntent[name] = f
		aliases.merge(a)
	}
	return perIntent, aliases, names, nil
}

// compileIntent compiles one intent's public rule into its own FST, with
// the __label__<intent> marker emitted at the very start of every path.
func compileIntent(name string, g *jsgf.Grammar, slots SlotLoader, opts Options) (*fst.FST, AliasMap, error) {
	pub, ok := g.PublicRule()
	if !ok {
		return nil, nil, fmt.Errorf("grammar has no public rule")
	}

	f := fst.New()
	root := f.Start()
	labelState := f.AddState()
	f.AddTransition(root, fst.Transition{To: labelState, OutputLabel: fst.LabelOutput(name)})

	c := &compiler{grammar: g, slots: slots, opts: opts, aliases: AliasMap{}}
	end, err := c.compileNode(pub.Body, f, labelState, map[string]bool{})
	if err != nil {
		return nil, nil, err
	}
	f.SetFinal(end, 0)
	return f, c.aliases, nil
}

// mergeInto copies every state and transition of src into dst (offsetting
// state IDs so they don't collide with dst's existing states) and returns
// src's start state translated into dst's ID space.
func mergeInto(dst *fst.FST, src *fst.FST) fst.StateID {
	offset := dst.NumStates()
	for i := 0; i < src.NumStates(); i++ {
		dst.AddState()
	}
	translate := func(s fst.StateID) fst.StateID { return fst.StateID(int(s) + offset) }

	for i := 0; i < src.NumStates(); i++ {
		from := fst.StateID(i)
		for _, t := range src.TransitionsFrom(from) {
			dst.AddTransition(translate(from), fst.Transition{
				To:          translate(t.To),
				InputLabel:  t.InputLabel,
				OutputLabel: t.OutputLabel,
				Weight:      t.Weight,
			})
		}
		if w, ok := src.IsFinal(from); ok {
			dst.SetFinal(translate(from), w)
		}
	}
	return translate(src.Start())
}
