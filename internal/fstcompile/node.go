package fstcompile

import (
	"fmt"
	"strings"

	"github.com/vocalmind/vocalmind/internal/fst"
	"github.com/vocalmind/vocalmind/internal/jsgf"
)

// compiler walks one grammar's rule tree, emitting states and transitions
// into a single FST. "stack" guards rule references against cycles; it is
// threaded through the whole recursive descent rather than kept on the
// compiler so that sibling references to the same rule (not a recursive
// one) are never mistaken for a cycle.
type compiler struct {
	grammar *jsgf.Grammar
	slots   SlotLoader
	opts    Options
	aliases AliasMap
}

func (c *compiler) compileNode(n jsgf.Node, f *fst.FST, from fst.StateID, stack map[string]bool) (fst.StateID, error) {
	switch v := n.(type) {
	case jsgf.Literal:
		next := f.AddState()
		f.AddTransition(from, fst.Transition{To: next, InputLabel: normalizeWord(v.Word, c.opts.WordCase)})
		return next, nil

	case jsgf.Sequence:
		cur := from
		for _, item := range v.Items {
			next, err := c.compileNode(item, f, cur, stack)
			if err != nil {
				return 0, err
			}
			cur = next
		}
		return cur, nil

	case jsgf.Alternative:
		end := f.AddState()
		for _, item := range v.Items {
			branchEnd, err := c.compileNode(item, f, from, stack)
			if err != nil {
				return 0, err
			}
			f.AddTransition(branchEnd, fst.Transition{To: end})
		}
		return end, nil

	case jsgf.Optional:
		end := f.AddState()
		innerEnd, err := c.compileNode(v.Item, f, from, stack)
		if err != nil {
			return 0, err
		}
		f.AddTransition(innerEnd, fst.Transition{To: end})
		f.AddTransition(from, fst.Transition{To: end}) // skip path
		return end, nil

	case jsgf.RuleRef:
		return c.compileRuleRef(v.Name, f, from, stack)

	case jsgf.SlotRef:
		return c.compileSlotRef(v.Name, f, from)

	case jsgf.Tag:
		beginState := f.AddState()
		f.AddTransition(from, fst.Transition{To: beginState, OutputLabel: fst.BeginOutput(v.Entity)})
		innerEnd, err := c.compileNode(v.Item, f, beginState, stack)
		if err != nil {
			return 0, err
		}
		endState := f.AddState()
		f.AddTransition(innerEnd, fst.Transition{To: endState, OutputLabel: fst.EndOutput(v.Entity)})
		if v.Normalized != "" {
			if literal, ok := flattenLiteral(v.Item); ok {
				c.aliases.add(v.Entity, normalizeWord(literal, c.opts.WordCase), v.Normalized)
			}
		}
		return endState, nil

	default:
		return 0, fmt.Errorf("fstcompile: unsupported node type %T", n)
	}
}

// compileRuleRef inlines the referenced rule's body in place of the
// reference (spec.md §4.9: "rule references are realised by FST
// replacement").
func (c *compiler) compileRuleRef(name string, f *fst.FST, from fst.StateID, stack map[string]bool) (fst.StateID, error) {
	if stack[name] {
		return 0, fmt.Errorf("fstcompile: cyclic rule reference <%s>", name)
	}
	rule, ok := c.grammar.Rule(name)
	if !ok {
		return 0, fmt.Errorf("fstcompile: unknown rule reference <%s>", name)
	}
	stack[name] = true
	end, err := c.compileNode(rule.Body, f, from, stack)
	delete(stack, name)
	return end, err
}

// compileSlotRef substitutes a file-backed slot reference with an
// alternative over each of its values, each split into literal word
// transitions (spec.md §4.9: "compiling it to a substitution FST").
func (c *compiler) compileSlotRef(name string, f *fst.FST, from fst.StateID) (fst.StateID, error) {
	if c.slots == nil {
		return 0, fmt.Errorf("fstcompile: slot $%s referenced but no slot loader configured", name)
	}
	values, err := c.slots.Load(name)
	if err != nil {
		return 0, fmt.Errorf("fstcompile: loading slot $%s: %w", name, err)
	}
	if len(values) == 0 {
		return 0, fmt.Errorf("fstcompile: slot $%s has no values", name)
	}

	end := f.AddState()
	for _, val := range values {
		words := strings.Fields(val)
		if len(words) == 0 {
			continue
		}
		cur := from
		for _, w := range words {
			next := f.AddState()
			f.AddTransition(cur, fst.Transition{To: next, InputLabel: normalizeWord(w, c.opts.WordCase)})
			cur = next
		}
		f.AddTransition(cur, fst.Transition{To: end})
	}
	return end, nil
}

// flattenLiteral returns the plain-word rendering of n if n is built
// entirely from literals (directly or through a single-branch sequence or
// alternative), used to key an entity's normalisation alias to the literal
// text it is declared against. Anything more dynamic than that (a rule
// reference, a multi-branch alternative) has no single literal rendering,
// so the alias is simply not recorded for it.
func flattenLiteral(n jsgf.Node) (string, bool) {
	switch v := n.(type) {
	case jsgf.Literal:
		return v.Word, true
	case jsgf.Sequence:
		words := make([]string, 0, len(v.Items))
		for _, item := range v.Items {
			w, ok := flattenLiteral(item)
			if !ok {
				return "", false
			}
			words = append(words, w)
		}
		return strings.Join(words, " "), true
	case jsgf.Alternative:
		if len(v.Items) == 1 {
			return flattenLiteral(v.Items[0])
		}
		return "", false
	default:
		return "", false
	}
}
