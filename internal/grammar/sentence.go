package grammar

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/vocalmind/vocalmind/internal/jsgf"
)

type dtokKind int

const (
	dtokWord dtokKind = iota
	dtokRuleRef
	dtokSlotRef
	dtokLParen
	dtokRParen
	dtokLBracket
	dtokRBracket
	dtokPipe
	dtokColon
	dtokEOF
)

type dtoken struct {
	kind dtokKind
	text string
}

// lexSentence tokenizes one sentence (or rule body) from the declarative
// grammar (spec.md §3/§6): words, rule references, slot references,
// alternation and optional groups, and the entity-tag parenthetical that
// follows a bracketed span.
func lexSentence(src string) ([]dtoken, error) {
	var toks []dtoken
	r := []rune(src)
	i := 0
	for i < len(r) {
		c := r[i]
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(':
			toks = append(toks, dtoken{dtokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, dtoken{dtokRParen, ")"})
			i++
		case c == '[':
			toks = append(toks, dtoken{dtokLBracket, "["})
			i++
		case c == ']':
			toks = append(toks, dtoken{dtokRBracket, "]"})
			i++
		case c == '|':
			toks = append(toks, dtoken{dtokPipe, "|"})
			i++
		case c == ':':
			toks = append(toks, dtoken{dtokColon, ":"})
			i++
		case c == '<':
			j := i + 1
			for j < len(r) && r[j] != '>' {
				j++
			}
			if j >= len(r) {
				return nil, fmt.Errorf("unterminated rule reference starting at %d", i)
			}
			toks = append(toks, dtoken{dtokRuleRef, string(r[i+1 : j])})
			i = j + 1
		case c == '$':
			j := i + 1
			for j < len(r) && isWordRune(r[j]) {
				j++
			}
			if j == i+1 {
				return nil, fmt.Errorf("empty slot reference at %d", i)
			}
			toks = append(toks, dtoken{dtokSlotRef, string(r[i+1 : j])})
			i = j
		case isWordRune(c):
			j := i
			for j < len(r) && isWordRune(r[j]) {
				j++
			}
			toks = append(toks, dtoken{dtokWord, string(r[i:j])})
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q at %d", c, i)
		}
	}
	toks = append(toks, dtoken{dtokEOF, ""})
	return toks, nil
}

func isWordRune(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsDigit(c) || c == '\'' || c == '-' || c == '.' || c == '_'
}

type sparser struct {
	toks []dtoken
	pos  int
}

func (p *sparser) peek() dtoken { return p.toks[p.pos] }

func (p *sparser) next() dtoken {
	t := p.toks[p.pos]
	p.pos++
	return t
}

func (p *sparser) expect(k dtokKind) (dtoken, error) {
	t := p.peek()
	if t.kind != k {
		return dtoken{}, fmt.Errorf("unexpected token %q at position %d", t.text, p.pos)
	}
	return p.next(), nil
}

// parseSentence parses one full sentence or rule body, per spec.md §3's
// "literal words; alternatives (a | b); optional groups [x]; rule
// references <Rule>; slot references $slot; entity taggings [value](entity)
// or [value](entity:normalized)".
func parseSentence(text string) (jsgf.Node, error) {
	toks, err := lexSentence(text)
	if err != nil {
		return nil, err
	}
	p := &sparser{toks: toks}
	node, err := p.parseSeq()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(dtokEOF); err != nil {
		return nil, fmt.Errorf("trailing content: %w", err)
	}
	return node, nil
}

func startsDTerm(k dtokKind) bool {
	switch k {
	case dtokWord, dtokRuleRef, dtokSlotRef, dtokLParen, dtokLBracket:
		return true
	default:
		return false
	}
}

func (p *sparser) parseSeq() (jsgf.Node, error) {
	var items []jsgf.Node
	for startsDTerm(p.peek().kind) {
		term, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		items = append(items, term)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("expected at least one term at position %d", p.pos)
	}
	return jsgf.Sequence{Items: items}, nil
}

func (p *sparser) parseTerm() (jsgf.Node, error) {
	t := p.peek()
	switch t.kind {
	case dtokWord:
		p.next()
		return jsgf.Literal{Word: t.text}, nil
	case dtokRuleRef:
		p.next()
		return jsgf.RuleRef{Name: t.text}, nil
	case dtokSlotRef:
		p.next()
		return jsgf.SlotRef{Name: t.text}, nil
	case dtokLParen:
		p.next()
		alt, err := p.parseAlt()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(dtokRParen); err != nil {
			return nil, fmt.Errorf("expected ')': %w", err)
		}
		return alt, nil
	case dtokLBracket:
		p.next()
		inner, err := p.parseSeq()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(dtokRBracket); err != nil {
			return nil, fmt.Errorf("expected ']': %w", err)
		}
		if p.peek().kind == dtokLParen {
			return p.parseEntityTag(inner)
		}
		return jsgf.Optional{Item: inner}, nil
	default:
		return nil, fmt.Errorf("unexpected token %q at position %d", t.text, p.pos)
	}
}

func (p *sparser) parseAlt() (jsgf.Node, error) {
	var items []jsgf.Node
	seq, err := p.parseSeq()
	if err != nil {
		return nil, err
	}
	items = append(items, seq)
	for p.peek().kind == dtokPipe {
		p.next()
		seq, err := p.parseSeq()
		if err != nil {
			return nil, err
		}
		items = append(items, seq)
	}
	return jsgf.Alternative{Items: items}, nil
}

// parseEntityTag parses the "(entity)" or "(entity:normalized)" suffix
// immediately following a bracketed span, turning it into a jsgf.Tag.
func (p *sparser) parseEntityTag(value jsgf.Node) (jsgf.Node, error) {
	p.next() // consume '('
	entityTok, err := p.expect(dtokWord)
	if err != nil {
		return nil, fmt.Errorf("expected entity name: %w", err)
	}
	tag := jsgf.Tag{Item: value, Entity: entityTok.text}
	if p.peek().kind == dtokColon {
		p.next()
		normTok, err := p.expect(dtokWord)
		if err != nil {
			return nil, fmt.Errorf("expected normalized value after ':': %w", err)
		}
		tag.Normalized = normTok.text
	}
	if _, err := p.expect(dtokRParen); err != nil {
		return nil, fmt.Errorf("expected ')' closing entity tag: %w", err)
	}
	return tag, nil
}

// parseSentenceLine handles the leading-"\[" escape (spec.md §6: "A literal
// [ at the start of a sentence is escaped as \["). A sentence starting this
// way is a sentence that needs to begin with a literal "[" character, which
// would otherwise be read as the start of an optional group or entity tag;
// the whole line is therefore taken as plain literal words rather than
// parsed for grammar constructs.
func parseSentenceLine(line string) (jsgf.Node, error) {
	if strings.HasPrefix(line, `\[`) {
		literal := "[" + line[2:]
		words := strings.Fields(literal)
		if len(words) == 0 {
			return nil, fmt.Errorf("empty literal sentence")
		}
		items := make([]jsgf.Node, len(words))
		for i, w := range words {
			items[i] = jsgf.Literal{Word: w}
		}
		return jsgf.Sequence{Items: items}, nil
	}
	return parseSentence(line)
}
