package jsgf

import "testing"

func TestGrammarStringRendersHeaderAndRules(t *testing.T) {
	g := &Grammar{
		Name: "ChangeLightState",
		Rules: []Rule{
			{
				Name:   "ChangeLightState",
				Public: true,
				Body: Sequence{Items: []Node{
					Literal{Word: "turn"},
					Alternative{Items: []Node{
						Sequence{Items: []Node{Literal{Word: "on"}}},
						Sequence{Items: []Node{Literal{Word: "off"}}},
					}},
					Optional{Item: Sequence{Items: []Node{Literal{Word: "the"}}}},
					Tag{Item: RuleRef{Name: "room"}, Entity: "name"},
					Literal{Word: "light"},
				}},
			},
			{
				Name: "room",
				Body: Alternative{Items: []Node{
					Sequence{Items: []Node{Literal{Word: "kitchen"}}},
					Sequence{Items: []Node{Literal{Word: "bedroom"}}},
				}},
			},
		},
	}

	got := g.String()
	want := "#JSGF V1.0;\n\ngrammar ChangeLightState;\n\n" +
		"public <ChangeLightState> = turn (on | off) [the] (<room>){name} light;\n" +
		"<room> = (kitchen | bedroom);\n"
	if got != want {
		t.Fatalf("String() =\n%s\nwant\n%s", got, want)
	}
}

func TestParseRoundTripsSerializedGrammar(t *testing.T) {
	src := "#JSGF V1.0;\n\ngrammar GetTime;\n\n" +
		"public <GetTime> = what (is | 's) the time [right now];\n"

	g, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if g.Name != "GetTime" {
		t.Fatalf("grammar name = %q, want GetTime", g.Name)
	}
	pub, ok := g.PublicRule()
	if !ok {
		t.Fatal("expected a public rule")
	}
	if pub.Name != "GetTime" {
		t.Fatalf("public rule name = %q, want GetTime", pub.Name)
	}

	reserialized := g.String()
	g2, err := Parse(reserialized)
	if err != nil {
		t.Fatalf("re-Parse: %v", err)
	}
	if g2.String() != reserialized {
		t.Fatalf("round trip not stable:\nfirst:  %s\nsecond: %s", reserialized, g2.String())
	}
}

func TestParseSlotAndRuleReferences(t *testing.T) {
	src := "grammar PlayMusic;\n\npublic <PlayMusic> = play $artist on <device>;\n<device> = (the speaker | my phone);\n"
	g, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	pub, _ := g.PublicRule()
	seq, ok := pub.Body.(Sequence)
	if !ok {
		t.Fatalf("public rule body = %T, want Sequence", pub.Body)
	}
	foundSlot, foundRuleRef := false, false
	for _, item := range seq.Items {
		switch v := item.(type) {
		case SlotRef:
			if v.Name != "artist" {
				t.Fatalf("slot ref name = %q, want artist", v.Name)
			}
			foundSlot = true
		case RuleRef:
			if v.Name != "device" {
				t.Fatalf("rule ref name = %q, want device", v.Name)
			}
			foundRuleRef = true
		}
	}
	if !foundSlot || !foundRuleRef {
		t.Fatalf("expected both a slot and rule reference, got %+v", seq.Items)
	}
}

func TestParseEntityTagWithNormalizedValue(t *testing.T) {
	src := "grammar SetTimer;\n\npublic <SetTimer> = set a timer for (five){minutes:5} minutes;\n"
	g, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	pub, _ := g.PublicRule()
	seq := pub.Body.(Sequence)
	var tag Tag
	found := false
	for _, item := range seq.Items {
		if t, ok := item.(Tag); ok {
			tag = t
			found = true
		}
	}
	if !found {
		t.Fatal("expected a Tag node")
	}
	if tag.Entity != "minutes" || tag.Normalized != "5" {
		t.Fatalf("tag = %+v, want entity=minutes normalized=5", tag)
	}
}

func TestParseRejectsUnterminatedRuleReference(t *testing.T) {
	_, err := Parse("grammar X;\n\npublic <X = hello;\n")
	if err == nil {
		t.Fatal("expected an error for an unterminated rule reference")
	}
}

func TestValidIdentifierRejectsEmptyAndSpecialChars(t *testing.T) {
	cases := map[string]bool{
		"Room":        true,
		"room_name":   true,
		"":            false,
		"has space":   false,
		"has(parens)": false,
	}
	for in, want := range cases {
		if got := ValidIdentifier(in); got != want {
			t.Errorf("ValidIdentifier(%q) = %v, want %v", in, got, want)
		}
	}
}
