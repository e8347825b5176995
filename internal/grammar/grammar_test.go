package grammar

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vocalmind/vocalmind/internal/jsgf"
)

func TestCompileProducesPublicRuleFromSentences(t *testing.T) {
	src := "[GetTime]\n" +
		"what time is it\n" +
		"what (is | 's) the time\n"

	grammars, err := Compile(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	g, ok := grammars["GetTime"]
	if !ok {
		t.Fatal("expected a GetTime grammar")
	}
	pub, ok := g.PublicRule()
	if !ok {
		t.Fatal("expected a public rule")
	}
	if pub.Name != "GetTime" {
		t.Fatalf("public rule name = %q, want GetTime", pub.Name)
	}
	alt, ok := pub.Body.(jsgf.Alternative)
	if !ok {
		t.Fatalf("public rule body = %T, want Alternative", pub.Body)
	}
	if len(alt.Items) != 2 {
		t.Fatalf("alternative has %d sentences, want 2", len(alt.Items))
	}
}

func TestCompileRuleDefinitionBecomesInternalRule(t *testing.T) {
	src := "[ChangeLightState]\n" +
		"turn (on | off) [the] <room> light\n" +
		"room = (kitchen | bedroom | living room)\n"

	grammars, err := Compile(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	g := grammars["ChangeLightState"]
	rule, ok := g.Rule("room")
	if !ok {
		t.Fatal("expected an internal 'room' rule")
	}
	if rule.Public {
		t.Fatal("internal rule must not be public")
	}
}

func TestCompileEntityTagWrapsBracketedSpan(t *testing.T) {
	src := "[ChangeLightState]\n" +
		"turn (on | off) [the] [kitchen](room) light\n"

	grammars, err := Compile(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	g := grammars["ChangeLightState"]
	pub, _ := g.PublicRule()
	alt := pub.Body.(jsgf.Alternative)
	seq := alt.Items[0].(jsgf.Sequence)

	foundTag := false
	for _, item := range seq.Items {
		if tag, ok := item.(jsgf.Tag); ok {
			if tag.Entity != "room" {
				t.Fatalf("tag entity = %q, want room", tag.Entity)
			}
			foundTag = true
		}
	}
	if !foundTag {
		t.Fatalf("expected an entity tag in %+v", seq.Items)
	}
}

func TestCompileDistinguishesOptionalGroupFromEntityTag(t *testing.T) {
	src := "[ChangeLightState]\n" +
		"turn (on | off) [the] light\n"

	grammars, err := Compile(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	g := grammars["ChangeLightState"]
	pub, _ := g.PublicRule()
	alt := pub.Body.(jsgf.Alternative)
	seq := alt.Items[0].(jsgf.Sequence)

	foundOptional := false
	for _, item := range seq.Items {
		if _, ok := item.(jsgf.Optional); ok {
			foundOptional = true
		}
		if _, ok := item.(jsgf.Tag); ok {
			t.Fatal("a bracket group not followed by parens must not become a Tag")
		}
	}
	if !foundOptional {
		t.Fatal("expected an Optional group for [the]")
	}
}

func TestCompileEscapedLeadingBracketIsLiteral(t *testing.T) {
	src := "[GetTime]\n" +
		`\[bracket] literal test` + "\n"

	grammars, err := Compile(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	g := grammars["GetTime"]
	pub, _ := g.PublicRule()
	alt := pub.Body.(jsgf.Alternative)
	seq := alt.Items[0].(jsgf.Sequence)

	lit, ok := seq.Items[0].(jsgf.Literal)
	if !ok || lit.Word != "[bracket]" {
		t.Fatalf("first item = %+v, want literal \"[bracket]\"", seq.Items[0])
	}
}

func TestCompileRejectsSentenceOutsideSection(t *testing.T) {
	_, err := Compile(strings.NewReader("turn on the light\n"))
	if err == nil {
		t.Fatal("expected an error for a sentence outside any [Intent] section")
	}
}

func TestCompileRejectsEmptySection(t *testing.T) {
	_, err := Compile(strings.NewReader("[GetTime]\n[PlayMusic]\nplay $artist\n"))
	if err == nil {
		t.Fatal("expected an error for a section with no sentences")
	}
}

func TestWriteProducesOneFilePerIntentAndRemovesStale(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Stale.jsgf"), []byte("stale"), 0o644); err != nil {
		t.Fatalf("seed stale file: %v", err)
	}

	grammars, err := Compile(strings.NewReader("[GetTime]\nwhat time is it\n"))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if err := Write(dir, grammars); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "Stale.jsgf")); !os.IsNotExist(err) {
		t.Fatal("expected stale grammar file to be removed")
	}
	data, err := os.ReadFile(filepath.Join(dir, "GetTime.jsgf"))
	if err != nil {
		t.Fatalf("expected GetTime.jsgf to be written: %v", err)
	}
	if !strings.Contains(string(data), "public <GetTime>") {
		t.Fatalf("GetTime.jsgf missing public rule: %s", data)
	}
}
