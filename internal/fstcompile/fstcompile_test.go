package fstcompile

import (
	"strings"
	"testing"

	"github.com/vocalmind/vocalmind/internal/fst"
	"github.com/vocalmind/vocalmind/internal/jsgf"
)

func mustParse(t *testing.T, src string) *jsgf.Grammar {
	t.Helper()
	g, err := jsgf.Parse(src)
	if err != nil {
		t.Fatalf("jsgf.Parse: %v", err)
	}
	return g
}

func TestCompileAllAcceptsPlainSentence(t *testing.T) {
	g := mustParse(t, "grammar GetTime;\n\npublic <GetTime> = what (is | 's) the time;\n")
	machine, _, err := CompileAll(map[string]*jsgf.Grammar{"GetTime": g}, nil, Options{})
	if err != nil {
		t.Fatalf("CompileAll: %v", err)
	}

	accepted, ok := machine.Accept([]string{"what", "is", "the", "time"})
	if !ok {
		t.Fatal("expected acceptance")
	}
	intent, _ := fst.Decode(accepted.Outputs)
	if intent != "GetTime" {
		t.Fatalf("intent = %q, want GetTime", intent)
	}

	if _, ok := machine.Accept([]string{"what", "time", "is", "it"}); ok {
		t.Fatal("expected rejection of an unrecognized phrasing")
	}
}

func TestCompileAllSubstitutesSlotAndTagsEntity(t *testing.T) {
	g := mustParse(t, "grammar ChangeLightState;\n\n"+
		"public <ChangeLightState> = turn (on | off) [the] ($room){name} light;\n")
	slots := StaticSlotLoader{"room": {"kitchen", "living room"}}

	machine, _, err := CompileAll(map[string]*jsgf.Grammar{"ChangeLightState": g}, slots, Options{})
	if err != nil {
		t.Fatalf("CompileAll: %v", err)
	}

	accepted, ok := machine.Accept([]string{"turn", "on", "the", "kitchen", "light"})
	if !ok {
		t.Fatal("expected acceptance of a single-word slot value")
	}
	intent, spans := fst.Decode(accepted.Outputs)
	if intent != "ChangeLightState" {
		t.Fatalf("intent = %q, want ChangeLightState", intent)
	}
	if len(spans) != 1 || spans[0].Entity != "name" || spans[0].Value != "kitchen" {
		t.Fatalf("spans = %+v, want one name=kitchen span", spans)
	}

	accepted, ok = machine.Accept([]string{"turn", "off", "living", "room", "light"})
	if !ok {
		t.Fatal("expected acceptance of a multi-word slot value")
	}
	_, spans = fst.Decode(accepted.Outputs)
	if len(spans) != 1 || spans[0].Value != "living room" {
		t.Fatalf("spans = %+v, want one name=\"living room\" span", spans)
	}
}

func TestCompileAllMergesIntentsWithoutCrossTalk(t *testing.T) {
	getTime := mustParse(t, "grammar GetTime;\n\npublic <GetTime> = what time is it;\n")
	lights := mustParse(t, "grammar ChangeLightState;\n\npublic <ChangeLightState> = turn on the light;\n")

	machine, _, err := CompileAll(map[string]*jsgf.Grammar{
		"GetTime":          getTime,
		"ChangeLightState": lights,
	}, nil, Options{})
	if err != nil {
		t.Fatalf("CompileAll: %v", err)
	}

	accepted, ok := machine.Accept([]string{"what", "time", "is", "it"})
	if !ok {
		t.Fatal("expected GetTime sentence to be accepted")
	}
	intent, _ := fst.Decode(accepted.Outputs)
	if intent != "GetTime" {
		t.Fatalf("intent = %q, want GetTime", intent)
	}

	accepted, ok = machine.Accept([]string{"turn", "on", "the", "light"})
	if !ok {
		t.Fatal("expected ChangeLightState sentence to be accepted")
	}
	intent, _ = fst.Decode(accepted.Outputs)
	if intent != "ChangeLightState" {
		t.Fatalf("intent = %q, want ChangeLightState", intent)
	}
}

func TestCompileAllRecordsNormalizedEntityAlias(t *testing.T) {
	g := mustParse(t, "grammar SetTimer;\n\npublic <SetTimer> = set a timer for (five){minutes:5} minutes;\n")
	_, aliases, err := CompileAll(map[string]*jsgf.Grammar{"SetTimer": g}, nil, Options{})
	if err != nil {
		t.Fatalf("CompileAll: %v", err)
	}
	norm, ok := aliases.Lookup("minutes", "five")
	if !ok || norm != "5" {
		t.Fatalf("aliases.Lookup(minutes, five) = (%q, %v), want (5, true)", norm, ok)
	}
}

func TestCompileAllRejectsUnknownRuleReference(t *testing.T) {
	g := mustParse(t, "grammar GetTime;\n\npublic <GetTime> = <missing>;\n")
	_, _, err := CompileAll(map[string]*jsgf.Grammar{"GetTime": g}, nil, Options{})
	if err == nil {
		t.Fatal("expected an error for an unresolvable rule reference")
	}
}

func TestCompileAllRejectsCyclicRuleReference(t *testing.T) {
	g := mustParse(t, "grammar GetTime;\n\npublic <GetTime> = <GetTime> word;\n")
	_, _, err := CompileAll(map[string]*jsgf.Grammar{"GetTime": g}, nil, Options{})
	if err == nil || !strings.Contains(err.Error(), "cyclic") {
		t.Fatalf("expected a cyclic rule reference error, got %v", err)
	}
}

func TestCompileEachReturnsOneStandaloneFSTPerIntent(t *testing.T) {
	getTime := mustParse(t, "grammar GetTime;\n\npublic <GetTime> = what is the time;\n")
	changeLight := mustParse(t, "grammar ChangeLightState;\n\npublic <ChangeLightState> = turn on the light;\n")

	perIntent, _, names, err := CompileEach(map[string]*jsgf.Grammar{
		"GetTime":          getTime,
		"ChangeLightState": changeLight,
	}, nil, Options{})
	if err != nil {
		t.Fatalf("CompileEach: %v", err)
	}

	if got := names; len(got) != 2 || got[0] != "ChangeLightState" || got[1] != "GetTime" {
		t.Fatalf("names = %v, want sorted [ChangeLightState GetTime]", got)
	}

	if _, ok := perIntent["GetTime"].Accept([]string{"what", "is", "the", "time"}); !ok {
		t.Fatal("expected GetTime's standalone FST to accept its own sentence")
	}
	if _, ok := perIntent["ChangeLightState"].Accept([]string{"what", "is", "the", "time"}); ok {
		t.Fatal("ChangeLightState's standalone FST should not accept GetTime's sentence")
	}
}
