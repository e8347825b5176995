package fst

import "testing"

func TestEnumeratePathsFindsEveryCombination(t *testing.T) {
	f := buildChangeLightState()
	paths, truncated := f.EnumeratePaths(100)
	if truncated {
		t.Fatal("did not expect truncation with a generous cap")
	}
	// 2 ("the" present/omitted) * 2 (kitchen/bedroom) * 2 (on/off) = 8.
	if len(paths) != 8 {
		t.Fatalf("len(paths) = %d, want 8", len(paths))
	}

	found := false
	for _, p := range paths {
		if joinWords(p.Words) == joinWords([]string{"turn", "the", "kitchen", "light", "on"}) {
			found = true
			intent, spans := Decode(p.Outputs)
			if intent != "ChangeLightState" {
				t.Fatalf("intent = %q, want ChangeLightState", intent)
			}
			if len(spans) != 2 {
				t.Fatalf("spans = %+v, want 2", spans)
			}
		}
	}
	if !found {
		t.Fatal("expected to find the full-sentence path among enumerated paths")
	}
}

func TestEnumeratePathsRespectsCap(t *testing.T) {
	f := buildChangeLightState()
	paths, truncated := f.EnumeratePaths(3)
	if !truncated {
		t.Fatal("expected truncation with a cap smaller than the language size")
	}
	if len(paths) != 3 {
		t.Fatalf("len(paths) = %d, want 3", len(paths))
	}
}

func TestSamplePathsReturnsDistinctAcceptedPaths(t *testing.T) {
	f := buildChangeLightState()

	// A deterministic "chooser" that picks choice calls % choices, where
	// calls is an incrementing counter, so repeated attempts explore
	// different branches.
	calls := 0
	next := func(choices int) int {
		calls++
		return (calls + choices) % choices
	}

	paths := f.SamplePaths(5, next)
	if len(paths) == 0 {
		t.Fatal("expected at least one sampled path")
	}
	seen := map[string]bool{}
	for _, p := range paths {
		key := joinWords(p.Words)
		if seen[key] {
			t.Fatalf("duplicate sampled path %q", key)
		}
		seen[key] = true
		if _, ok := f.Accept(p.Words); !ok {
			t.Fatalf("sampled path %v is not actually accepted by the FST", p.Words)
		}
	}
}
