package dict

import (
	"reflect"
	"testing"
)

func TestCommandG2PParsesStdoutPronunciations(t *testing.T) {
	g2p := NewCommandG2P("/bin/sh", []string{"-c", `while read -r w; do echo "$w G UE S S"; done`})
	got, err := g2p.Guess([]string{"raxacoricofallapatorius"})
	if err != nil {
		t.Fatalf("Guess: %v", err)
	}
	want := map[string]string{"raxacoricofallapatorius": "G UE S S"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Guess = %v, want %v", got, want)
	}
}

func TestCommandG2PReturnsNilForEmptyWordList(t *testing.T) {
	g2p := NewCommandG2P("/bin/sh", []string{"-c", "cat"})
	got, err := g2p.Guess(nil)
	if err != nil {
		t.Fatalf("Guess: %v", err)
	}
	if got != nil {
		t.Fatalf("Guess = %v, want nil", got)
	}
}

func TestCommandG2PReportsSubprocessFailure(t *testing.T) {
	g2p := NewCommandG2P("/bin/sh", []string{"-c", "exit 1"})
	if _, err := g2p.Guess([]string{"word"}); err == nil {
		t.Fatal("expected an error for a failing subprocess")
	}
}
