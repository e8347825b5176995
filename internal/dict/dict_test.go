package dict

import (
	"strings"
	"testing"
)

func TestReadParsesDuplicateVariants(t *testing.T) {
	src := "TOMATO T AH M EY T OW\nTOMATO(2) T AH M AA T OW\n# a comment\n\nKITCHEN K IH CH AH N\n"
	d, err := Read(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := d["TOMATO"]; len(got) != 2 || got[0] != "T AH M EY T OW" || got[1] != "T AH M AA T OW" {
		t.Fatalf("TOMATO = %v", got)
	}
	if got := d["KITCHEN"]; len(got) != 1 || got[0] != "K IH CH AH N" {
		t.Fatalf("KITCHEN = %v", got)
	}
}

func TestReadRejectsMalformedLine(t *testing.T) {
	if _, err := Read(strings.NewReader("ONLYWORD\n")); err == nil {
		t.Fatal("expected an error for a line with no pronunciation")
	}
}

func TestWriteToNumbersDuplicatesWhenEnabled(t *testing.T) {
	d := Dictionary{"tomato": {"T AH M EY T OW", "T AH M AA T OW"}}
	var buf strings.Builder
	if err := d.WriteTo(&buf, true); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	want := "tomato T AH M EY T OW\ntomato(2) T AH M AA T OW\n"
	if buf.String() != want {
		t.Fatalf("WriteTo = %q, want %q", buf.String(), want)
	}
}

func TestWriteToOmitsNumberingWhenDisabled(t *testing.T) {
	d := Dictionary{"tomato": {"T AH M EY T OW", "T AH M AA T OW"}}
	var buf strings.Builder
	if err := d.WriteTo(&buf, false); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	want := "tomato T AH M EY T OW\ntomato T AH M AA T OW\n"
	if buf.String() != want {
		t.Fatalf("WriteTo = %q, want %q", buf.String(), want)
	}
}

func TestWriteToSortsWordsDeterministically(t *testing.T) {
	d := Dictionary{"zebra": {"Z"}, "apple": {"A"}}
	var buf strings.Builder
	if err := d.WriteTo(&buf, false); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	want := "apple A\nzebra Z\n"
	if buf.String() != want {
		t.Fatalf("WriteTo = %q, want %q", buf.String(), want)
	}
}
