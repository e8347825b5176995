package fstcompile

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// DirSlotLoader resolves a slot to "<Dir>/<name>", one value per line,
// blank lines ignored (spec.md §6: "Slot files. One file per slot named
// after the slot, one value per line, under a profile-resolved slots
// directory. Blank lines ignored.").
type DirSlotLoader struct {
	Dir string
}

// Load implements SlotLoader.
func (d DirSlotLoader) Load(name string) ([]string, error) {
	f, err := os.Open(filepath.Join(d.Dir, name))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var values []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		values = append(values, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return values, nil
}

// StaticSlotLoader serves slot values from an in-memory map, used in
// tests and wherever slots are supplied without a profile directory.
type StaticSlotLoader map[string][]string

// Load implements SlotLoader.
func (s StaticSlotLoader) Load(name string) ([]string, error) {
	values, ok := s[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	return values, nil
}
