package profile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeProfile(t *testing.T, dir, name string, data map[string]any) {
	t.Helper()
	profileDir := filepath.Join(dir, name)
	if err := os.MkdirAll(profileDir, 0o755); err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(data)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(profileDir, "profile.json"), b, 0o644); err != nil {
		t.Fatal(err)
	}
}

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestLoadLayersBaseThenUserOverrides(t *testing.T) {
	base := t.TempDir()
	user := t.TempDir()

	writeProfile(t, base, "en", map[string]any{
		"wake": map[string]any{"system": "pocketsphinx", "threshold": 1e-30},
	})
	writeProfile(t, user, "en", map[string]any{
		"wake": map[string]any{"threshold": 1e-25},
	})

	p, err := Load(lookupFrom(map[string]string{
		EnvSearchPath: base + ":" + user,
	}))
	if err != nil {
		t.Fatal(err)
	}

	if got := p.GetString("wake.system", ""); got != "pocketsphinx" {
		t.Fatalf("wake.system = %q, want pocketsphinx (base value should survive)", got)
	}
	if got := p.GetFloat("wake.threshold", 0); got != 1e-25 {
		t.Fatalf("wake.threshold = %v, want 1e-25 (user override should win)", got)
	}
}

func TestGetMissingPathReturnsFallback(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "en", map[string]any{"a": map[string]any{"b": "c"}})

	p, err := Load(lookupFrom(map[string]string{EnvSearchPath: dir}))
	if err != nil {
		t.Fatal(err)
	}

	if got := p.GetString("a.b", "fallback"); got != "c" {
		t.Fatalf("a.b = %q, want c", got)
	}
	if got := p.GetString("a.missing", "fallback"); got != "fallback" {
		t.Fatalf("a.missing = %q, want fallback", got)
	}
	if got := p.GetString("a.b.c", "fallback"); got != "fallback" {
		t.Fatalf("a.b.c = %q, want fallback (b is a leaf, not an object)", got)
	}
}

func TestLoadFailsWithEmptySearchPath(t *testing.T) {
	_, err := Load(lookupFrom(map[string]string{}))
	if err == nil {
		t.Fatal("expected error for empty search path")
	}
}

func TestReadPathSearchesLastFirst(t *testing.T) {
	base := t.TempDir()
	user := t.TempDir()
	writeProfile(t, base, "en", map[string]any{})
	writeProfile(t, user, "en", map[string]any{})

	if err := os.MkdirAll(filepath.Join(base, "en", "slots"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(base, "en", "slots", "name"), []byte("kitchen\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := Load(lookupFrom(map[string]string{EnvSearchPath: base + ":" + user}))
	if err != nil {
		t.Fatal(err)
	}

	path, ok := p.ReadPath("slots/name")
	if !ok {
		t.Fatal("expected slots/name to resolve from the base search entry")
	}
	if filepath.Dir(filepath.Dir(path)) != filepath.Join(base, "en") {
		t.Fatalf("resolved path %q not under base profile dir", path)
	}
}

func TestWritePathUsesMostSpecificLayer(t *testing.T) {
	base := t.TempDir()
	user := t.TempDir()
	writeProfile(t, base, "en", map[string]any{})
	writeProfile(t, user, "en", map[string]any{})

	p, err := Load(lookupFrom(map[string]string{EnvSearchPath: base + ":" + user}))
	if err != nil {
		t.Fatal(err)
	}

	want := filepath.Join(user, "en", "custom_words.txt")
	if got := p.WritePath("custom_words.txt"); got != want {
		t.Fatalf("WritePath = %q, want %q", got, want)
	}
}
