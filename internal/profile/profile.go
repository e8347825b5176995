// Package profile implements the layered, dotted-path configuration
// snapshot every runtime and training component reads from: a set of base
// defaults overridden by a user profile, addressed by keys like
// "wake.pocketsphinx.keyphrase". A Profile is immutable once constructed;
// reload means constructing a new one and swapping it in, never mutating in
// place (see the "no in-place mutation" resource-scoping design note).
package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Profile is an immutable, layered configuration snapshot: base defaults
// with user overrides merged on top, plus the ordered directory search list
// used to resolve relative resource paths (grammar files, slot files,
// dictionaries, trained artifacts).
type Profile struct {
	name    string
	merged  map[string]any
	search  []string // ordered, most-general first; read searches last-to-first
	userDir string   // directory writes and the active override layer live in
}

// Default env vars the core consults (spec.md §6 "Environment variables").
const (
	EnvSearchPath    = "VOICECORE_PROFILES_PATH"
	EnvDefaultName   = "VOICECORE_DEFAULT_PROFILE"
	defaultProfile   = "en"
	baseProfileFile  = "profile.json" // base defaults shipped with the search path
	userProfileFile  = "profile.json" // same filename, found in the user's override dir
)

// Load builds a Profile by layering every profile.json found along the
// search path (base defaults first, increasingly specific overrides last),
// for the named profile directory. searchPathEnv is colon-separated and
// searched last-first, mirroring spec.md §6: the *last* entry is searched
// *first* for reads, so a user override directory listed last wins.
func Load(lookup func(string) (string, bool)) (*Profile, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	name := defaultProfile
	if v, ok := lookup(EnvDefaultName); ok && strings.TrimSpace(v) != "" {
		name = strings.TrimSpace(v)
	}

	raw, _ := lookup(EnvSearchPath)
	search := splitSearchPath(raw)
	if len(search) == 0 {
		return nil, fmt.Errorf("profile: %s is empty, no profile directories to search", EnvSearchPath)
	}

	merged := map[string]any{}
	var userDir string
	// Base-to-specific: walk the search list in the order given, so entries
	// later in the list (read "last-first" per spec) overlay earlier ones.
	for _, dir := range search {
		profileDir := filepath.Join(dir, name)
		path := filepath.Join(profileDir, baseProfileFile)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var layer map[string]any
		if err = json.Unmarshal(data, &layer); err != nil {
			return nil, fmt.Errorf("profile: parse %s: %w", path, err)
		}
		mergeInto(merged, layer)
		userDir = profileDir
	}
	if userDir == "" {
		return nil, fmt.Errorf("profile: no %s found for profile %q under %v", baseProfileFile, name, search)
	}

	return &Profile{name: name, merged: merged, search: search, userDir: userDir}, nil
}

func splitSearchPath(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ":") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// mergeInto deep-merges src into dst, src winning on key conflicts. Nested
// objects merge recursively; any other type (including arrays) overwrites.
func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]any)
		if !srcIsMap {
			dst[k] = v
			continue
		}
		dstMap, dstIsMap := dst[k].(map[string]any)
		if !dstIsMap {
			dstMap = map[string]any{}
			dst[k] = dstMap
		}
		mergeInto(dstMap, srcMap)
	}
}

// Name returns the active profile's name (e.g. "en").
func (p *Profile) Name() string { return p.name }

// Get resolves a dotted path (e.g. "wake.pocketsphinx.keyphrase") against
// the merged layers. ok is false if any segment is missing or not an
// object/leaf as expected.
func (p *Profile) Get(path string) (any, bool) {
	cur := any(p.merged)
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// GetString resolves a dotted path to a string, or fallback if absent/wrong type.
func (p *Profile) GetString(path, fallback string) string {
	v, ok := p.Get(path)
	if !ok {
		return fallback
	}
	s, ok := v.(string)
	if !ok {
		return fallback
	}
	return s
}

// GetBool resolves a dotted path to a bool, or fallback if absent/wrong type.
func (p *Profile) GetBool(path string, fallback bool) bool {
	v, ok := p.Get(path)
	if !ok {
		return fallback
	}
	b, ok := v.(bool)
	if !ok {
		return fallback
	}
	return b
}

// GetFloat resolves a dotted path to a float64, or fallback if absent/wrong type.
func (p *Profile) GetFloat(path string, fallback float64) float64 {
	v, ok := p.Get(path)
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case float64:
		return n
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

// GetInt resolves a dotted path to an int, or fallback if absent/wrong type.
func (p *Profile) GetInt(path string, fallback int) int {
	return int(p.GetFloat(path, float64(fallback)))
}

// GetStringSlice resolves a dotted path to a []string, or fallback if absent/wrong type.
func (p *Profile) GetStringSlice(path string, fallback []string) []string {
	v, ok := p.Get(path)
	if !ok {
		return fallback
	}
	arr, ok := v.([]any)
	if !ok {
		return fallback
	}
	out := make([]string, 0, len(arr))
	for _, el := range arr {
		s, ok := el.(string)
		if !ok {
			return fallback
		}
		out = append(out, s)
	}
	return out
}

// ReadPath resolves a profile-relative resource path (e.g. "grammars",
// "slots/name") by searching the active profile directory first, then
// earlier (more general) search-path entries for the same profile name, in
// reverse declaration order. Returns the first directory/file that exists.
func (p *Profile) ReadPath(rel string) (string, bool) {
	for i := len(p.search) - 1; i >= 0; i-- {
		candidate := filepath.Join(p.search[i], p.name, rel)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}

// WritePath returns the path under the active (user) profile directory a
// component should write rel to — always the most specific layer, never a
// shared base directory.
func (p *Profile) WritePath(rel string) string {
	return filepath.Join(p.userDir, rel)
}
