// Package pattern provides glob matching over hierarchy codes for bulk
// marking. Clinical coding systems often assign codes hierarchical prefixes
// (BNF chapters, ICD blocks), so a glob like "0301*" selects a whole block.
package pattern

import (
	"fmt"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"codeset/internal/hierarchy"
)

// Match returns the sorted hierarchy codes whose identifier matches the
// glob pattern. Patterns use doublestar syntax: "*", "?", "[a-z]", "{a,b}".
func Match(h *hierarchy.Hierarchy, glob string) ([]string, error) {
	if !doublestar.ValidatePattern(glob) {
		return nil, fmt.Errorf("invalid pattern %q", glob)
	}

	var matched []string
	for _, code := range h.Codes() {
		ok, err := doublestar.Match(glob, code)
		if err != nil {
			return nil, fmt.Errorf("matching %q: %w", glob, err)
		}
		if ok {
			matched = append(matched, code)
		}
	}
	sort.Strings(matched)
	return matched, nil
}

// MatchTerms returns the sorted codes whose human term matches the glob
// pattern. Matching is case-sensitive.
func MatchTerms(h *hierarchy.Hierarchy, glob string) ([]string, error) {
	if !doublestar.ValidatePattern(glob) {
		return nil, fmt.Errorf("invalid pattern %q", glob)
	}

	var matched []string
	for _, code := range h.Codes() {
		ok, err := doublestar.Match(glob, h.Term(code))
		if err != nil {
			return nil, fmt.Errorf("matching %q: %w", glob, err)
		}
		if ok {
			matched = append(matched, code)
		}
	}
	sort.Strings(matched)
	return matched, nil
}
