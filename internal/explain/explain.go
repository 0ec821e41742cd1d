// Package explain finds the explicitly-marked ancestors that justify a
// code's derived status, for human-readable explanations and conflict
// messages.
package explain

import (
	"fmt"
	"sort"
	"strings"

	"codeset/internal/hierarchy"
)

// Result holds the minimal explaining ancestor sets for a code, one list
// per polarity. Both lists are non-empty exactly when the code inherits a
// conflict; both are empty when the code inherits no decision at all.
type Result struct {
	IncludedAncestors []string
	ExcludedAncestors []string
}

// SignificantAncestors returns the topologically nearest ancestors of code
// that carry an explicit mark, per polarity. An ancestor qualifies if it is
// in the given set and no closer marked ancestor shadows it on every path;
// distant marks that only reach code through a closer marked ancestor are
// omitted to keep explanations concise.
//
// Safe to call for any code regardless of its own status; code's own marks
// are not part of the result.
func SignificantAncestors(h *hierarchy.Hierarchy, code string, included, excluded map[string]bool) Result {
	marked := func(c string) bool { return included[c] || excluded[c] }

	// Walk upwards path by path, stopping at the first marked ancestor on
	// each path.
	nearest := make(map[string]bool)
	visited := make(map[string]bool)

	var up func(c string)
	up = func(c string) {
		for _, p := range h.Parents(c) {
			if visited[p] {
				continue
			}
			visited[p] = true
			if marked(p) {
				nearest[p] = true
				continue
			}
			up(p)
		}
	}
	up(code)

	var result Result
	for a := range nearest {
		if included[a] {
			result.IncludedAncestors = append(result.IncludedAncestors, a)
		} else {
			result.ExcludedAncestors = append(result.ExcludedAncestors, a)
		}
	}
	sort.Strings(result.IncludedAncestors)
	sort.Strings(result.ExcludedAncestors)
	return result
}

// Describe renders a result as a one-line human-readable justification,
// e.g. "included via Asthma; excluded via Respiratory finding".
func Describe(h *hierarchy.Hierarchy, r Result) string {
	var parts []string
	if len(r.IncludedAncestors) > 0 {
		parts = append(parts, "included via "+joinTerms(h, r.IncludedAncestors))
	}
	if len(r.ExcludedAncestors) > 0 {
		parts = append(parts, "excluded via "+joinTerms(h, r.ExcludedAncestors))
	}
	if len(parts) == 0 {
		return "no inherited decision"
	}
	return strings.Join(parts, "; ")
}

func joinTerms(h *hierarchy.Hierarchy, codes []string) string {
	terms := make([]string, len(codes))
	for i, c := range codes {
		terms[i] = fmt.Sprintf("%s (%s)", h.Term(c), c)
	}
	return strings.Join(terms, ", ")
}
