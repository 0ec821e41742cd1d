// Package hierarchy provides the immutable DAG of clinical codes backing a
// codelist draft, with ancestor/descendant queries.
package hierarchy

import (
	"fmt"
	"sort"
	"sync"
)

// MalformedError is returned when a hierarchy cannot be constructed:
// a cycle was detected or an edge references an unknown code.
type MalformedError struct {
	Reason string
}

func (e *MalformedError) Error() string {
	return "malformed hierarchy: " + e.Reason
}

// Edge links a parent code to an immediate child code.
type Edge struct {
	Parent string
	Child  string
}

// Hierarchy is a directed acyclic graph over a set of codes. It is
// constructed once and read-only afterwards; reachability sets are cached
// per code on first query and never invalidated.
type Hierarchy struct {
	parents  map[string][]string // code -> immediate parents
	children map[string][]string // code -> immediate children
	terms    map[string]string   // code -> human-readable term
	roots    []string

	mu          sync.RWMutex
	ancestors   map[string]map[string]bool
	descendants map[string]map[string]bool
}

// New builds a hierarchy from a code set and parent->child edges.
// Codes with no parents are roots. Construction fails with *MalformedError
// if an edge references a code outside the set or the edges form a cycle.
func New(codes map[string]string, edges []Edge) (*Hierarchy, error) {
	h := &Hierarchy{
		parents:     make(map[string][]string, len(codes)),
		children:    make(map[string][]string, len(codes)),
		terms:       make(map[string]string, len(codes)),
		ancestors:   make(map[string]map[string]bool),
		descendants: make(map[string]map[string]bool),
	}
	for code, term := range codes {
		h.terms[code] = term
	}

	for _, e := range edges {
		if _, ok := h.terms[e.Parent]; !ok {
			return nil, &MalformedError{Reason: fmt.Sprintf("edge references unknown code %q", e.Parent)}
		}
		if _, ok := h.terms[e.Child]; !ok {
			return nil, &MalformedError{Reason: fmt.Sprintf("edge references unknown code %q", e.Child)}
		}
		h.parents[e.Child] = append(h.parents[e.Child], e.Parent)
		h.children[e.Parent] = append(h.children[e.Parent], e.Child)
	}

	// Deterministic iteration order for parents/children
	for _, m := range []map[string][]string{h.parents, h.children} {
		for code := range m {
			sort.Strings(m[code])
			m[code] = dedupe(m[code])
		}
	}

	for code := range h.terms {
		if len(h.parents[code]) == 0 {
			h.roots = append(h.roots, code)
		}
	}
	sort.Strings(h.roots)

	if err := h.checkAcyclic(); err != nil {
		return nil, err
	}

	return h, nil
}

// checkAcyclic runs Kahn's algorithm over the child edges.
func (h *Hierarchy) checkAcyclic() error {
	indegree := make(map[string]int, len(h.terms))
	for code := range h.terms {
		indegree[code] = len(h.parents[code])
	}

	queue := make([]string, 0, len(h.roots))
	queue = append(queue, h.roots...)

	seen := 0
	for len(queue) > 0 {
		code := queue[0]
		queue = queue[1:]
		seen++
		for _, child := range h.children[code] {
			indegree[child]--
			if indegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	if seen != len(h.terms) {
		return &MalformedError{Reason: fmt.Sprintf("cycle detected (%d of %d codes reachable acyclically)", seen, len(h.terms))}
	}
	return nil
}

// Has reports whether the code exists in the hierarchy.
func (h *Hierarchy) Has(code string) bool {
	_, ok := h.terms[code]
	return ok
}

// Len returns the number of codes.
func (h *Hierarchy) Len() int {
	return len(h.terms)
}

// Codes returns all codes in sorted order.
func (h *Hierarchy) Codes() []string {
	codes := make([]string, 0, len(h.terms))
	for code := range h.terms {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Roots returns the codes with no parents, in sorted order.
func (h *Hierarchy) Roots() []string {
	return h.roots
}

// Term returns the human-readable term for a code, or "[Unknown]" if the
// code carries no term.
func (h *Hierarchy) Term(code string) string {
	if term, ok := h.terms[code]; ok && term != "" {
		return term
	}
	return "[Unknown]"
}

// Parents returns the immediate parents of a code in sorted order.
func (h *Hierarchy) Parents(code string) []string {
	return h.parents[code]
}

// Children returns the immediate children of a code in sorted order.
func (h *Hierarchy) Children(code string) []string {
	return h.children[code]
}

// Ancestors returns the set of strict ancestors of a code. The result is
// cached; callers must not mutate it.
func (h *Hierarchy) Ancestors(code string) map[string]bool {
	return h.reachable(code, h.parents, h.ancestors)
}

// Descendants returns the set of strict descendants of a code. The result
// is cached; callers must not mutate it.
func (h *Hierarchy) Descendants(code string) map[string]bool {
	return h.reachable(code, h.children, h.descendants)
}

// IsAncestor reports whether a is a strict ancestor of b.
func (h *Hierarchy) IsAncestor(a, b string) bool {
	return h.Ancestors(b)[a]
}

// reachable computes the transitive closure of code over next, memoizing
// into cache. Work is proportional to the subgraph reached, not the whole
// hierarchy.
func (h *Hierarchy) reachable(code string, next map[string][]string, cache map[string]map[string]bool) map[string]bool {
	h.mu.RLock()
	set, ok := cache[code]
	h.mu.RUnlock()
	if ok {
		return set
	}

	set = make(map[string]bool)
	stack := append([]string(nil), next[code]...)
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if set[c] {
			continue
		}
		set[c] = true
		stack = append(stack, next[c]...)
	}

	h.mu.Lock()
	// Another goroutine may have raced us to the same computation; both
	// results are identical, so last write wins.
	cache[code] = set
	h.mu.Unlock()
	return set
}

// UltimateAncestors filters a code set down to its members that have no
// ancestor inside the set. These are the roots of the forest the set spans.
func (h *Hierarchy) UltimateAncestors(codes map[string]bool) []string {
	var result []string
	for code := range codes {
		hasAncestorInSet := false
		for ancestor := range h.Ancestors(code) {
			if codes[ancestor] {
				hasAncestorInSet = true
				break
			}
		}
		if !hasAncestorInSet {
			result = append(result, code)
		}
	}
	sort.Strings(result)
	return result
}

// WalkDown visits code and every descendant in a parents-before-children
// order, calling fn once per visited code. A code with multiple parents
// inside the walk is visited only after all its in-walk parents.
func (h *Hierarchy) WalkDown(code string, fn func(code string)) {
	inWalk := map[string]bool{code: true}
	for d := range h.Descendants(code) {
		inWalk[d] = true
	}

	// Count in-walk parents so multi-parent codes wait for all of them.
	pending := make(map[string]int, len(inWalk))
	for c := range inWalk {
		if c == code {
			continue
		}
		n := 0
		for _, p := range h.parents[c] {
			if inWalk[p] {
				n++
			}
		}
		pending[c] = n
	}

	queue := []string{code}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		fn(c)
		for _, child := range h.children[c] {
			if !inWalk[child] {
				continue
			}
			pending[child]--
			if pending[child] == 0 {
				queue = append(queue, child)
			}
		}
	}
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}
