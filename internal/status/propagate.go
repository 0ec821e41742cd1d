package status

import (
	"fmt"

	"codeset/internal/hierarchy"
)

// UnknownCodeError is returned when an operation references a code that is
// not part of the hierarchy or the snapshot.
type UnknownCodeError struct {
	Code string
}

func (e *UnknownCodeError) Error() string {
	return fmt.Sprintf("unknown code %q", e.Code)
}

// Update applies one explicit decision to a code and returns a new snapshot
// with the derived statuses of the code's descendant subtree recomputed.
//
// explicit must be an assignable status: Included, Excluded, or Unresolved
// (which clears any prior explicit mark, so the code becomes derived again).
// Codes outside the toggled code's subtree are never touched. The old
// snapshot is left unmodified; Update is a pure function of its arguments.
func Update(h *hierarchy.Hierarchy, store *Store, code string, explicit Status) (*Store, error) {
	if !explicit.Assignable() {
		return nil, fmt.Errorf("status %s cannot be assigned directly", explicit)
	}
	if !h.Has(code) {
		return nil, &UnknownCodeError{Code: code}
	}
	if _, ok := store.Get(code); !ok {
		return nil, &UnknownCodeError{Code: code}
	}

	changes := make(map[string]Status)

	// resolve reads through pending changes so children observe their
	// parents' recomputed statuses.
	resolve := func(c string) Status {
		if v, ok := changes[c]; ok {
			return v
		}
		return store.Status(c)
	}

	derive := func(c string) Status {
		anyIncluded := false
		anyExcluded := false
		for _, p := range h.Parents(c) {
			rs := resolve(p)
			if rs.IsIncluded() {
				anyIncluded = true
			}
			if rs.IsExcluded() {
				anyExcluded = true
			}
		}
		switch {
		case anyIncluded && anyExcluded:
			return Conflict
		case anyIncluded:
			return InheritedIncluded
		case anyExcluded:
			return InheritedExcluded
		default:
			return Unresolved
		}
	}

	h.WalkDown(code, func(c string) {
		current, inStore := store.Get(c)
		if !inStore {
			// Snapshot defines the draft's universe; codes outside it are
			// not tracked.
			return
		}

		var next Status
		switch {
		case c == code && explicit.IsExplicit():
			next = explicit
		case c != code && current.IsExplicit():
			// Explicit marks are never overwritten by propagation.
			return
		default:
			next = derive(c)
		}

		if next != current {
			changes[c] = next
		}
	})

	return store.with(changes), nil
}
