package status

import (
	"errors"
	"testing"

	"codeset/internal/hierarchy"
)

// diamond builds the propagation fixture:
//
//	    a
//	   / \
//	  b   c
//	 / \ / \
//	d   e   f
func diamond(t *testing.T) *hierarchy.Hierarchy {
	t.Helper()
	codes := map[string]string{
		"a": "A", "b": "B", "c": "C", "d": "D", "e": "E", "f": "F",
	}
	edges := []hierarchy.Edge{
		{Parent: "a", Child: "b"}, {Parent: "a", Child: "c"},
		{Parent: "b", Child: "d"}, {Parent: "b", Child: "e"},
		{Parent: "c", Child: "e"}, {Parent: "c", Child: "f"},
	}
	h, err := hierarchy.New(codes, edges)
	if err != nil {
		t.Fatalf("failed to build hierarchy: %v", err)
	}
	return h
}

func blankStore(h *hierarchy.Hierarchy) *Store {
	statuses := make(map[string]Status, h.Len())
	for _, code := range h.Codes() {
		statuses[code] = Unresolved
	}
	return NewStore(statuses)
}

func mustUpdate(t *testing.T, h *hierarchy.Hierarchy, st *Store, code string, explicit Status) *Store {
	t.Helper()
	next, err := Update(h, st, code, explicit)
	if err != nil {
		t.Fatalf("update %s=%s failed: %v", code, explicit, err)
	}
	return next
}

func assertStatuses(t *testing.T, st *Store, want map[string]Status) {
	t.Helper()
	for code, expected := range want {
		if got := st.Status(code); got != expected {
			t.Errorf("code %s: expected %s, got %s", code, expected, got)
		}
	}
}

func TestUpdate_IncludePropagates(t *testing.T) {
	h := diamond(t)
	st := mustUpdate(t, h, blankStore(h), "a", Included)

	assertStatuses(t, st, map[string]Status{
		"a": Included,
		"b": InheritedIncluded,
		"c": InheritedIncluded,
		"d": InheritedIncluded,
		"e": InheritedIncluded,
		"f": InheritedIncluded,
	})
}

func TestUpdate_ExplicitMarksPreserved(t *testing.T) {
	h := diamond(t)
	st := mustUpdate(t, h, blankStore(h), "b", Excluded)
	st = mustUpdate(t, h, st, "a", Included)

	// b keeps its explicit exclusion; d follows b, not a. e sees an
	// excluding parent (b) and an including parent (c).
	assertStatuses(t, st, map[string]Status{
		"a": Included,
		"b": Excluded,
		"c": InheritedIncluded,
		"d": InheritedExcluded,
		"e": Conflict,
		"f": InheritedIncluded,
	})
}

func TestUpdate_DiamondConflict(t *testing.T) {
	h := diamond(t)
	st := mustUpdate(t, h, blankStore(h), "b", Included)
	st = mustUpdate(t, h, st, "c", Excluded)

	assertStatuses(t, st, map[string]Status{
		"b": Included,
		"c": Excluded,
		"d": InheritedIncluded,
		"e": Conflict,
		"f": InheritedExcluded,
	})
}

func TestUpdate_ClearRestoresInheritance(t *testing.T) {
	h := diamond(t)
	st := mustUpdate(t, h, blankStore(h), "a", Included)
	marked := mustUpdate(t, h, st, "b", Excluded)
	cleared := mustUpdate(t, h, marked, "b", Unresolved)

	// Clearing b's mark hands the subtree back to a's inclusion and must
	// reproduce the pre-mark snapshot exactly.
	if !cleared.Equal(st) {
		t.Errorf("clearing a mark must restore the prior derivation\nbefore: %v\nafter:  %v", st.All(), cleared.All())
	}
}

func TestUpdate_ClearWithoutAncestors(t *testing.T) {
	h := diamond(t)
	st := mustUpdate(t, h, blankStore(h), "a", Included)
	st = mustUpdate(t, h, st, "a", Unresolved)

	if !st.Equal(blankStore(h)) {
		t.Errorf("clearing the only mark must return to all-unresolved, got %v", st.All())
	}
}

func TestUpdate_LocalizedRecomputation(t *testing.T) {
	h := diamond(t)
	st := mustUpdate(t, h, blankStore(h), "b", Included)
	before := st.All()

	st = mustUpdate(t, h, st, "c", Excluded)

	// Codes outside c's subtree keep their previous values.
	for _, code := range []string{"a", "b", "d"} {
		if st.Status(code) != before[code] {
			t.Errorf("code %s outside the toggled subtree changed: %s -> %s", code, before[code], st.Status(code))
		}
	}
}

func TestUpdate_SnapshotUnchanged(t *testing.T) {
	h := diamond(t)
	st := blankStore(h)
	if _, err := Update(h, st, "a", Included); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	for _, code := range h.Codes() {
		if st.Status(code) != Unresolved {
			t.Errorf("update mutated the input snapshot at %s", code)
		}
	}
}

func TestUpdate_Deterministic(t *testing.T) {
	h := diamond(t)

	run := func() *Store {
		st := blankStore(h)
		st = mustUpdate(t, h, st, "a", Included)
		st = mustUpdate(t, h, st, "c", Excluded)
		st = mustUpdate(t, h, st, "e", Included)
		return st
	}

	first := run()
	second := run()
	if !first.Equal(second) {
		t.Errorf("identical edit sequences diverged:\n%v\n%v", first.All(), second.All())
	}
}

func TestUpdate_Errors(t *testing.T) {
	h := diamond(t)
	st := blankStore(h)

	if _, err := Update(h, st, "a", Conflict); err == nil {
		t.Error("expected error assigning a derived status")
	}
	if _, err := Update(h, st, "a", InheritedIncluded); err == nil {
		t.Error("expected error assigning a derived status")
	}

	_, err := Update(h, st, "ghost", Included)
	var unknown *UnknownCodeError
	if !errors.As(err, &unknown) {
		t.Errorf("expected *UnknownCodeError, got %v", err)
	}

	// Known to the hierarchy but outside the tracked snapshot.
	partial := NewStore(map[string]Status{"a": Unresolved})
	if _, err := Update(h, partial, "b", Included); !errors.As(err, &unknown) {
		t.Errorf("expected *UnknownCodeError for untracked code, got %v", err)
	}
}

func TestUpdate_UntrackedDescendantsSkipped(t *testing.T) {
	h := diamond(t)
	// Track only the left branch.
	st := NewStore(map[string]Status{"a": Unresolved, "b": Unresolved, "d": Unresolved})

	st = mustUpdate(t, h, st, "a", Included)
	assertStatuses(t, st, map[string]Status{
		"a": Included,
		"b": InheritedIncluded,
		"d": InheritedIncluded,
	})
	if _, ok := st.Get("e"); ok {
		t.Error("untracked code must stay outside the snapshot")
	}
}
