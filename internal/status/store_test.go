package status

import (
	"fmt"
	"reflect"
	"testing"
)

func TestStatusSymbols(t *testing.T) {
	tests := []struct {
		status Status
		symbol string
	}{
		{Unresolved, "?"},
		{Included, "+"},
		{Excluded, "-"},
		{InheritedIncluded, "(+)"},
		{InheritedExcluded, "(-)"},
		{Conflict, "!"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.symbol {
			t.Errorf("expected %d to render %q, got %q", tt.status, tt.symbol, got)
		}
		parsed, err := Parse(tt.symbol)
		if err != nil {
			t.Errorf("failed to parse %q: %v", tt.symbol, err)
		}
		if parsed != tt.status {
			t.Errorf("expected %q to parse to %v, got %v", tt.symbol, tt.status, parsed)
		}
	}

	if _, err := Parse("bogus"); err == nil {
		t.Error("expected error parsing unknown symbol")
	}
}

func TestStatusPredicates(t *testing.T) {
	if !Included.IsExplicit() || !Excluded.IsExplicit() {
		t.Error("expected + and - to be explicit")
	}
	if InheritedIncluded.IsExplicit() || Unresolved.IsExplicit() || Conflict.IsExplicit() {
		t.Error("derived statuses must not be explicit")
	}
	if !Included.IsIncluded() || !InheritedIncluded.IsIncluded() {
		t.Error("expected + and (+) to count as included")
	}
	if !Excluded.IsExcluded() || !InheritedExcluded.IsExcluded() {
		t.Error("expected - and (-) to count as excluded")
	}
	if Conflict.IsIncluded() || Conflict.IsExcluded() {
		t.Error("conflict carries no polarity")
	}
	for _, s := range []Status{Unresolved, Included, Excluded} {
		if !s.Assignable() {
			t.Errorf("expected %s to be assignable", s)
		}
	}
	for _, s := range []Status{InheritedIncluded, InheritedExcluded, Conflict} {
		if s.Assignable() {
			t.Errorf("did not expect %s to be assignable", s)
		}
	}
}

func TestStoreGet(t *testing.T) {
	st := NewStore(map[string]Status{"a": Included, "b": Unresolved})

	if v, ok := st.Get("a"); !ok || v != Included {
		t.Errorf("expected (Included, true), got (%v, %v)", v, ok)
	}
	if v, ok := st.Get("ghost"); ok || v != Unresolved {
		t.Errorf("expected (Unresolved, false) for missing code, got (%v, %v)", v, ok)
	}
	if st.Len() != 2 {
		t.Errorf("expected 2 codes, got %d", st.Len())
	}
}

func TestStoreWith_SnapshotsIndependent(t *testing.T) {
	st1 := NewStore(map[string]Status{"a": Unresolved, "b": Unresolved})
	st2 := st1.with(map[string]Status{"a": Included})

	if st1.Status("a") != Unresolved {
		t.Error("old snapshot must not observe the new overlay")
	}
	if st2.Status("a") != Included {
		t.Error("new snapshot must observe the overlay")
	}
	if st2.Status("b") != Unresolved {
		t.Error("untouched codes must read through to the parent")
	}
	if st2.Len() != st1.Len() {
		t.Error("overlay must not change the snapshot size")
	}

	// An empty change set returns the receiver.
	if st3 := st2.with(nil); st3 != st2 {
		t.Error("expected empty overlay to return the same snapshot")
	}
}

func TestStoreFlatten(t *testing.T) {
	st := NewStore(map[string]Status{"a": Unresolved})
	for i := 0; i < maxChainDepth*2; i++ {
		next := Included
		if i%2 == 0 {
			next = Excluded
		}
		st = st.with(map[string]Status{"a": next})
	}

	if st.depth > maxChainDepth {
		t.Errorf("expected chain flattened at depth %d, got %d", maxChainDepth, st.depth)
	}
	if st.Status("a") != Included {
		t.Errorf("flattening must preserve the latest value, got %v", st.Status("a"))
	}
	if st.Len() != 1 {
		t.Errorf("expected 1 code after flattening, got %d", st.Len())
	}
}

func TestStoreAll(t *testing.T) {
	st := NewStore(map[string]Status{"a": Unresolved, "b": Unresolved})
	st = st.with(map[string]Status{"a": Included})
	st = st.with(map[string]Status{"b": Excluded, "a": Excluded})

	want := map[string]Status{"a": Excluded, "b": Excluded}
	if got := st.All(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if got := st.Codes(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("expected sorted codes [a b], got %v", got)
	}
	if got := st.CodesWithStatus(Excluded); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("expected [a b] excluded, got %v", got)
	}
}

func TestStoreEqual_IgnoresChainShape(t *testing.T) {
	flat := NewStore(map[string]Status{"a": Included, "b": Excluded})

	chained := NewStore(map[string]Status{"a": Unresolved, "b": Unresolved})
	chained = chained.with(map[string]Status{"a": Included})
	chained = chained.with(map[string]Status{"b": Excluded})

	if !flat.Equal(chained) || !chained.Equal(flat) {
		t.Error("snapshots with identical mappings must compare equal")
	}

	different := flat.with(map[string]Status{"a": Excluded})
	if flat.Equal(different) {
		t.Error("snapshots with different mappings must not compare equal")
	}
}

func TestExplicitSets(t *testing.T) {
	st := NewStore(map[string]Status{
		"a": Included,
		"b": Excluded,
		"c": InheritedIncluded,
		"d": Conflict,
		"e": Unresolved,
	})

	included, excluded := st.ExplicitSets()
	if !reflect.DeepEqual(included, map[string]bool{"a": true}) {
		t.Errorf("expected included {a}, got %v", included)
	}
	if !reflect.DeepEqual(excluded, map[string]bool{"b": true}) {
		t.Errorf("expected excluded {b}, got %v", excluded)
	}
}

func TestExportReady(t *testing.T) {
	tests := []struct {
		statuses map[string]Status
		want     bool
	}{
		{map[string]Status{"a": Included, "b": InheritedExcluded}, true},
		{map[string]Status{"a": Included, "b": Unresolved}, false},
		{map[string]Status{"a": Included, "b": Conflict}, false},
		{map[string]Status{}, true},
	}

	for i, tt := range tests {
		t.Run(fmt.Sprintf("case%d", i), func(t *testing.T) {
			if got := NewStore(tt.statuses).ExportReady(); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
