package hierarchy

import (
	"errors"
	"reflect"
	"testing"
)

// testCodes builds the shared fixture:
//
//	    a
//	   / \
//	  b   c
//	 / \ / \
//	d   e   f
//
// e has two parents (b and c).
func testCodes() (map[string]string, []Edge) {
	codes := map[string]string{
		"a": "Root concept",
		"b": "Left branch",
		"c": "Right branch",
		"d": "Left leaf",
		"e": "Shared leaf",
		"f": "Right leaf",
	}
	edges := []Edge{
		{"a", "b"}, {"a", "c"},
		{"b", "d"}, {"b", "e"},
		{"c", "e"}, {"c", "f"},
	}
	return codes, edges
}

func mustNew(t *testing.T) *Hierarchy {
	t.Helper()
	codes, edges := testCodes()
	h, err := New(codes, edges)
	if err != nil {
		t.Fatalf("failed to build hierarchy: %v", err)
	}
	return h
}

func TestNew_UnknownEdgeCode(t *testing.T) {
	codes := map[string]string{"a": "A"}
	_, err := New(codes, []Edge{{"a", "ghost"}})
	if err == nil {
		t.Fatal("expected error for edge referencing unknown code")
	}
	var malformed *MalformedError
	if !errors.As(err, &malformed) {
		t.Errorf("expected *MalformedError, got %T", err)
	}
}

func TestNew_Cycle(t *testing.T) {
	codes := map[string]string{"a": "A", "b": "B", "c": "C"}
	edges := []Edge{{"a", "b"}, {"b", "c"}, {"c", "a"}}
	_, err := New(codes, edges)
	if err == nil {
		t.Fatal("expected error for cyclic edges")
	}
	var malformed *MalformedError
	if !errors.As(err, &malformed) {
		t.Errorf("expected *MalformedError, got %T", err)
	}
}

func TestNew_DuplicateEdges(t *testing.T) {
	codes := map[string]string{"a": "A", "b": "B"}
	h, err := New(codes, []Edge{{"a", "b"}, {"a", "b"}})
	if err != nil {
		t.Fatalf("failed to build hierarchy: %v", err)
	}
	if got := h.Children("a"); len(got) != 1 {
		t.Errorf("expected duplicate edge collapsed, got children %v", got)
	}
}

func TestQueries(t *testing.T) {
	h := mustNew(t)

	if h.Len() != 6 {
		t.Errorf("expected 6 codes, got %d", h.Len())
	}
	if !h.Has("e") || h.Has("ghost") {
		t.Error("Has gave wrong membership")
	}
	if got := h.Roots(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("expected roots [a], got %v", got)
	}
	if got := h.Parents("e"); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("expected parents of e [b c], got %v", got)
	}
	if got := h.Children("b"); !reflect.DeepEqual(got, []string{"d", "e"}) {
		t.Errorf("expected children of b [d e], got %v", got)
	}
	if got := h.Term("a"); got != "Root concept" {
		t.Errorf("expected term of a, got %q", got)
	}
	if got := h.Term("ghost"); got != "[Unknown]" {
		t.Errorf("expected [Unknown] for missing code, got %q", got)
	}
}

func TestAncestorsDescendants(t *testing.T) {
	h := mustNew(t)

	wantAnc := map[string]bool{"a": true, "b": true, "c": true}
	if got := h.Ancestors("e"); !reflect.DeepEqual(got, wantAnc) {
		t.Errorf("expected ancestors of e %v, got %v", wantAnc, got)
	}

	wantDesc := map[string]bool{"d": true, "e": true}
	if got := h.Descendants("b"); !reflect.DeepEqual(got, wantDesc) {
		t.Errorf("expected descendants of b %v, got %v", wantDesc, got)
	}

	if len(h.Descendants("d")) != 0 {
		t.Error("expected leaf to have no descendants")
	}
	if !h.IsAncestor("a", "e") {
		t.Error("expected a to be an ancestor of e")
	}
	if h.IsAncestor("e", "a") {
		t.Error("did not expect e to be an ancestor of a")
	}
	if h.IsAncestor("a", "a") {
		t.Error("a code is not its own strict ancestor")
	}
}

func TestUltimateAncestors(t *testing.T) {
	h := mustNew(t)

	tests := []struct {
		name string
		set  map[string]bool
		want []string
	}{
		{
			name: "whole hierarchy reduces to root",
			set:  map[string]bool{"a": true, "b": true, "c": true, "d": true, "e": true, "f": true},
			want: []string{"a"},
		},
		{
			name: "sibling branches both kept",
			set:  map[string]bool{"b": true, "c": true, "e": true},
			want: []string{"b", "c"},
		},
		{
			name: "leaf only",
			set:  map[string]bool{"d": true},
			want: []string{"d"},
		},
		{
			name: "empty",
			set:  map[string]bool{},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := h.UltimateAncestors(tt.set)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestWalkDown_ParentsBeforeChildren(t *testing.T) {
	h := mustNew(t)

	var order []string
	h.WalkDown("a", func(code string) {
		order = append(order, code)
	})

	if len(order) != 6 {
		t.Fatalf("expected 6 codes visited, got %v", order)
	}
	pos := make(map[string]int, len(order))
	for i, code := range order {
		pos[code] = i
	}
	// e has two in-walk parents; it must come after both.
	for _, pair := range [][2]string{{"a", "b"}, {"a", "c"}, {"b", "d"}, {"b", "e"}, {"c", "e"}, {"c", "f"}} {
		if pos[pair[0]] > pos[pair[1]] {
			t.Errorf("expected %s before %s, got order %v", pair[0], pair[1], order)
		}
	}
}

func TestWalkDown_Subtree(t *testing.T) {
	h := mustNew(t)

	var order []string
	h.WalkDown("b", func(code string) {
		order = append(order, code)
	})

	// e's parent c is outside the walk, so e does not wait for it.
	want := []string{"b", "d", "e"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("expected walk %v, got %v", want, order)
	}
}
