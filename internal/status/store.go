package status

import "sort"

// Compaction threshold: once an overlay chain grows this deep, the next
// snapshot is flattened into a single map so lookups stay cheap.
const maxChainDepth = 32

// Store is an immutable snapshot of every code's status. Each edit produces
// a new Store; old snapshots stay valid for any holder, such as an in-flight
// request describing an earlier state.
//
// A Store is a small overlay over its parent snapshot, so unchanged entries
// are shared rather than copied. Lookups walk the chain from newest to
// oldest; the chain is flattened once it exceeds a fixed depth.
type Store struct {
	parent  *Store
	overlay map[string]Status
	depth   int
	size    int // number of codes in the snapshot
}

// NewStore creates the initial snapshot from a full code-to-status mapping.
// Codes absent from the mapping are not part of the snapshot.
func NewStore(statuses map[string]Status) *Store {
	overlay := make(map[string]Status, len(statuses))
	for code, s := range statuses {
		overlay[code] = s
	}
	return &Store{overlay: overlay, size: len(overlay)}
}

// Get returns the status of a code. Codes outside the snapshot report
// Unresolved with ok=false.
func (st *Store) Get(code string) (Status, bool) {
	for s := st; s != nil; s = s.parent {
		if v, ok := s.overlay[code]; ok {
			return v, true
		}
	}
	return Unresolved, false
}

// Status returns the status of a code, defaulting to Unresolved for codes
// outside the snapshot.
func (st *Store) Status(code string) Status {
	s, _ := st.Get(code)
	return s
}

// Len returns the number of codes in the snapshot.
func (st *Store) Len() int {
	return st.size
}

// with returns a new snapshot layering the given changes over st. Codes in
// changes must already exist in the snapshot.
func (st *Store) with(changes map[string]Status) *Store {
	if len(changes) == 0 {
		return st
	}
	next := &Store{
		parent:  st,
		overlay: changes,
		depth:   st.depth + 1,
		size:    st.size,
	}
	if next.depth > maxChainDepth {
		return NewStore(next.All())
	}
	return next
}

// All materializes the full code-to-status mapping. The returned map is
// owned by the caller.
func (st *Store) All() map[string]Status {
	// Walk oldest to newest so later overlays win.
	var chain []*Store
	for s := st; s != nil; s = s.parent {
		chain = append(chain, s)
	}
	out := make(map[string]Status, st.size)
	for i := len(chain) - 1; i >= 0; i-- {
		for code, v := range chain[i].overlay {
			out[code] = v
		}
	}
	return out
}

// Codes returns all codes in the snapshot in sorted order.
func (st *Store) Codes() []string {
	all := st.All()
	codes := make([]string, 0, len(all))
	for code := range all {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// CodesWithStatus returns the sorted codes currently holding s.
func (st *Store) CodesWithStatus(s Status) []string {
	var codes []string
	for code, v := range st.All() {
		if v == s {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes
}

// ExplicitSets returns the sets of codes explicitly marked included and
// excluded. These are the inputs the ancestor explainer works from.
func (st *Store) ExplicitSets() (included, excluded map[string]bool) {
	included = make(map[string]bool)
	excluded = make(map[string]bool)
	for code, v := range st.All() {
		switch v {
		case Included:
			included[code] = true
		case Excluded:
			excluded[code] = true
		}
	}
	return included, excluded
}

// Equal reports whether two snapshots hold the same mapping, regardless of
// how their overlay chains are shaped.
func (st *Store) Equal(other *Store) bool {
	if st.size != other.size {
		return false
	}
	a := st.All()
	b := other.All()
	for code, v := range a {
		if b[code] != v {
			return false
		}
	}
	return true
}

// ExportReady reports whether the snapshot can back an export: no code may
// be Unresolved or Conflict.
func (st *Store) ExportReady() bool {
	for _, v := range st.All() {
		if v == Unresolved || v == Conflict {
			return false
		}
	}
	return true
}
