// Package session ties a hierarchy, a status snapshot sequence, and an edit
// synchronizer into one editing session for a draft codelist.
package session

import (
	"sort"
	"sync"

	"codeset/internal/editsync"
	"codeset/internal/explain"
	"codeset/internal/hierarchy"
	"codeset/internal/status"
)

// Filter selects a subset of a draft's codes by status for display.
type Filter string

const (
	FilterNone       Filter = ""
	FilterIncluded   Filter = "included"
	FilterExcluded   Filter = "excluded"
	FilterUnresolved Filter = "unresolved"
	FilterInConflict Filter = "in-conflict"
)

// Session is the client-resident editing state for one draft. All status
// computation is synchronous; only the embedded synchronizer talks to the
// network. The current snapshot is replaced, never mutated, so renderers
// holding an old snapshot stay consistent.
type Session struct {
	hier *hierarchy.Hierarchy
	sync *editsync.Synchronizer

	mu    sync.Mutex
	store *status.Store
}

// New creates a session over a hierarchy and an initial snapshot. The
// snapshot normally comes from the server's persisted explicit marks via
// Derive. sync may be nil for offline use.
func New(h *hierarchy.Hierarchy, initial *status.Store, syncer *editsync.Synchronizer) *Session {
	return &Session{hier: h, store: initial, sync: syncer}
}

// Derive builds the initial snapshot for a hierarchy from persisted
// explicit marks: every explicitly marked code keeps its mark and every
// other code gets the status inherited from those marks.
func Derive(h *hierarchy.Hierarchy, explicit map[string]status.Status) (*status.Store, error) {
	statuses := make(map[string]status.Status, h.Len())
	for _, code := range h.Codes() {
		statuses[code] = status.Unresolved
	}
	store := status.NewStore(statuses)

	// Apply marks in a deterministic order; each application recomputes the
	// affected subtree.
	codes := make([]string, 0, len(explicit))
	for code := range explicit {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		next, err := status.Update(h, store, code, explicit[code])
		if err != nil {
			return nil, err
		}
		store = next
	}
	return store, nil
}

// Store returns the current snapshot.
func (s *Session) Store() *status.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store
}

// Hierarchy returns the session's hierarchy.
func (s *Session) Hierarchy() *hierarchy.Hierarchy {
	return s.hier
}

// Sync returns the session's edit synchronizer, nil for offline sessions.
func (s *Session) Sync() *editsync.Synchronizer {
	return s.sync
}

// Toggle applies one explicit decision locally and queues it for
// synchronization. The new snapshot is returned; on error the session's
// snapshot is unchanged and nothing is queued.
func (s *Session) Toggle(code string, explicit status.Status) (*status.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := status.Update(s.hier, s.store, code, explicit)
	if err != nil {
		return nil, err
	}
	s.store = next

	if s.sync != nil {
		s.sync.Enqueue(editsync.Edit{Code: code, Status: explicit})
	}
	return next, nil
}

// ToggleAll applies the same explicit decision to several codes in order,
// e.g. the result of a pattern match. It stops at the first error.
func (s *Session) ToggleAll(codes []string, explicit status.Status) (*status.Store, error) {
	var store *status.Store
	for _, code := range codes {
		next, err := s.Toggle(code, explicit)
		if err != nil {
			return nil, err
		}
		store = next
	}
	if store == nil {
		store = s.Store()
	}
	return store, nil
}

// Explain returns the significant marked ancestors justifying a code's
// current derived status.
func (s *Session) Explain(code string) explain.Result {
	included, excluded := s.Store().ExplicitSets()
	return explain.SignificantAncestors(s.hier, code, included, excluded)
}

// FilterCodes selects codes from the current snapshot by display filter.
// Included/excluded match both explicit and inherited polarity.
func (s *Session) FilterCodes(f Filter) []string {
	all := s.Store().All()
	var out []string
	for code, v := range all {
		switch f {
		case FilterNone:
			out = append(out, code)
		case FilterIncluded:
			if v.IsIncluded() {
				out = append(out, code)
			}
		case FilterExcluded:
			if v.IsExcluded() {
				out = append(out, code)
			}
		case FilterUnresolved:
			if v == status.Unresolved {
				out = append(out, code)
			}
		case FilterInConflict:
			if v == status.Conflict {
				out = append(out, code)
			}
		}
	}
	sort.Strings(out)
	return out
}

// TreeRoots reduces a displayed code set to its ultimate ancestors, the
// roots the rendering layer builds its tree tables from.
func (s *Session) TreeRoots(displayed []string) []string {
	set := make(map[string]bool, len(displayed))
	for _, c := range displayed {
		set[c] = true
	}
	return s.hier.UltimateAncestors(set)
}

// ExportReady reports whether the draft can currently be exported: no code
// may be Unresolved or in Conflict.
func (s *Session) ExportReady() bool {
	return s.Store().ExportReady()
}

// Close tears the session down. A synchronizer response arriving after
// Close is a no-op.
func (s *Session) Close() {
	if s.sync != nil {
		s.sync.Close()
	}
}
