package session

import (
	"reflect"
	"sync"
	"testing"

	"codeset/internal/editsync"
	"codeset/internal/hierarchy"
	"codeset/internal/status"
)

// recordingSender accepts every batch and remembers the edits in order.
type recordingSender struct {
	mu    sync.Mutex
	edits []editsync.Edit
}

func (r *recordingSender) SendBatch(edits []editsync.Edit) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edits = append(r.edits, edits...)
	return len(edits), nil
}

func (r *recordingSender) sent() []editsync.Edit {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]editsync.Edit(nil), r.edits...)
}

func testHierarchy(t *testing.T) *hierarchy.Hierarchy {
	t.Helper()
	codes := map[string]string{
		"a": "Arthropathy",
		"b": "Elbow arthropathy",
		"c": "Knee arthropathy",
		"d": "Tennis elbow",
	}
	edges := []hierarchy.Edge{
		{Parent: "a", Child: "b"},
		{Parent: "a", Child: "c"},
		{Parent: "b", Child: "d"},
	}
	h, err := hierarchy.New(codes, edges)
	if err != nil {
		t.Fatalf("failed to build hierarchy: %v", err)
	}
	return h
}

func TestDerive(t *testing.T) {
	h := testHierarchy(t)

	store, err := Derive(h, map[string]status.Status{
		"b": status.Included,
		"c": status.Excluded,
	})
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}

	want := map[string]status.Status{
		"a": status.Unresolved,
		"b": status.Included,
		"c": status.Excluded,
		"d": status.InheritedIncluded,
	}
	if got := store.All(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestDerive_UnknownCode(t *testing.T) {
	h := testHierarchy(t)
	if _, err := Derive(h, map[string]status.Status{"ghost": status.Included}); err == nil {
		t.Error("expected error for unknown explicit code")
	}
}

func TestToggleQueuesEdit(t *testing.T) {
	h := testHierarchy(t)
	store, err := Derive(h, nil)
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}

	sender := &recordingSender{}
	sess := New(h, store, editsync.New(sender))
	defer sess.Close()

	if _, err := sess.Toggle("b", status.Included); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	sess.Sync().Wait()

	if got := sess.Store().Status("d"); got != status.InheritedIncluded {
		t.Errorf("expected d to inherit inclusion, got %s", got)
	}

	sent := sender.sent()
	if len(sent) != 1 || sent[0].Code != "b" || sent[0].Status != status.Included {
		t.Errorf("expected [b=+] sent, got %v", sent)
	}
}

func TestToggleErrorLeavesStateUntouched(t *testing.T) {
	h := testHierarchy(t)
	store, err := Derive(h, nil)
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}

	sender := &recordingSender{}
	sess := New(h, store, editsync.New(sender))
	defer sess.Close()

	before := sess.Store()
	if _, err := sess.Toggle("ghost", status.Included); err == nil {
		t.Fatal("expected error for unknown code")
	}
	sess.Sync().Wait()

	if sess.Store() != before {
		t.Error("failed toggle must not replace the snapshot")
	}
	if sent := sender.sent(); len(sent) != 0 {
		t.Errorf("failed toggle must not queue an edit, got %v", sent)
	}
}

func TestToggleAllOrder(t *testing.T) {
	h := testHierarchy(t)
	store, err := Derive(h, nil)
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}

	sender := &recordingSender{}
	sess := New(h, store, editsync.New(sender))
	defer sess.Close()

	if _, err := sess.ToggleAll([]string{"b", "c"}, status.Excluded); err != nil {
		t.Fatalf("toggle all failed: %v", err)
	}
	sess.Sync().Wait()

	sent := sender.sent()
	if len(sent) != 2 || sent[0].Code != "b" || sent[1].Code != "c" {
		t.Errorf("expected edits [b c] in order, got %v", sent)
	}
}

func TestFilterCodes(t *testing.T) {
	h := testHierarchy(t)
	store, err := Derive(h, map[string]status.Status{
		"b": status.Included,
		"c": status.Excluded,
	})
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	sess := New(h, store, nil)

	tests := []struct {
		filter Filter
		want   []string
	}{
		{FilterNone, []string{"a", "b", "c", "d"}},
		{FilterIncluded, []string{"b", "d"}},
		{FilterExcluded, []string{"c"}},
		{FilterUnresolved, []string{"a"}},
		{FilterInConflict, nil},
	}

	for _, tt := range tests {
		t.Run(string(tt.filter), func(t *testing.T) {
			if got := sess.FilterCodes(tt.filter); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestTreeRoots(t *testing.T) {
	h := testHierarchy(t)
	store, err := Derive(h, map[string]status.Status{"b": status.Included})
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	sess := New(h, store, nil)

	included := sess.FilterCodes(FilterIncluded)
	if got := sess.TreeRoots(included); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("expected roots [b], got %v", got)
	}
}

func TestExplain(t *testing.T) {
	h := testHierarchy(t)
	store, err := Derive(h, map[string]status.Status{"b": status.Included})
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	sess := New(h, store, nil)

	r := sess.Explain("d")
	if !reflect.DeepEqual(r.IncludedAncestors, []string{"b"}) {
		t.Errorf("expected d explained by [b], got %+v", r)
	}
}

func TestExportReady(t *testing.T) {
	h := testHierarchy(t)

	store, err := Derive(h, map[string]status.Status{"a": status.Included})
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	sess := New(h, store, nil)
	if !sess.ExportReady() {
		t.Error("fully resolved draft must be export ready")
	}

	store, err = Derive(h, map[string]status.Status{"b": status.Included})
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	sess = New(h, store, nil)
	if sess.ExportReady() {
		t.Error("draft with unresolved codes must not be export ready")
	}
}
