package registry

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

const demoYAML = `name: demo
codes:
  - code: a
    term: Root
  - code: b
    term: Child
edges:
  - parent: a
    child: b
`

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "codeset-test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	files := map[string]string{
		"demo.yaml":   demoYAML,
		"other.yml":   demoYAML,
		"ignored.txt": "not a hierarchy",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	return New(tmpDir)
}

func TestGet(t *testing.T) {
	r := newTestRegistry(t)

	h, err := r.Get("demo")
	if err != nil {
		t.Fatalf("failed to get hierarchy: %v", err)
	}
	if h.Len() != 2 {
		t.Errorf("expected 2 codes, got %d", h.Len())
	}

	// Second load returns the cached instance.
	again, err := r.Get("demo")
	if err != nil {
		t.Fatalf("failed to get hierarchy: %v", err)
	}
	if again != h {
		t.Error("expected cached hierarchy instance")
	}

	// .yml extension is probed too.
	if _, err := r.Get("other"); err != nil {
		t.Errorf("failed to get .yml hierarchy: %v", err)
	}

	if _, err := r.Get("missing"); err != ErrHierarchyNotFound {
		t.Errorf("expected ErrHierarchyNotFound, got %v", err)
	}
}

func TestList(t *testing.T) {
	r := newTestRegistry(t)

	names, err := r.List()
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	want := []string{"demo", "other"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("expected %v, got %v", want, names)
	}
}
