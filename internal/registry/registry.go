// Package registry caches loaded hierarchy definitions by name. Hierarchies
// are immutable once loaded, so entries never need invalidation.
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"codeset/internal/hierarchy"
)

var ErrHierarchyNotFound = errors.New("hierarchy not found")

// Registry loads hierarchy files from a directory on demand and keeps them
// in memory for the life of the process.
type Registry struct {
	dir string

	mu     sync.RWMutex
	loaded map[string]*hierarchy.Hierarchy
}

// New creates a registry over a directory of <name>.yaml hierarchy files.
func New(dir string) *Registry {
	return &Registry{
		dir:    dir,
		loaded: make(map[string]*hierarchy.Hierarchy),
	}
}

// Get returns the named hierarchy, loading it on first use.
func (r *Registry) Get(name string) (*hierarchy.Hierarchy, error) {
	r.mu.RLock()
	h, ok := r.loaded[name]
	r.mu.RUnlock()
	if ok {
		return h, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.loaded[name]; ok {
		return h, nil
	}

	path := ""
	for _, ext := range []string{".yaml", ".yml"} {
		candidate := filepath.Join(r.dir, name+ext)
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
			break
		}
	}
	if path == "" {
		return nil, ErrHierarchyNotFound
	}
	h, err := hierarchy.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading hierarchy %q: %w", name, err)
	}
	r.loaded[name] = h
	return h, nil
}

// List returns the names of all hierarchy files in the directory.
func (r *Registry) List() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("reading hierarchy dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext := filepath.Ext(e.Name()); ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name()[:len(e.Name())-len(ext)])
		}
	}
	return names, nil
}
