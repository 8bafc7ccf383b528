package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/nao1215/redfishscan/internal/model"
)

// Store persists visited snapshots.
//
// Put is called once per claimed path with the base-relative path as key.
// Implementations must accept overwrites of the same key and must be safe
// for concurrent use when the engine runs with concurrency above 1.
type Store interface {
	Put(ctx context.Context, path string, snap *model.Snapshot) error
}

// StoreFunc adapts a function to the Store interface.
type StoreFunc func(ctx context.Context, path string, snap *model.Snapshot) error

// Put calls f.
func (f StoreFunc) Put(ctx context.Context, path string, snap *model.Snapshot) error {
	return f(ctx, path, snap)
}

// MemoryStore keeps snapshots in a map. It is the default store and the one
// collectors read back after a crawl.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]*model.Snapshot
	order     []string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string]*model.Snapshot),
	}
}

// Put stores snap under path, replacing any previous entry.
func (m *MemoryStore) Put(_ context.Context, path string, snap *model.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.snapshots[path]; !exists {
		m.order = append(m.order, path)
	}
	m.snapshots[path] = snap
	return nil
}

// Get returns the snapshot stored under path.
func (m *MemoryStore) Get(path string) (*model.Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.snapshots[path]
	return s, ok
}

// Len returns the number of stored snapshots.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.snapshots)
}

// Paths returns the stored paths in insertion order.
func (m *MemoryStore) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// MultiStore fans one Put out to several stores. Every store is tried; the
// errors are combined.
type MultiStore []Store

// Put stores snap in every member store.
func (ms MultiStore) Put(ctx context.Context, path string, snap *model.Snapshot) error {
	var merr *multierror.Error
	for _, s := range ms {
		if err := s.Put(ctx, path, snap); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	return merr.ErrorOrNil()
}

// DirStore writes each snapshot as an indented JSON file. The resource path
// becomes the directory, so "/redfish/v1/Systems/1" is written to
// "<root>/redfish/v1/Systems/1/index.json". Failed snapshots are written as
// "error.json" next to where the body would have been.
type DirStore struct {
	root string
}

// NewDirStore creates a DirStore rooted at dir, creating dir if needed.
func NewDirStore(dir string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &DirStore{root: dir}, nil
}

// Put writes snap below the store root.
func (d *DirStore) Put(_ context.Context, path string, snap *model.Snapshot) error {
	dir, err := d.dirFor(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	name := "index.json"
	var data []byte
	if snap.Failed() {
		name = "error.json"
		data, err = json.MarshalIndent(snap, "", "  ")
	} else {
		data, err = json.MarshalIndent(snap.Document, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	if err := os.WriteFile(filepath.Join(dir, name), data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// dirFor maps a resource path to a directory below the root, refusing paths
// that would escape it.
func (d *DirStore) dirFor(path string) (string, error) {
	p, query, hasQuery := strings.Cut(path, "?")
	p = strings.TrimPrefix(p, "/")
	p = strings.NewReplacer(":", "_", "\\", "_").Replace(p)
	dir := filepath.Join(d.root, filepath.FromSlash(p))
	if hasQuery && query != "" {
		dir = filepath.Join(dir, queryDirName(query))
	}

	rel, err := filepath.Rel(d.root, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("resource path %q escapes snapshot directory", path)
	}
	return dir, nil
}

// queryDirName turns a query string into one directory name, so that
// "Entries?$skip=50" is stored in "Entries/_skip=50". The name always
// starts with "_" and never contains a separator.
func queryDirName(query string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '=' || r == '-' || r == '.' || r == ',':
			return r
		default:
			return '_'
		}
	}, query)
	if !strings.HasPrefix(name, "_") {
		name = "_" + name
	}
	return name
}

// Files returns the JSON files under the store root, sorted.
func (d *DirStore) Files() ([]string, error) {
	var files []string
	err := filepath.WalkDir(d.root, func(p string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() && strings.HasSuffix(p, ".json") {
			files = append(files, p)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}
