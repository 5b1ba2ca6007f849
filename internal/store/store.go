// internal/store/store.go
//
// The persistent object store. Every entity kind lives in its own JSON
// file under the data directory; each file holds the whole collection and
// is rewritten on every mutating call. There is no partial update and no
// transaction spanning kinds, so callers that touch several kinds must
// order their writes deliberately (see the order engine).

package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// ErrNotFound is returned when no entity carries the requested id.
var ErrNotFound = errors.New("store: not found")

// ErrNoMatch is returned when a predicate-driven mutation touched nothing.
// Callers must treat it as a visible failure, not silently ignore it.
var ErrNoMatch = errors.New("store: no match")

// Entity is anything the store can persist. Identity is by id alone.
type Entity interface {
	EntityID() string
}

// Store roots every collection at a single data directory.
type Store struct {
	dir string
}

// Open ensures the data directory exists and returns a store rooted there.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("store: data directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: ensure data dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir reports the data directory the store is rooted at.
func (s *Store) Dir() string {
	return s.dir
}

// Collection persists one entity kind as a whole-list JSON file.
//
// Reads return entities in insertion order. The mutex serializes the
// load-mutate-save round trip; the CLI is single-threaded, but a
// long-lived host embedding the engines must not interleave writers.
type Collection[T Entity] struct {
	store *Store
	kind  string
	mu    sync.Mutex
}

// NewCollection binds a kind name to a file in the store's directory.
func NewCollection[T Entity](st *Store, kind string) *Collection[T] {
	return &Collection[T]{store: st, kind: kind}
}

// Kind reports the collection's kind name.
func (c *Collection[T]) Kind() string {
	return c.kind
}

func (c *Collection[T]) path() string {
	return filepath.Join(c.store.dir, c.kind+".json")
}

// load reads the whole collection. A missing file is an empty collection,
// not an error.
func (c *Collection[T]) load() ([]T, error) {
	data, err := os.ReadFile(c.path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: read %s: %w", c.kind, err)
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", c.kind, err)
	}
	return items, nil
}

func (c *Collection[T]) save(items []T) error {
	if items == nil {
		items = []T{}
	}
	encoded, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", c.kind, err)
	}
	if err := os.WriteFile(c.path(), append(encoded, '\n'), 0o644); err != nil {
		return fmt.Errorf("store: write %s: %w", c.kind, err)
	}
	return nil
}

// All returns every entity in insertion order.
func (c *Collection[T]) All() ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load()
}

// GetByID returns the entity with the given id or ErrNotFound.
func (c *Collection[T]) GetByID(id string) (T, error) {
	var zero T
	c.mu.Lock()
	defer c.mu.Unlock()
	items, err := c.load()
	if err != nil {
		return zero, err
	}
	for _, item := range items {
		if item.EntityID() == id {
			return item, nil
		}
	}
	return zero, fmt.Errorf("store: %s %q: %w", c.kind, id, ErrNotFound)
}

// Where returns every entity matching the predicate, in insertion order.
func (c *Collection[T]) Where(pred func(T) bool) ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	items, err := c.load()
	if err != nil {
		return nil, err
	}
	var matched []T
	for _, item := range items {
		if pred(item) {
			matched = append(matched, item)
		}
	}
	return matched, nil
}

// Add appends one entity and persists the collection. It fails only on an
// underlying I/O fault.
func (c *Collection[T]) Add(item T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	items, err := c.load()
	if err != nil {
		return err
	}
	return c.save(append(items, item))
}

// UpdateWhere applies the mutation in place to every matching entity and
// persists the whole collection. Zero matches is ErrNoMatch and nothing is
// written.
func (c *Collection[T]) UpdateWhere(pred func(T) bool, mutate func(*T)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	items, err := c.load()
	if err != nil {
		return err
	}
	matched := 0
	for i := range items {
		if pred(items[i]) {
			mutate(&items[i])
			matched++
		}
	}
	if matched == 0 {
		return fmt.Errorf("store: update %s: %w", c.kind, ErrNoMatch)
	}
	return c.save(items)
}

// UpdateByID applies the mutation to the entity with the given id.
func (c *Collection[T]) UpdateByID(id string, mutate func(*T)) error {
	err := c.UpdateWhere(func(item T) bool { return item.EntityID() == id }, mutate)
	if errors.Is(err, ErrNoMatch) {
		return fmt.Errorf("store: %s %q: %w", c.kind, id, ErrNotFound)
	}
	return err
}

// RemoveWhere drops every matching entity and persists the difference.
// Zero matches is ErrNoMatch and nothing is written.
func (c *Collection[T]) RemoveWhere(pred func(T) bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	items, err := c.load()
	if err != nil {
		return err
	}
	kept := items[:0:0]
	for _, item := range items {
		if !pred(item) {
			kept = append(kept, item)
		}
	}
	if len(kept) == len(items) {
		return fmt.Errorf("store: remove %s: %w", c.kind, ErrNoMatch)
	}
	return c.save(kept)
}
