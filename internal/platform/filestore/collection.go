package filestore

import (
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
)

type writeFunc func(path string, data []byte, perm os.FileMode) error

// collection is a copy-on-write slice of records persisted as one JSON file.
type collection[T any] struct {
	path  string
	write writeFunc

	mu   sync.Mutex // serializes writers
	snap atomic.Pointer[[]T]
}

func openCollection[T any](path string, decode decodeFunc[T]) (*collection[T], error) {
	items, err := readCollection(path, decode)
	if err != nil {
		return nil, err
	}
	c := &collection[T]{path: path, write: writeFileAtomic}
	c.snap.Store(&items)
	return c, nil
}

// load returns the published snapshot. Callers must not modify it.
func (c *collection[T]) load() []T {
	return *c.snap.Load()
}

// commit persists next and then publishes it. Callers must hold c.mu and
// must not retain next.
func (c *collection[T]) commit(next []T) error {
	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return err
	}
	if err := c.write(c.path, data, 0o600); err != nil {
		return err
	}
	c.snap.Store(&next)
	return nil
}
