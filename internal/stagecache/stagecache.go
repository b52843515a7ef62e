// Package stagecache implements the file-presence idempotence contract the
// pipeline stages share: a stage's output file is both its artifact and its
// completion marker, so re-runs skip work by checking the filesystem, never a
// side database.
package stagecache

import (
	"fmt"
	"os"
	"path/filepath"

	"aulagrab/internal/fileutil"
)

// Stats counts per-item outcomes of one stage pass.
type Stats struct {
	Processed int
	Skipped   int
	Failed    int
}

// Cache binds a typed JSON artifact to a path on disk.
type Cache[T any] struct {
	path string
}

// New returns a cache over the given artifact path.
func New[T any](path string) Cache[T] {
	return Cache[T]{path: path}
}

// Path returns the artifact location.
func (c Cache[T]) Path() string { return c.path }

// Completed reports whether the artifact already exists and is non-empty.
// A zero-length file counts as absent: a crashed writer must not satisfy a
// later run's completion check.
func (c Cache[T]) Completed() bool {
	info, err := os.Stat(c.path)
	return err == nil && info.Size() > 0
}

// Load reads and decodes the artifact.
func (c Cache[T]) Load() (T, error) {
	var value T
	if err := fileutil.ReadJSON(c.path, &value); err != nil {
		return value, fmt.Errorf("load %s: %w", filepath.Base(c.path), err)
	}
	return value, nil
}

// Store encodes and writes the artifact atomically, creating parent
// directories as needed. The rename at the end is what flips Completed.
func (c Cache[T]) Store(value T) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("store %s: %w", filepath.Base(c.path), err)
	}
	if err := fileutil.WriteJSONAtomic(c.path, value); err != nil {
		return fmt.Errorf("store %s: %w", filepath.Base(c.path), err)
	}
	return nil
}

// DedupBy returns items with duplicates removed, keeping the first occurrence
// of each key and preserving order.
func DedupBy[T any, K comparable](items []T, key func(T) K) []T {
	seen := make(map[K]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		k := key(item)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, item)
	}
	return out
}
