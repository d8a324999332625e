// Package tree takes a read-only snapshot of a workspace and reads files from
// it with a bounded worker pool.
package tree

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// ErrTooLarge is returned by Read for files above the snapshot's size cap.
var ErrTooLarge = errors.New("file exceeds size limit")

type Options struct {
	// ExcludeDirs are directory base names (".git", "node_modules") or
	// slash-separated relative directory paths skipped entirely.
	ExcludeDirs  []string
	MaxFileBytes int64
	Workers      int
}

// Snapshot is the list of regular files under Root at one point in time.
type Snapshot struct {
	Root    string
	files   []string
	sizes   map[string]int64
	maxSize int64
	workers int
	// slots caps concurrent reads across every Map call on the snapshot.
	slots chan struct{}
}

// Build walks root. Symlinks are not followed. Paths are slash-separated and
// relative to root.
func Build(ctx context.Context, root string, opts Options) (*Snapshot, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}
	byName := map[string]bool{}
	byPath := map[string]bool{}
	for _, d := range opts.ExcludeDirs {
		d = strings.Trim(filepath.ToSlash(d), "/")
		if d == "" {
			continue
		}
		if strings.Contains(d, "/") {
			byPath[d] = true
		} else {
			byName[d] = true
		}
	}

	s := &Snapshot{
		Root:    abs,
		sizes:   map[string]int64{},
		maxSize: opts.MaxFileBytes,
		workers: opts.Workers,
	}
	if s.workers <= 0 {
		s.workers = DefaultWorkers()
	}
	s.slots = make(chan struct{}, s.workers)
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == abs {
				return err
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		rel, relErr := filepath.Rel(abs, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel != "." && (byName[d.Name()] || byPath[rel]) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		s.files = append(s.files, rel)
		s.sizes[rel] = fi.Size()
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(s.files)
	return s, nil
}

// FromFiles builds an in-memory listing for tests and callers that already
// know the file set. Reads still go to disk under root.
func FromFiles(root string, files map[string]int64) *Snapshot {
	s := &Snapshot{Root: root, sizes: map[string]int64{}, workers: 2, slots: make(chan struct{}, 2)}
	for f, size := range files {
		s.files = append(s.files, f)
		s.sizes[f] = size
	}
	sort.Strings(s.files)
	return s
}

// Files returns every path in the snapshot, sorted.
func (s *Snapshot) Files() []string {
	return append([]string(nil), s.files...)
}

func (s *Snapshot) Len() int { return len(s.files) }

func (s *Snapshot) Has(rel string) bool {
	_, ok := s.sizes[rel]
	return ok
}

// Size returns the size recorded at snapshot time, or -1.
func (s *Snapshot) Size(rel string) int64 {
	if n, ok := s.sizes[rel]; ok {
		return n
	}
	return -1
}

// WithExt returns the files whose extension is in exts.
func (s *Snapshot) WithExt(exts []string) []string {
	want := map[string]bool{}
	for _, e := range exts {
		want[strings.ToLower(e)] = true
	}
	var out []string
	for _, f := range s.files {
		if want[strings.ToLower(path.Ext(f))] {
			out = append(out, f)
		}
	}
	return out
}

// Abs joins rel onto the snapshot root.
func (s *Snapshot) Abs(rel string) string {
	return filepath.Join(s.Root, filepath.FromSlash(rel))
}

// Read returns the content of rel, honouring the size cap.
func (s *Snapshot) Read(rel string) ([]byte, error) {
	if s.maxSize > 0 && s.sizes[rel] > s.maxSize {
		return nil, fmt.Errorf("%s: %w", rel, ErrTooLarge)
	}
	return os.ReadFile(s.Abs(rel))
}

// IsBinary reports whether data looks like a binary file (NUL in the first 8000 bytes).
func IsBinary(data []byte) bool {
	if len(data) > 8000 {
		data = data[:8000]
	}
	return bytes.IndexByte(data, 0) >= 0
}
