// Package watch re-runs a callback when files under a root change.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ajranjith/fixzit-agent/internal/logging"
)

const DefaultDebounce = 300 * time.Millisecond

type Options struct {
	Root string
	// ExcludeDirs are base names or slash-separated relative paths that are
	// neither watched nor able to trigger a run.
	ExcludeDirs []string
	Debounce    time.Duration
	// Skip is consulted when the debounce fires; a true result drops the
	// run (e.g. while an apply holds the tree).
	Skip    func() bool
	Trigger func(ctx context.Context)
	Log     *slog.Logger
}

// Run blocks until ctx is done. Bursts of events collapse into one Trigger
// call after Debounce of quiet. Triggers never overlap.
func Run(ctx context.Context, opts Options) error {
	log := logging.OrDiscard(opts.Log)
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return err
	}
	ex := newExcluder(root, opts.ExcludeDirs)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := addRecursive(w, root, ex); err != nil {
		return err
	}
	log.Info("watching", "root", root, "debounce", opts.Debounce)

	timer := time.NewTimer(opts.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ex.excluded(ev.Name) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := addRecursive(w, ev.Name, ex); err != nil {
						log.Warn("cannot watch new directory", "path", ev.Name, "error", err)
					}
				}
			}
			log.Debug("change", "path", ev.Name, "op", ev.Op.String())
			timer.Reset(opts.Debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Error("watch error", "error", err)
		case <-timer.C:
			if opts.Skip != nil && opts.Skip() {
				log.Info("skipping run: work tree is locked")
				continue
			}
			opts.Trigger(ctx)
		}
	}
}

func addRecursive(w *fsnotify.Watcher, dir string, ex excluder) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != ex.root && ex.excluded(p) {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}

type excluder struct {
	root   string
	byName map[string]bool
	byPath []string
}

func newExcluder(root string, dirs []string) excluder {
	ex := excluder{root: root, byName: map[string]bool{}}
	for _, d := range dirs {
		d = strings.Trim(filepath.ToSlash(d), "/")
		switch {
		case d == "":
		case strings.Contains(d, "/"):
			ex.byPath = append(ex.byPath, d)
		default:
			ex.byName[d] = true
		}
	}
	return ex
}

// excluded reports whether p lies in an excluded directory.
func (ex excluder) excluded(p string) bool {
	rel, err := filepath.Rel(ex.root, p)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || strings.HasPrefix(rel, "../") {
		return false
	}
	for _, prefix := range ex.byPath {
		if rel == prefix || strings.HasPrefix(rel, prefix+"/") {
			return true
		}
	}
	for _, seg := range strings.Split(rel, "/") {
		if ex.byName[seg] {
			return true
		}
	}
	return false
}
