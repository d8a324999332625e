// Package history keeps a rotating set of past aggregates under the state dir.
package history

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ajranjith/fixzit-agent/internal/support"
)

const stampLayout = "20060102_150405"

// Dir returns <stateDir>/history.
func Dir(stateDir string) string {
	return filepath.Join(stateDir, "history")
}

// Snapshot is one history entry parsed from its file name.
type Snapshot struct {
	Name string
	Time time.Time
	SHA  string
	Pass bool
}

// Write stores data as <ts>_<sha>_<PASS|FAIL>.json and returns its path.
func Write(stateDir string, data []byte, sha string, pass bool, now time.Time) (string, error) {
	status := "FAIL"
	if pass {
		status = "PASS"
	}
	if sha == "" {
		sha = "nogit"
	}
	name := fmt.Sprintf("%s_%s_%s.json", now.UTC().Format(stampLayout), sha, status)
	path := filepath.Join(Dir(stateDir), name)
	if err := support.WriteFileAtomic(path, data); err != nil {
		return "", fmt.Errorf("write history snapshot: %w", err)
	}
	return path, nil
}

// List returns snapshots oldest first. Files that do not follow the naming
// scheme are ignored.
func List(stateDir string) ([]Snapshot, error) {
	entries, err := os.ReadDir(Dir(stateDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []Snapshot
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if s, ok := parseName(e.Name()); ok {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Time.Equal(out[j].Time) {
			return out[i].Time.Before(out[j].Time)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Rotate drops snapshots older than keepDays, then the oldest ones beyond
// maxSnapshots. Zero disables the respective limit. It returns the number of
// files removed.
func Rotate(stateDir string, keepDays, maxSnapshots int, now time.Time) (int, error) {
	items, err := List(stateDir)
	if err != nil {
		return 0, err
	}
	removed := 0
	kept := items[:0]
	cutoff := now.UTC().AddDate(0, 0, -keepDays)
	for _, it := range items {
		if keepDays > 0 && it.Time.Before(cutoff) {
			if err := os.Remove(filepath.Join(Dir(stateDir), it.Name)); err != nil && !os.IsNotExist(err) {
				return removed, err
			}
			removed++
			continue
		}
		kept = append(kept, it)
	}
	if maxSnapshots <= 0 || len(kept) <= maxSnapshots {
		return removed, nil
	}
	for _, it := range kept[:len(kept)-maxSnapshots] {
		if err := os.Remove(filepath.Join(Dir(stateDir), it.Name)); err != nil && !os.IsNotExist(err) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func parseName(name string) (Snapshot, bool) {
	if !strings.HasSuffix(name, ".json") || len(name) < len(stampLayout) {
		return Snapshot{}, false
	}
	t, err := time.Parse(stampLayout, name[:len(stampLayout)])
	if err != nil {
		return Snapshot{}, false
	}
	rest := strings.TrimSuffix(name[len(stampLayout):], ".json")
	rest = strings.TrimPrefix(rest, "_")
	idx := strings.LastIndex(rest, "_")
	if idx < 0 {
		return Snapshot{}, false
	}
	status := rest[idx+1:]
	if status != "PASS" && status != "FAIL" {
		return Snapshot{}, false
	}
	return Snapshot{Name: name, Time: t, SHA: rest[:idx], Pass: status == "PASS"}, true
}

// ErrNoSnapshot means no history entry matched.
var ErrNoSnapshot = errors.New("no matching history snapshot")

// Find returns the named snapshot, or the newest passing one when name is
// empty.
func Find(stateDir, name string) (Snapshot, error) {
	items, err := List(stateDir)
	if err != nil {
		return Snapshot{}, err
	}
	for i := len(items) - 1; i >= 0; i-- {
		it := items[i]
		if name == "" && it.Pass {
			return it, nil
		}
		if name != "" && (it.Name == name || strings.TrimSuffix(it.Name, ".json") == name) {
			return it, nil
		}
	}
	return Snapshot{}, ErrNoSnapshot
}

// Path returns the file of a snapshot.
func Path(stateDir string, s Snapshot) string {
	return filepath.Join(Dir(stateDir), s.Name)
}
