package history

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWriteAndList(t *testing.T) {
	state := t.TempDir()
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	path, err := Write(state, []byte(`{}`), "abc1234", false, now)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if filepath.Base(path) != "20260304_050607_abc1234_FAIL.json" {
		t.Fatalf("unexpected name %s", filepath.Base(path))
	}
	if _, err := Write(state, []byte(`{}`), "", true, now.Add(time.Second)); err != nil {
		t.Fatalf("write: %v", err)
	}
	// Foreign files are ignored.
	if err := os.WriteFile(filepath.Join(Dir(state), "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	items, err := List(state)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(items))
	}
	if items[0].Pass || items[0].SHA != "abc1234" {
		t.Fatalf("unexpected first snapshot %+v", items[0])
	}
	if !items[1].Pass || items[1].SHA != "nogit" {
		t.Fatalf("unexpected second snapshot %+v", items[1])
	}
}

func TestListMissingDir(t *testing.T) {
	items, err := List(filepath.Join(t.TempDir(), "nope"))
	if err != nil || len(items) != 0 {
		t.Fatalf("expected empty list, got %v %v", items, err)
	}
}

func TestRotate(t *testing.T) {
	state := t.TempDir()
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	stamps := []time.Time{
		now.AddDate(0, 0, -30),
		now.AddDate(0, 0, -3),
		now.AddDate(0, 0, -2),
		now.AddDate(0, 0, -1),
		now,
	}
	for _, ts := range stamps {
		if _, err := Write(state, []byte(`{}`), "sha", true, ts); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	removed, err := Rotate(state, 14, 3, now)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removals, got %d", removed)
	}
	items, _ := List(state)
	if len(items) != 3 {
		t.Fatalf("expected 3 snapshots left, got %d", len(items))
	}
	if !items[0].Time.Equal(now.AddDate(0, 0, -2)) {
		t.Fatalf("expected oldest survivor two days old, got %s", items[0].Time)
	}
}

func TestFind(t *testing.T) {
	state := t.TempDir()
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	if _, err := Write(state, []byte(`{"n":1}`), "aaa", true, now.Add(-2*time.Hour)); err != nil {
		t.Fatal(err)
	}
	if _, err := Write(state, []byte(`{"n":2}`), "bbb", true, now.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}
	if _, err := Write(state, []byte(`{"n":3}`), "ccc", false, now); err != nil {
		t.Fatal(err)
	}

	green, err := Find(state, "")
	if err != nil {
		t.Fatalf("find latest green: %v", err)
	}
	if green.SHA != "bbb" {
		t.Fatalf("expected the newest passing snapshot, got %+v", green)
	}
	named, err := Find(state, "20260320_100000_aaa_PASS")
	if err != nil || named.SHA != "aaa" {
		t.Fatalf("expected named snapshot, got %+v (%v)", named, err)
	}
	data, err := os.ReadFile(Path(state, named))
	if err != nil || string(data) != `{"n":1}` {
		t.Fatalf("unexpected snapshot content %q (%v)", data, err)
	}
	if _, err := Find(state, "nope"); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}
}
