package tree

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, body := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
	return root
}

func TestBuildExcludesAndSorts(t *testing.T) {
	root := writeTree(t, map[string]string{
		"lib/b.ts":                "b",
		"lib/a.ts":                "a",
		"node_modules/x/index.js": "x",
		".fixzit/reports/a.json":  "{}",
		"app/page.tsx":            "p",
	})
	snap, err := Build(context.Background(), root, Options{ExcludeDirs: []string{"node_modules", ".fixzit/reports"}})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	got := strings.Join(snap.Files(), ",")
	if got != "app/page.tsx,lib/a.ts,lib/b.ts" {
		t.Fatalf("unexpected files: %s", got)
	}
	if !snap.Has("lib/a.ts") || snap.Has("node_modules/x/index.js") {
		t.Fatal("unexpected Has result")
	}
	if exts := snap.WithExt([]string{".tsx"}); len(exts) != 1 || exts[0] != "app/page.tsx" {
		t.Fatalf("unexpected WithExt: %v", exts)
	}
}

func TestReadHonoursSizeCap(t *testing.T) {
	root := writeTree(t, map[string]string{"big.txt": strings.Repeat("x", 64), "small.txt": "x"})
	snap, err := Build(context.Background(), root, Options{MaxFileBytes: 16})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := snap.Read("big.txt"); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if _, err := snap.Read("small.txt"); err != nil {
		t.Fatalf("read small: %v", err)
	}
}

func TestMapKeepsOrderAndCollectsErrors(t *testing.T) {
	root := writeTree(t, map[string]string{"a": "1", "b": "22", "c": "333", "d": "4444"})
	snap, err := Build(context.Background(), root, Options{Workers: 3})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := os.Remove(filepath.Join(root, "c")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	res, failed, err := Map(context.Background(), snap, snap.Files(), func(rel string, data []byte) (int, error) {
		return len(data), nil
	})
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if len(failed) != 1 || failed[0].Path != "c" {
		t.Fatalf("expected c to fail, got %+v", failed)
	}
	var paths []string
	for _, r := range res {
		paths = append(paths, r.Path)
	}
	if strings.Join(paths, ",") != "a,b,d" || res[2].Value != 4 {
		t.Fatalf("unexpected results: %+v", res)
	}
}

func TestMapCancelled(t *testing.T) {
	root := writeTree(t, map[string]string{"a": "1"})
	snap, err := Build(context.Background(), root, Options{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := Map(ctx, snap, snap.Files(), func(string, []byte) (int, error) { return 0, nil }); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestIsBinary(t *testing.T) {
	if !IsBinary([]byte{'a', 0, 'b'}) || IsBinary([]byte("plain")) {
		t.Fatal("unexpected IsBinary result")
	}
}

func TestMapSharesWorkerCap(t *testing.T) {
	files := map[string]string{}
	for i := 0; i < 12; i++ {
		files[fmt.Sprintf("f%02d", i)] = "x"
	}
	snap, err := Build(context.Background(), writeTree(t, files), Options{Workers: 2})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	var inFlight, peak int32
	work := func(rel string, data []byte) (bool, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return true, nil
	}
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := Map(context.Background(), snap, snap.Files(), work); err != nil {
				t.Errorf("map: %v", err)
			}
		}()
	}
	wg.Wait()
	if peak > 2 {
		t.Fatalf("expected at most 2 files in flight across all calls, saw %d", peak)
	}
}
