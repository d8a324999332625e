package gitlog

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

// initRepo creates a repository with a deterministic identity.
func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	gitRun(t, dir, "init", "-q")
	gitRun(t, dir, "config", "user.name", "Dev One")
	gitRun(t, dir, "config", "user.email", "dev@example.com")
	gitRun(t, dir, "config", "commit.gpgsign", "false")
	return dir
}

func gitRun(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
}

func commitFile(t *testing.T, dir, rel, body, msg string) {
	t.Helper()
	p := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	gitRun(t, dir, "add", rel)
	gitRun(t, dir, "commit", "-q", "-m", msg)
}

func TestParseLog(t *testing.T) {
	out := commitMarker + "aaa|Dev One\nlib/a.ts\nlib/b.ts\n\n" +
		commitMarker + "bbb|Dev Two\nlib/a.ts\n\n" +
		commitMarker + "ccc|Dev One\n"
	st := parseLog(out)
	if st.commits != 3 || len(st.authors) != 2 {
		t.Fatalf("unexpected stats: %+v", st)
	}
	top := topFiles(st.churn, 1)
	if len(top) != 1 || top[0].Path != "lib/a.ts" || top[0].Changes != 2 {
		t.Fatalf("unexpected top files: %+v", top)
	}
}

func TestMineNotARepo(t *testing.T) {
	sum := Mine(context.Background(), t.TempDir(), 14, 5)
	if sum.Available {
		t.Fatal("expected a plain directory to be reported as unavailable")
	}
	if sum.TopFiles == nil || sum.LookbackDays != 14 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}

func TestMineRepo(t *testing.T) {
	requireGit(t)
	dir := initRepo(t)
	commitFile(t, dir, "lib/a.ts", "1", "first")
	commitFile(t, dir, "lib/a.ts", "2", "second")
	commitFile(t, dir, "app/page.tsx", "x", "third")

	sum := Mine(context.Background(), dir, 30, 10)
	if !sum.Available || sum.CommitCount != 3 || sum.Authors != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if len(sum.TopFiles) != 2 || sum.TopFiles[0].Path != "lib/a.ts" || sum.TopFiles[0].Changes != 2 {
		t.Fatalf("unexpected top files: %+v", sum.TopFiles)
	}
}

func TestRepoOps(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	dir := initRepo(t)
	commitFile(t, dir, "src/a.ts", "a", "init")
	repo := Repo{Dir: dir}

	if dirty, err := repo.Dirty(ctx); err != nil || len(dirty) != 0 {
		t.Fatalf("expected clean tree, got %v %v", dirty, err)
	}
	if err := repo.CreateBranch(ctx, "fixzit/reorg-test"); err != nil {
		t.Fatalf("branch: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "lib"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := repo.Move(ctx, "src/a.ts", "lib/a.ts"); err != nil {
		t.Fatalf("mv: %v", err)
	}
	sha, err := repo.Commit(ctx, "move")
	if err != nil || len(sha) < 7 {
		t.Fatalf("commit: %q %v", sha, err)
	}
	if !repo.Tracked(ctx, "lib/a.ts") || repo.Tracked(ctx, "src/a.ts") {
		t.Fatal("expected the file to be tracked at its new path only")
	}
	if repo.ShortSHA(ctx) == "nogit" {
		t.Fatal("expected a HEAD sha")
	}
}

func TestMoveOntoExistingFails(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	dir := initRepo(t)
	commitFile(t, dir, "src/a.ts", "a", "init")
	commitFile(t, dir, "lib/a.ts", "other", "taken")
	repo := Repo{Dir: dir}

	if err := repo.Move(ctx, "src/a.ts", "lib/a.ts"); err == nil {
		t.Fatal("expected git mv onto an existing file to fail")
	}
	if _, err := os.Stat(filepath.Join(dir, "src", "a.ts")); err != nil {
		t.Fatalf("source must stay in place: %v", err)
	}
}

func TestStaged(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	dir := initRepo(t)
	commitFile(t, dir, "src/a.ts", "a", "init")
	repo := Repo{Dir: dir}

	if staged, err := repo.Staged(ctx); err != nil || len(staged) != 0 {
		t.Fatalf("expected nothing staged, got %v %v", staged, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "src", "a.ts"), []byte("b"), 0o644); err != nil {
		t.Fatal(err)
	}
	gitRun(t, dir, "add", "src/a.ts")
	staged, err := repo.Staged(ctx)
	if err != nil || len(staged) != 1 || staged[0] != "src/a.ts" {
		t.Fatalf("expected src/a.ts staged, got %v %v", staged, err)
	}
}
