// Package gitlog wraps the git CLI: history mining for reports and the
// handful of porcelain commands apply mode needs.
package gitlog

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Repo runs git commands in Dir.
type Repo struct {
	Dir string
}

func (r Repo) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s: %s", args[0], msg)
	}
	return stdout.String(), nil
}

// Available reports whether git is installed and Dir is inside a work tree.
func (r Repo) Available(ctx context.Context) bool {
	if _, err := exec.LookPath("git"); err != nil {
		return false
	}
	out, err := r.run(ctx, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(out) == "true"
}

// ShortSHA returns the abbreviated HEAD commit, or "nogit".
func (r Repo) ShortSHA(ctx context.Context) string {
	out, err := r.run(ctx, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "nogit"
	}
	return strings.TrimSpace(out)
}

// Dirty returns porcelain status lines touching any of paths. With no paths
// the whole work tree is checked.
func (r Repo) Dirty(ctx context.Context, paths ...string) ([]string, error) {
	args := []string{"status", "--porcelain", "--untracked-files=no"}
	if len(paths) > 0 {
		args = append(append(args, "--"), paths...)
	}
	out, err := r.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, l := range strings.Split(out, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines, nil
}

// Tracked reports whether path is in the index.
func (r Repo) Tracked(ctx context.Context, path string) bool {
	_, err := r.run(ctx, "ls-files", "--error-unmatch", "--", path)
	return err == nil
}

func (r Repo) CreateBranch(ctx context.Context, name string) error {
	_, err := r.run(ctx, "checkout", "-b", name)
	return err
}

// Move runs git mv. Any failure is an error; nothing is skipped.
func (r Repo) Move(ctx context.Context, from, to string) error {
	_, err := r.run(ctx, "mv", "--", from, to)
	return err
}

// Staged returns the paths with changes in the index.
func (r Repo) Staged(ctx context.Context) ([]string, error) {
	out, err := r.run(ctx, "diff", "--cached", "--name-only")
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, l := range strings.Split(out, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			paths = append(paths, l)
		}
	}
	return paths, nil
}

func (r Repo) Add(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	_, err := r.run(ctx, append([]string{"add", "--"}, paths...)...)
	return err
}

// Commit records the index and returns the new HEAD sha.
func (r Repo) Commit(ctx context.Context, message string) (string, error) {
	if _, err := r.run(ctx, "commit", "--no-verify", "-m", message); err != nil {
		return "", err
	}
	out, err := r.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
