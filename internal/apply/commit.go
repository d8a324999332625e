package apply

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ajranjith/fixzit-agent/internal/gitlog"
	"github.com/ajranjith/fixzit-agent/internal/support"
)

// ErrNothingToApply is returned by Execute for an empty changeset.
var ErrNothingToApply = errors.New("move plan is empty; nothing to apply")

// Result describes a committed apply.
type Result struct {
	Branch    string `json:"branch"`
	Commit    string `json:"commit"`
	Moves     int    `json:"moves"`
	Rewritten int    `json:"rewritten"`
}

type Options struct {
	BranchPrefix  string
	CommitMessage string
	// Now is overridable in tests.
	Now func() time.Time
}

// Execute runs phase 2. The caller must hold the exclusive work-tree lock.
// ctx is honoured only until the first mutation; after that the sequence
// runs to the single commit or stops at the first error, leaving the tree
// for inspection. Nothing is ever pushed.
func Execute(ctx context.Context, root string, cs *Changeset, opts Options) (*Result, error) {
	if cs.Empty() {
		return nil, ErrNothingToApply
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	repo := gitlog.Repo{Dir: root}
	if !repo.Available(ctx) {
		return nil, fmt.Errorf("apply requires a git work tree at %s", root)
	}

	touched := cs.touchedPaths()
	dirty, err := repo.Dirty(ctx, touched...)
	if err != nil {
		return nil, err
	}
	var problems []string
	for _, d := range dirty {
		problems = append(problems, "uncommitted change: "+d)
	}
	staged, err := repo.Staged(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range staged {
		problems = append(problems, "staged change would join the reorg commit: "+p)
	}
	for _, m := range cs.Moves {
		if !repo.Tracked(ctx, m.From) {
			problems = append(problems, "source is not tracked by git: "+m.From)
		}
		if _, err := os.Lstat(filepath.Join(root, filepath.FromSlash(m.To))); err == nil {
			problems = append(problems, "destination already exists: "+m.To)
		}
	}
	if len(problems) > 0 {
		return nil, &ConflictError{Problems: problems}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	run := context.WithoutCancel(ctx)
	branch := opts.BranchPrefix + now().UTC().Format("20060102-150405")
	if err := repo.CreateBranch(run, branch); err != nil {
		return nil, err
	}
	for _, m := range cs.Moves {
		if err := os.MkdirAll(filepath.Dir(filepath.Join(root, filepath.FromSlash(m.To))), 0o755); err != nil {
			return nil, fmt.Errorf("move %s: %w", m.From, err)
		}
		if err := repo.Move(run, m.From, m.To); err != nil {
			return nil, fmt.Errorf("move %s -> %s: %w", m.From, m.To, err)
		}
		if err := checkMoved(root, m.From, m.To); err != nil {
			return nil, err
		}
	}
	rewritten := sortedPaths(cs.Rewrites)
	for _, rel := range rewritten {
		if err := support.WriteFileAtomic(filepath.Join(root, filepath.FromSlash(rel)), cs.Rewrites[rel]); err != nil {
			return nil, fmt.Errorf("rewrite %s: %w", rel, err)
		}
	}
	if err := repo.Add(run, rewritten...); err != nil {
		return nil, err
	}
	sha, err := repo.Commit(run, opts.CommitMessage)
	if err != nil {
		return nil, err
	}
	return &Result{Branch: branch, Commit: sha, Moves: len(cs.Moves), Rewritten: len(rewritten)}, nil
}

func checkMoved(root, from, to string) error {
	if _, err := os.Lstat(filepath.Join(root, filepath.FromSlash(from))); err == nil {
		return fmt.Errorf("move %s -> %s: source still present", from, to)
	}
	if _, err := os.Lstat(filepath.Join(root, filepath.FromSlash(to))); err != nil {
		return fmt.Errorf("move %s -> %s: destination missing: %w", from, to, err)
	}
	return nil
}

// touchedPaths are the current paths of everything phase 2 modifies.
func (c *Changeset) touchedPaths() []string {
	seen := map[string]bool{}
	for _, m := range c.Moves {
		seen[m.From] = true
	}
	for newRel := range c.Rewrites {
		if origin, ok := c.origins[newRel]; ok {
			seen[origin] = true
		} else {
			seen[newRel] = true
		}
	}
	return sortedPaths(seen)
}

func sortedPaths[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
