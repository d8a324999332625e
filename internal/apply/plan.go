// Package apply executes a canonical-structure MovePlan in two phases.
// Prepare validates the plan and computes every import rewrite in memory;
// Execute performs the moves and writes on a fresh branch and commits once.
package apply

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/ajranjith/fixzit-agent/internal/config"
	"github.com/ajranjith/fixzit-agent/internal/jsimport"
	"github.com/ajranjith/fixzit-agent/internal/model"
	"github.com/ajranjith/fixzit-agent/internal/tree"
	"github.com/ajranjith/fixzit-agent/internal/waiver"
)

// ConflictError means the plan cannot be applied to the current tree.
type ConflictError struct {
	Problems []string
}

func (e *ConflictError) Error() string {
	return "move plan conflicts: " + strings.Join(e.Problems, "; ")
}

// ImportEdit is one rewritten specifier. File is the importer's path after
// the moves.
type ImportEdit struct {
	File string `json:"file"`
	Line int    `json:"line"`
	From string `json:"from"`
	To   string `json:"to"`
}

// Changeset is the complete, validated result of phase 1.
type Changeset struct {
	Moves    model.MovePlan    `json:"moves"`
	Edits    []ImportEdit      `json:"edits"`
	Rewrites map[string][]byte `json:"-"`
	// origins maps a rewritten file's new path to its current path.
	origins map[string]string
}

func (c *Changeset) Empty() bool {
	return c == nil || (len(c.Moves) == 0 && len(c.Rewrites) == 0)
}

// Prepare validates plan against the snapshot and computes import rewrites
// for moved files and for every file importing one. Nothing is written.
func Prepare(ctx context.Context, snap *tree.Snapshot, plan model.MovePlan, waivers waiver.Set, scanCfg config.ScanConfig, applyCfg config.ApplyConfig) (*Changeset, error) {
	if err := validatePlan(snap, plan); err != nil {
		return nil, err
	}
	cs := &Changeset{
		Moves:    append(model.MovePlan{}, plan...),
		Edits:    []ImportEdit{},
		Rewrites: map[string][]byte{},
		origins:  map[string]string{},
	}
	if len(plan) == 0 {
		return cs, nil
	}
	moved := make(map[string]string, len(plan))
	for _, m := range plan {
		moved[m.From] = m.To
	}
	r := resolver{jsimport.Resolver{Files: snap, Exts: scanCfg.SourceExtensions, Aliases: jsimport.SortAliases(applyCfg.Aliases)}}

	files := snap.WithExt(scanCfg.SourceExtensions)
	results, failed, err := tree.Map(ctx, snap, files, func(rel string, data []byte) ([]byte, error) {
		newRel := rel
		if to, ok := moved[rel]; ok {
			newRel = to
		}
		src := string(data)
		var out strings.Builder
		last := 0
		changed := false
		for _, ref := range jsimport.Extract(src) {
			if waivers.ImportWaived(ref.Spec) {
				continue
			}
			spec, ok := r.rewrite(rel, newRel, ref.Spec, moved)
			if !ok || spec == ref.Spec {
				continue
			}
			out.WriteString(src[last:ref.Start])
			out.WriteString(spec)
			last = ref.End
			changed = true
		}
		if !changed {
			return nil, nil
		}
		out.WriteString(src[last:])
		return []byte(out.String()), nil
	})
	if err != nil {
		return nil, err
	}
	if len(failed) > 0 {
		problems := make([]string, 0, len(failed))
		for _, f := range failed {
			problems = append(problems, fmt.Sprintf("cannot read %s: %s", f.Path, f.Err))
		}
		return nil, &ConflictError{Problems: problems}
	}
	for _, res := range results {
		if res.Value == nil {
			continue
		}
		newRel := res.Path
		if to, ok := moved[res.Path]; ok {
			newRel = to
		}
		cs.Rewrites[newRel] = res.Value
		cs.origins[newRel] = res.Path
		cs.Edits = append(cs.Edits, diffImports(newRel, res.Value, snap, res.Path)...)
	}
	sort.Slice(cs.Edits, func(i, j int) bool {
		if cs.Edits[i].File != cs.Edits[j].File {
			return cs.Edits[i].File < cs.Edits[j].File
		}
		return cs.Edits[i].Line < cs.Edits[j].Line
	})
	return cs, nil
}

func validatePlan(snap *tree.Snapshot, plan model.MovePlan) error {
	var problems []string
	froms := map[string]bool{}
	tos := map[string]bool{}
	for i, m := range plan {
		for _, p := range []string{m.From, m.To} {
			if p == "" || path.IsAbs(p) || path.Clean(p) != p || p == ".." || strings.HasPrefix(p, "../") {
				problems = append(problems, fmt.Sprintf("move %d: invalid path %q", i, p))
			}
		}
		if !snap.Has(m.From) {
			problems = append(problems, fmt.Sprintf("source %s does not exist", m.From))
		}
		if snap.Has(m.To) {
			problems = append(problems, fmt.Sprintf("destination %s already exists", m.To))
		}
		if froms[m.From] {
			problems = append(problems, fmt.Sprintf("source %s is moved twice", m.From))
		}
		if tos[m.To] {
			problems = append(problems, fmt.Sprintf("destination %s is targeted twice", m.To))
		}
		froms[m.From] = true
		tos[m.To] = true
	}
	if len(problems) > 0 {
		return &ConflictError{Problems: problems}
	}
	return nil
}

// diffImports lists the specifiers that differ between the original and the
// rewritten content. Both have the same import layout, so refs pair up.
func diffImports(newRel string, rewritten []byte, snap *tree.Snapshot, oldRel string) []ImportEdit {
	orig, err := snap.Read(oldRel)
	if err != nil {
		return nil
	}
	before := jsimport.Extract(string(orig))
	after := jsimport.Extract(string(rewritten))
	var edits []ImportEdit
	for i := 0; i < len(before) && i < len(after); i++ {
		if before[i].Spec != after[i].Spec {
			edits = append(edits, ImportEdit{File: newRel, Line: after[i].Line, From: before[i].Spec, To: after[i].Spec})
		}
	}
	return edits
}

type resolver struct {
	jsimport.Resolver
}

// rewrite returns the specifier an importer at newRel needs so that spec
// keeps pointing at the same module after the moves. ok is false when spec
// does not resolve to a file in the tree.
func (r resolver) rewrite(oldRel, newRel, spec string, moved map[string]string) (string, bool) {
	base, viaAlias, ok := r.Base(oldRel, spec)
	if !ok {
		return "", false
	}
	target, suffix, ok := r.Resolve(base)
	if !ok {
		return "", false
	}
	newTarget := target
	if to, ok := moved[target]; ok {
		newTarget = to
	}
	if newTarget == target && newRel == oldRel {
		return spec, true
	}
	newBase := newTarget
	if suffix != "" && strings.HasSuffix(newTarget, suffix) {
		newBase = strings.TrimSuffix(newTarget, suffix)
	}
	if viaAlias != nil {
		if newTarget == target {
			return spec, true
		}
		if strings.HasPrefix(newBase, viaAlias.Root) {
			return viaAlias.Prefix + strings.TrimPrefix(newBase, viaAlias.Root), true
		}
	}
	return jsimport.RelativeSpec(path.Dir(newRel), newBase), true
}
