package scan

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/ajranjith/fixzit-agent/internal/model"
	"github.com/ajranjith/fixzit-agent/internal/support"
	"github.com/ajranjith/fixzit-agent/internal/tree"
	"github.com/ajranjith/fixzit-agent/internal/waiver"
)

const (
	PatternDuplicateContent = "duplicates.content"
	PatternDuplicateName    = "duplicates.name"
)

// Duplicates finds files with identical content and files sharing a base name.
type Duplicates struct{}

type HashGroup struct {
	Hash  string   `json:"hash"`
	Size  int64    `json:"size"`
	Files []string `json:"files"`
}

type NameGroup struct {
	Name  string   `json:"name"`
	Files []string `json:"files"`
}

// DuplicatesDetails always carries non-nil group lists; empty lists are the
// healthy result.
type DuplicatesDetails struct {
	FilesHashed int              `json:"filesHashed"`
	ByHash      []HashGroup      `json:"byHash"`
	ByName      []NameGroup      `json:"byName"`
	Failed      []tree.FileError `json:"failed,omitempty"`
}

func (Duplicates) Name() string { return "duplicates" }

func (s Duplicates) Scan(ctx context.Context, in Input) (*model.ScanReport, error) {
	var files, hashed []string
	for _, f := range in.Tree.Files() {
		if in.Waivers.PathWaived(waiver.CategoryDuplicates, f) {
			continue
		}
		files = append(files, f)
		// Empty files all share one hash.
		if in.Tree.Size(f) > 0 {
			hashed = append(hashed, f)
		}
	}

	results, failed, err := tree.Map(ctx, in.Tree, hashed, func(rel string, data []byte) (string, error) {
		return support.HashBytes(data), nil
	})
	if err != nil {
		return nil, err
	}

	byHash := map[string][]string{}
	for _, r := range results {
		byHash[r.Value] = append(byHash[r.Value], r.Path)
	}
	ignore := map[string]bool{}
	for _, n := range in.Config.Duplicates.IgnoreNames {
		ignore[n] = true
	}
	byName := map[string][]string{}
	for _, f := range files {
		base := path.Base(f)
		if ignore[base] {
			continue
		}
		byName[base] = append(byName[base], f)
	}

	col := newCollector(s.Name(), in.Waivers)
	details := &DuplicatesDetails{
		FilesHashed: len(results),
		ByHash:      []HashGroup{},
		ByName:      []NameGroup{},
		Failed:      failed,
	}
	for _, h := range sortedKeys(byHash) {
		group := byHash[h]
		if len(group) < 2 {
			continue
		}
		details.ByHash = append(details.ByHash, HashGroup{Hash: h, Size: in.Tree.Size(group[0]), Files: group})
		for _, f := range group {
			col.add(model.Finding{
				FilePath: f,
				Pattern:  PatternDuplicateContent,
				Severity: model.SeverityModerate,
				Message:  fmt.Sprintf("identical content to %s", strings.Join(others(group, f), ", ")),
				Subject:  h,
			})
		}
	}
	for _, name := range sortedKeys(byName) {
		group := byName[name]
		if len(group) < 2 {
			continue
		}
		details.ByName = append(details.ByName, NameGroup{Name: name, Files: group})
		for _, f := range group {
			col.add(model.Finding{
				FilePath: f,
				Pattern:  PatternDuplicateName,
				Severity: model.SeverityMinor,
				Message:  fmt.Sprintf("file name %q also used by %s", name, strings.Join(others(group, f), ", ")),
				Subject:  name,
			})
		}
	}
	sort.Slice(details.ByHash, func(i, j int) bool { return details.ByHash[i].Files[0] < details.ByHash[j].Files[0] })
	return col.finish(details, failed), nil
}

func others(group []string, self string) []string {
	out := make([]string, 0, len(group)-1)
	for _, g := range group {
		if g != self {
			out = append(out, g)
		}
	}
	return out
}
