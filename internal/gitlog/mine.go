package gitlog

import (
	"bufio"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ajranjith/fixzit-agent/internal/model"
)

// commitMarker prefixes commit header lines in the log output so they
// cannot be confused with file names.
const commitMarker = "\x1ecommit:"

// Mine summarises the last days of history. A directory that is not a git
// work tree yields Available=false and no error.
func Mine(ctx context.Context, root string, days, top int) model.GitSummary {
	sum := model.GitSummary{LookbackDays: days, TopFiles: []model.FileChurn{}}
	repo := Repo{Dir: root}
	if !repo.Available(ctx) {
		return sum
	}
	sum.Available = true
	out, err := repo.run(ctx, "log",
		fmt.Sprintf("--since=%d.days.ago", days),
		"--name-only",
		"--no-renames",
		"--pretty=format:"+commitMarker+"%H|%an",
	)
	if err != nil {
		// an empty repository has no HEAD to log from
		sum.Error = err.Error()
		return sum
	}
	parsed := parseLog(out)
	sum.CommitCount = parsed.commits
	sum.Authors = len(parsed.authors)
	sum.TopFiles = topFiles(parsed.churn, top)
	return sum
}

type logStats struct {
	commits int
	authors map[string]struct{}
	churn   map[string]int
}

// parseLog reads `git log --name-only` output produced with commitMarker.
func parseLog(out string) logStats {
	st := logStats{authors: map[string]struct{}{}, churn: map[string]int{}}
	sc := bufio.NewScanner(strings.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(line, commitMarker); ok {
			st.commits++
			if _, author, ok := strings.Cut(rest, "|"); ok {
				st.authors[author] = struct{}{}
			}
			continue
		}
		st.churn[line]++
	}
	return st
}

func topFiles(churn map[string]int, top int) []model.FileChurn {
	out := make([]model.FileChurn, 0, len(churn))
	for p, n := range churn {
		out = append(out, model.FileChurn{Path: p, Changes: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Changes != out[j].Changes {
			return out[i].Changes > out[j].Changes
		}
		return out[i].Path < out[j].Path
	})
	if top > 0 && len(out) > top {
		out = out[:top]
	}
	return out
}
