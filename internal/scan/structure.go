package scan

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/ajranjith/fixzit-agent/internal/config"
	"github.com/ajranjith/fixzit-agent/internal/model"
	"github.com/ajranjith/fixzit-agent/internal/waiver"
)

const (
	PatternMisplaced    = "structure.misplaced"
	PatternUnmapped     = "structure.unmapped"
	PatternMoveConflict = "structure.move-conflict"
)

// Structure checks every file lives under a canonical bucket and proposes a
// MovePlan for the rest using the configured rule table.
type Structure struct{}

// StructureDetails distinguishes "ran and found nothing to move" (Ran and
// Compliant both true) from a checker that failed, whose section carries no
// details at all.
type StructureDetails struct {
	Ran       bool           `json:"ran"`
	Compliant bool           `json:"compliant"`
	Checked   int            `json:"checked"`
	Plan      model.MovePlan `json:"plan"`
}

func (Structure) Name() string { return "structure" }

func (s Structure) Scan(ctx context.Context, in Input) (*model.ScanReport, error) {
	cfg := in.Config.Structure
	col := newCollector(s.Name(), in.Waivers)
	details := &StructureDetails{Ran: true, Plan: model.MovePlan{}}

	claimed := map[string]string{}
	for _, f := range in.Tree.Files() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if in.Waivers.PathWaived(waiver.CategoryStructure, f) {
			continue
		}
		details.Checked++
		if InBucket(f, cfg.Buckets) || (cfg.AllowRootFiles && !strings.Contains(f, "/")) {
			continue
		}
		bucket, ok := MatchRule(f, cfg.Rules)
		if !ok {
			col.add(model.Finding{
				FilePath: f,
				Pattern:  PatternUnmapped,
				Severity: model.SeverityModerate,
				Message:  "file is outside every canonical bucket and no mapping rule matches it",
			})
			continue
		}
		dest := Destination(f, bucket)
		if prev, taken := claimed[dest]; taken || in.Tree.Has(dest) {
			reason := "already exists"
			if taken {
				reason = "is also the destination of " + prev
			}
			col.add(model.Finding{
				FilePath: f,
				Pattern:  PatternMoveConflict,
				Severity: model.SeverityModerate,
				Message:  fmt.Sprintf("proposed destination %s %s", dest, reason),
				Subject:  dest,
			})
			continue
		}
		claimed[dest] = f
		details.Plan = append(details.Plan, model.Move{From: f, To: dest})
		col.add(model.Finding{
			FilePath: f,
			Pattern:  PatternMisplaced,
			Severity: model.SeverityModerate,
			Message:  fmt.Sprintf("file belongs under %s; proposed move to %s", bucket, dest),
			Subject:  dest,
		})
	}
	details.Compliant = len(details.Plan) == 0 && len(col.findings) == 0
	return col.finish(details, nil), nil
}

// InBucket reports whether rel lives under one of the bucket prefixes.
func InBucket(rel string, buckets []string) bool {
	for _, b := range buckets {
		if strings.HasPrefix(rel, bucketPrefix(b)) {
			return true
		}
	}
	return false
}

// MatchRule returns the bucket of the first rule matching rel.
func MatchRule(rel string, rules []config.BucketRule) (string, bool) {
	for _, r := range rules {
		var hit bool
		switch r.Kind {
		case "suffix":
			hit = strings.HasSuffix(rel, r.Match)
		case "contains":
			hit = strings.Contains("/"+rel, r.Match)
		case "ext":
			hit = strings.EqualFold(path.Ext(rel), r.Match)
		case "prefix":
			hit = strings.HasPrefix(rel, r.Match)
		}
		if hit {
			return bucketPrefix(r.Bucket), true
		}
	}
	return "", false
}

// Destination drops the first path segment and re-roots the rest under
// bucket. A remainder already starting with the bucket name is not nested
// twice: src/lib/a.ts -> lib/a.ts, not lib/lib/a.ts.
func Destination(rel, bucket string) string {
	bucket = bucketPrefix(bucket)
	rest := rel
	if _, after, ok := strings.Cut(rel, "/"); ok {
		rest = after
	}
	rest = strings.TrimPrefix(rest, bucket)
	return bucket + rest
}

func bucketPrefix(b string) string {
	b = strings.Trim(b, "/")
	return b + "/"
}
