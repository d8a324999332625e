package output

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/ajranjith/fixzit-agent/internal/delta"
	"github.com/ajranjith/fixzit-agent/internal/model"
)

// maxListed caps the findings listed per scanner in the summary; the JSON
// artifacts always carry everything.
const maxListed = 100

// Markdown renders summary.md. res may be nil when no baseline was given.
func Markdown(agg *model.Aggregate, res *delta.Result) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# Fixzit stabilization report\n\n")
	fmt.Fprintf(&b, "- Run: `%s`\n- Generated: %s\n- Mode: %s\n- Root: `%s`\n", agg.RunID, agg.GeneratedAt, agg.Mode, agg.Root)
	fmt.Fprintf(&b, "- Findings: %d (failing %d)\n\n", agg.Totals.Findings, agg.Totals.Failing)

	b.WriteString("## Scanners\n\n")
	mdTable(&b, scannerHeader(), scannerRows(agg))
	if len(agg.Totals.FailedScanners) > 0 {
		fmt.Fprintf(&b, "\n**Failed sections:** %s\n", strings.Join(agg.Totals.FailedScanners, ", "))
	}

	fmt.Fprintf(&b, "\n## Git history (last %d days)\n\n", agg.Git.LookbackDays)
	switch {
	case !agg.Git.Available:
		b.WriteString("Git history unavailable: the root is not a git work tree.\n")
	case agg.Git.Error != "":
		fmt.Fprintf(&b, "Git history could not be read: %s\n", agg.Git.Error)
	default:
		fmt.Fprintf(&b, "%d commits by %d authors.\n\n", agg.Git.CommitCount, agg.Git.Authors)
		if len(agg.Git.TopFiles) > 0 {
			rows := make([][]string, 0, len(agg.Git.TopFiles))
			for _, f := range agg.Git.TopFiles {
				rows = append(rows, []string{"`" + f.Path + "`", strconv.Itoa(f.Changes)})
			}
			mdTable(&b, []string{"File", "Changes"}, rows)
		}
	}

	b.WriteString("\n## Canonical structure\n\n")
	structure, ran := agg.Scanners["structure"]
	switch {
	case !ran:
		b.WriteString("Structure checker not enabled.\n")
	case structure.Status == model.StatusFailed:
		fmt.Fprintf(&b, "Structure checker failed: %s\n", structure.Error)
	case len(agg.MovePlan) == 0:
		b.WriteString("Compliant: empty move plan.\n")
	default:
		rows := make([][]string, 0, len(agg.MovePlan))
		for _, m := range agg.MovePlan {
			rows = append(rows, []string{"`" + m.From + "`", "`" + m.To + "`"})
		}
		mdTable(&b, []string{"From", "To"}, rows)
	}

	if res != nil {
		writeDelta(&b, res)
	}

	for _, name := range agg.ScannerNames() {
		rep := agg.Scanners[name]
		fmt.Fprintf(&b, "\n## %s findings\n\n", name)
		if rep.Status == model.StatusFailed {
			fmt.Fprintf(&b, "Scanner failed: %s\n", rep.Error)
			continue
		}
		if rep.Status == model.StatusPartial {
			fmt.Fprintf(&b, "Partial result: %s\n\n", rep.Error)
		}
		if len(rep.Findings) == 0 {
			b.WriteString("None.\n")
			continue
		}
		listFindings(&b, rep.Findings)
	}
	return b.Bytes()
}

func writeDelta(b *bytes.Buffer, res *delta.Result) {
	fmt.Fprintf(b, "\n## Delta vs baseline\n\n")
	fmt.Fprintf(b, "- Baseline: `%s`\n- Regressions: %d\n- Improvements: %d\n- Unchanged: %d\n",
		res.Baseline, len(res.Regressions), len(res.Improvements), res.Unchanged)
	if len(res.Incomplete) > 0 {
		fmt.Fprintf(b, "- Incomplete sections: %s\n", strings.Join(res.Incomplete, ", "))
	}
	if len(res.Regressions) > 0 {
		b.WriteString("\n### New regressions\n\n")
		listFindings(b, res.Regressions)
	}
}

func listFindings(b *bytes.Buffer, findings []model.Finding) {
	rows := make([][]string, 0, min(len(findings), maxListed))
	for i, f := range findings {
		if i == maxListed {
			break
		}
		row := findingRow(f)
		row[0] = "`" + row[0] + "`"
		row[4] = strings.ReplaceAll(row[4], "|", "\\|")
		rows = append(rows, row)
	}
	mdTable(b, []string{"File", "Line", "Pattern", "Severity", "Message"}, rows)
	if len(findings) > maxListed {
		fmt.Fprintf(b, "\n…and %d more (see the JSON report).\n", len(findings)-maxListed)
	}
}

// mdTable renders a GitHub-flavoured Markdown table.
func mdTable(b *bytes.Buffer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(b)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	table.AppendBulk(rows)
	table.Render()
}
