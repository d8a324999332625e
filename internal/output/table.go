// Package output renders aggregates for humans: a terminal table and the
// Markdown summary artifact.
package output

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/ajranjith/fixzit-agent/internal/delta"
	"github.com/ajranjith/fixzit-agent/internal/model"
)

func scannerRows(agg *model.Aggregate) [][]string {
	var rows [][]string
	for _, name := range agg.ScannerNames() {
		rep := agg.Scanners[name]
		row := []string{name, string(rep.Status)}
		for _, s := range model.Severities {
			row = append(row, strconv.Itoa(rep.SummaryCounts[s]))
		}
		rows = append(rows, append(row, strconv.Itoa(rep.Failing())))
	}
	return rows
}

func scannerHeader() []string {
	h := []string{"Scanner", "Status"}
	for _, s := range model.Severities {
		h = append(h, string(s))
	}
	return append(h, "Failing")
}

// PrintSummary writes the per-scanner table of a run to w.
func PrintSummary(w io.Writer, agg *model.Aggregate) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Fixzit Agent Results")
	fmt.Fprintln(w, "====================")
	fmt.Fprintf(w, "Run:        %s\n", agg.RunID)
	fmt.Fprintf(w, "Mode:       %s\n", agg.Mode)
	fmt.Fprintf(w, "Root:       %s\n", agg.Root)
	if agg.Git.Available {
		fmt.Fprintf(w, "Git:        %d commits by %d authors in %d days\n", agg.Git.CommitCount, agg.Git.Authors, agg.Git.LookbackDays)
	} else {
		fmt.Fprintf(w, "Git:        unavailable\n")
	}
	fmt.Fprintln(w)

	table := tablewriter.NewWriter(w)
	table.SetHeader(scannerHeader())
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.AppendBulk(scannerRows(agg))
	table.Render()

	fmt.Fprintf(w, "\nFindings: %d (failing %d)", agg.Totals.Findings, agg.Totals.Failing)
	if len(agg.MovePlan) > 0 {
		fmt.Fprintf(w, ", proposed moves: %d", len(agg.MovePlan))
	}
	fmt.Fprintln(w)
}

// PrintDelta writes regressions and improvements to w.
func PrintDelta(w io.Writer, res *delta.Result) {
	fmt.Fprintf(w, "\nDelta vs %s: %d regression(s), %d improvement(s), %d unchanged\n",
		res.Baseline, len(res.Regressions), len(res.Improvements), res.Unchanged)
	if len(res.Incomplete) > 0 {
		fmt.Fprintf(w, "Incomplete sections: %v\n", res.Incomplete)
	}
	if len(res.Regressions) == 0 {
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"File", "Line", "Pattern", "Severity", "Message"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	for _, f := range res.Regressions {
		table.Append(findingRow(f))
	}
	table.Render()
}

func findingRow(f model.Finding) []string {
	line := ""
	if f.LineNumber > 0 {
		line = strconv.Itoa(f.LineNumber)
	}
	return []string{f.FilePath, line, f.Pattern, string(f.Severity), f.Message}
}

// PrintWaiverCounts lists entries per waiver category.
func PrintWaiverCounts(w io.Writer, path string, counts map[string]int, order []string) {
	fmt.Fprintf(w, "Waivers: %s\n", path)
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Category", "Entries"})
	table.SetBorder(false)
	total := 0
	for _, c := range order {
		table.Append([]string{c, strconv.Itoa(counts[c])})
		total += counts[c]
	}
	table.SetFooter([]string{"Total", strconv.Itoa(total)})
	table.Render()
}

// PrintChecks renders name/level/detail rows under a status line.
func PrintChecks(w io.Writer, status string, rows [][]string) {
	fmt.Fprintf(w, "Status: %s\n", status)
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Check", "Level", "Detail"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.AppendBulk(rows)
	table.Render()
}

// PrintSnapshots lists history snapshots, newest last.
func PrintSnapshots(w io.Writer, rows [][]string) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No snapshots recorded.")
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Snapshot", "Time (UTC)", "Commit", "Result"})
	table.SetBorder(false)
	table.AppendBulk(rows)
	table.Render()
}
