package app

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/hyperifyio/robextract/internal/report"
	"github.com/hyperifyio/robextract/internal/rob"
)

// printPreview renders the preview table for the terminal.
func printPreview(w io.Writer, t report.Table) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(t.Header)
	tw.SetAutoWrapText(false)
	tw.SetAutoFormatHeaders(false)
	tw.AppendBulk(t.Rows)
	tw.Render()
}

// reproFooter is a one-line, deterministic record of the run configuration
// and the row outcome counts.
func reproFooter(runID, model, baseURL string, results []rob.StudyResult, failures int) string {
	counts := map[rob.Status]int{}
	for _, r := range results {
		counts[r.Status]++
	}
	var b strings.Builder
	b.WriteString("Reproducibility: ")
	fmt.Fprintf(&b, "run_id=%s; model=%s; llm_base_url=%s", runID, strings.TrimSpace(model), strings.TrimSpace(baseURL))
	fmt.Fprintf(&b, "; rows=%d; complete=%d; incomplete=%d; error=%d; extraction_failed=%d",
		len(results), counts[rob.StatusComplete], counts[rob.StatusIncomplete], counts[rob.StatusError], failures)
	b.WriteString("\n")
	return b.String()
}
