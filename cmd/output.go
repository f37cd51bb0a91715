package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/olimci/foldersync/pkg/digest"
	"github.com/olimci/foldersync/pkg/engine"
	"github.com/olimci/foldersync/pkg/history"
	"github.com/olimci/foldersync/pkg/plan"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#1a7f37", Dark: "#3fb950"})
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#cf222e", Dark: "#f85149"})
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#9a6700", Dark: "#d29922"})
	dimStyle    = lipgloss.NewStyle().Faint(true)
	cellStyle   = lipgloss.NewStyle().PaddingRight(2)
)

func renderResult(w io.Writer, res engine.Result) {
	switch {
	case res.DryRun:
		fmt.Fprintln(w, warnStyle.Render("dry run, no changes applied"))
	case res.Success:
		fmt.Fprintln(w, okStyle.Render("sync successful"))
	default:
		fmt.Fprintln(w, failStyle.Render("sync failed"))
	}

	fmt.Fprintf(w, "  %s -> %s\n", res.Source, res.Destination)
	fmt.Fprintf(w, "  created %d, removed %d, updated %d, replaced %d",
		len(res.Plan.Create), len(res.Plan.Remove), len(res.Plan.Update), len(res.Plan.Replace))
	if len(res.Skipped) > 0 {
		fmt.Fprintf(w, ", %s", warnStyle.Render(fmt.Sprintf("skipped %d", len(res.Skipped))))
	}
	fmt.Fprintf(w, " %s\n", dimStyle.Render("("+res.Duration.Round(time.Millisecond).String()+")"))

	if res.Verified != nil {
		if *res.Verified {
			fmt.Fprintf(w, "  verified %s\n", dimStyle.Render(res.SourceDigest.String()))
		} else {
			fmt.Fprintln(w, "  "+failStyle.Render("verification failed: trees differ"))
		}
	}
	for _, f := range res.Skipped {
		fmt.Fprintf(w, "  %s %s: %v\n", warnStyle.Render("skipped"), f.Path, f.Err)
	}
}

func renderPlan(w io.Writer, p plan.Plan) {
	if p.Empty() {
		fmt.Fprintln(w, okStyle.Render("destination is up to date"))
		return
	}

	sections := []struct {
		title  string
		marker string
		style  lipgloss.Style
		paths  []string
	}{
		{"create", "+", okStyle, p.CreateOrder()},
		{"update", "~", warnStyle, p.UpdateOrder()},
		{"remove", "-", failStyle, p.RemoveOrder()},
	}

	// Replaced paths appear in both create and remove orders; list them once.
	replaced := make(map[string]struct{}, len(p.Replace))
	for _, rel := range p.Replace {
		replaced[rel] = struct{}{}
	}

	for _, s := range sections {
		var lines []string
		for _, rel := range s.paths {
			if _, ok := replaced[rel]; ok {
				continue
			}
			lines = append(lines, s.style.Render(s.marker+" "+rel))
		}
		if len(lines) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s (%d)\n", headerStyle.Render(s.title), len(lines))
		for _, line := range lines {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}

	if len(p.Replace) > 0 {
		fmt.Fprintf(w, "%s (%d)\n", headerStyle.Render("replace"), len(p.Replace))
		for _, rel := range p.Replace {
			fmt.Fprintf(w, "  %s\n", warnStyle.Render("! "+rel))
		}
	}
}

// digestCell shortens a stored digest; unreadable values are flagged.
func digestCell(raw string) string {
	d, err := digest.Parse(raw)
	if err != nil {
		return warnStyle.Render("invalid")
	}
	if d.IsZero() {
		return "-"
	}
	return d.Short()
}

func renderHistory(w io.Writer, records []history.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return
	}

	header := []string{"STATUS", "SOURCE", "DESTINATION", "STARTED", "CHANGES", "SKIPPED", "DIGEST"}
	rows := [][]string{header}
	for _, rec := range records {
		status := okStyle.Render("ok")
		if !rec.Success {
			status = failStyle.Render("failed")
		}
		changes := fmt.Sprintf("+%d ~%d -%d !%d", rec.Created, rec.Updated, rec.Removed, rec.Replaced)
		rows = append(rows, []string{
			status,
			rec.Source,
			rec.Destination,
			rec.StartedAt.Local().Format(time.DateTime),
			changes,
			fmt.Sprintf("%d", rec.Skipped),
			digestCell(rec.SourceDigest),
		})
	}

	widths := make([]int, len(header))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	for i, row := range rows {
		cells := make([]string, len(row))
		for j, cell := range row {
			style := cellStyle.Width(widths[j] + 2)
			if i == 0 {
				style = style.Bold(true)
			}
			cells[j] = style.Render(cell)
		}
		fmt.Fprintln(w, strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, cells...), " "))
	}

	for _, rec := range records {
		if rec.Error != "" {
			fmt.Fprintf(w, "%s %s: %s\n", failStyle.Render("error"), history.Key(rec.Source, rec.Destination), rec.Error)
		}
	}
}
