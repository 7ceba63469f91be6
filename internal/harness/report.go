package harness

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
)

var (
	passStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A"))
	failStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#e53935"))
)

// WriteReport renders results as a table.
func WriteReport(w io.Writer, results []Result) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Scenario", "Status", "Attempts", "Time", "Detail"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_LEFT,
	})

	for _, r := range results {
		status := passStyle.Render("PASS")
		if !r.OK() {
			status = failStyle.Render("FAIL")
		}
		table.Append([]string{
			r.Scenario.Name,
			status,
			fmt.Sprintf("%d", r.Attempts),
			r.Elapsed.Round(time.Millisecond).String(),
			r.Detail(),
		})
	}

	failed := Failed(results)
	table.SetFooter([]string{"", "", "", "Failed", fmt.Sprintf("%d/%d", failed, len(results))})
	table.Render()
}
