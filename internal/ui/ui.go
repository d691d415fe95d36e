// Package ui renders jobsheet output for the terminal.
//
// Colors follow the terminal's capabilities. When stdout is not a TTY, or
// NO_COLOR is set, everything renders as plain text.
package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/jobsheet/jobsheet/internal/record"
)

// Palette, ANSI 256 codes.
var (
	colorAccent  = lipgloss.Color("39")
	colorPass    = lipgloss.Color("42")
	colorWarn    = lipgloss.Color("214")
	colorFail    = lipgloss.Color("196")
	colorInfo    = lipgloss.Color("45")
	colorPrimary = lipgloss.Color("33")
	colorSecond  = lipgloss.Color("141")
	colorMuted   = lipgloss.Color("243")
)

var (
	accentStyle = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	passStyle   = lipgloss.NewStyle().Foreground(colorPass).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(colorWarn).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(colorFail).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// statusColors mirrors the chip colors of the web tracker.
var statusColors = map[record.Status]lipgloss.Color{
	record.StatusApplied:            colorPrimary,
	record.StatusApplicationViewed:  colorInfo,
	record.StatusPhoneScreen:        colorSecond,
	record.StatusInterviewScheduled: colorWarn,
	record.StatusTechnicalInterview: colorSecond,
	record.StatusFinalInterview:     colorSecond,
	record.StatusOfferReceived:      colorPass,
	record.StatusOfferAccepted:      colorPass,
	record.StatusRejected:           colorFail,
	record.StatusWithdrawn:          colorMuted,
	record.StatusFollowUpNeeded:     colorWarn,
	record.StatusWaitingResponse:    colorInfo,
}

func init() {
	if !IsTerminal(os.Stdout) {
		DisableColor()
		return
	}
	lipgloss.SetColorProfile(termenv.EnvColorProfile())
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// DisableColor switches every renderer to plain text.
func DisableColor() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// RenderAccent highlights a heading marker.
func RenderAccent(s string) string { return accentStyle.Render(s) }

// RenderPass marks success.
func RenderPass(s string) string { return passStyle.Render(s) }

// RenderWarn marks a warning.
func RenderWarn(s string) string { return warnStyle.Render(s) }

// RenderFail marks a failure.
func RenderFail(s string) string { return failStyle.Render(s) }

// RenderMuted de-emphasizes secondary text.
func RenderMuted(s string) string { return mutedStyle.Render(s) }

// StatusStyle returns the chip style for s. Unknown stages are muted.
func StatusStyle(s record.Status) lipgloss.Style {
	c, ok := statusColors[s]
	if !ok {
		c = colorMuted
	}
	return lipgloss.NewStyle().Foreground(c)
}

// RenderStatus colors a status label.
func RenderStatus(s record.Status) string {
	return StatusStyle(s).Render(string(s))
}

// RecordsTable renders records as a bordered table. Notes are truncated to
// keep rows on one line.
func RecordsTable(records []record.Record) string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			fmt.Sprint(r.ID),
			r.Company,
			r.Position,
			r.Date,
			string(r.Status),
			r.Source,
			r.Salary,
			truncate(r.Notes, 40),
		})
	}

	const statusCol = 4
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers("ID", "Company", "Position", "Date", "Status", "Source", "Salary", "Notes").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == statusCol && row >= 0 && row < len(records) {
				return StatusStyle(records[row].Status).Padding(0, 1)
			}
			return cellStyle
		})
	return t.Render()
}

// RenderStats formats the dashboard summary.
func RenderStats(st record.Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s Application Stats\n\n", RenderAccent("📊"))
	fmt.Fprintf(&b, "Total:         %d\n", st.Total)
	fmt.Fprintf(&b, "Today:         %d\n", st.Today)
	fmt.Fprintf(&b, "Daily average: %.1f\n", st.DailyAverage)
	fmt.Fprintf(&b, "Interviews:    %d\n", st.Interviewing)
	fmt.Fprintf(&b, "Offers:        %d\n", st.Offers)
	fmt.Fprintf(&b, "Goal:          %s %.1f%% of %d\n", ProgressBar(st.Progress, 20), st.Progress, st.Goal)

	if st.Total > 0 {
		b.WriteString("\nBy status:\n")
		for _, s := range record.Statuses() {
			n := st.ByStatus[s]
			if n == 0 {
				continue
			}
			fmt.Fprintf(&b, "  %-22s %d\n", RenderStatus(s), n)
		}
	}
	return b.String()
}

// ProgressBar draws pct (0-100) as a bar of width cells.
func ProgressBar(pct float64, width int) string {
	if width <= 0 {
		return ""
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int(pct / 100 * float64(width))
	return passStyle.Render(strings.Repeat("█", filled)) +
		mutedStyle.Render(strings.Repeat("░", width-filled))
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
