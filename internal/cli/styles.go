// Package cli holds terminal output helpers for the logsift commands.
// Simple streaming output, no interactive TUI.
package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"

	"github.com/logsift/logsift/pkg/pipeline"
)

var (
	accent = lipgloss.Color("#FF8800")
	muted  = lipgloss.Color("#666666")
	good   = lipgloss.Color("#00CC66")
	bad    = lipgloss.Color("#FF3333")
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	accentStyle = lipgloss.NewStyle().Foreground(accent).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(muted)
	goodStyle   = lipgloss.NewStyle().Foreground(good).Bold(true)
	badStyle    = lipgloss.NewStyle().Foreground(bad).Bold(true)
)

// NewProgress creates a progress bar over a known number of files.
func NewProgress(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

// RenderSummary formats a run summary for the terminal.
func RenderSummary(s pipeline.Summary) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Ingestion complete"))
	b.WriteString(mutedStyle.Render(fmt.Sprintf("  run %s  (%s)", s.RunID, s.Elapsed.Round(time.Millisecond))))
	b.WriteString("\n\n")

	b.WriteString(accentStyle.Render(fmt.Sprintf("  %d records inserted", s.RecordsInserted)))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s lines read\n", mutedStyle.Render(fmt.Sprintf("%d", s.LinesRead))))

	b.WriteString(fmt.Sprintf("  %s  %s",
		goodStyle.Render(fmt.Sprintf("%d processed", s.FilesProcessed)),
		badStyle.Render(fmt.Sprintf("%d errored", s.FilesErrored))))
	if s.FilesSkipped > 0 {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("  %d skipped", s.FilesSkipped)))
	}
	b.WriteString("\n")

	if n := s.UnparseableLines + s.OrphanContinuations + s.TimestampFailures; n > 0 {
		b.WriteString(mutedStyle.Render(fmt.Sprintf(
			"  warnings: %d unparseable, %d orphan continuations, %d timestamp failures\n",
			s.UnparseableLines, s.OrphanContinuations, s.TimestampFailures)))
	}

	return b.String()
}
