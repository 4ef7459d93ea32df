package reporting

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/spboyer/ltrank/internal/models"
)

var printer = message.NewPrinter(language.English)

// FormatCount renders n with thousands separators.
func FormatCount(n int) string {
	return printer.Sprintf("%d", n)
}

// WriteStageTable prints one aligned row per stage: name, rows trained on,
// NDCG at the deepest level and duration.
func WriteStageTable(w io.Writer, outcome *models.PipelineOutcome) error {
	header := []string{"STAGE", "ROWS", "NDCG", "TIME"}
	rows := [][]string{header}
	for _, s := range outcome.Stages {
		ndcg := "-"
		if s.Metrics != nil {
			if v, ok := s.Metrics.NDCGAt(len(s.Metrics.NDCG)); ok {
				ndcg = fmt.Sprintf("%.4f", v)
			}
		}
		rowCount := FormatCount(s.TrainingRows)
		if s.CacheHit {
			rowCount += " (cached)"
		}
		if s.Metrics != nil {
			rowCount = "-"
		}
		rows = append(rows, []string{s.Stage, rowCount, ndcg, fmt.Sprintf("%dms", s.DurationMs)})
	}

	widths := make([]int, len(header))
	for _, r := range rows {
		for i, cell := range r {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}
	for _, r := range rows {
		cells := make([]string, len(r))
		for i, cell := range r {
			cells[i] = padRight(cell, widths[i])
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(strings.Join(cells, "  "), " ")); err != nil {
			return err
		}
	}
	return nil
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}
