package reporting

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/spboyer/ltrank/internal/models"
)

// RenderMarkdown produces a markdown summary of a run: the setup, one table
// row per evaluation stage and the quality gate.
func RenderMarkdown(outcome *models.PipelineOutcome) string {
	var b strings.Builder
	level := int(outcome.Setup.TruncationLevel)

	fmt.Fprintf(&b, "# Ranking run %s\n\n", outcome.RunID)
	fmt.Fprintf(&b, "- Ranker: `%s` (seed %d)\n", outcome.Setup.RankerKind, outcome.Setup.Seed)
	fmt.Fprintf(&b, "- Train: `%s`\n", outcome.Setup.TrainPath)
	fmt.Fprintf(&b, "- Validation: `%s`\n", outcome.Setup.ValidationPath)
	fmt.Fprintf(&b, "- Test: `%s`\n", outcome.Setup.TestPath)
	if outcome.Setup.ModelPath != "" {
		fmt.Fprintf(&b, "- Model: `%s`\n", outcome.Setup.ModelPath)
	}
	b.WriteString("\n## Metrics\n\n")

	header := []string{"Split", "Groups"}
	for k := 1; k <= level; k++ {
		header = append(header, fmt.Sprintf("NDCG@%d", k))
	}
	header = append(header, fmt.Sprintf("DCG@%d", level))
	b.WriteString("| " + strings.Join(header, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(header)) + "\n")

	for _, s := range outcome.EvaluatedStages() {
		row := []string{s.Split, fmt.Sprintf("%d", s.Metrics.Groups)}
		for _, v := range s.Metrics.NDCG {
			row = append(row, fmt.Sprintf("%.4f", v))
		}
		dcg, _ := s.Metrics.DCGAt(level)
		row = append(row, fmt.Sprintf("%.4f", dcg))
		b.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}

	for _, s := range outcome.EvaluatedStages() {
		if s.NDCGSpread == nil {
			continue
		}
		fmt.Fprintf(&b, "\n%s NDCG@%d %.0f%% interval: [%.4f, %.4f]\n",
			s.Split, level, s.NDCGSpread.ConfidenceLevel*100, s.NDCGSpread.Lower, s.NDCGSpread.Upper)
	}

	b.WriteString("\n## Quality gate\n\n")
	switch outcome.Gate.Status {
	case models.StatusPassed, models.StatusFailed:
		fmt.Fprintf(&b, "**%s**: NDCG@%d = %.4f (minimum %.4f)\n",
			strings.ToUpper(string(outcome.Gate.Status)), outcome.Gate.Level, outcome.Gate.Value, outcome.Gate.Threshold)
	case models.StatusError:
		fmt.Fprintf(&b, "**ERROR**: NDCG@%d was not computed\n", outcome.Gate.Level)
	default:
		b.WriteString("No minimum NDCG configured.\n")
	}

	if top := outcome.TopResults; top != nil {
		fmt.Fprintf(&b, "\n## Top results for group %d\n\n", top.GroupID)
		for i, r := range top.Rows {
			fmt.Fprintf(&b, "%d. score %v (label %d)\n", i+1, r.Score, r.Label)
		}
	}
	return b.String()
}

// RenderHTML converts the markdown summary to an HTML fragment.
func RenderHTML(outcome *models.PipelineOutcome) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var buf bytes.Buffer
	if err := md.Convert([]byte(RenderMarkdown(outcome)), &buf); err != nil {
		return nil, fmt.Errorf("rendering HTML report: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteReport writes the summary as HTML when path ends in .html or .htm and
// as markdown otherwise.
func WriteReport(outcome *models.PipelineOutcome, path string) error {
	var data []byte
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".html") || strings.HasSuffix(lower, ".htm") {
		html, err := RenderHTML(outcome)
		if err != nil {
			return err
		}
		data = html
	} else {
		data = []byte(RenderMarkdown(outcome))
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
