package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/spboyer/ltrank/internal/models"
)

// InterpretNDCG returns a plain-language label for an NDCG value (0–1).
func InterpretNDCG(ndcg float64) string {
	pct := ndcg * 100
	switch {
	case pct > 90:
		return "Excellent (>90%)"
	case pct >= 70:
		return "Good (70-90%)"
	case pct >= 50:
		return "Needs Work (50-70%)"
	default:
		return "Poor (<50%)"
	}
}

// InterpretDrift explains how NDCG moved from validation to test.
func InterpretDrift(validation, test float64) string {
	delta := test - validation
	switch {
	case delta > 0.02:
		return fmt.Sprintf("Test NDCG is %.4f higher than validation.", delta)
	case delta < -0.05:
		return fmt.Sprintf("Test NDCG dropped %.4f below validation; the model may be overfitting.", -delta)
	default:
		return "Validation and test NDCG agree."
	}
}

// FormatSummaryReport produces a plain-language report from a PipelineOutcome.
func FormatSummaryReport(outcome *models.PipelineOutcome) string {
	var b strings.Builder
	duration := time.Duration(outcome.DurationMs) * time.Millisecond
	level := int(outcome.Setup.TruncationLevel)

	b.WriteString("=== Interpretation ===\n\n")

	var validation, test *models.RankingMetrics
	for _, s := range outcome.EvaluatedStages() {
		switch s.Split {
		case "validation":
			validation = s.Metrics
		case "test":
			test = s.Metrics
		}
	}

	if test != nil {
		v, _ := test.NDCGAt(level)
		fmt.Fprintf(&b, "Test NDCG@%d: %.4f — %s\n", level, v, InterpretNDCG(v))
		if validation != nil {
			vv, _ := validation.NDCGAt(level)
			fmt.Fprintf(&b, "Drift: %s\n", InterpretDrift(vv, v))
		}
		fmt.Fprintf(&b, "Query groups evaluated: %d\n", test.Groups)
	}

	switch outcome.Gate.Status {
	case models.StatusPassed:
		fmt.Fprintf(&b, "Quality gate: passed (NDCG@%d %.4f ≥ %.4f)\n", outcome.Gate.Level, outcome.Gate.Value, outcome.Gate.Threshold)
	case models.StatusFailed:
		fmt.Fprintf(&b, "Quality gate: FAILED (NDCG@%d %.4f < %.4f)\n", outcome.Gate.Level, outcome.Gate.Value, outcome.Gate.Threshold)
	}

	fmt.Fprintf(&b, "Duration: %s\n", duration.Round(time.Millisecond))
	return b.String()
}

// EvaluateGate compares NDCG@level of m against threshold. A threshold of 0
// means no gate is configured.
func EvaluateGate(m *models.RankingMetrics, level int, threshold float64) models.GateOutcome {
	if threshold <= 0 {
		return models.GateOutcome{Status: models.StatusSkipped}
	}
	gate := models.GateOutcome{Level: level, Threshold: threshold}
	if m == nil {
		gate.Status = models.StatusError
		return gate
	}
	v, ok := m.NDCGAt(level)
	if !ok {
		gate.Status = models.StatusError
		return gate
	}
	gate.Value = v
	gate.Status = models.StatusPassed
	if v < threshold {
		gate.Status = models.StatusFailed
	}
	return gate
}
