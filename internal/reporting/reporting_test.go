package reporting

import (
	"bytes"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spboyer/ltrank/internal/models"
	"github.com/spboyer/ltrank/internal/statistics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOutcome() *models.PipelineOutcome {
	validation := &models.RankingMetrics{DCG: []float64{7, 8.5, 8.8928}, NDCG: []float64{1, 0.95, 0.9}, Groups: 120}
	test := &models.RankingMetrics{DCG: []float64{6.5, 8, 8.25}, NDCG: []float64{0.91, 0.88, 0.8712}, Groups: 80}
	return &models.PipelineOutcome{
		RunID:     "run-1",
		Timestamp: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
		Setup: models.OutcomeSetup{
			RankerKind:      "pairwise",
			Seed:            42,
			TruncationLevel: 3,
			ModelPath:       "model.zst",
			TrainPath:       "train.tsv",
			ValidationPath:  "validation.tsv",
			TestPath:        "test.tsv",
		},
		Stages: []models.StageOutcome{
			{Stage: "trained_on_train", TrainingRows: 12000, DurationMs: 1500},
			{Stage: "evaluated_on_validation", Split: "validation", Metrics: validation, DurationMs: 20,
				NDCGSpread: &statistics.ConfidenceInterval{Lower: 0.85, Upper: 0.94, ConfidenceLevel: 0.95}},
			{Stage: "trained_on_train_plus_validation", TrainingRows: 15000, CacheHit: true, DurationMs: 3},
			{Stage: "evaluated_on_test", Split: "test", Metrics: test, DurationMs: 15},
			{Stage: "trained_on_all", TrainingRows: 18000, DurationMs: 2100},
			{Stage: "finalized", TrainingRows: 18000, DurationMs: 4},
		},
		Gate:       models.GateOutcome{Status: models.StatusPassed, Level: 3, Threshold: 0.8, Value: 0.8712},
		DurationMs: 3642,
	}
}

func TestFormatMetrics(t *testing.T) {
	dcg, ndcg := FormatMetrics(models.RankingMetrics{
		DCG:  []float64{7, 8.892789, 8.892789},
		NDCG: []float64{1, 1, 0.99999},
	})
	assert.Equal(t, "DCG: @1:7.0000, @2:8.8928, @3:8.8928", dcg)
	assert.Equal(t, "NDCG: @1:1.0000, @2:1.0000, @3:1.0000", ndcg)
}

func TestFormatMetricLine_Single(t *testing.T) {
	assert.Equal(t, "NDCG: @1:0.1235", FormatMetricLine("NDCG", []float64{0.123456}))
}

func TestWriteMetrics(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMetrics(&buf, models.RankingMetrics{DCG: []float64{1.5}, NDCG: []float64{0.25}}))
	assert.Equal(t, "DCG: @1:1.5000\nNDCG: @1:0.2500\n", buf.String())
}

func TestWriteScores(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteScores(&buf, []models.ScoredRow{
		{GroupID: 3, Score: 1.25},
		{GroupID: 3, Score: -0.5},
	}))
	assert.Equal(t, "GroupId: 3, Score: 1.25\nGroupId: 3, Score: -0.5\n", buf.String())
}

func TestInterpretNDCG(t *testing.T) {
	tests := []struct {
		v    float64
		want string
	}{
		{0.95, "Excellent (>90%)"},
		{0.75, "Good (70-90%)"},
		{0.55, "Needs Work (50-70%)"},
		{0.2, "Poor (<50%)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InterpretNDCG(tt.v))
	}
}

func TestInterpretDrift(t *testing.T) {
	assert.Contains(t, InterpretDrift(0.9, 0.8), "overfitting")
	assert.Contains(t, InterpretDrift(0.8, 0.9), "higher")
	assert.Equal(t, "Validation and test NDCG agree.", InterpretDrift(0.8, 0.79))
}

func TestEvaluateGate(t *testing.T) {
	m := &models.RankingMetrics{NDCG: []float64{0.9, 0.7, 0.6}}
	tests := []struct {
		name      string
		metrics   *models.RankingMetrics
		level     int
		threshold float64
		want      models.Status
	}{
		{"no threshold", m, 3, 0, models.StatusSkipped},
		{"passes", m, 1, 0.85, models.StatusPassed},
		{"equal passes", m, 2, 0.7, models.StatusPassed},
		{"fails", m, 3, 0.65, models.StatusFailed},
		{"level not computed", m, 5, 0.5, models.StatusError},
		{"no metrics", nil, 3, 0.5, models.StatusError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvaluateGate(tt.metrics, tt.level, tt.threshold).Status)
		})
	}
}

func TestFormatSummaryReport(t *testing.T) {
	report := FormatSummaryReport(newTestOutcome())
	assert.Contains(t, report, "Test NDCG@3: 0.8712 — Good (70-90%)")
	assert.Contains(t, report, "Query groups evaluated: 80")
	assert.Contains(t, report, "Quality gate: passed")
	assert.Contains(t, report, "Drift: Validation and test NDCG agree.")
}

func TestRenderMarkdown(t *testing.T) {
	md := RenderMarkdown(newTestOutcome())
	assert.Contains(t, md, "| Split | Groups | NDCG@1 | NDCG@2 | NDCG@3 | DCG@3 |")
	assert.Contains(t, md, "| validation | 120 | 1.0000 | 0.9500 | 0.9000 | 8.8928 |")
	assert.Contains(t, md, "| test | 80 | 0.9100 | 0.8800 | 0.8712 | 8.2500 |")
	assert.Contains(t, md, "validation NDCG@3 95% interval: [0.8500, 0.9400]")
	assert.Contains(t, md, "**PASSED**")
}

func TestRenderMarkdown_TopResults(t *testing.T) {
	o := newTestOutcome()
	o.TopResults = &models.TopResults{GroupID: 17, ScanWindow: 100, Rows: []models.ScoredRow{{GroupID: 17, Label: 2, Score: 1.5}}}
	md := RenderMarkdown(o)
	assert.Contains(t, md, "## Top results for group 17")
	assert.Contains(t, md, "1. score 1.5 (label 2)")
}

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML(newTestOutcome())
	require.NoError(t, err)
	s := string(html)
	assert.Contains(t, s, "<table>")
	assert.Contains(t, s, "<h1>Ranking run run-1</h1>")
	assert.Contains(t, s, "<td>validation</td>")
}

func TestWriteReport(t *testing.T) {
	dir := t.TempDir()

	mdPath := filepath.Join(dir, "report.md")
	require.NoError(t, WriteReport(newTestOutcome(), mdPath))
	data, err := os.ReadFile(mdPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# Ranking run"))

	htmlPath := filepath.Join(dir, "report.HTML")
	require.NoError(t, WriteReport(newTestOutcome(), htmlPath))
	data, err = os.ReadFile(htmlPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "<h1>"))
}

func TestConvertToJUnit(t *testing.T) {
	suites := ConvertToJUnit(newTestOutcome())
	require.Len(t, suites.TestSuites, 1)
	suite := suites.TestSuites[0]

	assert.Equal(t, 7, suite.Tests)
	assert.Equal(t, 0, suite.Failures)
	assert.Equal(t, "2025-06-15T12:00:00Z", suite.Timestamp)
	assert.Contains(t, suite.Properties, JUnitProperty{Name: "ndcg", Value: "0.8712"})
	assert.Equal(t, "evaluated_on_test", suite.TestCases[3].Name)
	assert.Equal(t, "DCG: @1:6.5000, @2:8.0000, @3:8.2500\nNDCG: @1:0.9100, @2:0.8800, @3:0.8712", suite.TestCases[3].SystemOut)
	assert.Equal(t, "quality_gate", suite.TestCases[6].Name)
	assert.Nil(t, suite.TestCases[6].Failure)
}

func TestConvertToJUnit_GateStatuses(t *testing.T) {
	tests := []struct {
		name                      string
		gate                      models.GateOutcome
		failures, errors, skipped int
	}{
		{"failed", models.GateOutcome{Status: models.StatusFailed, Level: 3, Threshold: 0.9, Value: 0.87}, 1, 0, 0},
		{"error", models.GateOutcome{Status: models.StatusError, Level: 5, Threshold: 0.9}, 0, 1, 0},
		{"skipped", models.GateOutcome{Status: models.StatusSkipped}, 0, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOutcome()
			o.Gate = tt.gate
			suites := ConvertToJUnit(o)
			assert.Equal(t, tt.failures, suites.Failures)
			assert.Equal(t, tt.errors, suites.Errors)
			assert.Equal(t, tt.skipped, suites.TestSuites[0].Skipped)
		})
	}
}

func TestWriteJUnitXML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.xml")
	o := newTestOutcome()
	o.Gate = models.GateOutcome{Status: models.StatusFailed, Level: 3, Threshold: 0.9, Value: 0.8712}
	require.NoError(t, WriteJUnitXML(o, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "<?xml"))

	var parsed JUnitTestSuites
	require.NoError(t, xml.Unmarshal(data, &parsed))
	assert.Equal(t, 1, parsed.Failures)
	assert.Contains(t, string(data), `message="NDCG@3=0.8712 below 0.9000"`)
}

func TestWriteStageTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteStageTable(&buf, newTestOutcome()))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 7)
	assert.True(t, strings.HasPrefix(lines[0], "STAGE"))
	assert.Contains(t, lines[1], "12,000")
	assert.Contains(t, lines[2], "0.9000")
	assert.Contains(t, lines[3], "15,000 (cached)")

	// columns line up
	col := strings.Index(lines[0], "ROWS")
	assert.Equal(t, "12,000", strings.TrimSpace(lines[1][col:col+6]))
}

func TestFormatCount(t *testing.T) {
	assert.Equal(t, "1,234,567", FormatCount(1234567))
	assert.Equal(t, "12", FormatCount(12))
}
