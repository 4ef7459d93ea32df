// Package reporting renders ranking metrics and pipeline outcomes as text,
// markdown, HTML and JUnit XML.
package reporting

import (
	"fmt"
	"io"
	"strings"

	"github.com/spboyer/ltrank/internal/models"
)

// FormatMetricLine renders one metric family as "NAME: @1:v1, @2:v2, ..."
// with four decimal places.
func FormatMetricLine(name string, values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("@%d:%.4f", i+1, v)
	}
	return name + ": " + strings.Join(parts, ", ")
}

// FormatMetrics returns the DCG and NDCG lines for m.
func FormatMetrics(m models.RankingMetrics) (dcg, ndcg string) {
	return FormatMetricLine("DCG", m.DCG), FormatMetricLine("NDCG", m.NDCG)
}

// WriteMetrics writes the DCG line then the NDCG line.
func WriteMetrics(w io.Writer, m models.RankingMetrics) error {
	dcg, ndcg := FormatMetrics(m)
	_, err := fmt.Fprintf(w, "%s\n%s\n", dcg, ndcg)
	return err
}

// FormatScore renders one re-ranked row.
func FormatScore(r models.ScoredRow) string {
	return fmt.Sprintf("GroupId: %d, Score: %v", r.GroupID, r.Score)
}

// WriteScores writes one FormatScore line per row.
func WriteScores(w io.Writer, rows []models.ScoredRow) error {
	for _, r := range rows {
		if _, err := fmt.Fprintln(w, FormatScore(r)); err != nil {
			return err
		}
	}
	return nil
}
