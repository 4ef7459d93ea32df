package models

import "fmt"

// ScoredRow is a row after a Transformer has been applied to it. Label is 0
// when unknown at scoring time but must be set before computing metrics.
type ScoredRow struct {
	GroupID uint64  `json:"group_id"`
	Label   uint32  `json:"label"`
	Score   float32 `json:"score"`
}

// TruncationLevel is the cutoff rank k for DCG/NDCG.
type TruncationLevel int

const (
	MinTruncationLevel     TruncationLevel = 1
	MaxTruncationLevel     TruncationLevel = 10
	DefaultTruncationLevel TruncationLevel = 3
)

// Validate rejects levels outside [MinTruncationLevel, MaxTruncationLevel].
// Out-of-range levels are never clamped.
func (l TruncationLevel) Validate() error {
	if l < MinTruncationLevel || l > MaxTruncationLevel {
		return fmt.Errorf("%w: truncation level %d is outside [%d, %d]",
			ErrInvalidConfiguration, int(l), int(MinTruncationLevel), int(MaxTruncationLevel))
	}
	return nil
}

// MaxLabel is the largest relevance label whose gain 2^label-1 stays finite
// when summed over a truncated ranking.
const MaxLabel uint32 = 62

// RankingMetrics holds DCG and NDCG averaged over query groups. Index i holds
// the value at truncation i+1.
type RankingMetrics struct {
	DCG    []float64 `json:"dcg"`
	NDCG   []float64 `json:"ndcg"`
	Groups int       `json:"groups"`
}

// Level returns the deepest truncation level the metrics were computed at.
func (m RankingMetrics) Level() TruncationLevel {
	return TruncationLevel(len(m.NDCG))
}

// NDCGAt returns NDCG@k, or false when k was not computed.
func (m RankingMetrics) NDCGAt(k int) (float64, bool) {
	if k < 1 || k > len(m.NDCG) {
		return 0, false
	}
	return m.NDCG[k-1], true
}

// DCGAt returns DCG@k, or false when k was not computed.
func (m RankingMetrics) DCGAt(k int) (float64, bool) {
	if k < 1 || k > len(m.DCG) {
		return 0, false
	}
	return m.DCG[k-1], true
}
