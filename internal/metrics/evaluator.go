// Package metrics computes grouped rank-quality metrics (DCG and NDCG) over
// scored rows.
package metrics

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/spboyer/ltrank/internal/models"
)

// Gain is 2^label - 1.
func Gain(label uint32) float64 {
	return math.Exp2(float64(label)) - 1
}

// Discount is 1/log2(i+1) for the 1-based rank i.
func Discount(i int) float64 {
	return 1 / math.Log2(float64(i+1))
}

// GroupResult holds one query group's metrics at truncation 1..k.
type GroupResult struct {
	GroupID uint64
	Rows    int
	DCG     []float64
	NDCG    []float64
}

// Evaluator computes DCG/NDCG. Groups are independent, so they are evaluated
// concurrently and reduced in first-appearance order.
type Evaluator struct {
	workers int
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithWorkers bounds the number of groups evaluated concurrently. Values
// below 1 keep the default of GOMAXPROCS.
func WithWorkers(n int) EvaluatorOption {
	return func(e *Evaluator) {
		if n > 0 {
			e.workers = n
		}
	}
}

// NewEvaluator returns an Evaluator.
func NewEvaluator(opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{workers: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate returns DCG and NDCG at every truncation index 1..level, each the
// arithmetic mean over query groups.
func (e *Evaluator) Evaluate(ctx context.Context, scored []models.ScoredRow, level models.TruncationLevel) (models.RankingMetrics, error) {
	groups, err := e.EvaluateGroups(ctx, scored, level)
	if err != nil {
		return models.RankingMetrics{}, err
	}

	return Aggregate(groups, level), nil
}

// Aggregate averages per-group results over groups at every index 1..level.
// Groups are reduced in slice order.
func Aggregate(groups []GroupResult, level models.TruncationLevel) models.RankingMetrics {
	k := int(level)
	out := models.RankingMetrics{
		DCG:    make([]float64, k),
		NDCG:   make([]float64, k),
		Groups: len(groups),
	}
	column := make([]float64, len(groups))
	for i := range k {
		for g, r := range groups {
			column[g] = r.DCG[i]
		}
		out.DCG[i] = Mean(column)
		for g, r := range groups {
			column[g] = r.NDCG[i]
		}
		out.NDCG[i] = Mean(column)
	}
	return out
}

// NDCGAt collects every group's NDCG@k, in group order.
func NDCGAt(groups []GroupResult, k int) []float64 {
	out := make([]float64, 0, len(groups))
	for _, g := range groups {
		if k >= 1 && k <= len(g.NDCG) {
			out = append(out, g.NDCG[k-1])
		}
	}
	return out
}

// EvaluateGroups returns per-group metrics in first-appearance order.
func (e *Evaluator) EvaluateGroups(ctx context.Context, scored []models.ScoredRow, level models.TruncationLevel) ([]GroupResult, error) {
	if err := level.Validate(); err != nil {
		return nil, err
	}
	if len(scored) == 0 {
		return nil, fmt.Errorf("%w: no scored rows to evaluate", models.ErrEmptyInput)
	}
	for i, r := range scored {
		if r.Label > models.MaxLabel {
			return nil, fmt.Errorf("%w: row %d has label %d, maximum is %d",
				models.ErrInvalidConfiguration, i+1, r.Label, models.MaxLabel)
		}
	}

	ids, partitions := partition(scored)
	results := make([]GroupResult, len(partitions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range partitions {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = evaluateGroup(ids[i], partitions[i], int(level))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// partition groups rows by GroupID without assuming the rows are contiguous.
func partition(scored []models.ScoredRow) ([]uint64, [][]models.ScoredRow) {
	index := make(map[uint64]int)
	var ids []uint64
	var parts [][]models.ScoredRow
	for _, r := range scored {
		pos, ok := index[r.GroupID]
		if !ok {
			pos = len(parts)
			index[r.GroupID] = pos
			ids = append(ids, r.GroupID)
			parts = append(parts, nil)
		}
		parts[pos] = append(parts[pos], r)
	}
	return ids, parts
}

func evaluateGroup(id uint64, rows []models.ScoredRow, k int) GroupResult {
	predicted := slices.Clone(rows)
	slices.SortStableFunc(predicted, func(a, b models.ScoredRow) int {
		return cmp.Compare(b.Score, a.Score)
	})
	ideal := slices.Clone(rows)
	slices.SortStableFunc(ideal, func(a, b models.ScoredRow) int {
		return cmp.Compare(b.Label, a.Label)
	})

	res := GroupResult{
		GroupID: id,
		Rows:    len(rows),
		DCG:     make([]float64, k),
		NDCG:    make([]float64, k),
	}
	var dcg, idcg float64
	for i := range k {
		// groups shorter than k stop accumulating
		if i < len(rows) {
			d := Discount(i + 1)
			dcg += Gain(predicted[i].Label) * d
			idcg += Gain(ideal[i].Label) * d
		}
		res.DCG[i] = dcg
		if idcg > 0 {
			res.NDCG[i] = dcg / idcg
		}
	}
	return res
}
