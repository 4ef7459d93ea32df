package ranker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/go-viper/mapstructure/v2"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/spboyer/ltrank/internal/dataset"
	"github.com/spboyer/ltrank/internal/features"
	"github.com/spboyer/ltrank/internal/models"
)

// KindPairwise is the built-in pairwise logistic ranker.
const KindPairwise = "pairwise"

// Default pairwise training parameters.
const (
	DefaultLearningRate     = 0.05
	DefaultEpochs           = 30
	DefaultL2               = 1e-4
	DefaultMaxPairsPerGroup = 256
)

// PairwiseParams configures the pairwise ranker. Zero values take defaults.
type PairwiseParams struct {
	LearningRate     float64 `mapstructure:"learning_rate"`
	Epochs           int     `mapstructure:"epochs"`
	L2               float64 `mapstructure:"l2"`
	MaxPairsPerGroup int     `mapstructure:"max_pairs_per_group"`
}

func decodePairwiseParams(params map[string]any) (PairwiseParams, error) {
	p := PairwiseParams{
		LearningRate:     DefaultLearningRate,
		Epochs:           DefaultEpochs,
		L2:               DefaultL2,
		MaxPairsPerGroup: DefaultMaxPairsPerGroup,
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return p, err
	}
	if err := dec.Decode(params); err != nil {
		return p, fmt.Errorf("%w: pairwise params: %v", models.ErrInvalidConfiguration, err)
	}

	switch {
	case p.LearningRate <= 0:
		return p, fmt.Errorf("%w: learning_rate must be positive, got %v", models.ErrInvalidConfiguration, p.LearningRate)
	case p.Epochs < 1:
		return p, fmt.Errorf("%w: epochs must be at least 1, got %d", models.ErrInvalidConfiguration, p.Epochs)
	case p.L2 < 0:
		return p, fmt.Errorf("%w: l2 must not be negative, got %v", models.ErrInvalidConfiguration, p.L2)
	case p.MaxPairsPerGroup < 1:
		return p, fmt.Errorf("%w: max_pairs_per_group must be at least 1, got %d", models.ErrInvalidConfiguration, p.MaxPairsPerGroup)
	}
	return p, nil
}

type pairwiseRanker struct {
	params   PairwiseParams
	pipeline *features.Pipeline
	seed     int64
}

func newPairwiseRanker(params map[string]any, pipeline *features.Pipeline, seed int64) (Ranker, error) {
	p, err := decodePairwiseParams(params)
	if err != nil {
		return nil, err
	}
	return &pairwiseRanker{params: p, pipeline: pipeline, seed: seed}, nil
}

func (r *pairwiseRanker) Kind() string { return KindPairwise }

// Fit standardises the projected features, then runs stochastic gradient
// descent on the pairwise logistic loss log(1 + exp(-w·(xi - xj))) over every
// pair in a hashed group where row i has the higher label key.
func (r *pairwiseRanker) Fit(ctx context.Context, ds *dataset.Dataset) (Transformer, error) {
	enc, err := r.pipeline.Fit(ds)
	if err != nil {
		return nil, err
	}
	data, err := enc.Encode(ds)
	if err != nil {
		return nil, err
	}

	width := r.pipeline.Width()
	mean, scale := standardisation(data.X, width)
	x := make([][]float64, len(data.X))
	for i, row := range data.X {
		x[i] = standardise(row, mean, scale)
	}

	groups := groupRows(data.Groups)
	rng := rand.New(rand.NewSource(r.seed))
	w := make([]float64, width)
	diff := make([]float64, width)

	pairs := 0
	for epoch := range r.params.Epochs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rng.Shuffle(len(groups), func(i, j int) { groups[i], groups[j] = groups[j], groups[i] })

		pairs = 0
		for _, g := range groups {
			for _, p := range samplePairs(g, data.Keys, r.params.MaxPairsPerGroup, rng) {
				floats.SubTo(diff, x[p[0]], x[p[1]])
				// d/dw log(1+exp(-m)) = -sigmoid(-m) * diff
				step := r.params.LearningRate / (1 + math.Exp(floats.Dot(w, diff)))
				if r.params.L2 > 0 {
					floats.Scale(1-r.params.LearningRate*r.params.L2, w)
				}
				floats.AddScaled(w, step, diff)
				pairs++
			}
		}
		slog.Debug("pairwise epoch", "epoch", epoch+1, "pairs", pairs, "groups", len(groups))
	}

	return &linearTransformer{
		encoding: enc,
		state: linearState{
			Mean:    mean,
			Scale:   scale,
			Weights: w,
		},
	}, nil
}

func standardisation(x [][]float64, width int) (mean, scale []float64) {
	mean = make([]float64, width)
	scale = make([]float64, width)
	col := make([]float64, len(x))
	for j := range width {
		for i, row := range x {
			col[i] = row[j]
		}
		m, sd := stat.PopMeanStdDev(col, nil)
		if sd == 0 || math.IsNaN(sd) {
			sd = 1
		}
		mean[j], scale[j] = m, sd
	}
	return mean, scale
}

func standardise(row, mean, scale []float64) []float64 {
	out := make([]float64, len(row))
	floats.SubTo(out, row, mean)
	floats.Div(out, scale)
	return out
}

// groupRows collects row indices per hashed group in first-appearance order.
func groupRows(groups []uint32) [][]int {
	index := make(map[uint32]int)
	var out [][]int
	for i, g := range groups {
		pos, ok := index[g]
		if !ok {
			pos = len(out)
			index[g] = pos
			out = append(out, nil)
		}
		out[pos] = append(out[pos], i)
	}
	return out
}

// samplePairs returns (better, worse) row pairs of one group, subsampled to
// at most limit pairs.
func samplePairs(rows, keys []int, limit int, rng *rand.Rand) [][2]int {
	var pairs [][2]int
	for a := range rows {
		for b := a + 1; b < len(rows); b++ {
			i, j := rows[a], rows[b]
			switch {
			case keys[i] > keys[j]:
				pairs = append(pairs, [2]int{i, j})
			case keys[j] > keys[i]:
				pairs = append(pairs, [2]int{j, i})
			}
		}
	}
	rng.Shuffle(len(pairs), func(a, b int) { pairs[a], pairs[b] = pairs[b], pairs[a] })
	if len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs
}

type linearState struct {
	Mean    []float64 `json:"mean"`
	Scale   []float64 `json:"scale"`
	Weights []float64 `json:"weights"`
}

type linearTransformer struct {
	encoding *features.Encoding
	state    linearState
}

func (t *linearTransformer) Kind() string { return KindPairwise }

func (t *linearTransformer) Schema() features.Schema { return t.encoding.Schema() }

func (t *linearTransformer) Score(raw []float32) (float32, error) {
	x, err := t.encoding.Pipeline().Project(raw)
	if err != nil {
		return 0, err
	}
	return float32(floats.Dot(t.state.Weights, standardise(x, t.state.Mean, t.state.Scale))), nil
}

func (t *linearTransformer) MarshalBinary() ([]byte, error) {
	return json.Marshal(t.state)
}

func decodeLinear(schema features.Schema, data []byte) (Transformer, error) {
	enc, err := features.FromSchema(schema)
	if err != nil {
		return nil, err
	}
	var state linearState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode pairwise model: %w", err)
	}
	width := enc.Pipeline().Width()
	if len(state.Mean) != width || len(state.Scale) != width || len(state.Weights) != width {
		return nil, fmt.Errorf("%w: pairwise model has %d weights, schema has %d features",
			models.ErrSchemaMismatch, len(state.Weights), width)
	}
	return &linearTransformer{encoding: enc, state: state}, nil
}
