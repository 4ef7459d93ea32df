// Package ranker defines the training capability the pipeline depends on and
// ships the built-in pairwise linear ranker.
package ranker

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/spboyer/ltrank/internal/dataset"
	"github.com/spboyer/ltrank/internal/features"
	"github.com/spboyer/ltrank/internal/models"
)

//go:generate go tool mockgen -source=ranker.go -destination=mocks/ranker_mock.go -package=mocks

// Transformer is a fitted, immutable scoring function.
type Transformer interface {
	// Kind names the ranker that produced the transformer.
	Kind() string
	// Schema describes the feature layout the transformer was fitted on.
	Schema() features.Schema
	// Score maps one raw feature vector to a relevance score.
	Score(features []float32) (float32, error)
	// MarshalBinary serialises the fitted state (not the schema).
	MarshalBinary() ([]byte, error)
}

// Ranker trains a Transformer from labelled, grouped rows. Fit must be
// deterministic for a fixed configuration and row order.
type Ranker interface {
	Kind() string
	Fit(ctx context.Context, ds *dataset.Dataset) (Transformer, error)
}

// Factory builds a configured Ranker.
type Factory func(params map[string]any, pipeline *features.Pipeline, seed int64) (Ranker, error)

// Decoder rebuilds a Transformer from its schema and MarshalBinary output.
type Decoder func(schema features.Schema, data []byte) (Transformer, error)

type registration struct {
	factory Factory
	decoder Decoder
}

var registry = map[string]registration{
	KindPairwise: {factory: newPairwiseRanker, decoder: decodeLinear},
}

// Kinds lists the registered ranker kinds in sorted order.
func Kinds() []string {
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// New builds a Ranker of the given kind.
func New(kind string, params map[string]any, pipeline *features.Pipeline, seed int64) (Ranker, error) {
	reg, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown ranker kind %q (available: %v)", models.ErrInvalidConfiguration, kind, Kinds())
	}
	if pipeline == nil {
		return nil, fmt.Errorf("%w: ranker %q needs a feature pipeline", models.ErrInvalidConfiguration, kind)
	}
	return reg.factory(params, pipeline, seed)
}

// Decode rebuilds a persisted Transformer.
func Decode(kind string, schema features.Schema, data []byte) (Transformer, error) {
	reg, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown ranker kind %q", models.ErrSchemaMismatch, kind)
	}
	return reg.decoder(schema, data)
}

// ScoreDataset applies t to every row of ds, preserving row order and labels.
func ScoreDataset(t Transformer, ds *dataset.Dataset) ([]models.ScoredRow, error) {
	if want := t.Schema().SourceWidth; ds.FeatureCount() != want {
		return nil, fmt.Errorf("%w: %s has %d features, model expects %d",
			models.ErrSchemaMismatch, ds.Name(), ds.FeatureCount(), want)
	}
	if cols := t.Schema().SourceColumns; len(cols) > 0 && !slices.Equal(cols, ds.Columns()) {
		return nil, fmt.Errorf("%w: %s columns %v differ from model columns %v",
			models.ErrSchemaMismatch, ds.Name(), ds.Columns(), cols)
	}
	out := make([]models.ScoredRow, 0, ds.Len())
	for i, r := range ds.All() {
		s, err := t.Score(r.Features)
		if err != nil {
			return nil, fmt.Errorf("score %s row %d: %w", ds.Name(), i+1, err)
		}
		out = append(out, models.ScoredRow{GroupID: r.GroupID, Label: r.Label, Score: s})
	}
	return out, nil
}
