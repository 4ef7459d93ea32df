package ranker_test

import (
	"context"
	"errors"
	"testing"

	"github.com/spboyer/ltrank/internal/dataset"
	"github.com/spboyer/ltrank/internal/features"
	"github.com/spboyer/ltrank/internal/models"
	"github.com/spboyer/ltrank/internal/ranker"
	"github.com/spboyer/ltrank/internal/ranker/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var testColumns = []string{"relevance", "noise"}

// separableDataset builds groups where the label grows with the first feature
// and the second feature is constant per group.
func separableDataset(t *testing.T, groups int) *dataset.Dataset {
	t.Helper()
	var rows []dataset.Row
	for g := range groups {
		for label := range uint32(4) {
			rows = append(rows, dataset.Row{
				GroupID:  uint64(g + 1),
				Label:    label,
				Features: []float32{float32(label)*0.5 + float32(g%3)*0.1, float32(g % 5)},
			})
		}
	}
	ds, err := dataset.New("separable", testColumns, rows)
	require.NoError(t, err)
	return ds
}

func newPipeline(t *testing.T) *features.Pipeline {
	t.Helper()
	p, err := features.NewBuilder(testColumns).Build()
	require.NoError(t, err)
	return p
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := ranker.New("gbdt", nil, newPipeline(t), 1)
	require.ErrorIs(t, err, models.ErrInvalidConfiguration)
}

func TestNew_NilPipeline(t *testing.T) {
	_, err := ranker.New(ranker.KindPairwise, nil, nil, 1)
	require.ErrorIs(t, err, models.ErrInvalidConfiguration)
}

func TestKinds(t *testing.T) {
	assert.Equal(t, []string{ranker.KindPairwise}, ranker.Kinds())
}

func TestPairwiseParams(t *testing.T) {
	tests := []struct {
		name    string
		params  map[string]any
		want    ranker.PairwiseParams
		wantErr bool
	}{
		{
			name:   "defaults",
			params: nil,
			want:   ranker.PairwiseParams{LearningRate: ranker.DefaultLearningRate, Epochs: ranker.DefaultEpochs, L2: ranker.DefaultL2, MaxPairsPerGroup: ranker.DefaultMaxPairsPerGroup},
		},
		{
			name:   "overrides with weak types",
			params: map[string]any{"learning_rate": "0.1", "epochs": 5, "l2": 0, "max_pairs_per_group": 10},
			want:   ranker.PairwiseParams{LearningRate: 0.1, Epochs: 5, L2: 0, MaxPairsPerGroup: 10},
		},
		{name: "unknown key", params: map[string]any{"depth": 3}, wantErr: true},
		{name: "zero epochs", params: map[string]any{"epochs": 0}, wantErr: true},
		{name: "negative learning rate", params: map[string]any{"learning_rate": -1}, wantErr: true},
		{name: "negative l2", params: map[string]any{"l2": -0.5}, wantErr: true},
		{name: "zero pairs", params: map[string]any{"max_pairs_per_group": 0}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ranker.DecodePairwiseParams(tt.params)
			if tt.wantErr {
				require.ErrorIs(t, err, models.ErrInvalidConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPairwise_LearnsSeparableSignal(t *testing.T) {
	ds := separableDataset(t, 20)
	r, err := ranker.New(ranker.KindPairwise, map[string]any{"epochs": 20}, newPipeline(t), 42)
	require.NoError(t, err)

	tr, err := r.Fit(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, ranker.KindPairwise, tr.Kind())

	scored, err := ranker.ScoreDataset(tr, ds)
	require.NoError(t, err)
	require.Len(t, scored, ds.Len())

	// within every group a higher label must score higher
	for i := 0; i < len(scored); i += 4 {
		for j := i + 1; j < i+4; j++ {
			assert.Greater(t, scored[j].Score, scored[j-1].Score, "group %d", scored[i].GroupID)
		}
	}
}

func TestPairwise_Deterministic(t *testing.T) {
	ds := separableDataset(t, 10)
	fit := func(seed int64) []float32 {
		r, err := ranker.New(ranker.KindPairwise, nil, newPipeline(t), seed)
		require.NoError(t, err)
		tr, err := r.Fit(context.Background(), ds)
		require.NoError(t, err)
		var scores []float32
		for _, row := range ds.All() {
			s, err := tr.Score(row.Features)
			require.NoError(t, err)
			scores = append(scores, s)
		}
		return scores
	}
	assert.Equal(t, fit(7), fit(7))
}

func TestPairwise_ConstantLabels(t *testing.T) {
	ds, err := dataset.New("flat", testColumns, []dataset.Row{
		{GroupID: 1, Label: 1, Features: []float32{1, 1}},
		{GroupID: 1, Label: 1, Features: []float32{2, 2}},
	})
	require.NoError(t, err)

	r, err := ranker.New(ranker.KindPairwise, nil, newPipeline(t), 1)
	require.NoError(t, err)
	tr, err := r.Fit(context.Background(), ds)
	require.NoError(t, err)

	s, err := tr.Score([]float32{5, 5})
	require.NoError(t, err)
	assert.Zero(t, s)
}

func TestPairwise_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, err := ranker.New(ranker.KindPairwise, nil, newPipeline(t), 1)
	require.NoError(t, err)
	_, err = r.Fit(ctx, separableDataset(t, 2))
	require.ErrorIs(t, err, context.Canceled)
}

func TestDecode_RoundTrip(t *testing.T) {
	ds := separableDataset(t, 5)
	r, err := ranker.New(ranker.KindPairwise, map[string]any{"epochs": 3}, newPipeline(t), 3)
	require.NoError(t, err)
	tr, err := r.Fit(context.Background(), ds)
	require.NoError(t, err)

	data, err := tr.MarshalBinary()
	require.NoError(t, err)
	restored, err := ranker.Decode(tr.Kind(), tr.Schema(), data)
	require.NoError(t, err)

	row := []float32{1.25, 3}
	want, err := tr.Score(row)
	require.NoError(t, err)
	got, err := restored.Score(row)
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-6)
}

func TestDecode_Errors(t *testing.T) {
	schema := features.Schema{SourceWidth: 2, FeatureColumns: testColumns, Indices: []int{0, 1}, GroupHashBits: 20}

	_, err := ranker.Decode("nope", schema, nil)
	require.ErrorIs(t, err, models.ErrSchemaMismatch)

	_, err = ranker.Decode(ranker.KindPairwise, schema, []byte(`{"mean":[0],"scale":[1],"weights":[1]}`))
	require.ErrorIs(t, err, models.ErrSchemaMismatch)

	_, err = ranker.Decode(ranker.KindPairwise, schema, []byte(`not json`))
	require.Error(t, err)
}

func TestScoreDataset_SchemaMismatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransformer(ctrl)
	tr.EXPECT().Schema().Return(features.Schema{SourceWidth: 3}).AnyTimes()

	_, err := ranker.ScoreDataset(tr, separableDataset(t, 1))
	require.ErrorIs(t, err, models.ErrSchemaMismatch)
}

func TestScoreDataset_ColumnMismatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransformer(ctrl)
	tr.EXPECT().Schema().Return(features.Schema{SourceWidth: 2, SourceColumns: []string{"x", "y"}}).AnyTimes()

	_, err := ranker.ScoreDataset(tr, separableDataset(t, 1))
	require.ErrorIs(t, err, models.ErrSchemaMismatch)
}

func TestScoreDataset_ScoreError(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransformer(ctrl)
	tr.EXPECT().Schema().Return(features.Schema{SourceWidth: 2}).AnyTimes()
	tr.EXPECT().Score(gomock.Any()).Return(float32(0), errors.New("boom"))

	_, err := ranker.ScoreDataset(tr, separableDataset(t, 1))
	require.ErrorContains(t, err, "boom")
}

func TestScoreDataset_KeepsOrderAndLabels(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransformer(ctrl)
	tr.EXPECT().Schema().Return(features.Schema{SourceWidth: 2}).AnyTimes()
	tr.EXPECT().Score(gomock.Any()).DoAndReturn(func(f []float32) (float32, error) {
		return f[0] * 2, nil
	}).Times(4)

	scored, err := ranker.ScoreDataset(tr, separableDataset(t, 1))
	require.NoError(t, err)
	for i, s := range scored {
		assert.Equal(t, uint32(i), s.Label)
		assert.Equal(t, uint64(1), s.GroupID)
		assert.InDelta(t, float32(i), s.Score, 1e-6)
	}
}
