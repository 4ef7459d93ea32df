package modelstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/spboyer/ltrank/internal/dataset"
	"github.com/spboyer/ltrank/internal/features"
	"github.com/spboyer/ltrank/internal/models"
	"github.com/spboyer/ltrank/internal/ranker"
	"github.com/spboyer/ltrank/internal/ranker/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var columns = []string{"bm25", "clicks", "age"}

func trainTransformer(t *testing.T) (ranker.Transformer, *dataset.Dataset) {
	t.Helper()
	var rows []dataset.Row
	for g := range 6 {
		for label := range uint32(3) {
			rows = append(rows, dataset.Row{
				GroupID:  uint64(100 + g),
				Label:    label,
				Features: []float32{float32(label) + 0.1*float32(g), float32(g), float32(label * 2)},
			})
		}
	}
	ds, err := dataset.New("train", columns, rows)
	require.NoError(t, err)

	p, err := features.NewBuilder(columns, features.ExcludeColumns("age")).Build()
	require.NoError(t, err)
	r, err := ranker.New(ranker.KindPairwise, map[string]any{"epochs": 5}, p, 9)
	require.NoError(t, err)
	tr, err := r.Fit(context.Background(), ds)
	require.NoError(t, err)
	return tr, ds
}

func assertSameScores(t *testing.T, want, got ranker.Transformer, ds *dataset.Dataset) {
	t.Helper()
	wantScores, err := ranker.ScoreDataset(want, ds)
	require.NoError(t, err)
	gotScores, err := ranker.ScoreDataset(got, ds)
	require.NoError(t, err)
	require.Len(t, gotScores, len(wantScores))
	for i := range wantScores {
		assert.InDelta(t, wantScores[i].Score, gotScores[i].Score, 1e-6)
	}

	arbitrary := []float32{3.5, -1, 42}
	a, err := want.Score(arbitrary)
	require.NoError(t, err)
	b, err := got.Score(arbitrary)
	require.NoError(t, err)
	assert.InDelta(t, a, b, 1e-6)
}

func TestCodec_RoundTrip(t *testing.T) {
	tr, ds := trainTransformer(t)

	data, err := Marshal(tr)
	require.NoError(t, err)

	art, err := Unmarshal(data)
	require.NoError(t, err)
	assert.NotEmpty(t, art.ID)
	assert.False(t, art.CreatedAt.IsZero())
	assert.Equal(t, tr.Schema(), art.Schema)
	assert.Equal(t, []string{"bm25", "clicks"}, art.Schema.FeatureColumns)
	assertSameScores(t, tr, art.Transformer, ds)
}

func TestCodec_UniqueIDs(t *testing.T) {
	tr, _ := trainTransformer(t)
	a, err := Marshal(tr)
	require.NoError(t, err)
	b, err := Marshal(tr)
	require.NoError(t, err)

	artA, err := Unmarshal(a)
	require.NoError(t, err)
	artB, err := Unmarshal(b)
	require.NoError(t, err)
	assert.NotEqual(t, artA.ID, artB.ID)
}

func TestUnmarshal_Errors(t *testing.T) {
	_, err := Unmarshal([]byte("plain text"))
	require.Error(t, err)

	_, err = Unmarshal(encoder.EncodeAll([]byte(`{"format":"other/v9"}`), nil))
	require.ErrorIs(t, err, models.ErrSchemaMismatch)

	_, err = Unmarshal(encoder.EncodeAll([]byte(`{not json`), nil))
	require.Error(t, err)
}

func TestMarshal_TransformerError(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransformer(ctrl)
	tr.EXPECT().Kind().Return("stub").AnyTimes()
	tr.EXPECT().MarshalBinary().Return(nil, errors.New("not serialisable"))

	_, err := Marshal(tr)
	require.ErrorContains(t, err, "not serialisable")
}

func TestFileStore_RoundTrip(t *testing.T) {
	tr, ds := trainTransformer(t)
	path := filepath.Join(t.TempDir(), "models", "final.zst")

	s := NewFileStore()
	require.NoError(t, s.Save(context.Background(), tr, path))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file must not be left behind")

	loaded, schema, err := s.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, tr.Schema(), schema)
	assertSameScores(t, tr, loaded, ds)
}

func TestFileStore_Overwrite(t *testing.T) {
	tr, ds := trainTransformer(t)
	path := filepath.Join(t.TempDir(), "model.zst")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	s := NewFileStore()
	require.NoError(t, s.Save(context.Background(), tr, path))
	loaded, _, err := s.Load(context.Background(), path)
	require.NoError(t, err)
	assertSameScores(t, tr, loaded, ds)
}

func TestFileStore_LoadMissing(t *testing.T) {
	_, _, err := NewFileStore().Load(context.Background(), filepath.Join(t.TempDir(), "absent.zst"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestParseBlobPath(t *testing.T) {
	tests := []struct {
		path          string
		wantContainer string
		wantBlob      string
		wantErr       bool
	}{
		{"azblob://models/ltr/final.zst", "models", "ltr/final.zst", false},
		{"azblob://models/final", "models", "final", false},
		{"azblob://models", "", "", true},
		{"azblob:///final", "", "", true},
		{"models/final", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			c, b, err := ParseBlobPath(tt.path)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantContainer, c)
			assert.Equal(t, tt.wantBlob, b)
		})
	}
}

func TestBlobStore_RoundTrip(t *testing.T) {
	tr, ds := trainTransformer(t)
	ctrl := gomock.NewController(t)
	client := NewMockblobClient(ctrl)
	s := &BlobStore{client: client, container: "default"}

	var uploaded []byte
	client.EXPECT().
		UploadBuffer(gomock.Any(), "models", "ltr/final.zst", gomock.Any(), gomock.Nil()).
		DoAndReturn(func(_ context.Context, _, _ string, buf []byte, _ *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error) {
			uploaded = bytes.Clone(buf)
			return azblob.UploadBufferResponse{}, nil
		})
	client.EXPECT().
		DownloadStream(gomock.Any(), "models", "ltr/final.zst", gomock.Nil()).
		DoAndReturn(func(context.Context, string, string, *azblob.DownloadStreamOptions) (azblob.DownloadStreamResponse, error) {
			resp := azblob.DownloadStreamResponse{}
			resp.Body = io.NopCloser(bytes.NewReader(uploaded))
			return resp, nil
		})

	require.NoError(t, s.Save(context.Background(), tr, "azblob://models/ltr/final.zst"))
	loaded, schema, err := s.Load(context.Background(), "azblob://models/ltr/final.zst")
	require.NoError(t, err)
	assert.Equal(t, tr.Schema(), schema)
	assertSameScores(t, tr, loaded, ds)
}

func TestBlobStore_DefaultContainer(t *testing.T) {
	tr, _ := trainTransformer(t)
	ctrl := gomock.NewController(t)
	client := NewMockblobClient(ctrl)

	client.EXPECT().
		UploadBuffer(gomock.Any(), "default", "final.zst", gomock.Any(), gomock.Nil()).
		Return(azblob.UploadBufferResponse{}, nil)

	s := &BlobStore{client: client, container: "default"}
	require.NoError(t, s.Save(context.Background(), tr, "final.zst"))

	noDefault := &BlobStore{client: client}
	require.Error(t, noDefault.Save(context.Background(), tr, "final.zst"))
}

func TestBlobStore_UploadError(t *testing.T) {
	tr, _ := trainTransformer(t)
	ctrl := gomock.NewController(t)
	client := NewMockblobClient(ctrl)
	client.EXPECT().
		UploadBuffer(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(azblob.UploadBufferResponse{}, errors.New("throttled"))

	s := &BlobStore{client: client, container: "models"}
	err := s.Save(context.Background(), tr, "final.zst")
	require.ErrorContains(t, err, "throttled")
	require.ErrorContains(t, err, "models/final.zst")
}

func TestBlobStore_DownloadError(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := NewMockblobClient(ctrl)
	client.EXPECT().
		DownloadStream(gomock.Any(), "models", "final.zst", gomock.Any()).
		Return(azblob.DownloadStreamResponse{}, errors.New("connection reset"))

	s := &BlobStore{client: client, container: "models"}
	_, _, err := s.Load(context.Background(), "final.zst")
	require.ErrorContains(t, err, "connection reset")
	require.NotErrorIs(t, err, ErrNotFound)
}
