package telemetry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()

	r.TrainingRows("trained_on_train", 1200)
	r.Metrics("validation", []float64{7, 8.5}, []float64{0.9, 0.8})
	r.CacheResult(true)
	r.CacheResult(false)
	r.CacheResult(false)
	r.StageFailed("evaluated_on_test")
	r.ObserveStage("trained_on_train", 2*time.Second)

	assert.Equal(t, 1200.0, testutil.ToFloat64(r.trainingRows.WithLabelValues("trained_on_train")))
	assert.Equal(t, 0.8, testutil.ToFloat64(r.ndcg.WithLabelValues("validation", "2")))
	assert.Equal(t, 7.0, testutil.ToFloat64(r.dcg.WithLabelValues("validation", "1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cacheTotal.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.cacheTotal.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.stageFailures.WithLabelValues("evaluated_on_test")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.stageDuration))
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.Metrics("test", nil, []float64{0.75})

	path := filepath.Join(t.TempDir(), "out", "ltrank.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `ltrank_ndcg{k="1",split="test"} 0.75`)
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.TrainingRows("x", 1)
		r.Metrics("x", []float64{1}, []float64{1})
		r.CacheResult(true)
		r.StageFailed("x")
		r.ObserveStage("x", time.Second)
	})
	assert.Nil(t, r.Registry())
	assert.NoError(t, r.WriteTextfile(filepath.Join(t.TempDir(), "never.prom")))
}
