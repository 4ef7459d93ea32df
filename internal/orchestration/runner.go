package orchestration

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/spboyer/ltrank/internal/cache"
	"github.com/spboyer/ltrank/internal/dataset"
	"github.com/spboyer/ltrank/internal/metrics"
	"github.com/spboyer/ltrank/internal/models"
	"github.com/spboyer/ltrank/internal/modelstore"
	"github.com/spboyer/ltrank/internal/ranker"
	"github.com/spboyer/ltrank/internal/statistics"
	"github.com/spboyer/ltrank/internal/telemetry"
)

// Orchestrator runs the progressive training sequence:
// train, evaluate on validation, retrain on train+validation, evaluate on
// test, retrain on all three splits, then persist the final model.
type Orchestrator struct {
	ranker    ranker.Ranker
	level     models.TruncationLevel
	evaluator *metrics.Evaluator
	logger    *slog.Logger

	store     modelstore.Store
	modelPath string

	cache       *cache.Cache
	fingerprint cache.Fingerprint

	recorder  *telemetry.Recorder
	bootstrap *statistics.Bootstrap

	// Progress tracking
	progressMu sync.Mutex
	listeners  []ProgressListener
}

// ProgressListener receives progress updates
type ProgressListener func(event ProgressEvent)

// EventType represents the type of progress event
type EventType string

// EventType constants
const (
	EventPipelineStart    EventType = "pipeline_start"
	EventPipelineComplete EventType = "pipeline_complete"
	EventStageStart       EventType = "stage_start"
	EventStageComplete    EventType = "stage_complete"
	EventStageCached      EventType = "stage_cached"
	EventStageFailed      EventType = "stage_failed"
)

// ProgressEvent represents a progress update
type ProgressEvent struct {
	EventType   EventType
	Stage       State
	StageNum    int
	TotalStages int
	Split       string
	Rows        int
	Metrics     *models.RankingMetrics
	DurationMs  int64
	Err         error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTruncationLevel sets the deepest k evaluated. Defaults to
// models.DefaultTruncationLevel.
func WithTruncationLevel(level models.TruncationLevel) Option {
	return func(o *Orchestrator) {
		o.level = level
	}
}

// WithEvaluator replaces the default metrics evaluator.
func WithEvaluator(e *metrics.Evaluator) Option {
	return func(o *Orchestrator) {
		o.evaluator = e
	}
}

// WithModelStore persists the final model to path when the run finalizes.
func WithModelStore(store modelstore.Store, path string) Option {
	return func(o *Orchestrator) {
		o.store = store
		o.modelPath = path
	}
}

// WithFitCache skips Fit when the same ranker configuration has already been
// trained on an identical dataset.
func WithFitCache(c *cache.Cache, fp cache.Fingerprint) Option {
	return func(o *Orchestrator) {
		o.cache = c
		o.fingerprint = fp
	}
}

func WithTelemetry(r *telemetry.Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = r
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithConfidenceIntervals attaches a bootstrap interval over per-group
// NDCG@k to every evaluation stage.
func WithConfidenceIntervals(seed int64) Option {
	return func(o *Orchestrator) {
		b := statistics.DefaultBootstrap(seed)
		o.bootstrap = &b
	}
}

// New creates an orchestrator around r.
func New(r ranker.Ranker, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		ranker:    r,
		level:     models.DefaultTruncationLevel,
		logger:    slog.Default(),
		listeners: []ProgressListener{},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.evaluator == nil {
		o.evaluator = metrics.NewEvaluator()
	}
	return o
}

// OnProgress registers a progress listener
func (o *Orchestrator) OnProgress(listener ProgressListener) {
	o.progressMu.Lock()
	defer o.progressMu.Unlock()
	o.listeners = append(o.listeners, listener)
}

func (o *Orchestrator) notifyProgress(event ProgressEvent) {
	o.progressMu.Lock()
	listeners := slices.Clone(o.listeners)
	o.progressMu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}

// TruncationLevel returns the configured k.
func (o *Orchestrator) TruncationLevel() models.TruncationLevel { return o.level }

// Start validates the configuration and splits and returns the initial snapshot.
func (o *Orchestrator) Start(splits Splits) (Snapshot, error) {
	if err := o.level.Validate(); err != nil {
		return Snapshot{}, err
	}
	named := []struct {
		name string
		ds   *dataset.Dataset
	}{
		{"train", splits.Train},
		{"validation", splits.Validation},
		{"test", splits.Test},
	}
	for _, n := range named {
		if n.ds == nil || n.ds.Len() == 0 {
			return Snapshot{}, fmt.Errorf("%w: %s split has no rows", models.ErrEmptyInput, n.name)
		}
		if !slices.Equal(n.ds.Columns(), splits.Train.Columns()) {
			return Snapshot{}, fmt.Errorf("%w: %s split columns differ from train", models.ErrSchemaMismatch, n.name)
		}
	}
	return Snapshot{State: StateInitial, Splits: splits}, nil
}

// Run performs every transition from the initial state to StateFinalized.
// The first failing stage halts the run with a *models.StageFailedError.
func (o *Orchestrator) Run(ctx context.Context, splits Splits) (Snapshot, error) {
	snap, err := o.Start(splits)
	if err != nil {
		return Snapshot{}, err
	}

	startTime := time.Now()
	o.notifyProgress(ProgressEvent{
		EventType:   EventPipelineStart,
		TotalStages: TotalStages,
	})

	for snap.State != StateFinalized {
		snap, err = o.Step(ctx, snap)
		if err != nil {
			return snap, err
		}
	}

	o.notifyProgress(ProgressEvent{
		EventType:   EventPipelineComplete,
		Stage:       StateFinalized,
		TotalStages: TotalStages,
		Metrics:     snap.Test,
		DurationMs:  time.Since(startTime).Milliseconds(),
	})
	return snap, nil
}

// Step performs exactly one transition. On failure the returned snapshot is
// the unchanged input and the error is a *models.StageFailedError.
func (o *Orchestrator) Step(ctx context.Context, s Snapshot) (Snapshot, error) {
	if s.State >= StateFinalized {
		return s, fmt.Errorf("%w: run is already %s", models.ErrInvalidConfiguration, s.State)
	}
	next := s.State + 1

	o.notifyProgress(ProgressEvent{
		EventType:   EventStageStart,
		Stage:       next,
		StageNum:    int(next),
		TotalStages: TotalStages,
	})

	start := time.Now()
	out, err := o.transition(ctx, s, next)
	elapsed := time.Since(start)
	o.recorder.ObserveStage(next.String(), elapsed)

	if err != nil {
		o.recorder.StageFailed(next.String())
		o.logger.Error("stage failed", "stage", next.String(), "error", err)
		o.notifyProgress(ProgressEvent{
			EventType:   EventStageFailed,
			Stage:       next,
			StageNum:    int(next),
			TotalStages: TotalStages,
			DurationMs:  elapsed.Milliseconds(),
			Err:         err,
		})
		return s, &models.StageFailedError{Stage: next.String(), Cause: err}
	}

	rec := out.History[len(out.History)-1]
	rec.Duration = elapsed
	out.History[len(out.History)-1] = rec

	eventType := EventStageComplete
	if rec.CacheHit {
		eventType = EventStageCached
	}
	o.notifyProgress(ProgressEvent{
		EventType:   eventType,
		Stage:       next,
		StageNum:    int(next),
		TotalStages: TotalStages,
		Split:       rec.Split,
		Rows:        rec.TrainingRows,
		Metrics:     rec.Metrics,
		DurationMs:  elapsed.Milliseconds(),
	})
	return out, nil
}

func (o *Orchestrator) transition(ctx context.Context, s Snapshot, next State) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return s, err
	}

	switch next {
	case StateTrainedOnTrain:
		return o.trainStage(ctx, s, next, s.Splits.Train)

	case StateEvaluatedOnValidation:
		m, rec, err := o.evaluateStage(ctx, s.Transformer, s.Splits.Validation, "validation")
		if err != nil {
			return s, err
		}
		rec.Stage = next
		out := s.with(rec)
		out.State = next
		out.Validation = m
		return out, nil

	case StateTrainedOnTrainPlusValidation:
		merged, err := MergeDatasets(s.TrainingSet, s.Splits.Validation)
		if err != nil {
			return s, err
		}
		return o.trainStage(ctx, s, next, merged)

	case StateEvaluatedOnTest:
		m, rec, err := o.evaluateStage(ctx, s.Transformer, s.Splits.Test, "test")
		if err != nil {
			return s, err
		}
		rec.Stage = next
		out := s.with(rec)
		out.State = next
		out.Test = m
		return out, nil

	case StateTrainedOnAll:
		merged, err := MergeDatasets(s.TrainingSet, s.Splits.Test)
		if err != nil {
			return s, err
		}
		return o.trainStage(ctx, s, next, merged)

	case StateFinalized:
		out := s.with(StageRecord{Stage: next, TrainingRows: s.TrainingSet.Len()})
		out.State = next
		if o.store != nil && o.modelPath != "" {
			if err := o.store.Save(ctx, s.Transformer, o.modelPath); err != nil {
				return s, fmt.Errorf("saving model: %w", err)
			}
			out.ModelPath = o.modelPath
			o.logger.Info("model saved", "path", o.modelPath)
		}
		return out, nil
	}
	return s, fmt.Errorf("%w: no transition into %s", models.ErrInvalidConfiguration, next)
}

// MergeDatasets concatenates a's rows then b's rows.
func MergeDatasets(a, b *dataset.Dataset) (*dataset.Dataset, error) {
	return dataset.Concat(a, b)
}

func (o *Orchestrator) trainStage(ctx context.Context, s Snapshot, next State, ds *dataset.Dataset) (Snapshot, error) {
	t, hit, err := o.train(ctx, ds)
	if err != nil {
		return s, err
	}
	o.recorder.TrainingRows(next.String(), ds.Len())
	o.logger.Debug("trained", "stage", next.String(), "rows", ds.Len(), "cached", hit)

	out := s.with(StageRecord{Stage: next, TrainingRows: ds.Len(), CacheHit: hit})
	out.State = next
	out.TrainingSet = ds
	out.Transformer = t
	return out, nil
}

// train fits ds. Fit runs to completion even if ctx is cancelled.
func (o *Orchestrator) train(ctx context.Context, ds *dataset.Dataset) (ranker.Transformer, bool, error) {
	var key string
	if o.cache != nil {
		k, err := cache.Key(o.fingerprint, ds)
		if err != nil {
			o.logger.Warn("fit cache disabled for stage", "error", err)
		} else {
			key = k
			if t, ok := o.cache.Get(key); ok {
				o.recorder.CacheResult(true)
				return t, true, nil
			}
			o.recorder.CacheResult(false)
		}
	}

	t, err := o.ranker.Fit(context.WithoutCancel(ctx), ds)
	if err != nil {
		return nil, false, err
	}

	if key != "" {
		if err := o.cache.Put(key, t); err != nil {
			o.logger.Warn("failed to cache trained model", "error", err)
		}
	}
	return t, false, nil
}

func (o *Orchestrator) evaluateStage(ctx context.Context, t ranker.Transformer, ds *dataset.Dataset, split string) (*models.RankingMetrics, StageRecord, error) {
	groups, err := o.evaluateGroups(ctx, t, ds)
	if err != nil {
		return nil, StageRecord{}, err
	}
	m := metrics.Aggregate(groups, o.level)
	o.recorder.Metrics(split, m.DCG, m.NDCG)

	rec := StageRecord{Split: split, Metrics: &m}
	if o.bootstrap != nil {
		ci, err := o.bootstrap.MeanInterval(metrics.NDCGAt(groups, int(o.level)))
		if err != nil {
			return nil, StageRecord{}, err
		}
		rec.NDCGSpread = &ci
	}
	return &m, rec, nil
}

func (o *Orchestrator) evaluateGroups(ctx context.Context, t ranker.Transformer, ds *dataset.Dataset) ([]metrics.GroupResult, error) {
	scored, err := ranker.ScoreDataset(t, ds)
	if err != nil {
		return nil, err
	}
	return o.evaluator.EvaluateGroups(ctx, scored, o.level)
}

// Evaluate scores every row of ds with t and computes DCG/NDCG at 1..k.
func (o *Orchestrator) Evaluate(ctx context.Context, t ranker.Transformer, ds *dataset.Dataset) (models.RankingMetrics, error) {
	groups, err := o.evaluateGroups(ctx, t, ds)
	if err != nil {
		return models.RankingMetrics{}, err
	}
	return metrics.Aggregate(groups, o.level), nil
}
