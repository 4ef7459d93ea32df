package models

import (
	"time"

	"github.com/spboyer/ltrank/internal/statistics"
)

// Status represents the outcome status of a run or quality gate.
type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
	StatusError  Status = "error"
	// StatusSkipped is used when no quality gate is configured.
	StatusSkipped Status = "skipped"
)

// PipelineOutcome represents the complete result of one progressive training run.
type PipelineOutcome struct {
	RunID      string         `json:"run_id"`
	Timestamp  time.Time      `json:"timestamp"`
	Setup      OutcomeSetup   `json:"config"`
	Stages     []StageOutcome `json:"stages"`
	Gate       GateOutcome    `json:"gate"`
	TopResults *TopResults    `json:"top_results,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

type OutcomeSetup struct {
	RankerKind      string          `json:"ranker_kind"`
	Seed            int64           `json:"seed"`
	TruncationLevel TruncationLevel `json:"truncation_level"`
	ModelPath       string          `json:"model_path,omitempty"`
	TrainPath       string          `json:"train_path"`
	ValidationPath  string          `json:"validation_path"`
	TestPath        string          `json:"test_path"`
}

// StageOutcome records one orchestrator transition. Metrics is set only for
// evaluation stages.
type StageOutcome struct {
	Stage        string                         `json:"stage"`
	Split        string                         `json:"split,omitempty"`
	TrainingRows int                            `json:"training_rows"`
	CacheHit     bool                           `json:"cache_hit,omitempty"`
	Metrics      *RankingMetrics                `json:"metrics,omitempty"`
	NDCGSpread   *statistics.ConfidenceInterval `json:"ndcg_interval,omitempty"`
	DurationMs   int64                          `json:"duration_ms"`
}

// GateOutcome is the result of comparing the final test NDCG against the
// configured minimum.
type GateOutcome struct {
	Status    Status  `json:"status"`
	Level     int     `json:"level,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Value     float64 `json:"value,omitempty"`
}

// TopResults is the re-ranking of one query group by the persisted model.
type TopResults struct {
	GroupID    uint64      `json:"group_id"`
	ScanWindow int         `json:"scan_window"`
	Rows       []ScoredRow `json:"rows"`
}

// EvaluatedStages returns the stages that carry metrics, in run order.
func (o *PipelineOutcome) EvaluatedStages() []StageOutcome {
	var out []StageOutcome
	for _, s := range o.Stages {
		if s.Metrics != nil {
			out = append(out, s)
		}
	}
	return out
}

// FinalMetrics returns the metrics of the last evaluated stage.
func (o *PipelineOutcome) FinalMetrics() (*RankingMetrics, bool) {
	evaluated := o.EvaluatedStages()
	if len(evaluated) == 0 {
		return nil, false
	}
	return evaluated[len(evaluated)-1].Metrics, true
}
