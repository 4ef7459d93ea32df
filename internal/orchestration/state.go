package orchestration

import (
	"slices"
	"time"

	"github.com/spboyer/ltrank/internal/dataset"
	"github.com/spboyer/ltrank/internal/models"
	"github.com/spboyer/ltrank/internal/ranker"
	"github.com/spboyer/ltrank/internal/statistics"
)

// State is a position in the progressive training sequence. Transitions are
// strictly sequential, from StateInitial to StateFinalized.
type State int

const (
	StateInitial State = iota
	StateTrainedOnTrain
	StateEvaluatedOnValidation
	StateTrainedOnTrainPlusValidation
	StateEvaluatedOnTest
	StateTrainedOnAll
	StateFinalized
)

var stateNames = [...]string{
	StateInitial:                      "initial",
	StateTrainedOnTrain:               "trained_on_train",
	StateEvaluatedOnValidation:        "evaluated_on_validation",
	StateTrainedOnTrainPlusValidation: "trained_on_train_plus_validation",
	StateEvaluatedOnTest:              "evaluated_on_test",
	StateTrainedOnAll:                 "trained_on_all",
	StateFinalized:                    "finalized",
}

// TotalStages is the number of transitions from StateInitial to StateFinalized.
const TotalStages = int(StateFinalized)

func (s State) String() string {
	if s < StateInitial || s > StateFinalized {
		return "unknown"
	}
	return stateNames[s]
}

// Splits are the three input datasets. They must share one feature layout.
type Splits struct {
	Train      *dataset.Dataset
	Validation *dataset.Dataset
	Test       *dataset.Dataset
}

// StageRecord describes one completed transition.
type StageRecord struct {
	Stage        State
	Split        string
	TrainingRows int
	CacheHit     bool
	Metrics      *models.RankingMetrics
	NDCGSpread   *statistics.ConfidenceInterval
	Duration     time.Duration
}

// Snapshot is the immutable state of a run between transitions. Step never
// modifies its input snapshot.
type Snapshot struct {
	State  State
	Splits Splits

	// TrainingSet is the dataset the current Transformer was fitted on.
	TrainingSet *dataset.Dataset
	Transformer ranker.Transformer

	Validation *models.RankingMetrics
	Test       *models.RankingMetrics

	// ModelPath is set once the final model has been persisted.
	ModelPath string

	History []StageRecord
}

func (s Snapshot) with(rec StageRecord) Snapshot {
	s.History = append(slices.Clip(s.History), rec)
	return s
}

// StageOutcomes converts the history into report records.
func (s Snapshot) StageOutcomes() []models.StageOutcome {
	out := make([]models.StageOutcome, 0, len(s.History))
	for _, h := range s.History {
		out = append(out, models.StageOutcome{
			Stage:        h.Stage.String(),
			Split:        h.Split,
			TrainingRows: h.TrainingRows,
			CacheHit:     h.CacheHit,
			Metrics:      h.Metrics,
			NDCGSpread:   h.NDCGSpread,
			DurationMs:   h.Duration.Milliseconds(),
		})
	}
	return out
}
