package models

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by every stage of the pipeline. Callers match them
// with errors.Is; producers wrap them with context using %w.
var (
	// ErrInvalidConfiguration reports a parameter outside its valid domain,
	// such as a truncation level outside [1, 10].
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrEmptyInput reports a dataset or group with zero rows where at least
	// one is required.
	ErrEmptyInput = errors.New("empty input")

	// ErrSchemaMismatch reports feature vectors of different widths within a
	// dataset, or between training and scoring data.
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// StageFailedError halts a progressive training run. Cause is the error the
// failing stage returned, unchanged.
type StageFailedError struct {
	Stage string
	Cause error
}

func (e *StageFailedError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Cause)
}

func (e *StageFailedError) Unwrap() error {
	return e.Cause
}
