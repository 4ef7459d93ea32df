package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess    = 0 // Pipeline finished and the quality gate passed or was not configured
	ExitGateFailed = 1 // Pipeline finished but test NDCG is below the configured minimum
	ExitError      = 2 // Configuration, input or runtime error
)

// GateFailedError indicates that the pipeline ran successfully but the final
// model did not reach the configured minimum NDCG.
type GateFailedError struct {
	Message string
}

func (e *GateFailedError) Error() string {
	return e.Message
}

func main() {
	os.Exit(exitCode(execute()))
}

func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	fmt.Fprintln(os.Stderr, err)

	var gateErr *GateFailedError
	if errors.As(err, &gateErr) {
		return ExitGateFailed
	}
	return ExitError
}
