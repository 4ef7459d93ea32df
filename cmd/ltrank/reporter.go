package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/spboyer/ltrank/internal/models"
	"github.com/spboyer/ltrank/internal/orchestration"
	"github.com/spboyer/ltrank/internal/reporting"
	"github.com/spboyer/ltrank/internal/spinner"
)

var stageBanners = map[orchestration.State]string{
	orchestration.StateTrainedOnTrain:               "Train the model on the training dataset",
	orchestration.StateEvaluatedOnValidation:        "Evaluate the model's result quality with the validation data",
	orchestration.StateTrainedOnTrainPlusValidation: "Train the model on the training + validation dataset",
	orchestration.StateEvaluatedOnTest:              "Evaluate the model's result quality with the testing data",
	orchestration.StateTrainedOnAll:                 "Train the model on the training + validation + test dataset",
	orchestration.StateFinalized:                    "Save the model",
}

func banner(w io.Writer, title string) {
	fmt.Fprintf(w, "===== %s =====\n\n", title) //nolint:errcheck
}

// formatDuration formats a duration in a consistent, human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(time.Millisecond).String()
}

// consoleReporter prints orchestrator progress. On a terminal a spinner runs
// while a model trains.
type consoleReporter struct {
	w          io.Writer
	level      models.TruncationLevel
	verbose    bool
	useSpinner bool
	spin       *spinner.Spinner
}

func newConsoleReporter(w io.Writer, level models.TruncationLevel, verbose bool) *consoleReporter {
	r := &consoleReporter{w: w, level: level, verbose: verbose}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) && !verbose {
		r.useSpinner = true
	}
	return r
}

func (r *consoleReporter) listen(event orchestration.ProgressEvent) {
	switch event.EventType {
	case orchestration.EventStageStart:
		banner(r.w, stageBanners[event.Stage])
		if event.Stage == orchestration.StateEvaluatedOnValidation || event.Stage == orchestration.StateEvaluatedOnTest {
			banner(r.w, fmt.Sprintf("Use metrics for the data using NDCG@%d", r.level))
		}
		if r.useSpinner && isTrainingStage(event.Stage) {
			r.spin = spinner.Start(r.w, fmt.Sprintf("[%d/%d] %s", event.StageNum, event.TotalStages, event.Stage))
		}
	case orchestration.EventStageCached:
		r.stopSpinner()
		fmt.Fprintf(r.w, "Reusing cached model for %s rows\n\n", reporting.FormatCount(event.Rows)) //nolint:errcheck
	case orchestration.EventStageComplete:
		r.stopSpinner()
		if event.Metrics != nil {
			reporting.WriteMetrics(r.w, *event.Metrics) //nolint:errcheck
			fmt.Fprintln(r.w)                           //nolint:errcheck
		}
		if r.verbose {
			fmt.Fprintf(r.w, "[%d/%d] %s: %s rows, %s\n\n", //nolint:errcheck
				event.StageNum, event.TotalStages, event.Stage,
				reporting.FormatCount(event.Rows), formatDuration(time.Duration(event.DurationMs)*time.Millisecond))
		}
	case orchestration.EventStageFailed:
		r.stopSpinner()
		fmt.Fprintf(r.w, "Stage %s failed: %v\n", event.Stage, event.Err) //nolint:errcheck
	case orchestration.EventPipelineComplete:
		if r.verbose {
			fmt.Fprintf(r.w, "Pipeline completed in %s\n\n", formatDuration(time.Duration(event.DurationMs)*time.Millisecond)) //nolint:errcheck
		}
	}
}

func (r *consoleReporter) stopSpinner() {
	if r.spin != nil {
		r.spin.Stop()
		r.spin = nil
	}
}

func isTrainingStage(s orchestration.State) bool {
	switch s {
	case orchestration.StateTrainedOnTrain, orchestration.StateTrainedOnTrainPlusValidation, orchestration.StateTrainedOnAll:
		return true
	}
	return false
}

// printSummary renders the stage table and the quality gate.
func printSummary(w io.Writer, outcome *models.PipelineOutcome) {
	fmt.Fprintln(w, "=== Summary ===")    //nolint:errcheck
	fmt.Fprintln(w)                       //nolint:errcheck
	reporting.WriteStageTable(w, outcome) //nolint:errcheck
	fmt.Fprintln(w)                       //nolint:errcheck
	switch outcome.Gate.Status {
	case models.StatusPassed:
		fmt.Fprintf(w, "✓ Quality gate passed: NDCG@%d %.4f ≥ %.4f\n", outcome.Gate.Level, outcome.Gate.Value, outcome.Gate.Threshold) //nolint:errcheck
	case models.StatusFailed:
		fmt.Fprintf(w, "✗ Quality gate failed: NDCG@%d %.4f < %.4f\n", outcome.Gate.Level, outcome.Gate.Value, outcome.Gate.Threshold) //nolint:errcheck
	case models.StatusError:
		fmt.Fprintf(w, "✗ Quality gate could not be evaluated at NDCG@%d\n", outcome.Gate.Level) //nolint:errcheck
	}
	fmt.Fprintf(w, "Duration: %s\n", formatDuration(time.Duration(outcome.DurationMs)*time.Millisecond)) //nolint:errcheck
}
