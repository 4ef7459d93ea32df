package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/spboyer/ltrank/internal/cache"
	"github.com/spboyer/ltrank/internal/config"
	"github.com/spboyer/ltrank/internal/features"
	"github.com/spboyer/ltrank/internal/metrics"
	"github.com/spboyer/ltrank/internal/models"
	"github.com/spboyer/ltrank/internal/orchestration"
	"github.com/spboyer/ltrank/internal/ranker"
	"github.com/spboyer/ltrank/internal/reporting"
	"github.com/spboyer/ltrank/internal/telemetry"
	"github.com/spboyer/ltrank/internal/topk"
)

type runOptions struct {
	configPath   string
	outputPath   string
	junitPath    string
	reportPath   string
	metricsPath  string
	verbose      bool
	interpret    bool
	workers      int
	minNDCG      float64
	enableCache  bool
	disableCache bool
	cacheDir     string
}

func newRunCommand() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the progressive training pipeline",
		Long: `Run the progressive training pipeline described by ltrank.yaml.

The model is trained on the training split and evaluated on validation, then
retrained on train+validation and evaluated on test, then retrained on all
three splits and saved. Finally the saved model re-ranks one test query group.

Exit code 1 means the run finished but test NDCG is below gate.min_ndcg.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommandE(cmd, &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Pipeline config file (default: nearest ltrank.yaml)")
	cmd.Flags().StringVarP(&opts.outputPath, "output", "o", "", "Output JSON file for the run outcome")
	cmd.Flags().StringVar(&opts.junitPath, "junit", "", "Write a JUnit XML quality-gate report")
	cmd.Flags().StringVar(&opts.reportPath, "report", "", "Write a markdown (or .html) summary report")
	cmd.Flags().StringVar(&opts.metricsPath, "metrics-file", "", "Write Prometheus textfile metrics")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output with per-stage timings")
	cmd.Flags().BoolVar(&opts.interpret, "interpret", false, "Print a plain-language interpretation of the results")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Concurrent evaluation workers (default: evaluation.workers or GOMAXPROCS)")
	cmd.Flags().Float64Var(&opts.minNDCG, "min-ndcg", 0, "Minimum test NDCG@k (overrides gate.min_ndcg)")
	cmd.Flags().BoolVar(&opts.enableCache, "cache", false, "Enable the fit cache")
	cmd.Flags().BoolVar(&opts.disableCache, "no-cache", false, "Disable the fit cache")
	cmd.Flags().StringVar(&opts.cacheDir, "cache-dir", "", "Fit cache directory (default: cache.dir)")

	return cmd
}

// applyFlags overlays command-line flags onto the loaded config.
func (o *runOptions) applyFlags(cfg *config.PipelineConfig) {
	if o.workers > 0 {
		cfg.Evaluation.Workers = o.workers
	}
	if o.minNDCG > 0 {
		cfg.Gate.MinNDCG = o.minNDCG
	}
	if o.enableCache {
		enabled := true
		cfg.Cache.Enabled = &enabled
	}
	if o.disableCache {
		disabled := false
		cfg.Cache.Enabled = &disabled
	}
	if o.cacheDir != "" {
		cfg.Cache.Dir = o.cacheDir
	}
	if o.outputPath != "" {
		cfg.Output.Results = o.outputPath
	}
	if o.junitPath != "" {
		cfg.Output.JUnit = o.junitPath
	}
	if o.reportPath != "" {
		cfg.Output.Report = o.reportPath
	}
	if o.metricsPath != "" {
		cfg.Output.Metrics = o.metricsPath
	}
}

func runCommandE(cmd *cobra.Command, opts *runOptions) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	opts.applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	outcome, err := runPipeline(cmd.Context(), out, cfg, opts)
	if err != nil {
		return err
	}

	if opts.interpret {
		fmt.Fprintln(out)                                       //nolint:errcheck
		fmt.Fprint(out, reporting.FormatSummaryReport(outcome)) //nolint:errcheck
	}

	if err := writeOutputs(out, cfg.Output, outcome); err != nil {
		return err
	}

	fmt.Fprintln(out, "Done!") //nolint:errcheck

	if outcome.Gate.Status == models.StatusFailed {
		return &GateFailedError{
			Message: fmt.Sprintf("quality gate failed: test NDCG@%d %.4f is below %.4f",
				outcome.Gate.Level, outcome.Gate.Value, outcome.Gate.Threshold),
		}
	}
	if outcome.Gate.Status == models.StatusError {
		return fmt.Errorf("quality gate could not be evaluated at NDCG@%d", outcome.Gate.Level)
	}
	return nil
}

// runPipeline loads the splits, runs the orchestrator and consumes the saved
// model. It returns the outcome of a completed run.
func runPipeline(ctx context.Context, out io.Writer, cfg *config.PipelineConfig, opts *runOptions) (*models.PipelineOutcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	startTime := time.Now()

	banner(out, "Prepare data")
	splits, err := loadSplits(cfg.Datasets)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(out, "Train: %s rows, Validation: %s rows, Test: %s rows\n\n", //nolint:errcheck
		reporting.FormatCount(splits.Train.Len()),
		reporting.FormatCount(splits.Validation.Len()),
		reporting.FormatCount(splits.Test.Len()))

	banner(out, "Set up the trainer")
	pipeline, err := buildPipeline(cfg, splits.Train.Columns())
	if err != nil {
		return nil, err
	}
	r, err := newRanker(cfg, pipeline)
	if err != nil {
		return nil, err
	}
	store, err := openStore(cfg.ModelPath, storeOptionsFrom(cfg))
	if err != nil {
		return nil, err
	}

	var recorder *telemetry.Recorder
	if cfg.Output.Metrics != "" {
		recorder = telemetry.NewRecorder()
	}

	orchOpts := []orchestration.Option{
		orchestration.WithTruncationLevel(cfg.Evaluation.TruncationLevel),
		orchestration.WithEvaluator(metrics.NewEvaluator(metrics.WithWorkers(cfg.Evaluation.Workers))),
		orchestration.WithModelStore(store, cfg.ModelPath),
		orchestration.WithTelemetry(recorder),
		orchestration.WithLogger(slog.Default()),
	}
	if cfg.CacheEnabled() {
		absCacheDir, err := filepath.Abs(cfg.Cache.Dir)
		if err != nil {
			return nil, fmt.Errorf("resolving cache directory: %w", err)
		}
		orchOpts = append(orchOpts, orchestration.WithFitCache(cache.New(absCacheDir), cache.Fingerprint{
			Kind:          cfg.Ranker.Kind,
			Params:        cfg.Ranker.Params,
			Seed:          cfg.Seed,
			GroupHashBits: cfg.Features.GroupHashBits,
			Exclude:       cfg.Features.Exclude,
		}))
		if opts.verbose {
			fmt.Fprintf(out, "Fit cache enabled: %s\n\n", absCacheDir) //nolint:errcheck
		}
	}
	if cfg.ConfidenceIntervals() {
		orchOpts = append(orchOpts, orchestration.WithConfidenceIntervals(cfg.Seed))
	}

	orch := orchestration.New(r, orchOpts...)
	orch.OnProgress(newConsoleReporter(out, cfg.Evaluation.TruncationLevel, opts.verbose).listen)

	snap, runErr := orch.Run(ctx, splits)
	if cfg.Output.Metrics != "" {
		if err := recorder.WriteTextfile(cfg.Output.Metrics); err != nil {
			slog.Warn("failed to write metrics textfile", "path", cfg.Output.Metrics, "error", err)
		}
	}
	if runErr != nil {
		return nil, fmt.Errorf("pipeline failed: %w", runErr)
	}

	banner(out, "Consume the model")
	top, err := consumeModel(ctx, out, store, snap.ModelPath, splits, cfg.Consume)
	if err != nil {
		return nil, err
	}

	outcome := &models.PipelineOutcome{
		RunID:     uuid.NewString(),
		Timestamp: startTime.UTC(),
		Setup: models.OutcomeSetup{
			RankerKind:      cfg.Ranker.Kind,
			Seed:            cfg.Seed,
			TruncationLevel: cfg.Evaluation.TruncationLevel,
			ModelPath:       snap.ModelPath,
			TrainPath:       cfg.Datasets.Train,
			ValidationPath:  cfg.Datasets.Validation,
			TestPath:        cfg.Datasets.Test,
		},
		Stages:     snap.StageOutcomes(),
		Gate:       reporting.EvaluateGate(snap.Test, int(cfg.Evaluation.TruncationLevel), cfg.Gate.MinNDCG),
		TopResults: top,
		DurationMs: time.Since(startTime).Milliseconds(),
	}
	printSummary(out, outcome)
	return outcome, nil
}

// modelLoader is the read half of modelstore.Store.
type modelLoader interface {
	Load(ctx context.Context, path string) (ranker.Transformer, features.Schema, error)
}

// consumeModel reloads the persisted model and prints the top results of one
// test query group.
func consumeModel(ctx context.Context, out io.Writer, store modelLoader, modelPath string, splits orchestration.Splits, consume config.ConsumeConfig) (*models.TopResults, error) {
	t, _, err := store.Load(ctx, modelPath)
	if err != nil {
		return nil, fmt.Errorf("loading saved model: %w", err)
	}
	scored, err := ranker.ScoreDataset(t, splits.Test)
	if err != nil {
		return nil, err
	}

	var groupID uint64
	if consume.GroupID != nil {
		groupID = *consume.GroupID
	} else if groupID, err = topk.FirstGroup(scored); err != nil {
		return nil, err
	}

	rows, err := topk.Extract(scored, groupID, consume.ScanWindow)
	if err != nil {
		return nil, err
	}
	if err := reporting.WriteScores(out, rows); err != nil {
		return nil, err
	}
	fmt.Fprintln(out) //nolint:errcheck
	return &models.TopResults{GroupID: groupID, ScanWindow: consume.ScanWindow, Rows: rows}, nil
}

func writeOutputs(out io.Writer, o config.OutputConfig, outcome *models.PipelineOutcome) error {
	if o.Results != "" {
		if err := saveOutcome(outcome, o.Results); err != nil {
			return fmt.Errorf("failed to save output: %w", err)
		}
		fmt.Fprintf(out, "Results saved to: %s\n", o.Results) //nolint:errcheck
	}
	if o.JUnit != "" {
		if err := reporting.WriteJUnitXML(outcome, o.JUnit); err != nil {
			return fmt.Errorf("failed to write JUnit report: %w", err)
		}
		fmt.Fprintf(out, "JUnit report saved to: %s\n", o.JUnit) //nolint:errcheck
	}
	if o.Report != "" {
		if err := reporting.WriteReport(outcome, o.Report); err != nil {
			return err
		}
		fmt.Fprintf(out, "Report saved to: %s\n", o.Report) //nolint:errcheck
	}
	return nil
}

func saveOutcome(outcome *models.PipelineOutcome, path string) error {
	data, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
