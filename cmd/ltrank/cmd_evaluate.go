package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spboyer/ltrank/internal/metrics"
	"github.com/spboyer/ltrank/internal/models"
	"github.com/spboyer/ltrank/internal/orchestration"
	"github.com/spboyer/ltrank/internal/reporting"
)

type modelOptions struct {
	modelPath  string
	header     bool
	accountURL string
	container  string
}

func (o *modelOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.modelPath, "model", "m", "", "Model artifact path or azblob://container/name (required)")
	cmd.Flags().BoolVar(&o.header, "header", false, "The data file has a header row")
	cmd.Flags().StringVar(&o.accountURL, "account-url", "", "Storage account URL for azblob:// models")
	cmd.Flags().StringVar(&o.container, "container", "", "Default blob container")
	_ = cmd.MarkFlagRequired("model")
}

func (o *modelOptions) store() storeOptions {
	return storeOptions{accountURL: o.accountURL, container: o.container}
}

func newEvaluateCommand() *cobra.Command {
	var (
		opts    modelOptions
		level   int
		workers int
	)

	cmd := &cobra.Command{
		Use:   "evaluate <data.tsv>",
		Short: "Compute DCG/NDCG of a saved model on a dataset",
		Long: `Score every row of a TSV dataset with a saved model and print DCG and
NDCG at truncation levels 1 through k.

Headerless data is read with the feature columns the model was trained on.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, ds, err := loadModel(cmd.Context(), opts.modelPath, args[0], opts.header, opts.store())
			if err != nil {
				return err
			}

			orch := orchestration.New(nil,
				orchestration.WithTruncationLevel(models.TruncationLevel(level)),
				orchestration.WithEvaluator(metrics.NewEvaluator(metrics.WithWorkers(workers))),
			)
			m, err := orch.Evaluate(cmd.Context(), t, ds)
			if err != nil {
				return fmt.Errorf("evaluating %s: %w", ds.Name(), err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s rows in %s query groups\n", //nolint:errcheck
				ds.Name(), reporting.FormatCount(ds.Len()), reporting.FormatCount(m.Groups))
			return reporting.WriteMetrics(out, m)
		},
	}

	opts.register(cmd)
	cmd.Flags().IntVarP(&level, "level", "k", int(models.DefaultTruncationLevel), "Deepest truncation level (1-10)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent evaluation workers (default: GOMAXPROCS)")

	return cmd
}
