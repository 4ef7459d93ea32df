package main

import (
	"github.com/spf13/cobra"

	"github.com/spboyer/ltrank/internal/ranker"
	"github.com/spboyer/ltrank/internal/reporting"
	"github.com/spboyer/ltrank/internal/topk"
)

func newTopCommand() *cobra.Command {
	var (
		opts       modelOptions
		scanWindow int
		groupID    uint64
	)

	cmd := &cobra.Command{
		Use:   "top <data.tsv>",
		Short: "Re-rank one query group with a saved model",
		Long: `Score the first --scan-window rows of a TSV dataset with a saved model,
keep the rows of one query group and print them by descending score.

The group defaults to the group of the first row. Rows of the group that lie
beyond the scan window are not considered.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, ds, err := loadModel(cmd.Context(), opts.modelPath, args[0], opts.header, opts.store())
			if err != nil {
				return err
			}
			scored, err := ranker.ScoreDataset(t, ds)
			if err != nil {
				return err
			}

			id := groupID
			if !cmd.Flags().Changed("group-id") {
				if id, err = topk.FirstGroup(scored); err != nil {
					return err
				}
			}
			rows, err := topk.Extract(scored, id, scanWindow)
			if err != nil {
				return err
			}
			return reporting.WriteScores(cmd.OutOrStdout(), rows)
		},
	}

	opts.register(cmd)
	cmd.Flags().IntVar(&scanWindow, "scan-window", topk.DefaultScanWindow, "Number of leading rows to scan")
	cmd.Flags().Uint64Var(&groupID, "group-id", 0, "Query group to re-rank (default: group of the first row)")

	return cmd
}
