package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ltrank",
		Short: "ltrank - train and evaluate learning-to-rank models",
		Long: `ltrank trains a ranking model on search-result relevance data and
measures its quality with DCG and NDCG.

A run trains on the training split, evaluates on validation, retrains on
train+validation, evaluates on test, retrains on all three splits and saves
the final model.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newEvaluateCommand())
	cmd.AddCommand(newTopCommand())
	cmd.AddCommand(newInitCommand())
	cmd.AddCommand(newCacheCommand())

	return cmd
}

// execute runs the root command. An interrupt stops the pipeline at the next
// stage boundary.
func execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := newRootCommand()
	return rootCmd.ExecuteContext(ctx)
}
