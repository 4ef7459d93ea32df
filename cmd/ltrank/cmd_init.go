package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/spboyer/ltrank/internal/config"
	"github.com/spboyer/ltrank/internal/wizard"
)

func newInitCommand() *cobra.Command {
	var interactive, force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create an ltrank.yaml pipeline config",
		Long: `Create an ltrank.yaml pipeline config with default settings.

Use --interactive to run a guided wizard that asks for the dataset splits,
truncation level, quality gate and model store.

If no directory is specified, the current directory is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return initCommandE(cmd, dir, interactive, force)
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Run the guided config wizard")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing ltrank.yaml")

	return cmd
}

func initCommandE(cmd *cobra.Command, dir string, interactive, force bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	cfgPath := filepath.Join(dir, config.DefaultFileName)
	if _, err := os.Stat(cfgPath); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", cfgPath)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking %s: %w", cfgPath, err)
	}

	var (
		cfg *config.PipelineConfig
		err error
	)
	if interactive {
		cfg, err = wizard.RunConfigWizard(cmd.InOrStdin(), cmd.OutOrStdout(), wizard.DefaultAnswers())
	} else {
		cfg, err = wizard.DefaultAnswers().Config()
	}
	if err != nil {
		return err
	}

	if err := cfg.Save(cfgPath); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Initialized pipeline config:") //nolint:errcheck
	fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", cfgPath)               //nolint:errcheck
	return nil
}
