// Package wizard collects an ltrank.yaml pipeline configuration interactively.
package wizard

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/spboyer/ltrank/internal/config"
	"github.com/spboyer/ltrank/internal/models"
)

// Answers holds the raw form values before they are turned into a config.
type Answers struct {
	Train           string
	Validation      string
	Test            string
	ModelPath       string
	StoreKind       string
	AccountURL      string
	TruncationLevel string
	MinNDCG         string
	Seed            string
	Exclude         string
	EnableCache     bool
}

// DefaultAnswers pre-populates the form from the config defaults.
func DefaultAnswers() Answers {
	d := config.New()
	return Answers{
		Train:           "train.tsv",
		Validation:      "validation.tsv",
		Test:            "test.tsv",
		ModelPath:       d.ModelPath,
		StoreKind:       d.Store.Kind,
		TruncationLevel: strconv.Itoa(int(d.Evaluation.TruncationLevel)),
		Seed:            strconv.FormatInt(d.Seed, 10),
	}
}

// RunConfigWizard runs an interactive huh form and returns the resulting
// pipeline config. Input that is not a terminal switches the form to
// accessible mode.
func RunConfigWizard(in io.Reader, out io.Writer, initial Answers) (*config.PipelineConfig, error) {
	a := initial

	levels := make([]huh.Option[string], 0, int(models.MaxTruncationLevel))
	for k := models.MinTruncationLevel; k <= models.MaxTruncationLevel; k++ {
		s := strconv.Itoa(int(k))
		levels = append(levels, huh.NewOption(s, s))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Training split").
				Description("TSV with a header row: Label, GroupId, features").
				Value(&a.Train).
				Validate(required("training split")),
			huh.NewInput().
				Title("Validation split").
				Description("Headerless TSV with the training columns").
				Value(&a.Validation).
				Validate(required("validation split")),
			huh.NewInput().
				Title("Test split").
				Description("Headerless TSV with the training columns").
				Value(&a.Test).
				Validate(required("test split")),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("NDCG truncation level").
				Options(levels...).
				Value(&a.TruncationLevel),
			huh.NewInput().
				Title("Minimum test NDCG").
				Description("Fail the run below this value (blank for no gate)").
				Placeholder("0.45").
				Value(&a.MinNDCG).
				Validate(validateMinNDCG),
			huh.NewInput().
				Title("Seed").
				Value(&a.Seed).
				Validate(validateSeed),
			huh.NewInput().
				Title("Excluded feature columns").
				Description("Comma-separated column names").
				Value(&a.Exclude),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Model store").
				Options(
					huh.NewOption("local file", config.StoreFile),
					huh.NewOption("Azure Blob Storage", config.StoreAzblob),
				).
				Value(&a.StoreKind),
			huh.NewInput().
				Title("Model path").
				Description("File path, or azblob://container/name for blob storage").
				Value(&a.ModelPath).
				Validate(required("model path")),
			huh.NewInput().
				Title("Storage account URL").
				Description("Only used by the blob store").
				Placeholder("https://<account>.blob.core.windows.net").
				Value(&a.AccountURL),
			huh.NewConfirm().
				Title("Cache trained models?").
				Value(&a.EnableCache),
		),
	).
		WithInput(in).
		WithOutput(out)

	if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		form = form.WithAccessible(true)
	}

	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("wizard failed: %w", err)
	}
	return a.Config()
}

// Config converts the answers into a validated PipelineConfig.
func (a Answers) Config() (*config.PipelineConfig, error) {
	cfg := config.New()
	cfg.Datasets = config.DatasetsConfig{
		Train:      strings.TrimSpace(a.Train),
		Validation: strings.TrimSpace(a.Validation),
		Test:       strings.TrimSpace(a.Test),
	}
	if p := strings.TrimSpace(a.ModelPath); p != "" {
		cfg.ModelPath = p
	}
	if a.StoreKind != "" {
		cfg.Store.Kind = a.StoreKind
	}
	cfg.Store.AccountURL = strings.TrimSpace(a.AccountURL)

	if s := strings.TrimSpace(a.TruncationLevel); s != "" {
		k, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("%w: truncation level %q", models.ErrInvalidConfiguration, s)
		}
		cfg.Evaluation.TruncationLevel = models.TruncationLevel(k)
	}
	if err := validateMinNDCG(a.MinNDCG); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidConfiguration, err)
	}
	if s := strings.TrimSpace(a.MinNDCG); s != "" {
		cfg.Gate.MinNDCG, _ = strconv.ParseFloat(s, 64)
	}
	if err := validateSeed(a.Seed); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidConfiguration, err)
	}
	if s := strings.TrimSpace(a.Seed); s != "" {
		cfg.Seed, _ = strconv.ParseInt(s, 10, 64)
	}
	cfg.Features.Exclude = splitAndTrim(a.Exclude)
	if a.EnableCache {
		enabled := true
		cfg.Cache.Enabled = &enabled
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func validateMinNDCG(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || v > 1 {
		return fmt.Errorf("minimum NDCG must be a number between 0 and 1")
	}
	return nil
}

func validateSeed(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if _, err := strconv.ParseInt(s, 10, 64); err != nil {
		return fmt.Errorf("seed must be an integer")
	}
	return nil
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
