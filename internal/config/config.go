// Package config provides the PipelineConfig struct and loader for ltrank.yaml
// pipeline configuration files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/spboyer/ltrank/internal/features"
	"github.com/spboyer/ltrank/internal/models"
	"github.com/spboyer/ltrank/internal/modelstore"
	"github.com/spboyer/ltrank/internal/ranker"
	"github.com/spboyer/ltrank/internal/topk"
)

// Default values for pipeline configuration. New() references them and no
// other code should duplicate them.
const (
	DefaultFileName = "ltrank.yaml"

	DefaultModelPath       = "model.zst"
	DefaultSeed            = 0
	DefaultTruncationLevel = models.DefaultTruncationLevel
	DefaultRankerKind      = ranker.KindPairwise
	DefaultGroupHashBits   = features.DefaultGroupHashBits
	DefaultScanWindow      = topk.DefaultScanWindow

	DefaultStoreKind = StoreFile
	DefaultContainer = "models"

	DefaultCacheDir = ".ltrank-cache"

	// EnvPrefix prefixes every environment override, e.g. LTRANK_SEED.
	EnvPrefix = "ltrank"
)

// Model store backends.
const (
	StoreFile   = "file"
	StoreAzblob = "azblob"
)

// DatasetsConfig names the three TSV splits. Only Train carries a header.
type DatasetsConfig struct {
	Train      string `yaml:"train"`
	Validation string `yaml:"validation"`
	Test       string `yaml:"test"`
}

// EvaluationConfig holds metric settings.
type EvaluationConfig struct {
	TruncationLevel     models.TruncationLevel `yaml:"truncation_level,omitempty"`
	Workers             int                    `yaml:"workers,omitempty"`
	ConfidenceIntervals *bool                  `yaml:"confidence_intervals,omitempty"`
}

// RankerConfig selects the ranker kind and its free-form parameters.
type RankerConfig struct {
	Kind   string         `yaml:"kind,omitempty"`
	Params map[string]any `yaml:"params,omitempty"`
}

// FeaturesConfig holds feature pipeline settings.
type FeaturesConfig struct {
	GroupHashBits int      `yaml:"group_hash_bits,omitempty"`
	Exclude       []string `yaml:"exclude,omitempty"`
}

// ConsumeConfig controls the top-k re-ranking of one test group. A nil
// GroupID means the first group of the test split.
type ConsumeConfig struct {
	ScanWindow int     `yaml:"scan_window,omitempty"`
	GroupID    *uint64 `yaml:"group_id,omitempty"`
}

// StoreConfig selects where the final model is persisted.
type StoreConfig struct {
	Kind       string `yaml:"kind,omitempty"`
	AccountURL string `yaml:"account_url,omitempty"`
	Container  string `yaml:"container,omitempty"`
}

// GateConfig holds the quality gate. Zero disables it.
type GateConfig struct {
	MinNDCG float64 `yaml:"min_ndcg,omitempty"`
}

// CacheConfig holds fit cache settings.
type CacheConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Dir     string `yaml:"dir,omitempty"`
}

// OutputConfig lists optional report destinations.
type OutputConfig struct {
	Results string `yaml:"results,omitempty"`
	JUnit   string `yaml:"junit,omitempty"`
	Report  string `yaml:"report,omitempty"`
	Metrics string `yaml:"metrics,omitempty"`
}

// PipelineConfig is the top-level configuration loaded from ltrank.yaml.
type PipelineConfig struct {
	Datasets   DatasetsConfig   `yaml:"datasets"`
	ModelPath  string           `yaml:"model_path,omitempty"`
	Seed       int64            `yaml:"seed,omitempty"`
	Evaluation EvaluationConfig `yaml:"evaluation,omitempty"`
	Ranker     RankerConfig     `yaml:"ranker,omitempty"`
	Features   FeaturesConfig   `yaml:"features,omitempty"`
	Consume    ConsumeConfig    `yaml:"consume,omitempty"`
	Store      StoreConfig      `yaml:"store,omitempty"`
	Gate       GateConfig       `yaml:"gate,omitempty"`
	Cache      CacheConfig      `yaml:"cache,omitempty"`
	Output     OutputConfig     `yaml:"output,omitempty"`
}

// New returns a PipelineConfig with all hard-coded defaults populated.
func New() *PipelineConfig {
	return &PipelineConfig{
		ModelPath: DefaultModelPath,
		Seed:      DefaultSeed,
		Evaluation: EvaluationConfig{
			TruncationLevel:     DefaultTruncationLevel,
			ConfidenceIntervals: boolPtr(false),
		},
		Ranker: RankerConfig{
			Kind: DefaultRankerKind,
		},
		Features: FeaturesConfig{
			GroupHashBits: DefaultGroupHashBits,
		},
		Consume: ConsumeConfig{
			ScanWindow: DefaultScanWindow,
		},
		Store: StoreConfig{
			Kind:      DefaultStoreKind,
			Container: DefaultContainer,
		},
		Cache: CacheConfig{
			Enabled: boolPtr(false),
			Dir:     DefaultCacheDir,
		},
	}
}

// Load reads path, validates it against the embedded schema and fills in
// missing fields with defaults. Relative dataset and model paths are
// resolved against the directory of path.
func Load(path string) (*PipelineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	if errs := ValidateBytes(data); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s: %s", models.ErrInvalidConfiguration, path, joinErrors(errs))
	}

	var fileCfg PipelineConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg := New()
	mergeConfig(cfg, &fileCfg)
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// Find walks up from startDir (max 10 levels) looking for ltrank.yaml.
// Returns os.ErrNotExist if no config file is found.
func Find(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", startDir, err)
	}

	for range 10 {
		p := filepath.Join(dir, DefaultFileName)
		_, err := os.Stat(p)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

// Save writes cfg as YAML.
func (c *PipelineConfig) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if errs := ValidateBytes(data); len(errs) > 0 {
		return fmt.Errorf("%w: %s", models.ErrInvalidConfiguration, joinErrors(errs))
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

type envOverrides struct {
	Seed            *int64
	TruncationLevel *int    `split_words:"true"`
	ModelPath       *string `split_words:"true"`
	Workers         *int
}

// ApplyEnv overlays LTRANK_SEED, LTRANK_TRUNCATION_LEVEL, LTRANK_MODEL_PATH
// and LTRANK_WORKERS when set.
func (c *PipelineConfig) ApplyEnv() error {
	var o envOverrides
	if err := envconfig.Process(EnvPrefix, &o); err != nil {
		return fmt.Errorf("%w: environment: %v", models.ErrInvalidConfiguration, err)
	}
	if o.Seed != nil {
		c.Seed = *o.Seed
	}
	if o.TruncationLevel != nil {
		c.Evaluation.TruncationLevel = models.TruncationLevel(*o.TruncationLevel)
	}
	if o.ModelPath != nil {
		c.ModelPath = *o.ModelPath
	}
	if o.Workers != nil {
		c.Evaluation.Workers = *o.Workers
	}
	return nil
}

// Validate checks the settings the schema cannot express and those that may
// have been changed after loading.
func (c *PipelineConfig) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{models.ErrInvalidConfiguration}, args...)...))
	}

	if c.Datasets.Train == "" || c.Datasets.Validation == "" || c.Datasets.Test == "" {
		invalid("datasets.train, datasets.validation and datasets.test are required")
	}
	if err := c.Evaluation.TruncationLevel.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Evaluation.Workers < 0 {
		invalid("evaluation.workers must not be negative, got %d", c.Evaluation.Workers)
	}
	if !slices.Contains(ranker.Kinds(), c.Ranker.Kind) {
		invalid("ranker.kind %q is not one of %v", c.Ranker.Kind, ranker.Kinds())
	}
	if c.Consume.ScanWindow < 1 {
		invalid("consume.scan_window must be at least 1, got %d", c.Consume.ScanWindow)
	}
	if c.Gate.MinNDCG < 0 || c.Gate.MinNDCG > 1 {
		invalid("gate.min_ndcg must be within [0, 1], got %v", c.Gate.MinNDCG)
	}
	switch c.StoreKind() {
	case StoreFile:
	case StoreAzblob:
		if c.Store.AccountURL == "" {
			invalid("store.account_url is required for the azblob store")
		}
	default:
		invalid("store.kind %q is not one of [file azblob]", c.Store.Kind)
	}
	return errors.Join(errs...)
}

// StoreKind is the effective store backend. An azblob:// model path selects
// the blob store regardless of store.kind.
func (c *PipelineConfig) StoreKind() string {
	if modelstore.IsBlobPath(c.ModelPath) {
		return StoreAzblob
	}
	return c.Store.Kind
}

// CacheEnabled reports whether the fit cache is on.
func (c *PipelineConfig) CacheEnabled() bool {
	return c.Cache.Enabled != nil && *c.Cache.Enabled
}

// ConfidenceIntervals reports whether bootstrap intervals are computed.
func (c *PipelineConfig) ConfidenceIntervals() bool {
	return c.Evaluation.ConfidenceIntervals != nil && *c.Evaluation.ConfidenceIntervals
}

func (c *PipelineConfig) resolvePaths(baseDir string) {
	resolve := func(p *string) {
		if *p == "" || filepath.IsAbs(*p) || modelstore.IsBlobPath(*p) {
			return
		}
		*p = filepath.Join(baseDir, *p)
	}
	resolve(&c.Datasets.Train)
	resolve(&c.Datasets.Validation)
	resolve(&c.Datasets.Test)
	resolve(&c.ModelPath)
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *PipelineConfig) {
	// Datasets
	if src.Datasets.Train != "" {
		dst.Datasets.Train = src.Datasets.Train
	}
	if src.Datasets.Validation != "" {
		dst.Datasets.Validation = src.Datasets.Validation
	}
	if src.Datasets.Test != "" {
		dst.Datasets.Test = src.Datasets.Test
	}

	if src.ModelPath != "" {
		dst.ModelPath = src.ModelPath
	}
	if src.Seed != 0 {
		dst.Seed = src.Seed
	}

	// Evaluation
	if src.Evaluation.TruncationLevel != 0 {
		dst.Evaluation.TruncationLevel = src.Evaluation.TruncationLevel
	}
	if src.Evaluation.Workers != 0 {
		dst.Evaluation.Workers = src.Evaluation.Workers
	}
	if src.Evaluation.ConfidenceIntervals != nil {
		dst.Evaluation.ConfidenceIntervals = src.Evaluation.ConfidenceIntervals
	}

	// Ranker
	if src.Ranker.Kind != "" {
		dst.Ranker.Kind = src.Ranker.Kind
	}
	if src.Ranker.Params != nil {
		dst.Ranker.Params = src.Ranker.Params
	}

	// Features
	if src.Features.GroupHashBits != 0 {
		dst.Features.GroupHashBits = src.Features.GroupHashBits
	}
	if src.Features.Exclude != nil {
		dst.Features.Exclude = src.Features.Exclude
	}

	// Consume
	if src.Consume.ScanWindow != 0 {
		dst.Consume.ScanWindow = src.Consume.ScanWindow
	}
	if src.Consume.GroupID != nil {
		dst.Consume.GroupID = src.Consume.GroupID
	}

	// Store
	if src.Store.Kind != "" {
		dst.Store.Kind = src.Store.Kind
	}
	if src.Store.AccountURL != "" {
		dst.Store.AccountURL = src.Store.AccountURL
	}
	if src.Store.Container != "" {
		dst.Store.Container = src.Store.Container
	}

	if src.Gate.MinNDCG != 0 {
		dst.Gate.MinNDCG = src.Gate.MinNDCG
	}

	// Cache
	if src.Cache.Enabled != nil {
		dst.Cache.Enabled = src.Cache.Enabled
	}
	if src.Cache.Dir != "" {
		dst.Cache.Dir = src.Cache.Dir
	}

	// Output
	if src.Output.Results != "" {
		dst.Output.Results = src.Output.Results
	}
	if src.Output.JUnit != "" {
		dst.Output.JUnit = src.Output.JUnit
	}
	if src.Output.Report != "" {
		dst.Output.Report = src.Output.Report
	}
	if src.Output.Metrics != "" {
		dst.Output.Metrics = src.Output.Metrics
	}
}

func boolPtr(b bool) *bool {
	return &b
}
