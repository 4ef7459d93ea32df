package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spboyer/ltrank/internal/config"
	"github.com/spboyer/ltrank/internal/dataset"
	"github.com/spboyer/ltrank/internal/features"
	"github.com/spboyer/ltrank/internal/modelstore"
	"github.com/spboyer/ltrank/internal/orchestration"
	"github.com/spboyer/ltrank/internal/ranker"
)

// loadConfig reads path, or the nearest ltrank.yaml when path is empty, then
// applies environment overrides.
func loadConfig(path string) (*config.PipelineConfig, error) {
	if path == "" {
		found, err := config.Find(".")
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no %s found; run 'ltrank init' or pass --config", config.DefaultFileName)
		}
		if err != nil {
			return nil, err
		}
		path = found
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadSplits reads the training split with its header, then the headerless
// validation and test splits with the training columns.
func loadSplits(d config.DatasetsConfig) (orchestration.Splits, error) {
	train, err := dataset.LoadTSV(d.Train, dataset.WithHeader())
	if err != nil {
		return orchestration.Splits{}, fmt.Errorf("loading training split: %w", err)
	}
	validation, err := dataset.LoadTSV(d.Validation, dataset.WithColumns(train.Columns()))
	if err != nil {
		return orchestration.Splits{}, fmt.Errorf("loading validation split: %w", err)
	}
	test, err := dataset.LoadTSV(d.Test, dataset.WithColumns(train.Columns()))
	if err != nil {
		return orchestration.Splits{}, fmt.Errorf("loading test split: %w", err)
	}
	return orchestration.Splits{Train: train, Validation: validation, Test: test}, nil
}

func buildPipeline(cfg *config.PipelineConfig, columns []string) (*features.Pipeline, error) {
	return features.NewBuilder(columns,
		features.ExcludeColumns(cfg.Features.Exclude...),
		features.WithGroupHashBits(cfg.Features.GroupHashBits),
	).Build()
}

func newRanker(cfg *config.PipelineConfig, pipeline *features.Pipeline) (ranker.Ranker, error) {
	return ranker.New(cfg.Ranker.Kind, cfg.Ranker.Params, pipeline, cfg.Seed)
}

// storeOptions selects a model store without a full pipeline config.
type storeOptions struct {
	kind       string
	accountURL string
	container  string
}

func storeOptionsFrom(cfg *config.PipelineConfig) storeOptions {
	return storeOptions{kind: cfg.StoreKind(), accountURL: cfg.Store.AccountURL, container: cfg.Store.Container}
}

// openStore returns the store for modelPath. An azblob:// path always uses
// the blob store.
func openStore(modelPath string, opts storeOptions) (modelstore.Store, error) {
	kind := opts.kind
	if modelstore.IsBlobPath(modelPath) {
		kind = config.StoreAzblob
	}
	switch kind {
	case "", config.StoreFile:
		return modelstore.NewFileStore(), nil
	case config.StoreAzblob:
		if opts.accountURL == "" {
			return nil, fmt.Errorf("a storage account URL is required for %s", modelPath)
		}
		return modelstore.NewDefaultBlobStore(opts.accountURL, opts.container)
	default:
		return nil, fmt.Errorf("unknown store kind: %s", kind)
	}
}

// loadModel loads a persisted model and the dataset at dataPath. Headerless
// data is read with the columns the model was trained on.
func loadModel(ctx context.Context, modelPath, dataPath string, header bool, opts storeOptions) (ranker.Transformer, *dataset.Dataset, error) {
	store, err := openStore(modelPath, opts)
	if err != nil {
		return nil, nil, err
	}
	t, schema, err := store.Load(ctx, modelPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading model: %w", err)
	}

	var loadOpts []dataset.LoadOption
	switch {
	case header:
		loadOpts = append(loadOpts, dataset.WithHeader())
	case len(schema.SourceColumns) > 0:
		loadOpts = append(loadOpts, dataset.WithColumns(schema.SourceColumns))
	}
	ds, err := dataset.LoadTSV(dataPath, loadOpts...)
	if err != nil {
		return nil, nil, err
	}
	return t, ds, nil
}
