// Package modelstore persists trained transformers as compressed artifacts on
// the local filesystem or in Azure Blob Storage.
package modelstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spboyer/ltrank/internal/features"
	"github.com/spboyer/ltrank/internal/ranker"
)

// ErrNotFound is returned by Load when no artifact exists at the path.
var ErrNotFound = errors.New("model artifact not found")

// BlobScheme prefixes model paths that live in Azure Blob Storage.
const BlobScheme = "azblob://"

// Store saves and loads transformers. Load(Save(t)) must score identically to t.
type Store interface {
	Save(ctx context.Context, t ranker.Transformer, path string) error
	Load(ctx context.Context, path string) (ranker.Transformer, features.Schema, error)
}

// FileStore keeps artifacts on the local filesystem.
type FileStore struct{}

// NewFileStore returns a FileStore.
func NewFileStore() *FileStore {
	return &FileStore{}
}

// Save writes the artifact atomically: a temp file in the target directory
// is renamed over path.
func (s *FileStore) Save(_ context.Context, t ranker.Transformer, path string) error {
	data, err := Marshal(t)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating model directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".model-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp model file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return fmt.Errorf("writing model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing model: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("saving model to %s: %w", path, err)
	}
	return nil
}

func (s *FileStore) Load(_ context.Context, path string) (ranker.Transformer, features.Schema, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, features.Schema{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, features.Schema{}, fmt.Errorf("reading model %s: %w", path, err)
	}
	art, err := Unmarshal(data)
	if err != nil {
		return nil, features.Schema{}, fmt.Errorf("loading model %s: %w", path, err)
	}
	return art.Transformer, art.Schema, nil
}

// IsBlobPath reports whether path uses the azblob:// scheme.
func IsBlobPath(path string) bool {
	return strings.HasPrefix(path, BlobScheme)
}

// ParseBlobPath splits azblob://container/name/with/slashes. A path without
// a container segment returns an error.
func ParseBlobPath(path string) (container, blob string, err error) {
	rest, ok := strings.CutPrefix(path, BlobScheme)
	if !ok {
		return "", "", fmt.Errorf("%q is not an %s path", path, BlobScheme)
	}
	container, blob, ok = strings.Cut(rest, "/")
	if !ok || container == "" || blob == "" {
		return "", "", fmt.Errorf("%q must look like %scontainer/blob", path, BlobScheme)
	}
	return container, blob, nil
}
