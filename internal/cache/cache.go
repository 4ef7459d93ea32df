package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/spboyer/ltrank/internal/dataset"
	"github.com/spboyer/ltrank/internal/modelstore"
	"github.com/spboyer/ltrank/internal/ranker"
)

const entryExt = ".zst"

// Cache stores trained transformers keyed by everything that influences
// training, so an unchanged rerun skips Fit.
type Cache struct {
	dir string
	mu  sync.Mutex
}

// New creates a new cache instance with the specified directory. An empty
// dir disables caching.
func New(dir string) *Cache {
	return &Cache{dir: dir}
}

// Fingerprint is the ranker configuration part of a cache key.
type Fingerprint struct {
	Kind          string
	Params        map[string]any
	Seed          int64
	GroupHashBits int
	Exclude       []string
}

// Key generates the cache key for fitting fp on ds. The key covers:
// - ranker kind, params and seed
// - feature pipeline settings
// - dataset columns and every row in order
func Key(fp Fingerprint, ds *dataset.Dataset) (string, error) {
	h := sha256.New()

	if err := writeString(h, fp.Kind); err != nil {
		return "", err
	}
	if err := writeInt(h, fp.Seed); err != nil {
		return "", err
	}
	// map keys are sorted by encoding/json
	paramsJSON, err := json.Marshal(fp.Params)
	if err != nil {
		return "", fmt.Errorf("marshaling ranker params: %w", err)
	}
	if _, err := h.Write(paramsJSON); err != nil {
		return "", err
	}
	if err := writeInt(h, int64(fp.GroupHashBits)); err != nil {
		return "", err
	}
	exclude := slices.Clone(fp.Exclude)
	slices.Sort(exclude)
	for _, name := range exclude {
		if err := writeString(h, name); err != nil {
			return "", err
		}
	}

	if err := hashDataset(h, ds); err != nil {
		return "", fmt.Errorf("hashing dataset %s: %w", ds.Name(), err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Get retrieves a cached transformer if it exists
func (c *Cache) Get(key string) (ranker.Transformer, bool) {
	if c.dir == "" {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.cachePath(key))
	if err != nil {
		// Cache miss
		return nil, false
	}
	art, err := modelstore.Unmarshal(data)
	if err != nil {
		slog.Debug("ignoring unreadable cache entry", "key", key, "error", err)
		return nil, false
	}
	return art.Transformer, true
}

// Put stores a transformer in the cache
func (c *Cache) Put(key string, t ranker.Transformer) error {
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	data, err := modelstore.Marshal(t)
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.cachePath(key), data, 0644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	return nil
}

// Clear removes all cached models
func (c *Cache) Clear() error {
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := os.Stat(c.dir); os.IsNotExist(err) {
		return nil
	}

	// Safety check: only remove a directory that holds nothing but cache entries
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("reading cache directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			return fmt.Errorf("cache directory contains subdirectories - refusing to delete for safety")
		}
		if filepath.Ext(entry.Name()) != entryExt {
			return fmt.Errorf("cache directory contains non-cache files - refusing to delete for safety")
		}
	}

	return os.RemoveAll(c.dir)
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

func (c *Cache) cachePath(key string) string {
	return filepath.Join(c.dir, key+entryExt)
}

// Helper functions

func writeString(w io.Writer, s string) error {
	// Write string with null byte delimiter to prevent hash collisions
	_, err := w.Write([]byte(s + "\x00"))
	return err
}

func writeInt(w io.Writer, i int64) error {
	// Write int with null byte delimiter to prevent hash collisions
	_, err := fmt.Fprintf(w, "%d\x00", i)
	return err
}

func hashDataset(h hash.Hash, ds *dataset.Dataset) error {
	for _, col := range ds.Columns() {
		if err := writeString(h, col); err != nil {
			return err
		}
	}
	if err := writeInt(h, int64(ds.Len())); err != nil {
		return err
	}

	buf := make([]byte, 0, 12+4*ds.FeatureCount())
	for _, r := range ds.All() {
		buf = buf[:0]
		buf = binary.LittleEndian.AppendUint64(buf, r.GroupID)
		buf = binary.LittleEndian.AppendUint32(buf, r.Label)
		for _, f := range r.Features {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
		}
		if _, err := h.Write(buf); err != nil {
			return err
		}
	}
	return nil
}
