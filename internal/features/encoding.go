package features

import (
	"fmt"
	"slices"

	"github.com/spboyer/ltrank/internal/dataset"
	"github.com/spboyer/ltrank/internal/models"
)

// Schema is the persisted shape of a fitted feature pipeline.
type Schema struct {
	SourceWidth    int      `json:"source_width"`
	SourceColumns  []string `json:"source_columns,omitempty"`
	FeatureColumns []string `json:"feature_columns"`
	Indices        []int    `json:"indices"`
	GroupHashBits  int      `json:"group_hash_bits"`
	LabelKeys      []uint32 `json:"label_keys"`
}

// Encoded is a dataset in training form. Keys are ordinal label keys and
// Groups are hashed group ids, both aligned with X.
type Encoded struct {
	X      [][]float64
	Keys   []int
	Groups []uint32
}

// Len returns the number of encoded rows.
func (e *Encoded) Len() int { return len(e.X) }

// Encoding is a Pipeline together with a fitted label key space.
type Encoding struct {
	pipeline *Pipeline
	labels   []uint32
	keys     map[uint32]int
}

func newEncoding(p *Pipeline, labels []uint32) *Encoding {
	keys := make(map[uint32]int, len(labels))
	for i, l := range labels {
		keys[l] = i
	}
	return &Encoding{pipeline: p, labels: labels, keys: keys}
}

// FromSchema rebuilds an Encoding from a persisted Schema.
func FromSchema(s Schema) (*Encoding, error) {
	if s.GroupHashBits < 1 || s.GroupHashBits > maxGroupHashBits {
		return nil, fmt.Errorf("%w: schema group hash bits %d", models.ErrSchemaMismatch, s.GroupHashBits)
	}
	if len(s.Indices) != len(s.FeatureColumns) || len(s.Indices) == 0 {
		return nil, fmt.Errorf("%w: schema has %d indices for %d columns",
			models.ErrSchemaMismatch, len(s.Indices), len(s.FeatureColumns))
	}
	for _, idx := range s.Indices {
		if idx < 0 || idx >= s.SourceWidth {
			return nil, fmt.Errorf("%w: schema index %d outside source width %d",
				models.ErrSchemaMismatch, idx, s.SourceWidth)
		}
	}
	if len(s.SourceColumns) > 0 && len(s.SourceColumns) != s.SourceWidth {
		return nil, fmt.Errorf("%w: schema names %d source columns for width %d",
			models.ErrSchemaMismatch, len(s.SourceColumns), s.SourceWidth)
	}
	p := &Pipeline{
		source:      slices.Clone(s.SourceColumns),
		sourceWidth: s.SourceWidth,
		indices:     slices.Clone(s.Indices),
		columns:     slices.Clone(s.FeatureColumns),
		hashBits:    s.GroupHashBits,
	}
	return newEncoding(p, slices.Clone(s.LabelKeys)), nil
}

// Pipeline returns the underlying feature projection.
func (e *Encoding) Pipeline() *Pipeline { return e.pipeline }

// LabelKeys returns the distinct training labels in key order.
func (e *Encoding) LabelKeys() []uint32 { return slices.Clone(e.labels) }

// Key maps a label to its ordinal key. Labels unseen during Fit report false.
func (e *Encoding) Key(label uint32) (int, bool) {
	k, ok := e.keys[label]
	return k, ok
}

// Encode converts every row of ds. A label outside the fitted key space is a
// schema mismatch.
func (e *Encoding) Encode(ds *dataset.Dataset) (*Encoded, error) {
	out := &Encoded{
		X:      make([][]float64, 0, ds.Len()),
		Keys:   make([]int, 0, ds.Len()),
		Groups: make([]uint32, 0, ds.Len()),
	}
	for i, r := range ds.All() {
		x, err := e.pipeline.Project(r.Features)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		key, ok := e.keys[r.Label]
		if !ok {
			return nil, fmt.Errorf("%w: row %d label %d was not seen during fit",
				models.ErrSchemaMismatch, i+1, r.Label)
		}
		out.X = append(out.X, x)
		out.Keys = append(out.Keys, key)
		out.Groups = append(out.Groups, e.pipeline.HashGroup(r.GroupID))
	}
	return out, nil
}

// Schema snapshots the encoding for persistence.
func (e *Encoding) Schema() Schema {
	return Schema{
		SourceWidth:    e.pipeline.sourceWidth,
		SourceColumns:  slices.Clone(e.pipeline.source),
		FeatureColumns: slices.Clone(e.pipeline.columns),
		Indices:        slices.Clone(e.pipeline.indices),
		GroupHashBits:  e.pipeline.hashBits,
		LabelKeys:      slices.Clone(e.labels),
	}
}
