// Package features turns dataset rows into the encoded form a ranker trains
// on: the feature column projection, an ordinal key per relevance label and a
// fixed-width hash per query group.
package features

import (
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/cespare/xxhash/v2"

	"github.com/spboyer/ltrank/internal/dataset"
	"github.com/spboyer/ltrank/internal/models"
)

// DefaultGroupHashBits is the width of the group id bucket space.
const DefaultGroupHashBits = 20

const maxGroupHashBits = 31

// Builder assembles a Pipeline from the dataset's column list.
type Builder struct {
	columns  []string
	exclude  []string
	hashBits int
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// ExcludeColumns drops the named feature columns from the projection.
func ExcludeColumns(names ...string) BuilderOption {
	return func(b *Builder) {
		b.exclude = append(b.exclude, names...)
	}
}

// WithGroupHashBits sets the group id hash width. Valid range is 1..31.
func WithGroupHashBits(bits int) BuilderOption {
	return func(b *Builder) {
		b.hashBits = bits
	}
}

// NewBuilder starts a pipeline over the given columns. Label and GroupId are
// never features even if present in the list.
func NewBuilder(columns []string, opts ...BuilderOption) *Builder {
	b := &Builder{
		columns:  slices.Clone(columns),
		hashBits: DefaultGroupHashBits,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build validates the configuration and resolves the feature projection.
func (b *Builder) Build() (*Pipeline, error) {
	if b.hashBits < 1 || b.hashBits > maxGroupHashBits {
		return nil, fmt.Errorf("%w: group hash bits %d is outside [1, %d]",
			models.ErrInvalidConfiguration, b.hashBits, maxGroupHashBits)
	}
	for _, name := range b.exclude {
		if !slices.Contains(b.columns, name) {
			return nil, fmt.Errorf("%w: excluded column %q does not exist", models.ErrInvalidConfiguration, name)
		}
	}

	p := &Pipeline{source: b.columns, sourceWidth: len(b.columns), hashBits: b.hashBits}
	for i, name := range b.columns {
		if name == dataset.LabelColumn || name == dataset.GroupIDColumn || slices.Contains(b.exclude, name) {
			continue
		}
		p.indices = append(p.indices, i)
		p.columns = append(p.columns, name)
	}
	if len(p.indices) == 0 {
		return nil, fmt.Errorf("%w: no feature columns left", models.ErrInvalidConfiguration)
	}
	return p, nil
}

// Pipeline is an immutable feature projection plus group hashing.
type Pipeline struct {
	source      []string
	sourceWidth int
	indices     []int
	columns     []string
	hashBits    int
}

// Columns returns the projected feature column names.
func (p *Pipeline) Columns() []string { return slices.Clone(p.columns) }

// Width is the length of a projected feature vector.
func (p *Pipeline) Width() int { return len(p.indices) }

// GroupHashBits is the configured hash width.
func (p *Pipeline) GroupHashBits() int { return p.hashBits }

// Project selects the pipeline's feature columns from a raw row vector.
func (p *Pipeline) Project(raw []float32) ([]float64, error) {
	if len(raw) != p.sourceWidth {
		return nil, fmt.Errorf("%w: row has %d features, pipeline expects %d",
			models.ErrSchemaMismatch, len(raw), p.sourceWidth)
	}
	out := make([]float64, len(p.indices))
	for i, idx := range p.indices {
		out[i] = float64(raw[idx])
	}
	return out, nil
}

// HashGroup maps a raw group id into [1, 2^bits]. Zero is never produced so
// it stays free as a missing-group marker.
func (p *Pipeline) HashGroup(groupID uint64) uint32 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], groupID)
	mask := uint64(1)<<p.hashBits - 1
	return uint32(xxhash.Sum64(buf[:])&mask) + 1
}

// Fit learns the label key space of ds.
func (p *Pipeline) Fit(ds *dataset.Dataset) (*Encoding, error) {
	if ds.Len() == 0 {
		return nil, fmt.Errorf("%w: cannot fit features on %s", models.ErrEmptyInput, ds.Name())
	}
	if ds.FeatureCount() != p.sourceWidth {
		return nil, fmt.Errorf("%w: %s has %d features, pipeline expects %d",
			models.ErrSchemaMismatch, ds.Name(), ds.FeatureCount(), p.sourceWidth)
	}
	if !slices.Equal(ds.Columns(), p.source) {
		return nil, fmt.Errorf("%w: %s columns %v differ from pipeline columns %v",
			models.ErrSchemaMismatch, ds.Name(), ds.Columns(), p.source)
	}

	seen := make(map[uint32]struct{})
	for _, r := range ds.All() {
		seen[r.Label] = struct{}{}
	}
	labels := make([]uint32, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	slices.Sort(labels)

	return newEncoding(p, labels), nil
}
