// Package dataset holds query-grouped, labelled feature rows and loads them
// from tab-separated files.
package dataset

import (
	"fmt"
	"iter"
	"slices"
	"strconv"

	"github.com/spboyer/ltrank/internal/models"
)

// Column names recognised in TSV headers. Every other column is a feature.
const (
	LabelColumn   = "Label"
	GroupIDColumn = "GroupId"
)

// Row is one candidate result: the query group it belongs to, its relevance
// label and its feature vector.
type Row struct {
	GroupID  uint64
	Label    uint32
	Features []float32
}

// Dataset is an ordered, immutable sequence of rows sharing one feature
// width. Row feature slices may be shared between datasets built with Concat
// and must never be modified.
type Dataset struct {
	name    string
	columns []string
	rows    []Row
}

// New validates that every row has one feature per column and returns the dataset.
func New(name string, columns []string, rows []Row) (*Dataset, error) {
	width := len(columns)
	for i, r := range rows {
		if len(r.Features) != width {
			return nil, fmt.Errorf("%w: %s row %d has %d features, expected %d",
				models.ErrSchemaMismatch, name, i+1, len(r.Features), width)
		}
	}
	return &Dataset{
		name:    name,
		columns: slices.Clone(columns),
		rows:    slices.Clone(rows),
	}, nil
}

// Concat returns a's rows followed by b's rows. No deduplication or
// reshuffling takes place. Both datasets must have the same feature columns.
func Concat(a, b *Dataset) (*Dataset, error) {
	if !slices.Equal(a.columns, b.columns) {
		return nil, fmt.Errorf("%w: cannot concatenate %s (%d features) and %s (%d features)",
			models.ErrSchemaMismatch, a.name, len(a.columns), b.name, len(b.columns))
	}
	rows := make([]Row, 0, len(a.rows)+len(b.rows))
	rows = append(rows, a.rows...)
	rows = append(rows, b.rows...)
	return &Dataset{
		name:    a.name + "+" + b.name,
		columns: a.columns,
		rows:    rows,
	}, nil
}

func (d *Dataset) Name() string { return d.name }

func (d *Dataset) Len() int { return len(d.rows) }

// FeatureCount is the width of every row's feature vector.
func (d *Dataset) FeatureCount() int { return len(d.columns) }

// Columns returns the feature column names in vector order.
func (d *Dataset) Columns() []string { return slices.Clone(d.columns) }

// At returns the i-th row.
func (d *Dataset) At(i int) Row { return d.rows[i] }

// All iterates rows in insertion order.
func (d *Dataset) All() iter.Seq2[int, Row] {
	return func(yield func(int, Row) bool) {
		for i, r := range d.rows {
			if !yield(i, r) {
				return
			}
		}
	}
}

// GroupCount returns the number of distinct group ids.
func (d *Dataset) GroupCount() int {
	seen := make(map[uint64]struct{})
	for _, r := range d.rows {
		seen[r.GroupID] = struct{}{}
	}
	return len(seen)
}

// DefaultColumns names n feature columns positionally, for headerless input
// with no known schema.
func DefaultColumns(n int) []string {
	cols := make([]string, n)
	for i := range cols {
		cols[i] = "Feature" + strconv.Itoa(i)
	}
	return cols
}
