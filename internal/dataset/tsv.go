package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/spboyer/ltrank/internal/models"
)

type loadOptions struct {
	name    string
	header  bool
	columns []string
}

// LoadOption configures LoadTSV and ReadTSV.
type LoadOption func(*loadOptions)

// WithHeader treats the first line as column names. Label and GroupId are
// located by name; all other columns become features in header order.
func WithHeader() LoadOption {
	return func(o *loadOptions) {
		o.header = true
	}
}

// WithColumns names the feature columns of headerless input, normally the
// columns of the first split loaded with a header.
func WithColumns(columns []string) LoadOption {
	return func(o *loadOptions) {
		o.columns = slices.Clone(columns)
	}
}

// WithName overrides the dataset name (default: the file's base name).
func WithName(name string) LoadOption {
	return func(o *loadOptions) {
		o.name = name
	}
}

// LoadTSV reads a tab-separated dataset file.
func LoadTSV(path string, opts ...LoadOption) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tsv: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	ds, err := ReadTSV(f, append([]LoadOption{WithName(filepath.Base(path))}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("tsv: %s: %w", path, err)
	}
	return ds, nil
}

// ReadTSV parses rows of Label, GroupId and float features from r. Without a
// header, Label is the first column and GroupId the second.
func ReadTSV(r io.Reader, opts ...LoadOption) (*Dataset, error) {
	o := loadOptions{name: "tsv"}
	for _, opt := range opts {
		opt(&o)
	}

	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.ReuseRecord = true
	// quotes have no meaning in numeric cells; a stray one fails number parsing
	reader.LazyQuotes = true

	labelIdx, groupIdx := 0, 1
	var featureIdx []int
	columns := o.columns
	line := 0

	if o.header {
		header, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: no header row", models.ErrEmptyInput)
		}
		if err != nil {
			return nil, fmt.Errorf("parse header: %w", err)
		}
		line++
		labelIdx = slices.Index(header, LabelColumn)
		groupIdx = slices.Index(header, GroupIDColumn)
		if labelIdx < 0 || groupIdx < 0 {
			return nil, fmt.Errorf("%w: header must contain %q and %q columns",
				models.ErrSchemaMismatch, LabelColumn, GroupIDColumn)
		}
		columns = []string{}
		featureIdx = make([]int, 0, len(header))
		for i, h := range header {
			if i == labelIdx || i == groupIdx {
				continue
			}
			featureIdx = append(featureIdx, i)
			columns = append(columns, h)
		}
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if errors.Is(err, csv.ErrFieldCount) {
				return nil, fmt.Errorf("%w: %v", models.ErrSchemaMismatch, err)
			}
			return nil, fmt.Errorf("parse: %w", err)
		}
		line++

		if featureIdx == nil {
			n := len(record) - 2
			if n < 0 {
				return nil, fmt.Errorf("%w: line %d has %d columns, need at least 2",
					models.ErrSchemaMismatch, line, len(record))
			}
			if columns == nil {
				columns = DefaultColumns(n)
			} else if len(columns) != n {
				return nil, fmt.Errorf("%w: line %d has %d features, expected %d",
					models.ErrSchemaMismatch, line, n, len(columns))
			}
			featureIdx = make([]int, n)
			for i := range featureIdx {
				featureIdx[i] = i + 2
			}
		}

		row, err := parseRow(record, labelIdx, groupIdx, featureIdx)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s has no data rows", models.ErrEmptyInput, o.name)
	}
	return New(o.name, columns, rows)
}

func parseRow(record []string, labelIdx, groupIdx int, featureIdx []int) (Row, error) {
	label, err := strconv.ParseUint(record[labelIdx], 10, 32)
	if err != nil {
		return Row{}, fmt.Errorf("label %q: %w", record[labelIdx], err)
	}
	if uint32(label) > models.MaxLabel {
		return Row{}, fmt.Errorf("%w: label %d exceeds %d", models.ErrInvalidConfiguration, label, models.MaxLabel)
	}
	group, err := strconv.ParseUint(record[groupIdx], 10, 64)
	if err != nil {
		return Row{}, fmt.Errorf("group id %q: %w", record[groupIdx], err)
	}
	features := make([]float32, len(featureIdx))
	for i, idx := range featureIdx {
		v, err := strconv.ParseFloat(record[idx], 32)
		if err != nil {
			return Row{}, fmt.Errorf("feature %d %q: %w", i, record[idx], err)
		}
		features[i] = float32(v)
	}
	return Row{GroupID: group, Label: uint32(label), Features: features}, nil
}
