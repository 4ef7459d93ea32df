package dataset

import (
	"testing"

	"github.com/spboyer/ltrank/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rowsOf(groups ...uint64) []Row {
	rows := make([]Row, len(groups))
	for i, g := range groups {
		rows[i] = Row{GroupID: g, Label: uint32(i), Features: []float32{float32(i)}}
	}
	return rows
}

func TestNew_WidthMismatch(t *testing.T) {
	_, err := New("bad", []string{"a", "b"}, []Row{{Features: []float32{1}}})
	require.ErrorIs(t, err, models.ErrSchemaMismatch)
}

func TestConcat_PreservesOrder(t *testing.T) {
	a, err := New("train", []string{"f"}, rowsOf(1, 1, 2))
	require.NoError(t, err)
	b, err := New("validation", []string{"f"}, rowsOf(3, 4))
	require.NoError(t, err)

	merged, err := Concat(a, b)
	require.NoError(t, err)

	assert.Equal(t, "train+validation", merged.Name())
	require.Equal(t, a.Len()+b.Len(), merged.Len())

	var got []uint64
	for _, r := range merged.All() {
		got = append(got, r.GroupID)
	}
	assert.Equal(t, []uint64{1, 1, 2, 3, 4}, got)

	// inputs are untouched
	assert.Equal(t, 3, a.Len())
	assert.Equal(t, 2, b.Len())
}

func TestConcat_ColumnMismatch(t *testing.T) {
	a, err := New("a", []string{"f"}, rowsOf(1))
	require.NoError(t, err)
	b, err := New("b", []string{"g"}, rowsOf(1))
	require.NoError(t, err)

	_, err = Concat(a, b)
	require.ErrorIs(t, err, models.ErrSchemaMismatch)
}

func TestAll_StopsEarly(t *testing.T) {
	ds, err := New("d", []string{"f"}, rowsOf(1, 2, 3))
	require.NoError(t, err)

	n := 0
	for range ds.All() {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestDefaultColumns(t *testing.T) {
	assert.Equal(t, []string{"Feature0", "Feature1"}, DefaultColumns(2))
	assert.Empty(t, DefaultColumns(0))
}
