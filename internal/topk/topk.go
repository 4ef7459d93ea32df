// Package topk re-ranks one query group from a stream of scored rows.
package topk

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/spboyer/ltrank/internal/models"
)

// DefaultScanWindow is the number of leading rows Extract inspects.
const DefaultScanWindow = 100

// Extract scans the first limit rows of scored, keeps those belonging to
// groupID and orders them by score descending. Equal scores keep scan order.
//
// The limit bounds the scan, not the result: a group that first appears past
// the window yields an empty result even if it has rows later in the stream.
func Extract(scored []models.ScoredRow, groupID uint64, limit int) ([]models.ScoredRow, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: scan window must be at least 1, got %d", models.ErrInvalidConfiguration, limit)
	}
	window := scored[:min(limit, len(scored))]

	var out []models.ScoredRow
	for _, r := range window {
		if r.GroupID == groupID {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b models.ScoredRow) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return out, nil
}

// FirstGroup returns the GroupID of the first row.
func FirstGroup(scored []models.ScoredRow) (uint64, error) {
	if len(scored) == 0 {
		return 0, fmt.Errorf("%w: no scored rows", models.ErrEmptyInput)
	}
	return scored[0].GroupID, nil
}
