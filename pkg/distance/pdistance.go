// Package distance computes design-to-strain distances: p-distance straight
// from aligned rows and ML distances read from the external tool's pairwise
// matrix over the combined alignment.
package distance

import (
	"errors"
	"fmt"

	"github.com/yumyai/hadesign/pkg/model"
)

var ErrNoComparableColumns = errors.New("no column is non-gap in both sequences")

// PDistance is the mismatch fraction over columns where neither row has a
// gap. Rows must have equal width.
func PDistance(a, b string) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("rows have %d and %d columns", len(a), len(b))
	}
	compared, mismatched := 0, 0
	for i := range len(a) {
		if a[i] == model.Gap || b[i] == model.Gap {
			continue
		}
		compared++
		if a[i] != b[i] {
			mismatched++
		}
	}
	if compared == 0 {
		return 0, ErrNoComparableColumns
	}
	return float64(mismatched) / float64(compared), nil
}
