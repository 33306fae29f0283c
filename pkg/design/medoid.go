package design

import (
	"github.com/yumyai/hadesign/pkg/model"
	"github.com/yumyai/hadesign/pkg/seqio"
)

// UngappedDistance compares two ungapped sequences position by position over
// their common prefix and returns the mismatch fraction, normalised by the
// shorter length. Two empty sequences are maximally distant.
func UngappedDistance(a, b string) float64 {
	n := min(len(a), len(b))
	if n == 0 {
		return 1
	}
	mis := 0
	for i := range n {
		if a[i] != b[i] {
			mis++
		}
	}
	return float64(mis) / float64(n)
}

// tieTolerance absorbs the rounding of row sums accumulated in different
// orders, so equal sums compare equal.
const tieTolerance = 1e-9

// MedoidIndex returns the row whose summed distance to all other rows is
// smallest. Ties go to the lowest index.
func MedoidIndex(aln *model.Alignment) int {
	n := aln.NbSequences()
	ungapped := make([]string, n)
	for i, r := range aln.Rows {
		ungapped[i] = seqio.Ungap(r)
	}

	sums := make([]float64, n)
	for i := range n {
		for j := i + 1; j < n; j++ {
			d := UngappedDistance(ungapped[i], ungapped[j])
			sums[i] += d
			sums[j] += d
		}
	}

	best := 0
	for i := 1; i < n; i++ {
		if sums[i] < sums[best]-tieTolerance {
			best = i
		}
	}
	return best
}

// NewMedoid returns the medoid strain of aln as a design. It is always a real
// circulating sequence.
func NewMedoid(aln *model.Alignment) *model.Design {
	i := MedoidIndex(aln)
	return &model.Design{
		Tag:      model.Medoid,
		Aligned:  aln.Rows[i],
		Ungapped: seqio.Ungap(aln.Rows[i]),
		SourceID: aln.IDs[i],
	}
}
