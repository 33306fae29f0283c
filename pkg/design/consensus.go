package design

import (
	"github.com/yumyai/hadesign/pkg/model"
	"github.com/yumyai/hadesign/pkg/seqio"
)

// DefaultGapWeight down-weights gap counts so that a column emptied by a
// minority of incomplete sequences does not turn into a gap.
const DefaultGapWeight = 0.2

// ConsensusRow returns the aligned consensus of aln. Each column takes the
// symbol with the highest weighted count, gaps counting gapWeight each; ties
// go to the symbol observed first scanning rows top to bottom.
func ConsensusRow(aln *model.Alignment, gapWeight float64) string {
	L := aln.Length()
	out := make([]byte, L)

	var counts [256]int
	order := make([]byte, 0, 32)

	for i := range L {
		order = order[:0]
		for _, row := range aln.Rows {
			c := row[i]
			if counts[c] == 0 {
				order = append(order, c)
			}
			counts[c]++
		}

		best := order[0]
		bestW := -1.0
		for _, c := range order {
			w := float64(counts[c])
			if c == model.Gap {
				w *= gapWeight
			}
			if w > bestW {
				best, bestW = c, w
			}
		}
		out[i] = best

		for _, c := range order {
			counts[c] = 0
		}
	}
	return string(out)
}

// NewConsensus builds the Consensus design of aln.
func NewConsensus(aln *model.Alignment, gapWeight float64) *model.Design {
	row := ConsensusRow(aln, gapWeight)
	return &model.Design{
		Tag:      model.Consensus,
		Aligned:  row,
		Ungapped: seqio.Ungap(row),
	}
}

// As returns a copy of d retagged, used when another generator falls back
// to the consensus.
func As(d *model.Design, tag model.Tag) *model.Design {
	c := *d
	c.Tag = tag
	c.SourceID = ""
	c.NodeID = ""
	c.Fallback = model.NoFallback
	return &c
}
