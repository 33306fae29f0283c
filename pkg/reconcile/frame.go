package reconcile

import (
	"context"

	"github.com/yumyai/hadesign/pkg/model"
)

// FrameFitter fits a sequence into the frame in process. It globally aligns
// the sequence against the frame's column profile; residues that would need a
// new column are dropped and frame columns left unmatched become gaps, so the
// output always has exactly L columns.
type FrameFitter struct {
	// InsertPenalty is paid per dropped residue.
	InsertPenalty float64
	// SkipPenalty is paid per unmatched column, scaled by the column's
	// residue occupancy so mostly-gap columns are cheap to skip.
	SkipPenalty float64
}

func NewFrameFitter() *FrameFitter {
	return &FrameFitter{InsertPenalty: 2, SkipPenalty: 2}
}

type profile struct {
	freq    [][256]float64
	skip    []float64
	columns int
}

func buildProfile(frame *model.Alignment, skipPenalty float64) *profile {
	L := frame.Length()
	n := float64(frame.NbSequences())
	p := &profile{freq: make([][256]float64, L), skip: make([]float64, L), columns: L}
	for j := range L {
		for _, row := range frame.Rows {
			p.freq[j][row[j]]++
		}
		for c := range p.freq[j] {
			p.freq[j][c] /= n
		}
		p.skip[j] = skipPenalty * (1 - p.freq[j][model.Gap])
	}
	return p
}

const (
	stepDiag byte = iota
	stepSkip
	stepDrop
)

func (f *FrameFitter) Fit(ctx context.Context, d *model.Design, frame *model.Alignment) (string, error) {
	seq := d.Ungapped
	p := buildProfile(frame, f.SkipPenalty)
	m, L := len(seq), p.columns

	// score[i][j]: best score placing seq[:i] into columns [:j]
	score := make([][]float64, m+1)
	trace := make([][]byte, m+1)
	for i := range score {
		score[i] = make([]float64, L+1)
		trace[i] = make([]byte, L+1)
	}
	for j := 1; j <= L; j++ {
		score[0][j] = score[0][j-1] - p.skip[j-1]
		trace[0][j] = stepSkip
	}
	for i := 1; i <= m; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		score[i][0] = score[i-1][0] - f.InsertPenalty
		trace[i][0] = stepDrop
		for j := 1; j <= L; j++ {
			best := score[i-1][j-1] + 2*p.freq[j-1][seq[i-1]] - 1
			step := stepDiag
			if s := score[i][j-1] - p.skip[j-1]; s > best {
				best, step = s, stepSkip
			}
			if s := score[i-1][j] - f.InsertPenalty; s > best {
				best, step = s, stepDrop
			}
			score[i][j] = best
			trace[i][j] = step
		}
	}

	out := make([]byte, L)
	i, j := m, L
	for j > 0 || i > 0 {
		switch trace[i][j] {
		case stepDiag:
			out[j-1] = seq[i-1]
			i--
			j--
		case stepSkip:
			out[j-1] = model.Gap
			j--
		case stepDrop:
			i--
		}
	}
	return string(out), nil
}
