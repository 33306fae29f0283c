package conservation

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/yumyai/hadesign/pkg/model"
	"github.com/yumyai/hadesign/pkg/seqio"
)

const (
	DefaultWindow = 15
	// ConsensusThreshold is the minimum residue frequency for a window
	// consensus position; below it the position reads X.
	ConsensusThreshold = 0.7
	Ambiguous          = 'X'
)

// Window is one peptide stretch, 1-based and inclusive.
type Window struct {
	Start     int
	End       int
	Score     float64
	Consensus string
}

// ignored residues do not count toward the major-residue frequency.
func ignored(c byte) bool {
	switch c {
	case model.Gap, 'X', 'B', 'J', 'Z':
		return true
	}
	return false
}

func majorFrequency(col []byte) float64 {
	var counts [256]int
	n, best := 0, 0
	for _, c := range col {
		if ignored(c) {
			continue
		}
		counts[c]++
		n++
		if counts[c] > best {
			best = counts[c]
		}
	}
	if n == 0 {
		return 0
	}
	return float64(best) / float64(n)
}

// consensusResidue is the unique most frequent non-gap residue when it
// reaches the threshold.
func consensusResidue(col []byte) byte {
	var counts [256]int
	n := 0
	for _, c := range col {
		if isGap(c) {
			continue
		}
		counts[c]++
		n++
	}
	if n == 0 {
		return Ambiguous
	}
	var top byte
	best, ties := 0, 0
	for c, k := range counts {
		switch {
		case k > best:
			top, best, ties = byte(c), k, 1
		case k == best && k > 0:
			ties++
		}
	}
	if ties > 1 || float64(best)/float64(n) < ConsensusThreshold {
		return Ambiguous
	}
	return top
}

// Windows scores every window of width w and returns them by descending
// score, earlier windows first on ties.
func Windows(aln *model.Alignment, w int) ([]Window, error) {
	L := aln.Length()
	if w < 1 {
		return nil, fmt.Errorf("window width must be positive, got %d", w)
	}
	if w > L {
		return nil, fmt.Errorf("window width %d exceeds alignment length %d", w, L)
	}

	freq := make([]float64, L)
	cons := make([]byte, L)
	for i := 0; i < L; i++ {
		col := aln.Column(i)
		freq[i] = majorFrequency(col)
		cons[i] = consensusResidue(col)
	}

	out := make([]Window, 0, L-w+1)
	for start := 0; start+w <= L; start++ {
		sum := 0.0
		for _, f := range freq[start : start+w] {
			sum += f
		}
		out = append(out, Window{
			Start:     start + 1,
			End:       start + w,
			Score:     sum / float64(w),
			Consensus: string(cons[start : start+w]),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func WriteWindowsTSV(w io.Writer, windows []Window) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "start\tend\tmean_conservation")
	for _, win := range windows {
		fmt.Fprintf(bw, "%d\t%d\t%.3f\n", win.Start, win.End, win.Score)
	}
	return bw.Flush()
}

func WriteWindowsFasta(w io.Writer, windows []Window) error {
	recs := make([]seqio.Record, len(windows))
	for i, win := range windows {
		id := fmt.Sprintf("Pos%d-%d_cons%.3f", win.Start, win.End, win.Score)
		recs[i] = seqio.Record{ID: id, Header: id, Seq: win.Consensus}
	}
	return seqio.WriteFasta(w, recs)
}
