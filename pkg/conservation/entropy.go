// Package conservation profiles an alignment column by column: Shannon
// entropy per position and conserved peptide windows ranked by mean
// major-residue frequency.
package conservation

import (
	"bufio"
	"fmt"
	"io"
	"math"

	"github.com/yumyai/hadesign/pkg/model"
)

func isGap(c byte) bool { return c == model.Gap || c == '.' }

// Entropy returns the Shannon entropy (bits) of every column over its non-gap
// residues. All-gap columns score 0.
func Entropy(aln *model.Alignment) []float64 {
	L := aln.Length()
	out := make([]float64, L)
	for i := 0; i < L; i++ {
		var counts [256]int
		n := 0
		for _, c := range aln.Column(i) {
			if isGap(c) {
				continue
			}
			counts[c]++
			n++
		}
		if n == 0 {
			continue
		}
		h := 0.0
		for _, k := range counts {
			if k == 0 {
				continue
			}
			p := float64(k) / float64(n)
			h -= p * math.Log2(p)
		}
		out[i] = h
	}
	return out
}

// WriteEntropy writes a pos/entropy TSV with 1-based positions.
func WriteEntropy(w io.Writer, entropy []float64) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "pos\tentropy")
	for i, h := range entropy {
		fmt.Fprintf(bw, "%d\t%.4f\n", i+1, h)
	}
	return bw.Flush()
}
