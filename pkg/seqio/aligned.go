package seqio

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/evolbioinfo/goalign/io/fasta"

	"github.com/yumyai/hadesign/pkg/model"
)

// ReadAlignment parses an aligned FASTA file produced by the aligner.
func ReadAlignment(path string) (*model.Alignment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	aln, err := ParseAlignment(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return aln, nil
}

// ParseAlignment parses aligned FASTA with goalign, which rejects rows of
// unequal width, and converts it into a model.Alignment.
func ParseAlignment(r io.Reader) (*model.Alignment, error) {
	al, err := fasta.NewParser(r).Parse()
	if err != nil {
		return nil, fmt.Errorf("parse alignment: %w", err)
	}

	n := al.NbSequences()
	ids := make([]string, 0, n)
	rows := make([]string, 0, n)
	for i := range n {
		name, ok := al.GetSequenceNameById(i)
		if !ok {
			return nil, fmt.Errorf("alignment row %d has no name", i)
		}
		seq, ok := al.GetSequenceById(i)
		if !ok {
			return nil, fmt.Errorf("alignment row %d (%s) has no sequence", i, name)
		}
		if f := strings.Fields(name); len(f) > 0 {
			name = f[0]
		}
		ids = append(ids, name)
		rows = append(rows, strings.ToUpper(seq))
	}
	return model.NewAlignment(ids, rows)
}

// AlignmentRecords converts an alignment back into FASTA records.
func AlignmentRecords(aln *model.Alignment) []Record {
	recs := make([]Record, len(aln.Rows))
	for i := range aln.Rows {
		recs[i] = Record{ID: aln.IDs[i], Seq: aln.Rows[i]}
	}
	return recs
}
