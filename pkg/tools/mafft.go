package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/yumyai/hadesign/pkg/model"
	"github.com/yumyai/hadesign/pkg/seqio"
)

// Mafft is the alignment adapter. Scratch files are written under Dir.
type Mafft struct {
	Bin     string
	Threads int
	Dir     string
}

func (m *Mafft) bin() string {
	if m.Bin == "" {
		return "mafft"
	}
	return m.Bin
}

func (m *Mafft) threadArgs() []string {
	if m.Threads == 0 {
		return nil
	}
	return []string{"--thread", strconv.Itoa(m.Threads)}
}

// AlignFile aligns the FASTA at in and writes the aligned FASTA to out.
func (m *Mafft) AlignFile(ctx context.Context, in, out string) error {
	args := append([]string{"--auto", "--quiet"}, m.threadArgs()...)
	args = append(args, in)
	return runToFile(ctx, m.bin(), args, out)
}

// Align writes recs to <Dir>/<name>.fasta, aligns them and parses the result.
// A single record is its own alignment and never reaches mafft.
func (m *Mafft) Align(ctx context.Context, recs []seqio.Record, name string) (*model.Alignment, error) {
	if len(recs) == 0 {
		return nil, fmt.Errorf("align %s: no sequences", name)
	}
	if len(recs) == 1 {
		return model.NewAlignment([]string{recs[0].ID}, []string{recs[0].Seq})
	}

	if err := os.MkdirAll(m.Dir, 0o755); err != nil {
		return nil, err
	}
	in := filepath.Join(m.Dir, name+".fasta")
	out := filepath.Join(m.Dir, name+"_aligned.fasta")
	if err := seqio.WriteFastaFile(in, recs); err != nil {
		return nil, err
	}
	if err := m.AlignFile(ctx, in, out); err != nil {
		return nil, err
	}
	return seqio.ReadAlignment(out)
}

// AddKeepLength fits the sequences in add into the existing alignment
// without introducing new columns (mafft --add --keeplength) and returns the
// full output, existing rows first.
func (m *Mafft) AddKeepLength(ctx context.Context, add []seqio.Record, existing *model.Alignment, name string) (*model.Alignment, error) {
	if err := os.MkdirAll(m.Dir, 0o755); err != nil {
		return nil, err
	}
	addPath := filepath.Join(m.Dir, name+"_add.fasta")
	framePath := filepath.Join(m.Dir, name+"_frame.fasta")
	out := filepath.Join(m.Dir, name+"_fitted.fasta")

	if err := seqio.WriteFastaFile(addPath, add); err != nil {
		return nil, err
	}
	if err := seqio.WriteFastaFile(framePath, seqio.AlignmentRecords(existing)); err != nil {
		return nil, err
	}

	args := append([]string{"--add", addPath, "--keeplength", "--quiet"}, m.threadArgs()...)
	args = append(args, framePath)
	if err := runToFile(ctx, m.bin(), args, out); err != nil {
		return nil, err
	}
	return seqio.ReadAlignment(out)
}
