package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/yumyai/hadesign/pkg/seqio"
)

// CDHit is the redundancy clustering adapter.
type CDHit struct {
	Bin     string
	Threads int
	Dir     string
}

// wordSize follows the cd-hit user guide for protein input.
func wordSize(identity float64) int {
	switch {
	case identity >= 0.7:
		return 5
	case identity >= 0.6:
		return 4
	case identity >= 0.5:
		return 3
	default:
		return 2
	}
}

// Cluster clusters recs at the given identity and returns the representative
// sequences, one per cluster.
func (c *CDHit) Cluster(ctx context.Context, recs []seqio.Record, identity float64, name string) ([]seqio.Record, error) {
	if identity <= 0 || identity > 1 {
		return nil, fmt.Errorf("cluster %s: identity %.2f out of range", name, identity)
	}
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return nil, err
	}
	in := filepath.Join(c.Dir, name+".fasta")
	out := filepath.Join(c.Dir, name+"_reps.fasta")
	if err := seqio.WriteFastaFile(in, recs); err != nil {
		return nil, err
	}

	bin := c.Bin
	if bin == "" {
		bin = "cd-hit"
	}
	args := []string{
		"-i", in,
		"-o", out,
		"-c", strconv.FormatFloat(identity, 'f', 2, 64),
		"-n", strconv.Itoa(wordSize(identity)),
		"-d", "0",
		"-M", "0",
		"-T", strconv.Itoa(c.Threads),
	}
	if err := run(ctx, bin, args, nil); err != nil {
		return nil, err
	}

	reps, err := seqio.ReadFasta(out)
	if err != nil {
		return nil, &ToolError{Tool: bin, Args: args, Err: err}
	}
	return reps, nil
}
