package tools

import (
	"context"
	"fmt"

	"github.com/yumyai/hadesign/internal/util"
)

// IQTree is the phylogenetics adapter.
type IQTree struct {
	Bin     string
	Model   string
	Threads string
}

// TreeResult names the files iqtree2 leaves behind for a prefix.
type TreeResult struct {
	TreeFile string
	DistFile string
}

func (q *IQTree) bin() string {
	if q.Bin == "" {
		return "iqtree2"
	}
	return q.Bin
}

// baseArgs keeps identical sequences (-keep-ident): by default iqtree2 drops
// duplicates before inference, and they would be missing from the tree and
// the .mldist rows.
func (q *IQTree) baseArgs(aln, prefix string) []string {
	model := q.Model
	if model == "" {
		model = "MFP"
	}
	threads := q.Threads
	if threads == "" {
		threads = "AUTO"
	}
	return []string{"-s", aln, "-m", model, "-nt", threads, "-pre", prefix, "-keep-ident", "-redo", "-quiet"}
}

// Tree infers an ML tree for aln. The pairwise ML distance matrix is written
// alongside it as <prefix>.mldist.
func (q *IQTree) Tree(ctx context.Context, aln, prefix string) (*TreeResult, error) {
	args := q.baseArgs(aln, prefix)
	if err := run(ctx, q.bin(), args, nil); err != nil {
		return nil, err
	}

	res := &TreeResult{
		TreeFile: prefix + ".treefile",
		DistFile: prefix + ".mldist",
	}
	if !util.FileExists(res.TreeFile) {
		return nil, &ToolError{Tool: q.bin(), Args: args, Err: fmt.Errorf("missing %s", res.TreeFile)}
	}
	return res, nil
}

// Ancestral runs marginal ancestral reconstruction on a fixed tree and
// returns the path of the per-site state table (<prefix>.state).
func (q *IQTree) Ancestral(ctx context.Context, aln, tree, prefix string) (string, error) {
	args := append(q.baseArgs(aln, prefix), "-te", tree, "-asr")
	if err := run(ctx, q.bin(), args, nil); err != nil {
		return "", err
	}

	state := prefix + ".state"
	if !util.FileExists(state) {
		return "", &ToolError{Tool: q.bin(), Args: args, Err: fmt.Errorf("missing %s", state)}
	}
	return state, nil
}
