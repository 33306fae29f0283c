package pipeline

import (
	"context"
	"strconv"

	"github.com/yumyai/hadesign/pkg/config"
	"github.com/yumyai/hadesign/pkg/design"
	"github.com/yumyai/hadesign/pkg/reconcile"
	"github.com/yumyai/hadesign/pkg/tools"
)

// TreeBuilder is implemented by tools.IQTree.
type TreeBuilder interface {
	Tree(ctx context.Context, aln, prefix string) (*tools.TreeResult, error)
	Ancestral(ctx context.Context, aln, tree, prefix string) (string, error)
}

// Tools are the external collaborators of one unit.
type Tools struct {
	Aligner   design.Aligner
	Clusterer design.Clusterer
	Trees     TreeBuilder
	Fitter    reconcile.Fitter
}

// ToolFactory builds the tools of one unit; scratch is a directory private
// to that unit.
type ToolFactory func(scratch string) Tools

// ExternalTools wires mafft, cd-hit and iqtree2 from the configuration.
func ExternalTools(cfg config.ToolsConfig, reconciler string) ToolFactory {
	return func(scratch string) Tools {
		mafft := &tools.Mafft{Bin: cfg.Mafft, Threads: cfg.Threads, Dir: scratch}

		threads := "AUTO"
		if cfg.Threads > 0 {
			threads = strconv.Itoa(cfg.Threads)
		}

		var fitter reconcile.Fitter = reconcile.NewFrameFitter()
		if reconciler == "mafft" {
			fitter = &reconcile.MafftFitter{Adder: mafft}
		}

		return Tools{
			Aligner:   mafft,
			Clusterer: &tools.CDHit{Bin: cfg.CDHit, Threads: cfg.Threads, Dir: scratch},
			Trees:     &tools.IQTree{Bin: cfg.IQTree, Model: cfg.Model, Threads: threads},
			Fitter:    fitter,
		}
	}
}
