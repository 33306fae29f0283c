package design

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/yumyai/hadesign/pkg/model"
	"github.com/yumyai/hadesign/pkg/seqio"
)

// DefaultMinSites is the fewest resolved sites accepted from an ancestral
// reconstruction before falling back to the consensus.
const DefaultMinSites = 50

// NodeStates is the most likely state per site of one reconstructed node.
type NodeStates struct {
	Node   string
	States string
}

// ParseStateTable reads a per-site marginal ancestral state table (columns
// Node, Site, State, then per-residue probabilities) and returns the states
// of the first node listed, read in order until the node label changes.
func ParseStateTable(r io.Reader) (*NodeStates, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		node   string
		states strings.Builder
	)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if fields[0] == "Node" {
			continue
		}
		if len(fields) < 3 {
			return nil, fmt.Errorf("malformed state line %q", line)
		}
		if node == "" {
			node = fields[0]
		} else if fields[0] != node {
			break
		}
		states.WriteString(strings.ToUpper(fields[2][:1]))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if node == "" {
		return nil, fmt.Errorf("state table has no nodes")
	}
	return &NodeStates{Node: node, States: states.String()}, nil
}

// ReadStateTable parses the state table at path.
func ReadStateTable(path string) (*NodeStates, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseStateTable(f)
}

// StateTableFunc produces the path of a state table, typically by running
// tree inference and ancestral reconstruction.
type StateTableFunc func(ctx context.Context) (string, error)

// GenerateAncestral extracts the root-most node's sequence. When the
// reconstruction fails or resolves fewer than minSites sites it falls back to
// the year's consensus. A reconstruction whose width differs from L keeps only
// its ungapped form and must be fitted into the frame by the reconciler.
func GenerateAncestral(ctx context.Context, states StateTableFunc, consensus *model.Design, L, minSites int) Result {
	attempts := []Attempt{
		{
			Name:   "marginal-reconstruction",
			Reason: model.ASRInsufficient,
			Run: func(ctx context.Context) (*model.Design, error) {
				path, err := states(ctx)
				if err != nil {
					return nil, err
				}
				ns, err := ReadStateTable(path)
				if err != nil {
					return nil, err
				}
				ungapped := seqio.Ungap(ns.States)
				if len(ungapped) < minSites {
					return nil, fmt.Errorf("node %s resolved %d sites, need %d", ns.Node, len(ungapped), minSites)
				}

				d := &model.Design{Ungapped: ungapped, NodeID: ns.Node}
				if len(ns.States) == L {
					d.Aligned = ns.States
				}
				return d, nil
			},
		},
	}

	return Resolve(ctx, model.Ancestral, attempts, Final{
		Name: "consensus",
		Run:  func() *model.Design { return As(consensus, model.Ancestral) },
	})
}
