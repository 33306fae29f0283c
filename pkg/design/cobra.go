package design

import (
	"context"
	"errors"
	"fmt"

	"github.com/yumyai/hadesign/pkg/model"
	"github.com/yumyai/hadesign/pkg/seqio"
)

// Clusterer returns one representative per cluster of recs at identity.
type Clusterer interface {
	Cluster(ctx context.Context, recs []seqio.Record, identity float64, name string) ([]seqio.Record, error)
}

// Aligner aligns recs into a fixed-column alignment.
type Aligner interface {
	Align(ctx context.Context, recs []seqio.Record, name string) (*model.Alignment, error)
}

type COBRAOptions struct {
	Round1Identity float64
	Round2Identity float64
	GapWeight      float64
}

var DefaultCOBRAOptions = COBRAOptions{
	Round1Identity: 0.95,
	Round2Identity: 0.90,
	GapWeight:      DefaultGapWeight,
}

var errLowDiversity = errors.New("round 1 produced fewer than 2 clusters")

// GenerateCOBRA builds the two-round clustered consensus. The result is
// ungapped relative to the representatives' own alignment, so Aligned is only
// set when the chain ends on the year consensus.
func GenerateCOBRA(ctx context.Context, strains []model.Strain, consensus *model.Design, cl Clusterer, al Aligner, opt COBRAOptions) Result {
	recs := make([]seqio.Record, len(strains))
	for i, s := range strains {
		recs[i] = seqio.Record{ID: s.ID, Seq: s.Seq}
	}

	var round1 []seqio.Record

	repConsensus := func(ctx context.Context, reps []seqio.Record, name string) (*model.Design, error) {
		aln, err := al.Align(ctx, reps, name)
		if err != nil {
			return nil, Fallback(model.RepresentativeAlignFailed, err)
		}
		row := ConsensusRow(aln, opt.GapWeight)
		return &model.Design{Ungapped: seqio.Ungap(row)}, nil
	}

	attempts := []Attempt{
		{
			Name: "two-round",
			Run: func(ctx context.Context) (*model.Design, error) {
				reps, err := cl.Cluster(ctx, recs, opt.Round1Identity, "cobra_round1")
				if err != nil {
					return nil, Fallback(model.ClusterToolFailure, err)
				}
				round1 = reps
				if len(round1) < 2 {
					return nil, Fallback(model.LowDiversityRound1, errLowDiversity)
				}

				round2, err := cl.Cluster(ctx, round1, opt.Round2Identity, "cobra_round2")
				if err != nil {
					return nil, Fallback(model.ClusterToolFailureRound2, err)
				}
				return repConsensus(ctx, round2, "cobra_round2_reps")
			},
		},
		{
			Name: "round1-representatives",
			Run: func(ctx context.Context) (*model.Design, error) {
				if len(round1) == 0 {
					return nil, ErrSkip
				}
				return repConsensus(ctx, round1, "cobra_round1_reps")
			},
		},
	}

	return Resolve(ctx, model.COBRA, attempts, Final{
		Name: "consensus",
		Run:  func() *model.Design { return As(consensus, model.COBRA) },
	})
}

// Describe summarises a chain outcome for logs and status messages.
func Describe(r Result) string {
	if !r.Fell() {
		return r.Step
	}
	return fmt.Sprintf("%s via %s (%d failed step(s))", r.Reason, r.Step, len(r.Failures))
}
