package design

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yumyai/hadesign/pkg/model"
	"github.com/yumyai/hadesign/pkg/seqio"
)

func mustAlignment(t *testing.T, rows ...string) *model.Alignment {
	t.Helper()
	ids := make([]string, len(rows))
	for i := range rows {
		ids[i] = "s" + string(rune('1'+i))
	}
	aln, err := model.NewAlignment(ids, rows)
	require.NoError(t, err)
	return aln
}

// Five identical strains and one outlier at a single non-gap column.
func outlierAlignment(t *testing.T) *model.Alignment {
	return mustAlignment(t,
		"MKA-ILV",
		"MKA-ILV",
		"MKA-ILV",
		"MKA-ILV",
		"MKQ-ILV",
		"MKA-ILV",
	)
}

func TestConsensusMajority(t *testing.T) {
	d := NewConsensus(outlierAlignment(t), DefaultGapWeight)
	assert.Equal(t, model.Consensus, d.Tag)
	assert.Equal(t, "MKA-ILV", d.Aligned)
	assert.Equal(t, "MKAILV", d.Ungapped)
}

func TestConsensusGapDiscount(t *testing.T) {
	// 3 gaps vs 2 residues: raw majority is gap, weighted 0.6 < 2.
	aln := mustAlignment(t, "M-", "M-", "M-", "MK", "MK")
	assert.Equal(t, "MK", ConsensusRow(aln, DefaultGapWeight))

	// Without discount the gap wins.
	assert.Equal(t, "M-", ConsensusRow(aln, 1.0))

	// Overwhelming gaps still win after the discount.
	aln = mustAlignment(t, "M-", "M-", "M-", "M-", "M-", "M-", "MK")
	assert.Equal(t, "M-", ConsensusRow(aln, DefaultGapWeight))
}

func TestConsensusTieBreakFirstObserved(t *testing.T) {
	aln := mustAlignment(t, "K", "R", "R", "K")
	assert.Equal(t, "K", ConsensusRow(aln, DefaultGapWeight))

	aln = mustAlignment(t, "R", "K", "K", "R")
	assert.Equal(t, "R", ConsensusRow(aln, DefaultGapWeight))
}

func TestUngappedDistance(t *testing.T) {
	assert.Equal(t, 0.0, UngappedDistance("MKT", "MKT"))
	assert.InDelta(t, 1.0/3, UngappedDistance("MKT", "MQTAA"), 1e-9)
	assert.Equal(t, 1.0, UngappedDistance("", ""))
}

func TestMedoidTieGoesToLowestIndex(t *testing.T) {
	// Every row sums to 0.6, accumulated as 0.1+0.2+0.3, 0.1+0.3+0.2,
	// 0.2+0.3+0.1 and 0.3+0.2+0.1, which differ in the last bit.
	aln := mustAlignment(t,
		"ACDEFGHIKL",
		"ACWEFGHIKL",
		"WWDEFGHIKL",
		"WWWEFGHIKL",
	)
	assert.Equal(t, 0, MedoidIndex(aln))

	// A strictly smaller sum still wins.
	aln = mustAlignment(t, "WWWEFGHIKL", "ACDEFGHIKL", "ACDEFGHIKL")
	assert.Equal(t, 1, MedoidIndex(aln))
}

func TestMedoidPicksIdenticalMajority(t *testing.T) {
	aln := outlierAlignment(t)
	d := NewMedoid(aln)

	assert.Equal(t, model.Medoid, d.Tag)
	assert.Equal(t, "s1", d.SourceID, "lowest index wins ties")
	assert.NotEqual(t, 4, aln.Index(d.SourceID))

	// Medoid is always a real strain.
	src := aln.Rows[aln.Index(d.SourceID)]
	assert.Equal(t, seqio.Ungap(src), d.Ungapped)
	assert.Equal(t, src, d.Aligned)
}

func writeStates(t *testing.T, node string, n int, extra string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("# Ancestral state reconstruction\n")
	b.WriteString("Node\tSite\tState\tp_A\tp_M\n")
	for i := 1; i <= n; i++ {
		b.WriteString(node + "\t" + strconv.Itoa(i) + "\tM\t0.01\t0.99\n")
	}
	b.WriteString(extra)
	path := filepath.Join(t.TempDir(), "asr.state")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestParseStateTableFirstNode(t *testing.T) {
	path := writeStates(t, "Node1", 3, "Node2\t1\tK\t0.9\t0.1\n")
	ns, err := ReadStateTable(path)
	require.NoError(t, err)
	assert.Equal(t, "Node1", ns.Node)
	assert.Equal(t, "MMM", ns.States)
}

func TestParseStateTableEmpty(t *testing.T) {
	_, err := ParseStateTable(strings.NewReader("# nothing\n"))
	assert.Error(t, err)
}

func TestAncestralUsesReconstruction(t *testing.T) {
	path := writeStates(t, "Node1", 60, "")
	cons := &model.Design{Tag: model.Consensus, Aligned: strings.Repeat("K", 60), Ungapped: strings.Repeat("K", 60)}

	res := GenerateAncestral(context.Background(), func(context.Context) (string, error) { return path, nil }, cons, 60, DefaultMinSites)
	assert.False(t, res.Fell())
	assert.Equal(t, model.Ancestral, res.Design.Tag)
	assert.Equal(t, "Node1", res.Design.NodeID)
	assert.Equal(t, strings.Repeat("M", 60), res.Design.Aligned)
}

func TestAncestralWidthMismatchNeedsReconciliation(t *testing.T) {
	path := writeStates(t, "Node1", 55, "")
	cons := &model.Design{Aligned: strings.Repeat("K", 60), Ungapped: strings.Repeat("K", 60)}

	res := GenerateAncestral(context.Background(), func(context.Context) (string, error) { return path, nil }, cons, 60, DefaultMinSites)
	assert.False(t, res.Fell())
	assert.Empty(t, res.Design.Aligned)
	assert.Len(t, res.Design.Ungapped, 55)
}

func TestAncestralFallsBackOnShortReconstruction(t *testing.T) {
	path := writeStates(t, "Node1", 10, "")
	cons := &model.Design{Tag: model.Consensus, Aligned: "MK-T", Ungapped: "MKT"}

	res := GenerateAncestral(context.Background(), func(context.Context) (string, error) { return path, nil }, cons, 4, DefaultMinSites)
	require.True(t, res.Fell())
	assert.Equal(t, model.ASRInsufficient, res.Reason)
	assert.Equal(t, model.ASRInsufficient, res.Design.Fallback)
	assert.Equal(t, model.Ancestral, res.Design.Tag)
	assert.Equal(t, "MK-T", res.Design.Aligned)
	assert.Equal(t, "consensus", res.Step)
	assert.Equal(t, model.Consensus, cons.Tag, "consensus design must not be mutated")
}

func TestAncestralFallsBackOnToolError(t *testing.T) {
	cons := &model.Design{Aligned: "MKT", Ungapped: "MKT"}
	res := GenerateAncestral(context.Background(), func(context.Context) (string, error) {
		return "", errors.New("iqtree2 crashed")
	}, cons, 3, DefaultMinSites)
	assert.Equal(t, model.ASRInsufficient, res.Reason)
	assert.Len(t, res.Failures, 1)
}

// fakeClusterer returns scripted outcomes per round.
type fakeClusterer struct {
	rounds [][]seqio.Record
	errs   []error
	calls  int
}

func (f *fakeClusterer) Cluster(_ context.Context, recs []seqio.Record, identity float64, name string) ([]seqio.Record, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	return f.rounds[i], nil
}

// fakeAligner pads representatives to the longest length with gaps.
type fakeAligner struct {
	fail  bool
	calls int
}

func (f *fakeAligner) Align(_ context.Context, recs []seqio.Record, name string) (*model.Alignment, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("mafft failed")
	}
	width := 0
	for _, r := range recs {
		width = max(width, len(r.Seq))
	}
	ids := make([]string, len(recs))
	rows := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
		rows[i] = r.Seq + strings.Repeat("-", width-len(r.Seq))
	}
	return model.NewAlignment(ids, rows)
}

func cobraStrains() []model.Strain {
	return []model.Strain{
		{ID: "a", Seq: "MKTA"}, {ID: "b", Seq: "MKTA"}, {ID: "c", Seq: "MRTA"},
		{ID: "d", Seq: "MRTA"}, {ID: "e", Seq: "MKTV"},
	}
}

func TestCOBRAChainIsTotal(t *testing.T) {
	cons := &model.Design{Tag: model.Consensus, Aligned: "MKTA", Ungapped: "MKTA"}
	r1 := []seqio.Record{{ID: "a", Seq: "MKTA"}, {ID: "c", Seq: "MRTA"}, {ID: "e", Seq: "MKTV"}}
	r2 := []seqio.Record{{ID: "a", Seq: "MKTA"}, {ID: "c", Seq: "MRTA"}, {ID: "x", Seq: "MKTA"}}
	toolErr := errors.New("cd-hit: segfault")

	tests := []struct {
		name     string
		cl       *fakeClusterer
		al       *fakeAligner
		reason   model.FallbackReason
		step     string
		ungapped string
		hasAlign bool
	}{
		{
			name:     "two rounds succeed",
			cl:       &fakeClusterer{rounds: [][]seqio.Record{r1, r2}},
			al:       &fakeAligner{},
			reason:   model.NoFallback,
			step:     "two-round",
			ungapped: "MKTA",
		},
		{
			name:     "low diversity in round 1",
			cl:       &fakeClusterer{rounds: [][]seqio.Record{{{ID: "c", Seq: "MRTA"}}}},
			al:       &fakeAligner{},
			reason:   model.LowDiversityRound1,
			step:     "round1-representatives",
			ungapped: "MRTA",
		},
		{
			name:     "round 2 tool failure",
			cl:       &fakeClusterer{rounds: [][]seqio.Record{r1, nil}, errs: []error{nil, toolErr}},
			al:       &fakeAligner{},
			reason:   model.ClusterToolFailureRound2,
			step:     "round1-representatives",
			ungapped: "MKTA",
		},
		{
			name:     "round 1 tool failure",
			cl:       &fakeClusterer{errs: []error{toolErr}},
			al:       &fakeAligner{},
			reason:   model.ClusterToolFailure,
			step:     "consensus",
			ungapped: "MKTA",
			hasAlign: true,
		},
		{
			name:     "representative alignment failure",
			cl:       &fakeClusterer{rounds: [][]seqio.Record{r1, r2}},
			al:       &fakeAligner{fail: true},
			reason:   model.RepresentativeAlignFailed,
			step:     "consensus",
			ungapped: "MKTA",
			hasAlign: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := GenerateCOBRA(context.Background(), cobraStrains(), cons, tt.cl, tt.al, DefaultCOBRAOptions)
			require.NotNil(t, res.Design)
			assert.Equal(t, model.COBRA, res.Design.Tag)
			assert.Equal(t, tt.reason, res.Reason)
			assert.Equal(t, tt.reason, res.Design.Fallback)
			assert.Equal(t, tt.step, res.Step)
			assert.Equal(t, tt.ungapped, res.Design.Ungapped)
			if tt.hasAlign {
				assert.Equal(t, cons.Aligned, res.Design.Aligned)
			} else {
				assert.Empty(t, res.Design.Aligned)
			}
		})
	}
}

func TestResolveCancelledContextStillProducesDesign(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	res := Resolve(ctx, model.COBRA, []Attempt{{
		Name: "never",
		Run: func(context.Context) (*model.Design, error) {
			ran = true
			return &model.Design{}, nil
		},
	}}, Final{Name: "final", Run: func() *model.Design { return &model.Design{Ungapped: "M"} }})

	assert.False(t, ran)
	assert.Equal(t, "final", res.Step)
	assert.Equal(t, "M", res.Design.Ungapped)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "two-round", Describe(Result{Step: "two-round"}))
	assert.Contains(t, Describe(Result{Step: "consensus", Reason: model.ClusterToolFailure, Failures: []error{errors.New("x")}}), "cluster-tool-failure")
}
