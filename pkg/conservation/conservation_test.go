package conservation

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yumyai/hadesign/pkg/model"
)

func mustAlignment(t *testing.T, rows ...string) *model.Alignment {
	t.Helper()
	ids := make([]string, len(rows))
	for i := range rows {
		ids[i] = string(rune('a' + i))
	}
	aln, err := model.NewAlignment(ids, rows)
	require.NoError(t, err)
	return aln
}

func TestEntropy(t *testing.T) {
	aln := mustAlignment(t,
		"AAC-",
		"ACC-",
		"AGT-",
		"ATT-",
	)
	got := Entropy(aln)
	require.Len(t, got, 4)
	assert.Equal(t, 0.0, got[0])
	assert.InDelta(t, 2.0, got[1], 1e-12)
	assert.InDelta(t, 1.0, got[2], 1e-12)
	assert.Equal(t, 0.0, got[3], "all-gap column")
}

func TestEntropyIgnoresGaps(t *testing.T) {
	aln := mustAlignment(t, "A", "-", "A", ".")
	assert.Equal(t, 0.0, Entropy(aln)[0])
}

func TestWriteEntropy(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteEntropy(&buf, []float64{0, 1.5}))
	assert.Equal(t, "pos\tentropy\n1\t0.0000\n2\t1.5000\n", buf.String())
}

func TestWindows(t *testing.T) {
	// Column frequencies: 1, 0.5, 1, 0 (all gaps), 1
	aln := mustAlignment(t,
		"AAC-G",
		"AGC-G",
	)
	got, err := Windows(aln, 2)
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, []Window{
		{Start: 1, End: 2, Score: 0.75, Consensus: "AX"},
		{Start: 2, End: 3, Score: 0.75, Consensus: "XC"},
		{Start: 3, End: 4, Score: 0.5, Consensus: "CX"},
		{Start: 4, End: 5, Score: 0.5, Consensus: "XG"},
	}, got)
}

func TestWindowsIgnoresAmbiguousResidues(t *testing.T) {
	aln := mustAlignment(t, "A", "A", "X", "B")
	got, err := Windows(aln, 1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got[0].Score)
	// X and B are still residues for the consensus call: 2/4 < 0.7.
	assert.Equal(t, "X", got[0].Consensus)
}

func TestConsensusThreshold(t *testing.T) {
	tests := []struct {
		col  string
		want byte
	}{
		{"AAAAAAAC--", 'A'}, // 7/8
		{"AAAAAAACCC", 'A'}, // exactly 0.7
		{"AAAAAACCCC", 'X'},
		{"AACC", 'X'},
		{"----", 'X'},
	}
	for _, tt := range tests {
		t.Run(tt.col, func(t *testing.T) {
			assert.Equal(t, tt.want, consensusResidue([]byte(tt.col)))
		})
	}
}

func TestWindowsBadWidth(t *testing.T) {
	aln := mustAlignment(t, "ACGT")
	_, err := Windows(aln, 0)
	assert.Error(t, err)
	_, err = Windows(aln, 5)
	assert.Error(t, err)
}

func TestWriteWindows(t *testing.T) {
	windows := []Window{
		{Start: 3, End: 17, Score: 0.98765, Consensus: "ACDEFGHIKLMNPQR"},
		{Start: 1, End: 15, Score: 0.5, Consensus: "XXXXXXXXXXXXXXX"},
	}

	var tsv bytes.Buffer
	require.NoError(t, WriteWindowsTSV(&tsv, windows))
	assert.Equal(t, "start\tend\tmean_conservation\n3\t17\t0.988\n1\t15\t0.500\n", tsv.String())

	var fa bytes.Buffer
	require.NoError(t, WriteWindowsFasta(&fa, windows))
	lines := strings.Split(strings.TrimSpace(fa.String()), "\n")
	assert.Equal(t, []string{
		">Pos3-17_cons0.988", "ACDEFGHIKLMNPQR",
		">Pos1-15_cons0.500", "XXXXXXXXXXXXXXX",
	}, lines)
}
