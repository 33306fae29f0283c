package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yumyai/hadesign/pkg/model"
	"github.com/yumyai/hadesign/pkg/seqio"
)

func frame(t *testing.T, rows ...string) *model.Alignment {
	t.Helper()
	ids := make([]string, len(rows))
	for i := range rows {
		ids[i] = "s" + string(rune('a'+i))
	}
	aln, err := model.NewAlignment(ids, rows)
	require.NoError(t, err)
	return aln
}

func TestFrameFitter(t *testing.T) {
	f := frame(t, "MK-TA", "MK-TA", "MKQTA")
	ff := NewFrameFitter()

	tests := []struct {
		name   string
		design string
		want   string
	}{
		{"exact fit", "MKQTA", "MKQTA"},
		{"mostly-gap column left empty", "MKTA", "MK-TA"},
		{"unknown residue still placed", "MKWTA", "MKWTA"},
		{"overhang dropped", "MKQTAAA", "MKQTA"},
		{"short design padded with gaps", "MK", "MK---"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ff.Fit(context.Background(), &model.Design{Tag: model.COBRA, Ungapped: tt.design}, f)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Len(t, got, f.Length())
		})
	}
}

func TestReconcilePassThrough(t *testing.T) {
	f := frame(t, "MK-T", "MKQT")
	r := &Reconciler{Fitter: NewFrameFitter()}

	d := &model.Design{Tag: model.Consensus, Aligned: "MK-T", Ungapped: "MKT"}
	got, err := r.Reconcile(context.Background(), d, f)
	require.NoError(t, err)
	assert.Same(t, d, got)
}

func TestReconcileRejectsWrongWidth(t *testing.T) {
	f := frame(t, "MK-T", "MKQT")
	r := &Reconciler{Fitter: NewFrameFitter()}

	_, err := r.Reconcile(context.Background(), &model.Design{Tag: model.Medoid, Aligned: "MKT", Ungapped: "MKT"}, f)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestReconcileFitsCOBRA(t *testing.T) {
	f := frame(t, "MK-T", "MK-T", "MKQT")
	r := &Reconciler{Fitter: NewFrameFitter()}

	d := &model.Design{Tag: model.COBRA, Ungapped: "MKT", Fallback: model.LowDiversityRound1}
	got, err := r.Reconcile(context.Background(), d, f)
	require.NoError(t, err)
	assert.Equal(t, "MK-T", got.Aligned)
	assert.Equal(t, model.LowDiversityRound1, got.Fallback)
	assert.Empty(t, d.Aligned, "input design must not be mutated")
}

type badFitter struct{ row string }

func (b badFitter) Fit(context.Context, *model.Design, *model.Alignment) (string, error) {
	return b.row, nil
}

func TestReconcileNeverTruncates(t *testing.T) {
	f := frame(t, "MKQT")
	r := &Reconciler{Fitter: badFitter{row: "MKQTA"}}
	_, err := r.Reconcile(context.Background(), &model.Design{Tag: model.COBRA, Ungapped: "MKQTA"}, f)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

type fakeAdder struct {
	err error
}

func (a fakeAdder) AddKeepLength(_ context.Context, add []seqio.Record, existing *model.Alignment, _ string) (*model.Alignment, error) {
	if a.err != nil {
		return nil, a.err
	}
	ids := append(append([]string{}, existing.IDs...), add[0].ID)
	rows := append(append([]string{}, existing.Rows...), "MK-T")
	return model.NewAlignment(ids, rows)
}

func TestMafftFitter(t *testing.T) {
	f := frame(t, "MKQT")
	r := &Reconciler{Fitter: &MafftFitter{Adder: fakeAdder{}}}

	got, err := r.Reconcile(context.Background(), &model.Design{Tag: model.COBRA, Ungapped: "MKT"}, f)
	require.NoError(t, err)
	assert.Equal(t, "MK-T", got.Aligned)

	r = &Reconciler{Fitter: &MafftFitter{Adder: fakeAdder{err: errors.New("mafft died")}}}
	_, err = r.Reconcile(context.Background(), &model.Design{Tag: model.COBRA, Ungapped: "MKT"}, f)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrLengthMismatch)
}
