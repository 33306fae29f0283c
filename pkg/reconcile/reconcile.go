// Package reconcile fits design sequences into the fixed column frame of a
// year's alignment, so designs and strains can be compared column by column.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/yumyai/hadesign/pkg/model"
	"github.com/yumyai/hadesign/pkg/seqio"
)

// ErrLengthMismatch means a design's aligned form does not have the
// alignment's column count. It is never repaired by padding or truncation.
var ErrLengthMismatch = errors.New("aligned design length differs from alignment")

// Fitter places an ungapped sequence into the columns of frame and returns
// the aligned row.
type Fitter interface {
	Fit(ctx context.Context, d *model.Design, frame *model.Alignment) (string, error)
}

// Reconciler gives every design an aligned form of exactly L columns.
type Reconciler struct {
	Fitter Fitter
}

// Reconcile returns d with a frame-compatible aligned form. Designs already
// derived from the alignment pass through unchanged; the rest go through the
// fitter.
func (r *Reconciler) Reconcile(ctx context.Context, d *model.Design, frame *model.Alignment) (*model.Design, error) {
	L := frame.Length()

	if d.Aligned != "" {
		if err := CheckLength(d.Tag, d.Aligned, L); err != nil {
			return nil, err
		}
		return d, nil
	}

	if d.Ungapped == "" {
		return nil, fmt.Errorf("%s design is empty", d.Tag)
	}
	aligned, err := r.Fitter.Fit(ctx, d, frame)
	if err != nil {
		return nil, fmt.Errorf("fit %s into alignment: %w", d.Tag, err)
	}
	if err := CheckLength(d.Tag, aligned, L); err != nil {
		return nil, err
	}

	out := *d
	out.Aligned = aligned
	return &out, nil
}

// CheckLength enforces the fixed-width invariant for a design row.
func CheckLength(tag model.Tag, aligned string, L int) error {
	if len(aligned) != L {
		return fmt.Errorf("%w: %s has %d columns, alignment has %d", ErrLengthMismatch, tag, len(aligned), L)
	}
	return nil
}

// ProfileAdder is implemented by tools.Mafft.
type ProfileAdder interface {
	AddKeepLength(ctx context.Context, add []seqio.Record, existing *model.Alignment, name string) (*model.Alignment, error)
}

// MafftFitter delegates fitting to mafft --add --keeplength.
type MafftFitter struct {
	Adder ProfileAdder
}

func (m *MafftFitter) Fit(ctx context.Context, d *model.Design, frame *model.Alignment) (string, error) {
	id := d.RecordID()
	out, err := m.Adder.AddKeepLength(ctx, []seqio.Record{{ID: id, Seq: d.Ungapped}}, frame, d.Tag.Slug())
	if err != nil {
		return "", err
	}
	for i := out.NbSequences() - 1; i >= 0; i-- {
		if out.IDs[i] == id {
			return out.Rows[i], nil
		}
	}
	return "", fmt.Errorf("mafft output has no row %s", id)
}
