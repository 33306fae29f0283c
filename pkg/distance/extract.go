package distance

import (
	"errors"

	"go.uber.org/zap"

	"github.com/yumyai/hadesign/logger"
	"github.com/yumyai/hadesign/pkg/model"
)

// Extract computes one record per (design, strain) pair. p-distance comes
// from the aligned rows; ML distance from m, when present. A design whose row
// is missing from m gets undefined ML distances for every strain.
func Extract(aln *model.Alignment, designs map[model.Tag]*model.Design, comb *Combined, m *Matrix) ([]model.DistanceRecord, error) {
	var out []model.DistanceRecord

	for _, tag := range model.Tags {
		d, ok := designs[tag]
		if !ok {
			continue
		}

		designRow, inMatrix := -1, false
		if m != nil && comb != nil {
			if row, ok := comb.DesignRows[tag]; ok {
				idx, found := m.Index(comb.Names[row])
				designRow, inMatrix = idx, found
			}
		}
		if m != nil && !inMatrix {
			logger.Warn("Design row not found in ML distance matrix", zap.String("design", string(tag)))
		}

		for s, strainRow := range aln.Rows {
			rec := model.DistanceRecord{Tag: tag, StrainID: aln.IDs[s]}

			p, err := PDistance(d.Aligned, strainRow)
			switch {
			case err == nil:
				rec.PDistance = &p
			case errors.Is(err, ErrNoComparableColumns):
			default:
				return nil, err
			}

			if inMatrix {
				if idx, ok := m.Index(comb.Names[s]); ok {
					if v, ok := m.At(designRow, idx); ok {
						ml := v
						rec.MLDistance = &ml
					}
				}
			}
			out = append(out, rec)
		}
	}
	return out, nil
}
