package distance

import (
	"fmt"

	"github.com/yumyai/hadesign/pkg/model"
	"github.com/yumyai/hadesign/pkg/reconcile"
	"github.com/yumyai/hadesign/pkg/seqio"
)

// Combined is the year alignment with the reconciled designs appended. It
// records which row each strain and design occupies, so distance lookups never
// have to rediscover rows from record names.
type Combined struct {
	Names      []string
	StrainIDs  []string
	DesignRows map[model.Tag]int
	Records    []seqio.Record
}

// strainRowName is a tool-safe row name; strain ids often contain characters
// the phylogenetics tool rewrites.
func strainRowName(i int) string {
	return fmt.Sprintf("STRAIN_%05d", i)
}

// BuildCombined appends designs (in model.Tags order, skipping absent ones)
// after the strains of aln. Every design must already be frame compatible.
func BuildCombined(aln *model.Alignment, designs map[model.Tag]*model.Design) (*Combined, error) {
	L := aln.Length()
	n := aln.NbSequences()

	c := &Combined{
		Names:      make([]string, 0, n+len(designs)),
		StrainIDs:  append([]string(nil), aln.IDs...),
		DesignRows: make(map[model.Tag]int, len(designs)),
		Records:    make([]seqio.Record, 0, n+len(designs)),
	}
	for i, row := range aln.Rows {
		name := strainRowName(i)
		c.Names = append(c.Names, name)
		c.Records = append(c.Records, seqio.Record{ID: name, Seq: row})
	}
	for _, tag := range model.Tags {
		d, ok := designs[tag]
		if !ok {
			continue
		}
		if err := reconcile.CheckLength(tag, d.Aligned, L); err != nil {
			return nil, err
		}
		name := d.RecordID()
		c.DesignRows[tag] = len(c.Names)
		c.Names = append(c.Names, name)
		c.Records = append(c.Records, seqio.Record{ID: name, Seq: d.Aligned})
	}
	return c, nil
}
