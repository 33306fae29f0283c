package model

import (
	"fmt"
	"strings"
)

// Strain is one ingested sequence record. Immutable once ingested.
type Strain struct {
	ID      string `json:"id"`
	Seq     string `json:"seq"`
	Lineage string `json:"lineage"`
	Year    int    `json:"year"`
	Region  string `json:"region"`
}

// Alignment is a fixed-column multiple sequence alignment owned by a
// (lineage, year) pair. Every row has exactly Length() columns.
type Alignment struct {
	IDs  []string
	Rows []string
}

// NewAlignment checks the fixed-width invariant and row id uniqueness before
// building the alignment.
func NewAlignment(ids, rows []string) (*Alignment, error) {
	if len(ids) != len(rows) {
		return nil, fmt.Errorf("alignment has %d ids but %d rows", len(ids), len(rows))
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("alignment is empty")
	}
	L := len(rows[0])
	seen := make(map[string]bool, len(ids))
	for i, r := range rows {
		if len(r) != L {
			return nil, fmt.Errorf("alignment row %s has %d columns, expected %d", ids[i], len(r), L)
		}
		if seen[ids[i]] {
			return nil, fmt.Errorf("alignment has duplicate row id %s", ids[i])
		}
		seen[ids[i]] = true
	}
	return &Alignment{IDs: ids, Rows: rows}, nil
}

// Length is the column count L.
func (a *Alignment) Length() int {
	if len(a.Rows) == 0 {
		return 0
	}
	return len(a.Rows[0])
}

func (a *Alignment) NbSequences() int {
	return len(a.Rows)
}

// Column returns the symbols at column i, top to bottom.
func (a *Alignment) Column(i int) []byte {
	col := make([]byte, len(a.Rows))
	for r, row := range a.Rows {
		col[r] = row[i]
	}
	return col
}

// Index returns the row of id, or -1.
func (a *Alignment) Index(id string) int {
	for i, s := range a.IDs {
		if s == id {
			return i
		}
	}
	return -1
}

// Design is a generated candidate antigen.
type Design struct {
	Tag      Tag            `json:"tag"`
	Ungapped string         `json:"ungapped"`
	Aligned  string         `json:"aligned,omitempty"`
	SourceID string         `json:"source_id,omitempty"` // Medoid: strain it equals
	NodeID   string         `json:"node_id,omitempty"`   // Ancestral: reconstructed node
	Fallback FallbackReason `json:"fallback,omitempty"`
}

// RecordID is the id a design carries inside the combined alignment.
func (d *Design) RecordID() string {
	return DesignRecordPrefix + d.Tag.Slug()
}

// Header renders the provenance header written into {design}.fasta.
func (d *Design) Header() string {
	parts := []string{string(d.Tag)}
	if d.SourceID != "" {
		parts = append(parts, "source="+d.SourceID)
	}
	if d.NodeID != "" {
		parts = append(parts, "node="+d.NodeID)
	}
	if d.Fallback != NoFallback {
		parts = append(parts, "fallback="+string(d.Fallback))
	}
	return strings.Join(parts, " ")
}

// ParseDesignHeader is the inverse of Header.
func ParseDesignHeader(header string) (*Design, error) {
	fields := strings.Fields(header)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty design header")
	}
	tag, err := ParseTag(fields[0])
	if err != nil {
		return nil, err
	}
	d := &Design{Tag: tag}
	for _, f := range fields[1:] {
		k, v, ok := strings.Cut(f, "=")
		if !ok {
			continue
		}
		switch k {
		case "source":
			d.SourceID = v
		case "node":
			d.NodeID = v
		case "fallback":
			d.Fallback = FallbackReason(v)
		}
	}
	return d, nil
}

// DistanceRecord is one (design, strain) pair. A nil distance is undefined.
type DistanceRecord struct {
	Tag        Tag      `json:"tag"`
	StrainID   string   `json:"strain_id"`
	PDistance  *float64 `json:"p_distance"`
	MLDistance *float64 `json:"ml_distance"`
}

// Difference is ML - p when both are defined.
func (r DistanceRecord) Difference() *float64 {
	if r.PDistance == nil || r.MLDistance == nil {
		return nil
	}
	d := *r.MLDistance - *r.PDistance
	return &d
}

// YearDataset drives whether downstream stages run for a year.
type YearDataset struct {
	Lineage     string     `json:"lineage"`
	Year        int        `json:"year"`
	StrainCount int        `json:"strain_count"`
	Status      YearStatus `json:"status"`
}

// YearStatusRow is one row of the year-level status table.
type YearStatusRow struct {
	Year      int                 `json:"year"`
	Sequences int                 `json:"sequences"`
	Stages    map[Stage]StageMark `json:"stages"`
	Status    YearStatus          `json:"status"`
	Message   string              `json:"message,omitempty"`
}

func NewYearStatusRow(year, sequences int) *YearStatusRow {
	return &YearStatusRow{
		Year:      year,
		Sequences: sequences,
		Stages:    make(map[Stage]StageMark, len(Stages)),
		Status:    StatusComplete,
	}
}

// Mark returns the recorded mark for a stage, blank when the stage never ran.
func (r *YearStatusRow) Mark(s Stage) StageMark {
	if m, ok := r.Stages[s]; ok {
		return m
	}
	return MarkNotRun
}
