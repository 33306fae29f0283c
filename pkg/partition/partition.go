// Package partition turns a lineage-level sequence collection into disjoint
// per-year cohorts.
package partition

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/yumyai/hadesign/pkg/model"
	"github.com/yumyai/hadesign/pkg/seqio"
)

// HeaderLayout says which pipe-separated header fields carry metadata.
// Field 0 is always the strain id. A negative index disables the field.
type HeaderLayout struct {
	YearField   int
	RegionField int
}

var DefaultLayout = HeaderLayout{YearField: 1, RegionField: 2}

// isolate names end in the collection year, e.g. A/Texas/50/2012
var isolateYear = regexp.MustCompile(`/((?:19|20)\d{2})(?:\([^)]*\))?$`)

// ParseHeader derives id, year and region from a FASTA header. ok is false
// when no year can be found.
func ParseHeader(header string, layout HeaderLayout) (id string, year int, region string, ok bool) {
	header = strings.TrimSpace(header)
	fields := strings.Split(header, "|")
	name := strings.Fields(fields[0])
	if len(name) == 0 {
		return "", 0, "", false
	}
	id = name[0]

	if layout.YearField > 0 && layout.YearField < len(fields) {
		if y, err := strconv.Atoi(strings.TrimSpace(fields[layout.YearField])); err == nil {
			year = y
			ok = true
		}
	}
	if layout.RegionField > 0 && layout.RegionField < len(fields) {
		region = strings.TrimSpace(fields[layout.RegionField])
	}
	if !ok {
		if m := isolateYear.FindStringSubmatch(id); m != nil {
			year, _ = strconv.Atoi(m[1])
			ok = true
		}
	}
	return id, year, region, ok
}

// Rejected lists the ids of records left out of a lineage.
type Rejected struct {
	// Undated records have no derivable collection year.
	Undated []string
	// Duplicates repeat the id of an earlier record, which is kept.
	Duplicates []string
}

// Strains converts FASTA records into strains of one lineage. Strain ids must
// be unique: they name alignment rows and distance records.
func Strains(lineage string, recs []seqio.Record, layout HeaderLayout) ([]model.Strain, Rejected) {
	var (
		strains []model.Strain
		rej     Rejected
	)
	seen := make(map[string]bool, len(recs))
	for _, r := range recs {
		id, year, region, ok := ParseHeader(r.Header, layout)
		if !ok {
			rej.Undated = append(rej.Undated, r.ID)
			continue
		}
		if seen[id] {
			rej.Duplicates = append(rej.Duplicates, id)
			continue
		}
		seen[id] = true
		strains = append(strains, model.Strain{
			ID:      id,
			Seq:     seqio.Ungap(r.Seq),
			Lineage: lineage,
			Year:    year,
			Region:  region,
		})
	}
	return strains, rej
}

// YearCohort is the strain set of one (lineage, year) unit.
type YearCohort struct {
	Dataset model.YearDataset
	Strains []model.Strain
}

// Runnable reports whether downstream stages should run for the cohort.
func (c YearCohort) Runnable() bool {
	return c.Dataset.Status != model.StatusSkippedTooFew
}

// ByYear splits strains into ascending-year cohorts. Cohorts below minStrains
// are kept but marked Skipped-too-few so they still show in the status table.
func ByYear(lineage string, strains []model.Strain, minStrains int) []YearCohort {
	byYear := make(map[int][]model.Strain)
	for _, s := range strains {
		byYear[s.Year] = append(byYear[s.Year], s)
	}

	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)

	cohorts := make([]YearCohort, 0, len(years))
	for _, y := range years {
		ss := byYear[y]
		status := model.StatusComplete
		if len(ss) < minStrains {
			status = model.StatusSkippedTooFew
		}
		cohorts = append(cohorts, YearCohort{
			Dataset: model.YearDataset{
				Lineage:     lineage,
				Year:        y,
				StrainCount: len(ss),
				Status:      status,
			},
			Strains: ss,
		})
	}
	return cohorts
}

// Filter keeps only cohorts for the given years. An empty list keeps all.
func Filter(cohorts []YearCohort, years []int) []YearCohort {
	if len(years) == 0 {
		return cohorts
	}
	want := make(map[int]bool, len(years))
	for _, y := range years {
		want[y] = true
	}
	var out []YearCohort
	for _, c := range cohorts {
		if want[c.Dataset.Year] {
			out = append(out, c)
		}
	}
	return out
}
