// Package summary reduces per-strain distances to per-year, per-design
// statistics and writes the pipeline's CSV reports.
package summary

import (
	"math"
	"sort"

	"github.com/yumyai/hadesign/pkg/model"
)

// Stats describes one metric over the strains where it is defined. SD is the
// sample standard deviation and is undefined below two values.
type Stats struct {
	N      int      `json:"n"`
	Mean   float64  `json:"mean"`
	Median float64  `json:"median"`
	SD     *float64 `json:"sd"`
}

// Describe returns the statistics of values; ok is false when empty.
func Describe(values []float64) (Stats, bool) {
	n := len(values)
	if n == 0 {
		return Stats{}, false
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	s := Stats{N: n, Mean: mean, Median: median}
	if n > 1 {
		ss := 0.0
		for _, v := range sorted {
			ss += (v - mean) * (v - mean)
		}
		sd := math.Sqrt(ss / float64(n-1))
		s.SD = &sd
	}
	return s, true
}

// YearSummary is the aggregate for one (lineage, year, design).
type YearSummary struct {
	Lineage  string    `json:"lineage"`
	Year     int       `json:"year"`
	Tag      model.Tag `json:"tag"`
	NStrains int       `json:"n_strains"`
	P        *Stats    `json:"p_distance"`
	ML       *Stats    `json:"ml_distance"`
}

// Aggregate summarises one year's records per design, in model.Tags order.
// Designs without a single defined distance are omitted.
func Aggregate(lineage string, year int, recs []model.DistanceRecord) []YearSummary {
	type acc struct {
		p, ml    []float64
		included int
	}
	byTag := make(map[model.Tag]*acc)
	for _, r := range recs {
		a, ok := byTag[r.Tag]
		if !ok {
			a = &acc{}
			byTag[r.Tag] = a
		}
		if r.PDistance != nil {
			a.p = append(a.p, *r.PDistance)
		}
		if r.MLDistance != nil {
			a.ml = append(a.ml, *r.MLDistance)
		}
		if r.PDistance != nil || r.MLDistance != nil {
			a.included++
		}
	}

	var out []YearSummary
	for _, tag := range model.Tags {
		a, ok := byTag[tag]
		if !ok || a.included == 0 {
			continue
		}
		ys := YearSummary{Lineage: lineage, Year: year, Tag: tag, NStrains: a.included}
		if s, ok := Describe(a.p); ok {
			ys.P = &s
		}
		if s, ok := Describe(a.ml); ok {
			ys.ML = &s
		}
		out = append(out, ys)
	}
	return out
}

// ByTag groups summaries of many years per design, each sorted by year.
func ByTag(all []YearSummary) map[model.Tag][]YearSummary {
	out := make(map[model.Tag][]YearSummary)
	for _, s := range all {
		out[s.Tag] = append(out[s.Tag], s)
	}
	for _, list := range out {
		sort.Slice(list, func(i, j int) bool { return list[i].Year < list[j].Year })
	}
	return out
}
