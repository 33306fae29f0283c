package summary

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/yumyai/hadesign/pkg/model"
)

// NA marks undefined values in every report.
const NA = "NA"

var (
	DistanceHeader = []string{"Strain_ID", "P_Distance", "ML_Distance", "Difference"}
	SummaryHeader  = []string{"Year", "N_Strains", "Mean_P_Distance", "Median_P_Distance", "SD_P_Distance", "Mean_ML_Distance", "Median_ML_Distance", "SD_ML_Distance"}
)

// StatusHeader follows model.Stages.
func StatusHeader() []string {
	h := []string{"Year", "Sequences"}
	for _, s := range model.Stages {
		h = append(h, string(s))
	}
	return h
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func formatPtr(v *float64) string {
	if v == nil {
		return NA
	}
	return formatFloat(*v)
}

func statsCells(s *Stats) []string {
	if s == nil {
		return []string{NA, NA, NA}
	}
	return []string{formatFloat(s.Mean), formatFloat(s.Median), formatPtr(s.SD)}
}

// WriteDistances writes the per-strain distances of one design.
func WriteDistances(w io.Writer, recs []model.DistanceRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(DistanceHeader); err != nil {
		return err
	}
	for _, r := range recs {
		row := []string{r.StrainID, formatPtr(r.PDistance), formatPtr(r.MLDistance), formatPtr(r.Difference())}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSummaries writes the yearly summary of one design.
func WriteSummaries(w io.Writer, rows []YearSummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SummaryHeader); err != nil {
		return err
	}
	for _, s := range rows {
		row := []string{strconv.Itoa(s.Year), strconv.Itoa(s.NStrains)}
		row = append(row, statsCells(s.P)...)
		row = append(row, statsCells(s.ML)...)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteStatus writes the year-level status table.
func WriteStatus(w io.Writer, rows []*model.YearStatusRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(StatusHeader()); err != nil {
		return err
	}
	for _, r := range rows {
		row := []string{strconv.Itoa(r.Year), strconv.Itoa(r.Sequences)}
		for _, s := range model.Stages {
			row = append(row, string(r.Mark(s)))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
