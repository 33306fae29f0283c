package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/yumyai/hadesign/logger"
	"github.com/yumyai/hadesign/pkg/model"
	"github.com/yumyai/hadesign/pkg/pipeline"
	"github.com/yumyai/hadesign/pkg/summary"
)

type StatusResponse struct {
	Lineage string                 `json:"lineage"`
	Years   []*model.YearStatusRow `json:"years"`
}

type SummaryResponse struct {
	Lineage string                `json:"lineage"`
	Tag     model.Tag             `json:"tag"`
	Years   []summary.YearSummary `json:"years"`
}

type UnitsResponse struct {
	Units  []pipeline.UnitJob         `json:"units"`
	Counts map[pipeline.UnitState]int `json:"counts"`
}

// StatusHandler serves the latest year status table of a lineage.
func (dbctx *DBContext) StatusHandler(w http.ResponseWriter, r *http.Request) {
	lineage := r.PathValue("lineage")

	rows, err := dbctx.Results.LatestStatus(r.Context(), lineage)
	if err != nil {
		logger.Error("Status query failed", zap.String("lineage", lineage), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "status query failed")
		return
	}
	if len(rows) == 0 {
		writeError(w, http.StatusNotFound, "no runs recorded for lineage "+lineage)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Lineage: lineage, Years: rows})
}

// SummaryHandler serves the per-year statistics of one design.
func (dbctx *DBContext) SummaryHandler(w http.ResponseWriter, r *http.Request) {
	lineage := r.PathValue("lineage")
	tag, err := model.ParseTag(r.PathValue("tag"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	years, err := dbctx.Results.Summaries(r.Context(), lineage, tag)
	if err != nil {
		logger.Error("Summary query failed", zap.String("lineage", lineage), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "summary query failed")
		return
	}
	if years == nil {
		years = []summary.YearSummary{}
	}
	writeJSON(w, http.StatusOK, SummaryResponse{Lineage: lineage, Tag: tag, Years: years})
}

// UnitsHandler lists the units tracked by this process, optionally for one
// lineage (?lineage=).
func (dbctx *DBContext) UnitsHandler(w http.ResponseWriter, r *http.Request) {
	if dbctx.Units == nil {
		writeJSON(w, http.StatusOK, UnitsResponse{Units: []pipeline.UnitJob{}, Counts: map[pipeline.UnitState]int{}})
		return
	}
	writeJSON(w, http.StatusOK, UnitsResponse{
		Units:  dbctx.Units.List(r.URL.Query().Get("lineage")),
		Counts: dbctx.Units.Counts(),
	})
}
