package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/yumyai/hadesign/logger"
	"github.com/yumyai/hadesign/pkg/model"
	"github.com/yumyai/hadesign/pkg/render"
	"github.com/yumyai/hadesign/pkg/summary"
)

// LineagePageHandler renders the status and summary tables of a lineage as HTML.
func (dbctx *DBContext) LineagePageHandler(w http.ResponseWriter, r *http.Request) {
	lineage := r.PathValue("lineage")

	rows, err := dbctx.Results.LatestStatus(r.Context(), lineage)
	if err != nil {
		logger.Error("Status query failed", zap.String("lineage", lineage), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if len(rows) == 0 {
		http.Error(w, "no runs recorded for lineage "+lineage, http.StatusNotFound)
		return
	}

	byTag := make(map[model.Tag][]summary.YearSummary)
	for _, tag := range model.Tags {
		s, err := dbctx.Results.Summaries(r.Context(), lineage, tag)
		if err != nil {
			logger.Error("Summary query failed", zap.String("lineage", lineage), zap.Error(err))
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if len(s) > 0 {
			byTag[tag] = s
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := render.RenderStatusPage(w, lineage, rows, byTag); err != nil {
		logger.Error("Error rendering page", zap.Error(err))
	}
}
