package handler

import (
	"net/http"
)

func NewRouter(dbctx *DBContext) *http.ServeMux {
	mux := http.NewServeMux()

	// Error route
	mux.HandleFunc("GET /favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})

	// API routes
	mux.HandleFunc("GET /api/v1/health", HealthCheck)
	mux.HandleFunc("GET /api/v1/status/{lineage}", dbctx.StatusHandler)
	mux.HandleFunc("GET /api/v1/summary/{lineage}/{tag}", dbctx.SummaryHandler)
	mux.HandleFunc("GET /api/v1/units", dbctx.UnitsHandler)

	// Pages
	mux.HandleFunc("GET /lineage/{lineage}", dbctx.LineagePageHandler)

	// Design sequences
	mux.HandleFunc("GET /api/v1/design/{lineage}/{year}/{tag}", dbctx.GetDesignHandler)

	return mux
}
