package handler

// DI for all handlers alike.

import (
	"context"

	"github.com/yumyai/hadesign/pkg/model"
	"github.com/yumyai/hadesign/pkg/pipeline"
	"github.com/yumyai/hadesign/pkg/store"
	"github.com/yumyai/hadesign/pkg/summary"
)

// ResultsReader is the read side of the results ledger.
type ResultsReader interface {
	LatestStatus(ctx context.Context, lineage string) ([]*model.YearStatusRow, error)
	Summaries(ctx context.Context, lineage string, tag model.Tag) ([]summary.YearSummary, error)
}

type DBContext struct {
	Results ResultsReader
	Store   store.Store
	Units   *pipeline.UnitTracker
}
