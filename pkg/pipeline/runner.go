package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yumyai/hadesign/internal/util"
	"github.com/yumyai/hadesign/logger"
	"github.com/yumyai/hadesign/pkg/model"
	"github.com/yumyai/hadesign/pkg/partition"
	"github.com/yumyai/hadesign/pkg/summary"
)

// Ledger records runs durably; implemented by db.ResultsDB.
type Ledger interface {
	StartRun(ctx context.Context, lineage string) (string, error)
	FinishRun(ctx context.Context, runID string) error
	SaveYearStatus(ctx context.Context, runID, lineage string, row *model.YearStatusRow) error
	SaveDistances(ctx context.Context, runID, lineage string, year int, recs []model.DistanceRecord) error
	LatestStatus(ctx context.Context, lineage string) ([]*model.YearStatusRow, error)
	Summaries(ctx context.Context, lineage string, tag model.Tag) ([]summary.YearSummary, error)
}

// Runner schedules the units of one lineage, at most Workers at a time.
type Runner struct {
	Engine    *Engine
	Ledger    Ledger // optional
	Tracker   *UnitTracker
	Workers   int
	ReportDir string
}

// Report is the outcome of a lineage run.
type Report struct {
	RunID     string
	Lineage   string
	Outcomes  []*Outcome
	Status    []*model.YearStatusRow
	Summaries map[model.Tag][]summary.YearSummary
}

// Run processes every cohort and writes the lineage reports. Unit failures
// are part of the report; the returned error covers only the ledger and the
// report files.
func (r *Runner) Run(ctx context.Context, lineage string, cohorts []partition.YearCohort) (*Report, error) {
	runID := uuid.NewString()
	if r.Ledger != nil {
		id, err := r.Ledger.StartRun(ctx, lineage)
		if err != nil {
			return nil, err
		}
		runID = id
	}
	if r.Tracker == nil {
		r.Tracker = NewUnitTracker()
	}

	log := logger.With(zap.String("lineage", lineage), zap.String("run_id", runID))
	log.Info("Run started", zap.Int("years", len(cohorts)), zap.Int("workers", r.workers()))

	var (
		mu   sync.Mutex
		errs []error
	)
	record := func(err error) {
		if err == nil {
			return
		}
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	outcomes := make([]*Outcome, len(cohorts))
	for _, c := range cohorts {
		r.Tracker.Queue(runID, lineage, c.Dataset.Year)
	}

	// Units never return errors to the group, so one failing year cannot
	// cancel the others.
	var g errgroup.Group
	g.SetLimit(r.workers())
	for i, c := range cohorts {
		g.Go(func() error {
			id := UnitID(lineage, c.Dataset.Year)
			r.Tracker.SetRunning(id)

			o := r.Engine.RunUnit(ctx, runID, c)
			outcomes[i] = o

			switch {
			case errors.Is(o.Err, ErrTooFewStrains):
				r.Tracker.Skip(id, o.Err.Error())
			case o.Err != nil:
				r.Tracker.Fail(id, o.Err)
			case o.Status.Status == model.StatusError:
				r.Tracker.Fail(id, errors.New(o.Status.Message))
			default:
				r.Tracker.Complete(id)
			}

			if r.Ledger != nil {
				record(r.Ledger.SaveYearStatus(ctx, runID, lineage, o.Status))
				if len(o.Distances) > 0 {
					record(r.Ledger.SaveDistances(ctx, runID, lineage, c.Dataset.Year, o.Distances))
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	if r.Ledger != nil {
		record(r.Ledger.FinishRun(ctx, runID))
	}

	rep := &Report{RunID: runID, Lineage: lineage, Outcomes: outcomes}
	if err := r.collect(ctx, rep); err != nil {
		errs = append(errs, err)
	} else if err := r.writeReports(rep); err != nil {
		errs = append(errs, err)
	}

	counts := r.Tracker.Counts()
	log.Info("Run finished",
		zap.Int("completed", counts[UnitCompleted]),
		zap.Int("failed", counts[UnitFailed]),
		zap.Int("skipped", counts[UnitSkipped]),
	)
	return rep, errors.Join(errs...)
}

func (r *Runner) workers() int {
	if r.Workers < 1 {
		return 1
	}
	return r.Workers
}

// collect fills the status table and summaries: from the ledger when there is
// one, so years left out of this run still appear, else from the outcomes.
func (r *Runner) collect(ctx context.Context, rep *Report) error {
	rep.Summaries = make(map[model.Tag][]summary.YearSummary)

	if r.Ledger != nil {
		rows, err := r.Ledger.LatestStatus(ctx, rep.Lineage)
		if err != nil {
			return fmt.Errorf("read status: %w", err)
		}
		rep.Status = rows
		for _, tag := range model.Tags {
			s, err := r.Ledger.Summaries(ctx, rep.Lineage, tag)
			if err != nil {
				return fmt.Errorf("read %s summaries: %w", tag, err)
			}
			if len(s) > 0 {
				rep.Summaries[tag] = s
			}
		}
		return nil
	}

	var all []summary.YearSummary
	for _, o := range rep.Outcomes {
		rep.Status = append(rep.Status, o.Status)
		all = append(all, summary.Aggregate(rep.Lineage, o.Dataset.Year, o.Distances)...)
	}
	rep.Summaries = summary.ByTag(all)
	return nil
}

// writeReports writes status/{lineage}_status.csv and
// summary/{lineage}_{design}_summary.csv under ReportDir.
func (r *Runner) writeReports(rep *Report) error {
	if r.ReportDir == "" {
		return nil
	}

	var buf bytes.Buffer
	if err := summary.WriteStatus(&buf, rep.Status); err != nil {
		return err
	}
	p := filepath.Join(r.ReportDir, "status", rep.Lineage+"_status.csv")
	if err := util.WriteFileAtomic(p, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write status report: %w", err)
	}

	for _, tag := range model.Tags {
		rows, ok := rep.Summaries[tag]
		if !ok {
			continue
		}
		buf.Reset()
		if err := summary.WriteSummaries(&buf, rows); err != nil {
			return err
		}
		p := filepath.Join(r.ReportDir, "summary", fmt.Sprintf("%s_%s_summary.csv", rep.Lineage, tag.Slug()))
		if err := util.WriteFileAtomic(p, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("write %s summary: %w", tag, err)
		}
	}
	return nil
}
