package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/yumyai/hadesign/pkg/model"
	"github.com/yumyai/hadesign/pkg/summary"
)

const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		lineage     TEXT NOT NULL,
		started_at  TEXT NOT NULL,
		finished_at TEXT
	);
	CREATE TABLE IF NOT EXISTS year_status (
		run_id            TEXT NOT NULL REFERENCES runs(id),
		lineage           TEXT NOT NULL,
		year              INTEGER NOT NULL,
		sequences         INTEGER NOT NULL,
		alignment         TEXT NOT NULL,
		tree              TEXT NOT NULL,
		consensus         TEXT NOT NULL,
		medoid            TEXT NOT NULL,
		ancestral         TEXT NOT NULL,
		cobra             TEXT NOT NULL,
		tree_with_designs TEXT NOT NULL,
		status            TEXT NOT NULL,
		message           TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, lineage, year)
	);
	CREATE TABLE IF NOT EXISTS distances (
		run_id      TEXT NOT NULL REFERENCES runs(id),
		lineage     TEXT NOT NULL,
		year        INTEGER NOT NULL,
		tag         TEXT NOT NULL,
		strain_id   TEXT NOT NULL,
		p_distance  REAL,
		ml_distance REAL,
		PRIMARY KEY (run_id, lineage, year, tag, strain_id)
	);
	CREATE INDEX IF NOT EXISTS idx_year_status_lineage ON year_status(lineage, year);
`

// ResultsDB is the sqlite ledger of pipeline runs: one row per year unit and
// one per (design, strain) distance, keyed by run.
type ResultsDB struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger at path.
func Open(path string) (*ResultsDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Year units write concurrently; sqlite takes one writer at a time.
	db.SetMaxOpenConns(1)

	rdb, err := NewResultsDB(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open results db %s: %w", path, err)
	}
	return rdb, nil
}

func NewResultsDB(db *sql.DB) (*ResultsDB, error) {
	ctx := context.TODO()
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000;`); err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &ResultsDB{db: db}, nil
}

func (r *ResultsDB) Close() error {
	return r.db.Close()
}

// Fixed width so started_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func now() string {
	return time.Now().UTC().Format(timeLayout)
}

// StartRun registers a run and returns its id.
func (r *ResultsDB) StartRun(ctx context.Context, lineage string) (string, error) {
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO runs (id, lineage, started_at) VALUES (?, ?, ?)`, id, lineage, now())
	if err != nil {
		return "", fmt.Errorf("start run: %w", err)
	}
	return id, nil
}

func (r *ResultsDB) FinishRun(ctx context.Context, runID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE runs SET finished_at = ? WHERE id = ?`, now(), runID)
	return err
}

// SaveYearStatus records (or replaces) the status row of a year in a run.
func (r *ResultsDB) SaveYearStatus(ctx context.Context, runID, lineage string, row *model.YearStatusRow) error {
	args := []any{runID, lineage, row.Year, row.Sequences}
	for _, s := range model.Stages {
		args = append(args, string(row.Mark(s)))
	}
	args = append(args, string(row.Status), row.Message)

	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO year_status
			(run_id, lineage, year, sequences, alignment, tree, consensus, medoid,
			 ancestral, cobra, tree_with_designs, status, message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return fmt.Errorf("save status %s/%d: %w", lineage, row.Year, err)
	}
	return nil
}

// SaveDistances replaces the distances of one year in a run.
func (r *ResultsDB) SaveDistances(ctx context.Context, runID, lineage string, year int, recs []model.DistanceRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM distances WHERE run_id = ? AND lineage = ? AND year = ?`, runID, lineage, year); err != nil {
		tx.Rollback()
		return err
	}

	stm, err := tx.PrepareContext(ctx, `
		INSERT INTO distances (run_id, lineage, year, tag, strain_id, p_distance, ml_distance)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stm.Close()

	for _, rec := range recs {
		if _, err := stm.ExecContext(ctx, runID, lineage, year, string(rec.Tag), rec.StrainID,
			nullable(rec.PDistance), nullable(rec.MLDistance)); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert distance %s/%s: %w", rec.Tag, rec.StrainID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func nullable(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

// latestYears picks, per year, the status row written by the most recent run.
const latestYears = `
	WITH ranked AS (
		SELECT ys.*, ROW_NUMBER() OVER (
			PARTITION BY ys.year ORDER BY r.started_at DESC, ys.rowid DESC
		) AS rn
		FROM year_status ys
		JOIN runs r ON r.id = ys.run_id
		WHERE ys.lineage = ?
	)
`

// LatestStatus returns the most recent status row of every year of lineage.
func (r *ResultsDB) LatestStatus(ctx context.Context, lineage string) ([]*model.YearStatusRow, error) {
	stm, err := r.db.PrepareContext(ctx, latestYears+`
		SELECT year, sequences, alignment, tree, consensus, medoid, ancestral, cobra,
		       tree_with_designs, status, message
		FROM ranked WHERE rn = 1 ORDER BY year`)
	if err != nil {
		return nil, err
	}
	defer stm.Close()

	rows, err := stm.QueryContext(ctx, lineage)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.YearStatusRow
	for rows.Next() {
		var (
			year, sequences int
			marks           = make([]string, len(model.Stages))
			status, message string
		)
		dest := []any{&year, &sequences}
		for i := range marks {
			dest = append(dest, &marks[i])
		}
		dest = append(dest, &status, &message)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan status row: %w", err)
		}

		row := model.NewYearStatusRow(year, sequences)
		for i, s := range model.Stages {
			if marks[i] != "" {
				row.Stages[s] = model.StageMark(marks[i])
			}
		}
		row.Status = model.YearStatus(status)
		row.Message = message
		out = append(out, row)
	}
	return out, rows.Err()
}

// Summaries aggregates the latest distances of every year for one design.
func (r *ResultsDB) Summaries(ctx context.Context, lineage string, tag model.Tag) ([]summary.YearSummary, error) {
	stm, err := r.db.PrepareContext(ctx, latestYears+`
		SELECT d.year, d.strain_id, d.p_distance, d.ml_distance
		FROM ranked
		JOIN distances d ON d.run_id = ranked.run_id AND d.lineage = ranked.lineage AND d.year = ranked.year
		WHERE ranked.rn = 1 AND d.tag = ?
		ORDER BY d.year, d.strain_id`)
	if err != nil {
		return nil, err
	}
	defer stm.Close()

	rows, err := stm.QueryContext(ctx, lineage, string(tag))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byYear := make(map[int][]model.DistanceRecord)
	var years []int
	for rows.Next() {
		var (
			year  int
			id    string
			p, ml sql.NullFloat64
		)
		if err := rows.Scan(&year, &id, &p, &ml); err != nil {
			return nil, fmt.Errorf("scan distance row: %w", err)
		}
		rec := model.DistanceRecord{Tag: tag, StrainID: id}
		if p.Valid {
			v := p.Float64
			rec.PDistance = &v
		}
		if ml.Valid {
			v := ml.Float64
			rec.MLDistance = &v
		}
		if _, seen := byYear[year]; !seen {
			years = append(years, year)
		}
		byYear[year] = append(byYear[year], rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []summary.YearSummary
	for _, y := range years {
		out = append(out, summary.Aggregate(lineage, y, byYear[y])...)
	}
	return out, nil
}
