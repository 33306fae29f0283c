package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yumyai/hadesign/logger"
	"github.com/yumyai/hadesign/pkg/config"
	"github.com/yumyai/hadesign/pkg/db"
	"github.com/yumyai/hadesign/pkg/partition"
	"github.com/yumyai/hadesign/pkg/pipeline"
	"github.com/yumyai/hadesign/pkg/seqio"
	"github.com/yumyai/hadesign/pkg/store"
	"github.com/yumyai/hadesign/pkg/summary"
)

var (
	runLineage string
	runInput   string
	runYears   []int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every year unit of a lineage",
	Long: `Run every year unit of a lineage.

The input FASTA is split by collection year. Each year with enough strains is
aligned, gets a tree, the four designs (Consensus, Medoid, Ancestral, COBRA)
and a combined tree, and every design is scored against every strain.
Artifacts are kept under the work directory and reused on re-runs, so only
failed or new years do any work.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ledger, err := db.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer ledger.Close()

		rep, err := runLineageUnits(cmd.Context(), cfg, ledger, pipeline.NewUnitTracker(), runLineage, runInput, runYears)
		if rep != nil {
			if werr := summary.WriteStatus(cmd.OutOrStdout(), rep.Status); werr != nil {
				err = errors.Join(err, fmt.Errorf("write status: %w", werr))
			}
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runLineage, "lineage", "l", "", "lineage name, e.g. H3N2")
	runCmd.Flags().StringVarP(&runInput, "input", "i", "", "raw HA FASTA (default: <data>/<lineage>.fasta)")
	runCmd.Flags().IntSliceVarP(&runYears, "years", "y", nil, "only run these years, e.g. 2015,2016")

	runCmd.MarkFlagRequired("lineage")
}

// runLineageUnits partitions the lineage input and runs its units.
func runLineageUnits(ctx context.Context, c config.Config, ledger pipeline.Ledger, tracker *pipeline.UnitTracker, lineage, input string, years []int) (*pipeline.Report, error) {
	if input == "" {
		seqdb, err := db.NewSequenceDB(c.DataDir)
		if err != nil {
			return nil, err
		}
		if input, err = seqdb.LineageFasta(lineage); err != nil {
			return nil, err
		}
	}

	recs, err := seqio.ReadFasta(input)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", input, err)
	}
	strains, rej := partition.Strains(lineage, recs, c.Header.Layout())
	if n := len(rej.Undated); n > 0 {
		logger.Warn("Dropped records without a collection year",
			zap.Int("count", n),
			zap.Strings("first", rej.Undated[:min(5, n)]),
		)
	}
	if n := len(rej.Duplicates); n > 0 {
		logger.Warn("Dropped records repeating an earlier strain id",
			zap.Int("count", n),
			zap.Strings("first", rej.Duplicates[:min(5, n)]),
		)
	}

	cohorts := partition.Filter(partition.ByYear(lineage, strains, c.MinStrains), years)
	if len(cohorts) == 0 {
		return nil, fmt.Errorf("no years to run for %s", lineage)
	}
	logger.Info("Partitioned input",
		zap.String("lineage", lineage),
		zap.String("input", input),
		zap.Int("strains", len(strains)),
		zap.Int("years", len(cohorts)),
	)

	fs, err := store.NewFileStore(c.WorkDir)
	if err != nil {
		return nil, err
	}
	runner := &pipeline.Runner{
		Engine: &pipeline.Engine{
			Store:  fs,
			Tools:  pipeline.ExternalTools(c.Tools, c.Reconciler),
			Params: params(c),
		},
		Ledger:    ledger,
		Tracker:   tracker,
		Workers:   c.Workers,
		ReportDir: filepath.Join(c.WorkDir, "reports"),
	}
	return runner.Run(ctx, lineage, cohorts)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
