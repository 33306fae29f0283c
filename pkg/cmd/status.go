package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yumyai/hadesign/pkg/db"
	"github.com/yumyai/hadesign/pkg/model"
	"github.com/yumyai/hadesign/pkg/summary"
)

var (
	statusLineage string
	statusDesign  string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the year status table of a lineage, or the summary of one design",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !exists(cfg.DBPath) {
			return fmt.Errorf("no results ledger at %s", cfg.DBPath)
		}
		ledger, err := db.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer ledger.Close()

		if statusDesign != "" {
			tag, err := model.ParseTag(statusDesign)
			if err != nil {
				return err
			}
			rows, err := ledger.Summaries(cmd.Context(), statusLineage, tag)
			if err != nil {
				return err
			}
			return summary.WriteSummaries(cmd.OutOrStdout(), rows)
		}

		rows, err := ledger.LatestStatus(cmd.Context(), statusLineage)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return fmt.Errorf("no runs recorded for %s", statusLineage)
		}
		return summary.WriteStatus(cmd.OutOrStdout(), rows)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVarP(&statusLineage, "lineage", "l", "", "lineage name")
	statusCmd.Flags().StringVarP(&statusDesign, "design", "d", "", "print the yearly summary of this design instead")

	statusCmd.MarkFlagRequired("lineage")
}
