// Package cmd is for command line interactions with hadesign
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/yumyai/hadesign/logger"
	"github.com/yumyai/hadesign/pkg/config"
	"github.com/yumyai/hadesign/pkg/pipeline"
)

var (
	Version = "0.1.0"

	configPath string
	cfg        config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use: "hadesign",
	Short: `Generate candidate HA antigen designs per lineage and year, and score
them against the strains they were derived from`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
		applyFlags(cmd)
		return cfg.Validate()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	pf.String("work", "", "artifact and report directory (HADESIGN_WORK)")
	pf.String("db", "", "sqlite results ledger (HADESIGN_DB)")
	pf.String("data", "", "directory with one FASTA per lineage (HADESIGN_DATA)")
	pf.Int("workers", 0, "year units run concurrently (HADESIGN_WORKERS)")
}

// applyFlags gives explicitly set flags the last word over file and env.
func applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("work") {
		cfg.WorkDir, _ = flags.GetString("work")
	}
	if flags.Changed("db") {
		cfg.DBPath, _ = flags.GetString("db")
	}
	if flags.Changed("data") {
		cfg.DataDir, _ = flags.GetString("data")
	}
	if flags.Changed("workers") {
		cfg.Workers, _ = flags.GetInt("workers")
	}
}

func params(c config.Config) pipeline.Params {
	p := pipeline.DefaultParams
	p.MinStrains = c.MinStrains
	p.GapWeight = c.Consensus.GapWeight
	p.MinSites = c.Ancestral.MinSites
	p.COBRA.Round1Identity = c.COBRA.Round1Identity
	p.COBRA.Round2Identity = c.COBRA.Round2Identity
	p.COBRA.GapWeight = c.Consensus.GapWeight
	return p
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		logger.Error(err.Error())
		return err
	}
	return nil
}
