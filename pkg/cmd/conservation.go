package cmd

import (
	"bytes"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yumyai/hadesign/internal/util"
	"github.com/yumyai/hadesign/logger"
	"github.com/yumyai/hadesign/pkg/conservation"
	"github.com/yumyai/hadesign/pkg/seqio"
)

var (
	consAlignment string
	consWindow    int
	consTSV       string
	consFasta     string
	consEntropy   string
)

var conservationCmd = &cobra.Command{
	Use:   "conservation",
	Short: "Rank conserved peptide windows of an alignment",
	Long: `Rank conserved peptide windows of an alignment.

Every window of the given width is scored by the mean, over its columns, of
the most frequent residue's share (gaps and X/B/J/Z ignored). Windows are
written best first as a TSV and as a FASTA of window consensus sequences.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		aln, err := seqio.ReadAlignment(consAlignment)
		if err != nil {
			return err
		}

		window := consWindow
		if !cmd.Flags().Changed("window") {
			window = cfg.Conservation.Window
		}
		windows, err := conservation.Windows(aln, window)
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		if err := conservation.WriteWindowsTSV(&buf, windows); err != nil {
			return err
		}
		if err := util.WriteFileAtomic(consTSV, buf.Bytes(), 0o644); err != nil {
			return err
		}

		buf.Reset()
		if err := conservation.WriteWindowsFasta(&buf, windows); err != nil {
			return err
		}
		if err := util.WriteFileAtomic(consFasta, buf.Bytes(), 0o644); err != nil {
			return err
		}

		if consEntropy != "" {
			buf.Reset()
			if err := conservation.WriteEntropy(&buf, conservation.Entropy(aln)); err != nil {
				return err
			}
			if err := util.WriteFileAtomic(consEntropy, buf.Bytes(), 0o644); err != nil {
				return err
			}
		}

		logger.Info("Conservation windows written",
			zap.Int("windows", len(windows)),
			zap.Float64("best", windows[0].Score),
			zap.String("tsv", consTSV),
			zap.String("fasta", consFasta),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(conservationCmd)

	f := conservationCmd.Flags()
	f.StringVarP(&consAlignment, "alignment", "a", "", "aligned protein FASTA")
	f.IntVarP(&consWindow, "window", "w", conservation.DefaultWindow, "window width in columns")
	f.StringVar(&consTSV, "tsv", "conserved_windows.tsv", "output TSV of all windows")
	f.StringVar(&consFasta, "fasta", "conserved_windows.fasta", "output FASTA of window consensus sequences")
	f.StringVar(&consEntropy, "entropy", "", "also write the per-position Shannon entropy TSV here")

	conservationCmd.MarkFlagRequired("alignment")
}
