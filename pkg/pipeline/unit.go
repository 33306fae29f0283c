// Package pipeline runs the per-(lineage, year) units: alignment, tree,
// design generation, reconciliation, combined tree and distance extraction.
// Units share nothing but the artifact store, so a failing unit never
// affects its siblings.
package pipeline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/yumyai/hadesign/internal/util"
	"github.com/yumyai/hadesign/logger"
	"github.com/yumyai/hadesign/pkg/design"
	"github.com/yumyai/hadesign/pkg/distance"
	"github.com/yumyai/hadesign/pkg/model"
	"github.com/yumyai/hadesign/pkg/partition"
	"github.com/yumyai/hadesign/pkg/reconcile"
	"github.com/yumyai/hadesign/pkg/seqio"
	"github.com/yumyai/hadesign/pkg/store"
	"github.com/yumyai/hadesign/pkg/summary"
	"github.com/yumyai/hadesign/pkg/tools"
)

var ErrTooFewStrains = errors.New("too few strains")

const (
	inputArtifact     = "input.sha256"
	alignmentArtifact = "alignment.fasta"
	yearTreeArtifact  = "year.treefile"
	stateArtifact     = "ancestral.state"
	combinedArtifact  = "combined_aligned.fasta"
	combinedDistances = "combined.mldist"
	scratchDir        = "scratch"
)

// Params are the tunable constants of design generation.
type Params struct {
	MinStrains int
	GapWeight  float64
	MinSites   int
	COBRA      design.COBRAOptions
}

var DefaultParams = Params{
	MinStrains: 5,
	GapWeight:  design.DefaultGapWeight,
	MinSites:   design.DefaultMinSites,
	COBRA:      design.DefaultCOBRAOptions,
}

// Engine runs units against one artifact store.
type Engine struct {
	Store  *store.FileStore
	Tools  ToolFactory
	Params Params
}

// Outcome is everything a unit produced. Err is the failure that stopped it,
// if any; the status row always describes what happened.
type Outcome struct {
	Dataset   model.YearDataset
	Status    *model.YearStatusRow
	Designs   map[model.Tag]*model.Design
	Distances []model.DistanceRecord
	Err       error
}

type unit struct {
	*Engine
	lineage string
	year    int
	tools   Tools
	log     *zap.Logger
	row     *model.YearStatusRow

	aln     *model.Alignment
	alnPath string
	tree    string
}

// RunUnit processes one year cohort. It never panics across the unit
// boundary and never returns an error: failures are recorded on the outcome.
func (e *Engine) RunUnit(ctx context.Context, runID string, cohort partition.YearCohort) (out *Outcome) {
	ds := cohort.Dataset
	u := &unit{
		Engine:  e,
		lineage: ds.Lineage,
		year:    ds.Year,
		log: logger.With(
			zap.String("lineage", ds.Lineage),
			zap.Int("year", ds.Year),
			zap.String("run_id", runID),
		),
		row: model.NewYearStatusRow(ds.Year, ds.StrainCount),
	}
	out = &Outcome{Dataset: ds, Status: u.row}

	if !cohort.Runnable() {
		for _, s := range model.Stages {
			u.row.Stages[s] = model.MarkSkipped
		}
		u.row.Status = model.StatusSkippedTooFew
		out.Err = fmt.Errorf("%w: %d < %d", ErrTooFewStrains, ds.StrainCount, e.Params.MinStrains)
		u.log.Info("Year skipped", zap.Int("strains", ds.StrainCount))
		return out
	}

	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("unit panicked: %v", r)
			u.fail(out.Err)
			out.Dataset.Status = u.row.Status
			u.log.Error("Unit panicked", zap.Any("panic", r))
		}
	}()

	designs, recs, err := u.run(ctx, cohort.Strains)
	out.Designs = designs
	out.Distances = recs
	out.Err = err

	for _, s := range model.Stages {
		if u.row.Mark(s) == model.MarkError {
			u.row.Status = model.StatusError
		}
	}
	if err != nil {
		u.fail(err)
	}
	out.Dataset.Status = u.row.Status

	if u.row.Status == model.StatusError {
		u.log.Warn("Year finished with errors", zap.String("message", u.row.Message))
	} else {
		u.log.Info("Year complete", zap.Int("distances", len(recs)))
	}
	return out
}

func (u *unit) fail(err error) {
	u.row.Status = model.StatusError
	u.note(err.Error())
}

func (u *unit) note(msg string) {
	if u.row.Message == "" {
		u.row.Message = msg
		return
	}
	u.row.Message += "; " + msg
}

func (u *unit) key(name string) store.Key {
	return store.Key{Lineage: u.lineage, Year: u.year, Name: name}
}

func (u *unit) path(name string) (string, error) {
	return u.Store.Path(u.key(name))
}

func (u *unit) run(ctx context.Context, strains []model.Strain) (map[model.Tag]*model.Design, []model.DistanceRecord, error) {
	dir, err := u.Store.UnitDir(u.lineage, u.year)
	if err != nil {
		return nil, nil, err
	}
	u.tools = u.Tools(filepath.Join(dir, scratchDir))

	if err := u.checkInput(strains); err != nil {
		u.row.Stages[model.StageAlignment] = model.MarkError
		return nil, nil, fmt.Errorf("input: %w", err)
	}
	if err := u.align(ctx, strains); err != nil {
		u.row.Stages[model.StageAlignment] = model.MarkError
		return nil, nil, fmt.Errorf("alignment: %w", err)
	}
	u.row.Stages[model.StageAlignment] = model.MarkDone

	if err := u.buildTree(ctx); err != nil {
		u.row.Stages[model.StageTree] = model.MarkError
		u.note("tree: " + err.Error())
		u.log.Warn("Year tree failed", zap.Error(err))
	} else {
		u.row.Stages[model.StageTree] = model.MarkDone
	}

	designs, err := u.designs(ctx, strains)
	if err != nil {
		return designs, nil, err
	}

	comb, m, err := u.combinedTree(ctx, designs)
	if err != nil {
		if comb == nil {
			return designs, nil, err
		}
		u.row.Stages[model.StageTreeWithDesigns] = model.MarkError
		u.note("combined tree: " + err.Error())
		u.log.Warn("Combined tree failed, ML distances undefined", zap.Error(err))
	} else {
		u.row.Stages[model.StageTreeWithDesigns] = model.MarkDone
	}

	recs, err := distance.Extract(u.aln, designs, comb, m)
	if err != nil {
		return designs, nil, fmt.Errorf("distances: %w", err)
	}
	if err := u.writeDistances(recs); err != nil {
		return designs, recs, err
	}
	return designs, recs, nil
}

// fingerprint identifies an input set independently of record order.
func fingerprint(strains []model.Strain) string {
	lines := make([]string, len(strains))
	for i, s := range strains {
		lines[i] = s.ID + "\t" + s.Seq
	}
	sort.Strings(lines)

	h := sha256.New()
	for _, l := range lines {
		h.Write([]byte(l))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// checkInput discards every artifact of the unit when its input set differs
// from the one they were built from, so the alignment and everything derived
// from it is rebuilt.
func (u *unit) checkInput(strains []model.Strain) error {
	fp := []byte(fingerprint(strains) + "\n")
	prev, ok, err := u.Store.Get(u.key(inputArtifact))
	if err != nil {
		return err
	}
	if ok && bytes.Equal(prev, fp) {
		return nil
	}
	if ok {
		u.log.Info("Input set changed, rebuilding year", zap.Int("strains", len(strains)))
	}
	if err := u.Store.ClearUnit(u.lineage, u.year); err != nil {
		return err
	}
	return u.Store.Put(u.key(inputArtifact), fp)
}

func (u *unit) align(ctx context.Context, strains []model.Strain) error {
	data, hit, err := u.Store.GetOrCompute(ctx, u.key(alignmentArtifact), func(ctx context.Context) ([]byte, error) {
		recs := make([]seqio.Record, len(strains))
		for i, s := range strains {
			recs[i] = seqio.Record{ID: s.ID, Seq: s.Seq}
		}
		aln, err := u.tools.Aligner.Align(ctx, recs, "year")
		if err != nil {
			return nil, err
		}
		return seqio.FormatFasta(seqio.AlignmentRecords(aln)), nil
	})
	if err != nil {
		return err
	}

	aln, err := seqio.ParseAlignment(bytes.NewReader(data))
	if err != nil {
		return err
	}
	if aln.NbSequences() != len(strains) {
		return fmt.Errorf("alignment has %d rows for %d strains", aln.NbSequences(), len(strains))
	}
	u.aln = aln
	u.alnPath, err = u.path(alignmentArtifact)
	u.log.Debug("Alignment ready", zap.Bool("cached", hit), zap.Int("columns", aln.Length()))
	return err
}

// toolOutput returns the path of a file artifact written by an external
// tool, running produce only when the file is absent.
func (u *unit) toolOutput(ctx context.Context, name string, produce func(ctx context.Context, path string) error) (string, error) {
	p, err := u.path(name)
	if err != nil {
		return "", err
	}
	if util.FileExists(p) {
		return p, nil
	}
	if err := produce(ctx, p); err != nil {
		return "", err
	}
	if !util.FileExists(p) {
		return "", fmt.Errorf("%s was not produced", name)
	}
	return p, nil
}

func (u *unit) buildTree(ctx context.Context) error {
	p, err := u.toolOutput(ctx, yearTreeArtifact, func(ctx context.Context, path string) error {
		_, err := u.tools.Trees.Tree(ctx, u.alnPath, strings.TrimSuffix(path, ".treefile"))
		return err
	})
	u.tree = p
	return err
}

func (u *unit) stateTable(ctx context.Context) (string, error) {
	if u.tree == "" {
		return "", errors.New("no year tree")
	}
	return u.toolOutput(ctx, stateArtifact, func(ctx context.Context, path string) error {
		_, err := u.tools.Trees.Ancestral(ctx, u.alnPath, u.tree, strings.TrimSuffix(path, ".state"))
		return err
	})
}

// designs produces and reconciles the four designs. A reconciliation failure
// stops the unit: the combined alignment needs every row at width L.
func (u *unit) designs(ctx context.Context, strains []model.Strain) (map[model.Tag]*model.Design, error) {
	L := u.aln.Length()
	rec := &reconcile.Reconciler{Fitter: u.tools.Fitter}
	out := make(map[model.Tag]*model.Design, len(model.Tags))

	var consensus *model.Design
	generators := map[model.Tag]func(ctx context.Context) design.Result{
		model.Consensus: func(context.Context) design.Result {
			return design.Result{Design: design.NewConsensus(u.aln, u.Params.GapWeight), Step: "majority"}
		},
		model.Medoid: func(context.Context) design.Result {
			return design.Result{Design: design.NewMedoid(u.aln), Step: "row-sum"}
		},
		model.Ancestral: func(ctx context.Context) design.Result {
			return design.GenerateAncestral(ctx, u.stateTable, consensus, L, u.Params.MinSites)
		},
		model.COBRA: func(ctx context.Context) design.Result {
			return design.GenerateCOBRA(ctx, strains, consensus, u.tools.Clusterer, u.tools.Aligner, u.Params.COBRA)
		},
	}

	for _, tag := range model.Tags {
		stage := model.StageOf(tag)
		upstreamFailed := tag == model.Ancestral && u.row.Mark(model.StageTree) == model.MarkError
		d, err := u.design(ctx, tag, generators[tag], rec, upstreamFailed)
		if err != nil {
			u.row.Stages[stage] = model.MarkError
			return out, fmt.Errorf("%s: %w", tag, err)
		}
		if tag == model.Consensus {
			consensus = d
		}
		out[tag] = d

		if d.Fallback != model.NoFallback {
			u.row.Stages[stage] = model.FallbackMark(d.Fallback)
		} else {
			u.row.Stages[stage] = model.MarkDone
		}
	}
	return out, nil
}

// design memoizes one design as {slug}.fasta (ungapped, provenance in the
// header) and {slug}_aligned.fasta (L columns). A design built while an
// upstream stage failed, or that fell back because a tool failed, is used for
// this run only and generated again on the next one.
func (u *unit) design(ctx context.Context, tag model.Tag, gen func(context.Context) design.Result, rec *reconcile.Reconciler, upstreamFailed bool) (*model.Design, error) {
	slug := tag.Slug()
	designKey, alignedKey := u.key(slug+".fasta"), u.key(slug+"_aligned.fasta")

	if !upstreamFailed {
		data, ok, err := u.Store.Get(designKey)
		if err != nil {
			return nil, err
		}
		if ok {
			d, err := decodeDesign(data)
			if err != nil {
				return nil, err
			}
			if d.Tag != tag {
				return nil, fmt.Errorf("%s.fasta holds a %s design", slug, d.Tag)
			}
			return u.fit(ctx, d, rec, alignedKey, true)
		}
	}

	res := gen(ctx)
	d := res.Design
	d.Tag = tag
	for _, f := range res.Failures {
		u.log.Debug("Design step failed", zap.String("design", string(tag)), zap.Error(f))
	}
	u.log.Info("Design generated", zap.String("design", string(tag)), zap.String("path", design.Describe(res)))

	// An aligned form left by an earlier design belongs to other residues.
	if err := u.Store.Remove(alignedKey); err != nil {
		return nil, err
	}

	keep := !upstreamFailed && !transient(res)
	if keep {
		content := seqio.FormatFasta([]seqio.Record{{ID: string(tag), Header: d.Header(), Seq: d.Ungapped}})
		if err := u.Store.Put(designKey, content); err != nil {
			return nil, err
		}
	} else {
		if err := u.Store.Remove(designKey); err != nil {
			return nil, err
		}
		u.log.Info("Design not kept, regenerated next run",
			zap.String("design", string(tag)),
			zap.String("fallback", string(d.Fallback)),
		)
	}
	return u.fit(ctx, d, rec, alignedKey, keep)
}

// transient reports whether a fallback came from a failure that a later run
// may not repeat.
func transient(res design.Result) bool {
	switch res.Reason {
	case model.NoFallback, model.LowDiversityRound1:
		return false
	case model.ClusterToolFailure, model.ClusterToolFailureRound2, model.RepresentativeAlignFailed:
		return true
	}
	for _, f := range res.Failures {
		var te *tools.ToolError
		if errors.As(f, &te) || errors.Is(f, context.Canceled) || errors.Is(f, context.DeadlineExceeded) {
			return true
		}
	}
	return false
}

// fit reconciles d into the year frame, memoizing the aligned form when keep
// is set.
func (u *unit) fit(ctx context.Context, d *model.Design, rec *reconcile.Reconciler, key store.Key, keep bool) (*model.Design, error) {
	var aligned string
	if keep {
		data, _, err := u.Store.GetOrCompute(ctx, key, func(ctx context.Context) ([]byte, error) {
			r, err := rec.Reconcile(ctx, d, u.aln)
			if err != nil {
				return nil, err
			}
			return seqio.FormatFasta([]seqio.Record{{ID: r.RecordID(), Seq: r.Aligned}}), nil
		})
		if err != nil {
			return nil, err
		}
		recs, err := seqio.ParseFasta(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		aligned = recs[0].Seq
	} else {
		r, err := rec.Reconcile(ctx, d, u.aln)
		if err != nil {
			return nil, err
		}
		aligned = r.Aligned
	}
	if err := reconcile.CheckLength(d.Tag, aligned, u.aln.Length()); err != nil {
		return nil, err
	}

	out := *d
	out.Aligned = aligned
	return &out, nil
}

func decodeDesign(data []byte) (*model.Design, error) {
	recs, err := seqio.ParseFasta(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	d, err := model.ParseDesignHeader(recs[0].Header)
	if err != nil {
		return nil, err
	}
	d.Ungapped = recs[0].Seq
	return d, nil
}

// combinedTree builds the combined alignment and its ML distance matrix. A
// nil Combined means the alignment itself could not be built; a non-nil one
// with an error means only the matrix is missing.
func (u *unit) combinedTree(ctx context.Context, designs map[model.Tag]*model.Design) (*distance.Combined, *distance.Matrix, error) {
	comb, err := distance.BuildCombined(u.aln, designs)
	if err != nil {
		u.row.Stages[model.StageTreeWithDesigns] = model.MarkError
		return nil, nil, fmt.Errorf("combined alignment: %w", err)
	}

	combPath, err := u.path(combinedArtifact)
	if err != nil {
		return nil, nil, err
	}
	content := seqio.FormatFasta(comb.Records)
	prev, ok, err := u.Store.Get(u.key(combinedArtifact))
	if err != nil {
		return nil, nil, err
	}
	if !ok || !bytes.Equal(prev, content) {
		if err := u.Store.Put(u.key(combinedArtifact), content); err != nil {
			return nil, nil, err
		}
		// A matrix of an older combined alignment no longer matches its rows.
		if stale, err := u.path(combinedDistances); err == nil && util.FileExists(stale) {
			if err := os.Remove(stale); err != nil {
				return nil, nil, err
			}
		}
	}

	p, err := u.toolOutput(ctx, combinedDistances, func(ctx context.Context, path string) error {
		_, err := u.tools.Trees.Tree(ctx, combPath, strings.TrimSuffix(path, ".mldist"))
		return err
	})
	if err != nil {
		return comb, nil, err
	}
	m, err := distance.ReadMatrix(p)
	if err != nil {
		return comb, nil, err
	}
	return comb, m, nil
}

// writeDistances writes {slug}_distances.csv for every design.
func (u *unit) writeDistances(recs []model.DistanceRecord) error {
	byTag := make(map[model.Tag][]model.DistanceRecord)
	for _, r := range recs {
		byTag[r.Tag] = append(byTag[r.Tag], r)
	}
	for _, tag := range model.Tags {
		list, ok := byTag[tag]
		if !ok {
			continue
		}
		var buf bytes.Buffer
		if err := summary.WriteDistances(&buf, list); err != nil {
			return err
		}
		if err := u.Store.Put(u.key(tag.Slug()+"_distances.csv"), buf.Bytes()); err != nil {
			return fmt.Errorf("write %s distances: %w", tag, err)
		}
	}
	return nil
}
