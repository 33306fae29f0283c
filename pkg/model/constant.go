package model

import (
	"fmt"
	"strings"
)

// Tag names one of the four design strategies.
type Tag string

const (
	Consensus Tag = "Consensus"
	Medoid    Tag = "Medoid"
	Ancestral Tag = "Ancestral"
	COBRA     Tag = "COBRA"
)

// Tags is the fixed design order used for artifacts and the combined alignment.
var Tags = []Tag{Consensus, Medoid, Ancestral, COBRA}

// Slug is the lower-case artifact name, e.g. "cobra" for cobra.fasta.
func (t Tag) Slug() string {
	return strings.ToLower(string(t))
}

func ParseTag(s string) (Tag, error) {
	for _, t := range Tags {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown design tag %q", s)
}

// DesignRecordPrefix marks design rows in the combined alignment.
const DesignRecordPrefix = "DESIGN_"

// Gap is the alignment gap symbol.
const Gap byte = '-'

// FallbackReason records why a generator did not take its primary path.
type FallbackReason string

const (
	NoFallback                FallbackReason = ""
	ASRInsufficient           FallbackReason = "ASR-insufficient"
	LowDiversityRound1        FallbackReason = "low-diversity-round1"
	ClusterToolFailure        FallbackReason = "cluster-tool-failure"
	ClusterToolFailureRound2  FallbackReason = "cluster-tool-failure-round2"
	RepresentativeAlignFailed FallbackReason = "representative-align-failure"
)

// YearStatus is the outcome of a (lineage, year) unit.
type YearStatus string

const (
	StatusSkippedTooFew YearStatus = "Skipped-too-few"
	StatusComplete      YearStatus = "Complete"
	StatusError         YearStatus = "Error"
)

// Stage is a column of the status table.
type Stage string

const (
	StageAlignment       Stage = "Alignment"
	StageTree            Stage = "Tree"
	StageConsensus       Stage = "Consensus"
	StageMedoid          Stage = "Medoid"
	StageAncestral       Stage = "Ancestral"
	StageCOBRA           Stage = "COBRA"
	StageTreeWithDesigns Stage = "Tree_with_Designs"
)

// Stages in status-table column order.
var Stages = []Stage{
	StageAlignment, StageTree, StageConsensus, StageMedoid,
	StageAncestral, StageCOBRA, StageTreeWithDesigns,
}

// StageOf maps a design tag onto its status column.
func StageOf(t Tag) Stage {
	return Stage(t)
}

// StageMark is a cell of the status table.
type StageMark string

const (
	MarkDone    StageMark = "✓"
	MarkSkipped StageMark = "SKIPPED"
	MarkError   StageMark = "ERROR"
	MarkNotRun  StageMark = ""
)

// FallbackMark renders the marker for a design that took a fallback path.
func FallbackMark(r FallbackReason) StageMark {
	return StageMark("FALLBACK(" + string(r) + ")")
}
