package render

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yumyai/hadesign/pkg/model"
	"github.com/yumyai/hadesign/pkg/summary"
)

func TestColorByMark(t *testing.T) {
	assert.Equal(t, "#B7E1A1", colorByMark(model.MarkDone))
	assert.Equal(t, "#F4A6A6", colorByMark(model.MarkError))
	assert.Equal(t, "#CCCCCC", colorByMark(model.MarkSkipped))
	assert.Equal(t, "#FECC5C", colorByMark(model.FallbackMark(model.ASRInsufficient)))
}

func TestCalculateColorByDistance(t *testing.T) {
	assert.Equal(t, "#00FF00", calculateColorByDistance(0, 0.1))
	assert.Equal(t, "#FFFF00", calculateColorByDistance(0.05, 0.1))
	assert.Equal(t, "#FF0000", calculateColorByDistance(0.2, 0.1))
}

func TestRenderStatusPage(t *testing.T) {
	row := model.NewYearStatusRow(2016, 12)
	for _, s := range model.Stages {
		row.Stages[s] = model.MarkDone
	}
	row.Stages[model.StageAncestral] = model.FallbackMark(model.ASRInsufficient)

	skipped := model.NewYearStatusRow(2015, 3)
	skipped.Status = model.StatusSkippedTooFew

	sd := 0.01
	byTag := map[model.Tag][]summary.YearSummary{
		model.Consensus: {{
			Lineage:  "H3N2",
			Year:     2016,
			Tag:      model.Consensus,
			NStrains: 12,
			P:        &summary.Stats{N: 12, Mean: 0.02, Median: 0.018, SD: &sd},
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderStatusPage(&buf, "H3N2", []*model.YearStatusRow{skipped, row}, byTag))

	html := buf.String()
	assert.Contains(t, html, "<title>H3N2 design status</title>")
	assert.Contains(t, html, "Tree_with_Designs")
	assert.Contains(t, html, "FALLBACK(ASR-insufficient)")
	assert.Contains(t, html, "Skipped-too-few")
	assert.Contains(t, html, "<h3>Consensus</h3>")
	assert.Contains(t, html, "0.0200")
	assert.NotContains(t, html, "<h3>COBRA</h3>")
}
