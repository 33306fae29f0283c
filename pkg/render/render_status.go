package render

import (
	"fmt"
	"html/template"
	"io"
	"math"

	"github.com/yumyai/hadesign/pkg/model"
	"github.com/yumyai/hadesign/pkg/summary"
)

// colorByMark maps a status cell onto a background color.
func colorByMark(m model.StageMark) string {
	switch m {
	case model.MarkDone:
		return "#B7E1A1"
	case model.MarkError:
		return "#F4A6A6"
	case model.MarkSkipped, model.MarkNotRun:
		return "#CCCCCC"
	}
	// FALLBACK(...)
	return "#FECC5C"
}

// calculateColorByDistance maps a mean distance from 0 to maxDistance onto a
// color between green and red. Distances past the cap stay red.
func calculateColorByDistance(value, maxDistance float64) string {
	if value <= 0 {
		return fmt.Sprintf("#%02X%02X00", 0, 255)
	}
	t := value / maxDistance
	if t >= 1 {
		return fmt.Sprintf("#%02X%02X00", 255, 0)
	}

	var r, g int
	if t <= 0.5 {
		r = int(math.Round(lerp(0, 255, t*2)))
		g = 255
	} else {
		r = 255
		g = int(math.Round(lerp(255, 0, (t-0.5)*2)))
	}
	return fmt.Sprintf("#%02X%02X00", r, g)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Cell is a single table cell with its text and color.
type Cell struct {
	Text  string
	Color string
}

type statusRow struct {
	Year      int
	Sequences int
	Cells     []Cell
	Status    model.YearStatus
	Message   string
}

type summaryRow struct {
	Year     int
	NStrains int
	Cells    []Cell
}

type summaryTable struct {
	Tag  model.Tag
	Rows []summaryRow
}

// pDistanceCap is where the summary palette saturates.
const pDistanceCap = 0.1

func arrangeStatus(rows []*model.YearStatusRow) []statusRow {
	out := make([]statusRow, 0, len(rows))
	for _, r := range rows {
		cells := make([]Cell, 0, len(model.Stages))
		for _, s := range model.Stages {
			m := r.Mark(s)
			cells = append(cells, Cell{Text: string(m), Color: colorByMark(m)})
		}
		out = append(out, statusRow{
			Year:      r.Year,
			Sequences: r.Sequences,
			Cells:     cells,
			Status:    r.Status,
			Message:   r.Message,
		})
	}
	return out
}

func statsCells(s *summary.Stats, colored bool) []Cell {
	if s == nil {
		return []Cell{{Text: "NA", Color: "#CCCCCC"}, {Text: "NA"}, {Text: "NA"}}
	}
	mean := Cell{Text: fmt.Sprintf("%.4f", s.Mean)}
	if colored {
		mean.Color = calculateColorByDistance(s.Mean, pDistanceCap)
	}
	sd := "NA"
	if s.SD != nil {
		sd = fmt.Sprintf("%.4f", *s.SD)
	}
	return []Cell{mean, {Text: fmt.Sprintf("%.4f", s.Median)}, {Text: sd}}
}

func arrangeSummaries(byTag map[model.Tag][]summary.YearSummary) []summaryTable {
	var out []summaryTable
	for _, tag := range model.Tags {
		rows, ok := byTag[tag]
		if !ok {
			continue
		}
		t := summaryTable{Tag: tag}
		for _, s := range rows {
			cells := append(statsCells(s.P, true), statsCells(s.ML, false)...)
			t.Rows = append(t.Rows, summaryRow{Year: s.Year, NStrains: s.NStrains, Cells: cells})
		}
		out = append(out, t)
	}
	return out
}

var statusPageTemplate *template.Template

func init() {
	mainTmpl := `
	<!DOCTYPE html>
	<html>
	<head>
		<title>{{.Lineage}} design status</title>
		<style>
			table { border-collapse: collapse; margin-bottom: 2em; }
			th, td { border: 1px solid #999; padding: 2px 8px; text-align: center; }
		</style>
	</head>
	<body>
		<header class="app-header">
			<h1 class="app-name">{{.Lineage}}</h1>
			<p class="app-description">Year status and design distances from the latest run.</p>
		</header>
		{{template "statusTable" .}}
		{{range .Summaries}}{{template "summaryTable" .}}{{end}}
	</body>
	</html>`

	statusTmpl := `
	{{define "statusTable"}}
	<table class="status-table">
		<thead>
			<tr>
				<th>Year</th><th>Sequences</th>
				{{range .Stages}}<th>{{.}}</th>{{end}}
				<th>Status</th>
			</tr>
		</thead>
		<tbody>
		{{range .Status}}
			<tr>
				<td>{{.Year}}</td><td>{{.Sequences}}</td>
				{{range .Cells}}{{template "cell" .}}{{end}}
				<td title="{{.Message}}">{{.Status}}</td>
			</tr>
		{{end}}
		</tbody>
	</table>
	{{end}}`

	summaryTmpl := `
	{{define "summaryTable"}}
	<h3>{{.Tag}}</h3>
	<table class="summary-table">
		<thead>
			<tr>
				<th>Year</th><th>N_Strains</th>
				<th>p mean</th><th>p median</th><th>p SD</th>
				<th>ML mean</th><th>ML median</th><th>ML SD</th>
			</tr>
		</thead>
		<tbody>
		{{range .Rows}}
			<tr>
				<td>{{.Year}}</td><td>{{.NStrains}}</td>
				{{range .Cells}}{{template "cell" .}}{{end}}
			</tr>
		{{end}}
		</tbody>
	</table>
	{{end}}`

	cellTmpl := `{{define "cell"}}<td{{if .Color}} style="background-color: {{.Color}}"{{end}}>{{.Text}}</td>{{end}}`

	statusPageTemplate = template.Must(template.New("status").Parse(mainTmpl))
	statusPageTemplate = template.Must(statusPageTemplate.Parse(statusTmpl))
	statusPageTemplate = template.Must(statusPageTemplate.Parse(summaryTmpl))
	statusPageTemplate = template.Must(statusPageTemplate.Parse(cellTmpl))
}

// RenderStatusPage renders the status table of a lineage followed by one
// summary table per design.
func RenderStatusPage(w io.Writer, lineage string, rows []*model.YearStatusRow, byTag map[model.Tag][]summary.YearSummary) error {
	data := struct {
		Lineage   string
		Stages    []model.Stage
		Status    []statusRow
		Summaries []summaryTable
	}{
		Lineage:   lineage,
		Stages:    model.Stages,
		Status:    arrangeStatus(rows),
		Summaries: arrangeSummaries(byTag),
	}
	return statusPageTemplate.Execute(w, data)
}
