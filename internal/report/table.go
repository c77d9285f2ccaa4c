// Package report assembles evaluation rows into a flat table and writes it as
// an xlsx workbook or CSV.
package report

import (
	"path/filepath"

	"diareval/internal/discovery"
	"diareval/internal/evaluation"
	"diareval/internal/metrics"
	"diareval/internal/models"
)

// Leading and trailing column names.
const (
	ColumnAudio    = "audio"
	ColumnDataset  = "dataset"
	ColumnPipeline = "pipeline"
	ColumnError    = "error"
)

// DefaultPath is the report location for a hypotheses root.
func DefaultPath(hypothesesDir string) string {
	return filepath.Join(hypothesesDir, "..", "metrics", "metrics.xlsx")
}

type modelColumns struct {
	first, second         string
	firstKind, secondKind models.Kind
}

var familyColumns = []struct {
	family discovery.Family
	cols   modelColumns
}{
	{discovery.FamilyPyannote, modelColumns{"segmentation_model", "embedding_model", models.KindSegmentation, models.KindEmbedding}},
	{discovery.FamilyNeMo, modelColumns{"vad_model", "speaker_model", models.KindVAD, models.KindSpeaker}},
	{discovery.FamilyUnknown, modelColumns{"model_a", "model_b", "", ""}},
}

// CellKind tells how a cell renders.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellText
	CellNumber
	CellNA
)

// Cell is one table value.
type Cell struct {
	Kind   CellKind
	Text   string
	Number float64
}

func text(s string) Cell {
	if s == "" {
		return Cell{}
	}
	return Cell{Kind: CellText, Text: s}
}

func valueCell(v metrics.Value) Cell {
	score, ok := v.Float()
	if !ok {
		return Cell{Kind: CellNA}
	}
	return Cell{Kind: CellNumber, Number: score, Text: v.String()}
}

func (c Cell) String() string {
	switch c.Kind {
	case CellNA:
		return metrics.NotApplicableText
	default:
		return c.Text
	}
}

// Row is one table line. Flagged rows are highlighted in the workbook.
type Row struct {
	Cells   []Cell
	Flagged bool
}

// Table is the assembled report.
type Table struct {
	Columns []string
	// MetricStart is the index of the first metric column.
	MetricStart int
	Rows        []Row
}

// Build lays out rows. Model columns appear for each family present, metric
// columns in order of first appearance, and the error column last. A row is
// flagged when its primary model is unknown or any metric is not applicable.
func Build(rows []evaluation.MetricsByAudioFile, registry *models.Registry) Table {
	if registry == nil {
		registry = models.Default()
	}
	present := make(map[discovery.Family]bool)
	var metricNames []string
	seenMetric := make(map[string]bool)
	for _, row := range rows {
		present[familyOf(row.Config.Family)] = true
		for _, name := range row.Metrics.Names() {
			if !seenMetric[name] {
				seenMetric[name] = true
				metricNames = append(metricNames, name)
			}
		}
	}

	columns := []string{ColumnAudio, ColumnDataset, ColumnPipeline}
	modelIndex := make(map[discovery.Family]int)
	for _, fc := range familyColumns {
		if !present[fc.family] {
			continue
		}
		modelIndex[fc.family] = len(columns)
		columns = append(columns, fc.cols.first, fc.cols.second)
	}
	metricStart := len(columns)
	columns = append(columns, metricNames...)
	columns = append(columns, ColumnError)

	table := Table{Columns: columns, MetricStart: metricStart}
	for _, row := range rows {
		cells := make([]Cell, len(columns))
		cells[0] = text(row.Triple.AudioID())
		cells[1] = text(row.Triple.Dataset)
		if row.Triple.Flat() {
			cells[1] = text(discovery.FlatDataset)
		}
		pipeline := row.Config.Pipeline
		if pipeline == "" {
			pipeline = row.Config.Family.DisplayName()
		}
		cells[2] = text(pipeline)

		flagged := false
		family := familyOf(row.Config.Family)
		cols := columnsFor(family)
		idx := modelIndex[family]
		if row.Config.First == "" {
			cells[idx] = Cell{Kind: CellNA}
			flagged = true
		} else {
			cells[idx] = text(canonical(registry, cols.firstKind, row.Config.First))
		}
		cells[idx+1] = text(canonical(registry, cols.secondKind, row.Config.Second))

		for i, name := range metricNames {
			v, ok := row.Metrics.Get(name)
			if !ok {
				continue
			}
			cells[metricStart+i] = valueCell(v)
			if !v.Applicable() {
				flagged = true
			}
		}
		cells[len(cells)-1] = text(row.Err)
		table.Rows = append(table.Rows, Row{Cells: cells, Flagged: flagged})
	}
	return table
}

func familyOf(f discovery.Family) discovery.Family {
	if f.Known() {
		return f
	}
	return discovery.FamilyUnknown
}

func columnsFor(family discovery.Family) modelColumns {
	for _, fc := range familyColumns {
		if fc.family == family {
			return fc.cols
		}
	}
	return familyColumns[len(familyColumns)-1].cols
}

func canonical(registry *models.Registry, kind models.Kind, name string) string {
	if kind == "" || name == "" {
		return name
	}
	return registry.Canonical(kind, name)
}
