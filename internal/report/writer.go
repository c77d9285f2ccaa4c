package report

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofrs/flock"
	"github.com/xuri/excelize/v2"

	"diareval/internal/fileutil"
)

// ErrOutputWrite wraps every failure to produce the report file.
var ErrOutputWrite = errors.New("write report")

// Output formats.
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

// SheetName is the worksheet holding the table.
const SheetName = "metrics"

const (
	DefaultHighlightColor = "#D9D9D9"
	headerColor           = "#BDD7EE"
	minColumnWidth        = 8
	maxColumnWidth        = 60
	lockRetryDelay        = 100 * time.Millisecond
)

// WriteOptions tunes the written report.
type WriteOptions struct {
	Format         string
	HighlightColor string
}

// LockPath is the lock guarding writes to path, e.g. metrics.lock for
// metrics.xlsx.
func LockPath(path string) string {
	base := filepath.Base(path)
	return filepath.Join(filepath.Dir(path), strings.TrimSuffix(base, filepath.Ext(base))+".lock")
}

// Write stores table at path in the requested format. Concurrent writers to
// the same path are serialized through a lock file next to it.
func Write(ctx context.Context, table Table, path string, opts WriteOptions) error {
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = FormatXLSX
	}
	if format != FormatXLSX && format != FormatCSV {
		return fmt.Errorf("%w: unsupported format %q", ErrOutputWrite, opts.Format)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: create output directory: %w", ErrOutputWrite, err)
	}
	lock := flock.New(LockPath(path))
	ok, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("%w: acquire lock: %w", ErrOutputWrite, err)
	}
	if !ok {
		return fmt.Errorf("%w: report %s is locked by another run", ErrOutputWrite, path)
	}
	defer func() { _ = lock.Unlock() }()

	err = fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		if format == FormatCSV {
			return WriteCSV(table, w)
		}
		return WriteXLSX(table, w, opts.HighlightColor)
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrOutputWrite, path, err)
	}
	return nil
}

// WriteCSV writes the header and one record per row.
func WriteCSV(table Table, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(table.Columns); err != nil {
		return err
	}
	record := make([]string, len(table.Columns))
	for _, row := range table.Rows {
		for i, cell := range row.Cells {
			record[i] = cell.String()
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX renders table as a workbook with a styled header, numeric metric
// cells and flagged rows filled with highlight.
func WriteXLSX(table Table, w io.Writer, highlight string) error {
	if highlight == "" {
		highlight = DefaultHighlightColor
	}
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return err
	}
	styles, err := newStyles(f, highlight)
	if err != nil {
		return err
	}

	header := make([]any, len(table.Columns))
	for i, name := range table.Columns {
		header[i] = name
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(table.Columns), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", last, styles.header); err != nil {
		return err
	}

	for r, row := range table.Rows {
		excelRow := r + 2
		for c, cell := range row.Cells {
			ref, err := excelize.CoordinatesToCellName(c+1, excelRow)
			if err != nil {
				return err
			}
			if err := setCell(f, ref, cell); err != nil {
				return err
			}
			if err := f.SetCellStyle(SheetName, ref, ref, styles.pick(cell, row.Flagged)); err != nil {
				return err
			}
		}
	}

	for c, width := range columnWidths(table) {
		name, err := excelize.ColumnNumberToName(c + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetName, name, name, width); err != nil {
			return err
		}
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}
	if len(table.Rows) > 0 {
		end, err := excelize.CoordinatesToCellName(len(table.Columns), len(table.Rows)+1)
		if err != nil {
			return err
		}
		if err := f.AutoFilter(SheetName, "A1:"+end, nil); err != nil {
			return err
		}
	}
	_, err = f.WriteTo(w)
	return err
}

func setCell(f *excelize.File, ref string, cell Cell) error {
	switch cell.Kind {
	case CellNumber:
		return f.SetCellFloat(SheetName, ref, cell.Number, -1, 64)
	case CellEmpty:
		return nil
	default:
		return f.SetCellStr(SheetName, ref, cell.String())
	}
}

type styleSet struct {
	header        int
	text          int
	number        int
	flaggedText   int
	flaggedNumber int
}

func (s styleSet) pick(cell Cell, flagged bool) int {
	switch {
	case flagged && cell.Kind == CellNumber:
		return s.flaggedNumber
	case flagged:
		return s.flaggedText
	case cell.Kind == CellNumber:
		return s.number
	default:
		return s.text
	}
}

func newStyles(f *excelize.File, highlight string) (styleSet, error) {
	numberFormat := "0.0000"
	fill := func(color string) excelize.Fill {
		return excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}}
	}
	specs := []*excelize.Style{
		{Font: &excelize.Font{Bold: true}, Fill: fill(headerColor), Alignment: &excelize.Alignment{Horizontal: "center"}},
		{},
		{CustomNumFmt: &numberFormat},
		{Fill: fill(highlight)},
		{Fill: fill(highlight), CustomNumFmt: &numberFormat},
	}
	ids := make([]int, len(specs))
	for i, spec := range specs {
		id, err := f.NewStyle(spec)
		if err != nil {
			return styleSet{}, fmt.Errorf("create style: %w", err)
		}
		ids[i] = id
	}
	return styleSet{header: ids[0], text: ids[1], number: ids[2], flaggedText: ids[3], flaggedNumber: ids[4]}, nil
}

// columnWidths sizes each column to its longest rendered value within bounds.
func columnWidths(table Table) []float64 {
	widths := make([]float64, len(table.Columns))
	fit := func(i int, s string) {
		n := float64(utf8.RuneCountInString(s) + 2)
		if n > widths[i] {
			widths[i] = n
		}
	}
	for i, name := range table.Columns {
		fit(i, name)
	}
	for _, row := range table.Rows {
		for i, cell := range row.Cells {
			fit(i, cell.String())
		}
	}
	for i, w := range widths {
		widths[i] = min(max(w, minColumnWidth), maxColumnWidth)
	}
	return widths
}
