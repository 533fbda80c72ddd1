package parser

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"

	"ledger-ingest/internal/domain"
	"ledger-ingest/pkg/apperr"
	"ledger-ingest/pkg/logger"
)

// Accepted upload extensions.
const (
	ExtXML  = ".xml"
	ExtXLS  = ".xls"
	ExtXLSX = ".xlsx"
)

// AllowedExtension reports whether a filename carries one of the supported
// markup or spreadsheet extensions.
func AllowedExtension(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ExtXML, ExtXLS, ExtXLSX:
		return true
	}
	return false
}

// SheetParser reads the first sheet of a spreadsheet into header-keyed rows.
type SheetParser interface {
	Parse(filename string, r io.Reader) ([]domain.Row, error)
}

// WorkbookParser dispatches on the file extension: excelize for .xlsx,
// xlsReader for legacy .xls.
type WorkbookParser struct{}

func NewWorkbookParser() *WorkbookParser {
	return &WorkbookParser{}
}

func (p *WorkbookParser) Parse(filename string, r io.Reader) ([]domain.Row, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apperr.MalformedInput("failed to read spreadsheet", err)
	}
	if len(data) == 0 {
		return nil, apperr.MalformedInput("file is empty", nil)
	}

	var grid [][]string
	switch strings.ToLower(filepath.Ext(filename)) {
	case ExtXLSX:
		grid, err = readXLSX(data)
	case ExtXLS:
		grid, err = readXLS(data)
	default:
		return nil, apperr.MalformedInput(fmt.Sprintf("unsupported spreadsheet type %q", filepath.Ext(filename)), nil)
	}
	if err != nil {
		logger.GetLogger().WithError(err).WithField("file", filename).Warn("Failed to read spreadsheet")
		return nil, apperr.MalformedInput("failed to read spreadsheet", err)
	}

	return toRows(grid), nil
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "open workbook")
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, errors.New("workbook has no sheets")
	}
	// raw values keep date cells as serial numbers for the date normalizer
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, errors.Wrapf(err, "read sheet %s", sheet)
	}
	return rows, nil
}

// readXLS spills the upload to a temp file because xlsReader only opens paths.
func readXLS(data []byte) ([][]string, error) {
	tmp, err := os.CreateTemp("", "ingest-*.xls")
	if err != nil {
		return nil, errors.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, errors.Wrap(err, "write temp file")
	}
	if err := tmp.Close(); err != nil {
		return nil, errors.Wrap(err, "close temp file")
	}

	book, err := xls.OpenFile(tmp.Name())
	if err != nil {
		return nil, errors.Wrap(err, "open workbook")
	}
	sheet, err := book.GetSheet(0)
	if err != nil || sheet == nil {
		return nil, errors.New("workbook has no sheets")
	}

	var grid [][]string
	for _, row := range sheet.GetRows() {
		if row == nil {
			grid = append(grid, nil)
			continue
		}
		var cells []string
		for _, col := range row.GetCols() {
			if col == nil {
				cells = append(cells, "")
				continue
			}
			cells = append(cells, col.GetString())
		}
		grid = append(grid, cells)
	}
	return grid, nil
}

// toRows keys every data row by the header row. Blank cells are omitted,
// blank rows are skipped, and repeated headers get a numeric suffix.
func toRows(grid [][]string) []domain.Row {
	if len(grid) < 2 {
		return nil
	}

	headers := uniqueHeaders(grid[0])
	rows := make([]domain.Row, 0, len(grid)-1)
	for _, cells := range grid[1:] {
		row := domain.Row{}
		for i, cell := range cells {
			if i >= len(headers) || headers[i] == "" {
				continue
			}
			if v := strings.TrimSpace(cell); v != "" {
				row[headers[i]] = v
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows
}

func uniqueHeaders(raw []string) []string {
	seen := make(map[string]int, len(raw))
	out := make([]string, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if n, dup := seen[h]; dup {
			seen[h] = n + 1
			out[i] = fmt.Sprintf("%s_%d", h, n)
			continue
		}
		seen[h] = 1
		out[i] = h
	}
	return out
}
