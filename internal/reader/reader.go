// Package reader turns a declared source file into a models.RawTable.
package reader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"energy-analytics/internal/models"
)

const ctxCheckInterval = 1000

// Read loads the source declared by spec. Leading rows up to HeaderOffset are skipped
// (counted as physical lines for delimited text, sheet rows for workbooks), the next
// row becomes the header and every later non-blank row is data.
//
// A file that does not exist yields *models.MissingSourceError, one that cannot be opened
// for any other reason *models.UnreadableSourceError; a file with no header
// after the offset, or narrower than the declared positional columns, yields
// *models.MalformedLayoutError.
func Read(ctx context.Context, spec models.SourceSpec) (*models.RawTable, error) {
	var (
		table *models.RawTable
		err   error
	)
	if spec.IsWorkbook() {
		table, err = readWorkbook(ctx, spec)
	} else {
		table, err = readDelimited(ctx, spec)
	}
	if err != nil {
		return nil, err
	}

	if need := spec.MinColumns(); table.Width < need {
		return nil, &models.MalformedLayoutError{
			Source:   spec.Name,
			Path:     spec.Path,
			Expected: need,
			Actual:   table.Width,
			Reason:   "table narrower than declared columns",
		}
	}
	return table, nil
}

func readDelimited(ctx context.Context, spec models.SourceSpec) (*models.RawTable, error) {
	file, err := os.Open(spec.Path)
	if err != nil {
		return nil, openError(spec, err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	if spec.Delimiter != "" {
		r.Comma, _ = utf8.DecodeRuneInString(spec.Delimiter)
	}

	var (
		header []string
		rows   [][]string
		seen   int
	)
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &models.MalformedLayoutError{
				Source: spec.Name,
				Path:   spec.Path,
				Reason: fmt.Sprintf("unreadable delimited text: %v", err),
			}
		}

		seen++
		if seen%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		// encoding/csv drops blank lines, so the offset is applied to the
		// physical line a record starts on rather than to the record count.
		line, _ := r.FieldPos(0)
		if line <= spec.HeaderOffset {
			continue
		}
		if header == nil {
			header = trimBOM(record)
			continue
		}
		rows = append(rows, record)
	}

	return buildTable(spec, header, rows)
}

func readWorkbook(ctx context.Context, spec models.SourceSpec) (*models.RawTable, error) {
	if _, err := os.Stat(spec.Path); err != nil {
		return nil, openError(spec, err)
	}

	f, err := excelize.OpenFile(spec.Path)
	if err != nil {
		return nil, &models.MalformedLayoutError{
			Source: spec.Name,
			Path:   spec.Path,
			Reason: fmt.Sprintf("failed to open workbook: %v", err),
		}
	}
	defer f.Close()

	sheet := spec.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, &models.MalformedLayoutError{Source: spec.Name, Path: spec.Path, Reason: "workbook has no sheets"}
		}
		sheet = sheets[0]
	}

	all, err := f.GetRows(sheet)
	if err != nil {
		return nil, &models.MalformedLayoutError{
			Source: spec.Name,
			Path:   spec.Path,
			Reason: fmt.Sprintf("failed to read sheet %q: %v", sheet, err),
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var header []string
	var rows [][]string
	for i, row := range all {
		if i < spec.HeaderOffset {
			continue
		}
		if header == nil {
			header = row
			continue
		}
		if blank(row) {
			continue
		}
		rows = append(rows, row)
	}

	return buildTable(spec, header, rows)
}

func buildTable(spec models.SourceSpec, header []string, rows [][]string) (*models.RawTable, error) {
	if header == nil {
		return nil, &models.MalformedLayoutError{
			Source: spec.Name,
			Path:   spec.Path,
			Reason: fmt.Sprintf("no header row after skipping %d rows", spec.HeaderOffset),
		}
	}

	width := len(header)
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	return &models.RawTable{
		Source: spec.Name,
		Path:   spec.Path,
		Header: header,
		Rows:   rows,
		Width:  width,
	}, nil
}

func openError(spec models.SourceSpec, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return &models.MissingSourceError{Source: spec.Name, Path: spec.Path, Err: err}
	}
	return &models.UnreadableSourceError{Source: spec.Name, Path: spec.Path, Err: err}
}

func trimBOM(record []string) []string {
	if len(record) > 0 {
		record[0] = strings.TrimPrefix(record[0], "\ufeff")
	}
	return record
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
