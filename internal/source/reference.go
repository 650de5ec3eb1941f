package source

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/jangsa/recon/pkg/recon/internalerr"
	"github.com/jangsa/recon/pkg/recon/match"
	"github.com/jangsa/recon/pkg/recon/normalize"
)

// Reference columns.
const (
	colName = iota
	colAddress
	colCategory
	colCapacity
)

// headerAliases maps a header cell (Key form) to its column.
var headerAliases = map[string]int{
	"name":     colName,
	"시설명":      colName,
	"시설":       colName,
	"명칭":       colName,
	"address":  colAddress,
	"주소":       colAddress,
	"소재지":      colAddress,
	"category": colCategory,
	"구분":       colCategory,
	"분류":       colCategory,
	"유형":       colCategory,
	"capacity": colCapacity,
	"수용능력":     colCapacity,
	"수용":       colCapacity,
	"규모":       colCapacity,
}

// LoadReference reads the ordered reference list from a .csv or .xlsx file.
// For spreadsheets sheet selects the sheet; empty means the first one.
func LoadReference(path, sheet string) ([]match.Reference, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return loadReferenceXLSX(path, sheet)
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read reference %s: %w", path, err)
		}
		refs, err := ReadReferenceCSV(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return refs, nil
	}
}

// ReadReferenceCSV parses a reference CSV. A header row is optional.
func ReadReferenceCSV(r io.Reader) ([]match.Reference, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var rows [][]string
	var lines []int
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: reference csv: %v", internalerr.ErrInvalidInput, err)
		}
		line, _ := cr.FieldPos(0)
		rows = append(rows, rec)
		lines = append(lines, line)
	}
	return referenceRows(rows, lines)
}

func loadReferenceXLSX(path, sheet string) ([]match.Reference, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open reference %s: %w", path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%s: %w", path, internalerr.ErrEmptyReference)
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%s: sheet %q: %w", path, sheet, err)
	}
	// GetRows keeps blank rows between filled ones, so the position is the
	// sheet row.
	refs, err := referenceRows(rows, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return refs, nil
}

// referenceRows maps raw rows onto references. lines holds the source row
// of each entry of rows; nil means rows are numbered from 1. Blank rows are
// skipped. Rows with cells but no name are kept so the matcher can report
// them; a list without any name is ErrEmptyReference.
func referenceRows(rows [][]string, lines []int) ([]match.Reference, error) {
	cols := []int{colName, colAddress, colCategory, colCapacity}
	start := 0
	for start < len(rows) && blankRow(rows[start]) {
		start++
	}
	if start < len(rows) {
		if mapped, ok := headerColumns(rows[start]); ok {
			cols = mapped
			start++
		}
	}

	var refs []match.Reference
	named := false
	for i := start; i < len(rows); i++ {
		row := rows[i]
		if blankRow(row) {
			continue
		}
		ref := match.Reference{
			Row:      i + 1,
			Name:     cell(row, cols[colName]),
			Address:  cell(row, cols[colAddress]),
			Category: cell(row, cols[colCategory]),
			Capacity: parseCapacity(cell(row, cols[colCapacity])),
		}
		if lines != nil {
			ref.Row = lines[i]
		}
		if normalize.Normalize(ref.Name) != "" {
			named = true
		}
		refs = append(refs, ref)
	}
	if !named {
		return nil, internalerr.ErrEmptyReference
	}
	return refs, nil
}

// headerColumns returns the column index for each field when row is a
// header naming at least the facility name.
func headerColumns(row []string) ([]int, bool) {
	cols := []int{-1, -1, -1, -1}
	for i, c := range row {
		field, ok := headerAliases[normalize.Key(c)]
		if ok && cols[field] < 0 {
			cols[field] = i
		}
	}
	return cols, cols[colName] >= 0
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// parseCapacity keeps the digits of values like "1,200기".
func parseCapacity(s string) int {
	var b strings.Builder
	for _, r := range normalize.Normalize(s) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if b.Len() > 0 && r != ',' {
			break
		}
	}
	n, err := strconv.Atoi(b.String())
	if err != nil {
		return 0
	}
	return n
}
