package report

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Supported export formats.
const (
	FormatCSV  = ".csv"
	FormatXLSX = ".xlsx"
)

// DefaultSheet names the worksheet written to XLSX exports.
const DefaultSheet = "RoB2"

// ErrUnknownFormat is returned for export formats other than CSV and XLSX.
var ErrUnknownFormat = errors.New("unknown export format")

// NormalizeFormat maps "csv", "CSV" and ".csv" to FormatCSV, likewise for xlsx.
func NormalizeFormat(format string) (string, error) {
	f := strings.ToLower(strings.TrimSpace(format))
	if f != "" && !strings.HasPrefix(f, ".") {
		f = "." + f
	}
	switch f {
	case FormatCSV, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Encode renders t in the requested format.
func Encode(t Table, format string) ([]byte, error) {
	f, err := NormalizeFormat(format)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	switch f {
	case FormatCSV:
		err = WriteCSV(&buf, t)
	case FormatXLSX:
		err = WriteXLSX(&buf, t, DefaultSheet)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses data produced by Encode.
func Decode(data []byte, format string) (Table, error) {
	f, err := NormalizeFormat(format)
	if err != nil {
		return Table{}, err
	}
	if f == FormatXLSX {
		return ReadXLSX(bytes.NewReader(data), DefaultSheet)
	}
	return ReadCSV(bytes.NewReader(data))
}

// WriteCSV writes the header and rows as RFC 4180 records.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("csv header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("csv rows: %w", err)
	}
	return nil
}

// ReadCSV reads a table written by WriteCSV. The first record is the header.
func ReadCSV(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("csv read: %w", err)
	}
	if len(records) == 0 {
		return Table{}, errors.New("csv read: no header")
	}
	return Table{Header: records[0], Rows: records[1:]}, nil
}

// WriteXLSX writes t as a single worksheet with a bold, frozen header row.
// Every cell is stored as a string. A value longer than a spreadsheet cell
// holds continues in overflow columns appended after the table, which
// ReadXLSX joins back.
func WriteXLSX(w io.Writer, t Table, sheet string) error {
	if sheet == "" {
		sheet = DefaultSheet
	}
	n := len(t.Header)
	t = splitOverflow(t)
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}
	for i, h := range t.Header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellStr(sheet, cell, h); err != nil {
			return fmt.Errorf("xlsx header %s: %w", cell, err)
		}
	}
	for r, row := range t.Rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellStr(sheet, cell, v); err != nil {
				return fmt.Errorf("xlsx cell %s: %w", cell, err)
			}
		}
	}

	if n > 0 {
		bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err == nil {
			last, _ := excelize.CoordinatesToCellName(n, 1)
			_ = f.SetCellStyle(sheet, "A1", last, bold)
		}
		_ = f.SetColWidth(sheet, "A", "A", 28) // study
		if n > 1 {
			end, _ := excelize.ColumnNumberToName(min(n, 7))
			_ = f.SetColWidth(sheet, "B", end, 16) // judgments
		}
		if n > 7 {
			col, _ := excelize.ColumnNumberToName(n)
			_ = f.SetColWidth(sheet, col, col, 80) // json
		}
		_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

// ReadXLSX reads the named worksheet back into a Table. Rows are padded to
// the header width since trailing empty cells are not stored.
func ReadXLSX(r io.Reader, sheet string) (Table, error) {
	if sheet == "" {
		sheet = DefaultSheet
	}
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Table{}, fmt.Errorf("xlsx open: %w", err)
	}
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(sheet)
	if err != nil {
		return Table{}, fmt.Errorf("xlsx rows: %w", err)
	}
	if len(rows) == 0 {
		return Table{}, errors.New("xlsx read: no header")
	}
	t := Table{Header: rows[0], Rows: make([][]string, 0, len(rows)-1)}
	for _, row := range rows[1:] {
		for len(row) < len(t.Header) {
			row = append(row, "")
		}
		t.Rows = append(t.Rows, row)
	}
	return joinOverflow(t), nil
}

// overflowMark separates a column name from its continuation number in the
// header of an overflow column, e.g. "Full_JSON+2".
const overflowMark = "+"

// splitOverflow cuts cells longer than excelize.TotalCellChars into parts.
// Part 1 stays in place; part k goes to a column headed name+k appended after
// the original columns. Tables without long cells are returned unchanged.
func splitOverflow(t Table) Table {
	parts := make([]int, len(t.Header))
	extra := 0
	for c := range t.Header {
		parts[c] = 1
		for _, row := range t.Rows {
			if c < len(row) {
				parts[c] = max(parts[c], len(chunkCell(row[c], excelize.TotalCellChars)))
			}
		}
		extra += parts[c] - 1
	}
	if extra == 0 {
		return t
	}

	out := Table{Header: append(make([]string, 0, len(t.Header)+extra), t.Header...)}
	for c, h := range t.Header {
		for k := 2; k <= parts[c]; k++ {
			out.Header = append(out.Header, h+overflowMark+strconv.Itoa(k))
		}
	}
	for _, row := range t.Rows {
		base := make([]string, len(t.Header), len(out.Header))
		var tail []string
		for c := range t.Header {
			var chunks []string
			if c < len(row) {
				chunks = chunkCell(row[c], excelize.TotalCellChars)
			}
			if len(chunks) > 0 {
				base[c] = chunks[0]
			}
			for k := 1; k < parts[c]; k++ {
				v := ""
				if k < len(chunks) {
					v = chunks[k]
				}
				tail = append(tail, v)
			}
		}
		out.Rows = append(out.Rows, append(base, tail...))
	}
	return out
}

// joinOverflow folds overflow columns written by splitOverflow back into
// their base column.
func joinOverflow(t Table) Table {
	index := make(map[string]int, len(t.Header))
	var keep []int
	target := make(map[int]int)
	for c, h := range t.Header {
		name, num, ok := strings.Cut(h, overflowMark)
		if ok {
			if b, found := index[name]; found {
				if k, err := strconv.Atoi(num); err == nil && k >= 2 {
					target[c] = b
					continue
				}
			}
		}
		index[h] = c
		keep = append(keep, c)
	}
	if len(target) == 0 {
		return t
	}

	out := Table{Header: make([]string, 0, len(keep)), Rows: make([][]string, 0, len(t.Rows))}
	for _, c := range keep {
		out.Header = append(out.Header, t.Header[c])
	}
	for _, row := range t.Rows {
		joined := append([]string(nil), row...)
		for c := range row {
			if b, ok := target[c]; ok {
				joined[b] += row[c]
			}
		}
		kept := make([]string, 0, len(keep))
		for _, c := range keep {
			kept = append(kept, joined[c])
		}
		out.Rows = append(out.Rows, kept)
	}
	return out
}

// chunkCell splits s into pieces of at most limit UTF-16 code units, the unit
// spreadsheet cell limits are counted in. Surrogate pairs are never split.
func chunkCell(s string, limit int) []string {
	if s == "" {
		return nil
	}
	var (
		out   []string
		start int
		units int
	)
	for i, r := range s {
		n := 1
		if r > 0xFFFF {
			n = 2
		}
		if units+n > limit {
			out = append(out, s[start:i])
			start, units = i, 0
		}
		units += n
	}
	return append(out, s[start:])
}
