// Package report projects study rows into exportable tables and renders the
// justification reports.
package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"github.com/gowebpki/jcs"

	"github.com/hyperifyio/robextract/internal/rob"
)

// StudyColumn and FullJSONColumn name the non-domain columns.
const (
	StudyColumn    = "Study"
	FullJSONColumn = "Full_JSON"
)

// Table is a header plus string rows; every row has len(Header) cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// PreviewHeader returns the seven preview columns.
func PreviewHeader() []string {
	h := make([]string, 0, len(rob.Domains)+1)
	h = append(h, StudyColumn)
	for _, d := range rob.Domains {
		h = append(h, string(d))
	}
	return h
}

// Preview keeps the study id and the six normalized judgments.
func Preview(results []rob.StudyResult) Table {
	t := Table{Header: PreviewHeader(), Rows: make([][]string, 0, len(results))}
	for _, r := range results {
		t.Rows = append(t.Rows, previewRow(r))
	}
	return t
}

func previewRow(r rob.StudyResult) []string {
	row := make([]string, 0, len(rob.Domains)+2)
	row = append(row, r.Study)
	for _, l := range r.Judgments {
		if l == "" {
			l = rob.NA
		}
		row = append(row, string(l))
	}
	return row
}

// Audit is the preview plus the model's original response, embedded as
// canonical JSON so nested objects fit in one flat cell.
func Audit(results []rob.StudyResult) Table {
	t := Table{Header: append(PreviewHeader(), FullJSONColumn), Rows: make([][]string, 0, len(results))}
	for _, r := range results {
		t.Rows = append(t.Rows, append(previewRow(r), CanonicalJSON(r.Original)))
	}
	return t
}

// CanonicalJSON returns the RFC 8785 form of raw, "null" when raw is empty.
// Objects with duplicate keys keep the last value, as json.Unmarshal does.
// Input that is not valid JSON is kept as a JSON string.
func CanonicalJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}
	if out, err := jcs.Transform(raw); err == nil {
		return string(out)
	}
	if out, err := canonicalDecoded(raw); err == nil {
		return string(out)
	}
	b, _ := json.Marshal(string(raw))
	return string(b)
}

// canonicalDecoded re-encodes raw through a decode pass, which drops
// duplicate keys, before canonicalizing. Numbers keep their literal text.
func canonicalDecoded(raw json.RawMessage) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after JSON value")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jcs.Transform(b)
}
