package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"
	"golang.org/x/net/html"

	"github.com/hyperifyio/robextract/internal/extract"
	"github.com/hyperifyio/robextract/internal/rob"
)

func sampleResults() []rob.StudyResult {
	a := rob.StudyResult{
		Study:     "Smith 2019, \"pilot\"",
		Judgments: [6]rob.Label{rob.Low, rob.High, rob.SomeConcerns, rob.Low, rob.NA, rob.High},
		Support:   [6]string{"Concealed allocation", "Open label", "", "", "", "Two domains high"},
		Original:  json.RawMessage(`{"Overall": {"support": "Two domains high", "judgment": "High"}, "D1": {"judgment": "Probably yes"}, "note": "naïve, 10 < 20"}`),
		Status:    rob.StatusIncomplete,
		Attempts:  3,
	}
	b := rob.NewPlaceholder("Jones-2021", rob.StatusError)
	b.Err = "model call: connection refused"
	b.Attempts = 3
	return []rob.StudyResult{a, b}
}

// longResult carries a support text past the spreadsheet cell limit, mixing
// multi-byte and astral characters so chunk edges land mid-sequence.
func longResult(n int) rob.StudyResult {
	support := strings.Repeat("ab\u00e9\U0001F600", n/4)
	raw, _ := json.Marshal(map[string]any{"D1": map[string]string{"judgment": "Low", "support": support}})
	r := rob.NewPlaceholder("Long2020", rob.StatusIncomplete)
	r.Judgments[0] = rob.Low
	r.Support[0] = support
	r.Original = raw
	return r
}

func TestPreview_SevenColumns(t *testing.T) {
	p := Preview(sampleResults())
	if len(p.Header) != 7 || strings.Join(p.Header, ",") != "Study,D1,D2,D3,D4,D5,Overall" {
		t.Fatalf("header: %v", p.Header)
	}
	if len(p.Rows) != 2 {
		t.Fatalf("rows: %d", len(p.Rows))
	}
	for _, row := range p.Rows {
		if len(row) != 7 {
			t.Fatalf("row width %d: %v", len(row), row)
		}
	}
	if p.Rows[1][6] != "N/A" {
		t.Fatalf("placeholder judgment: %v", p.Rows[1])
	}
}

func TestPreview_CSVRoundTrip(t *testing.T) {
	p := Preview(sampleResults())
	var buf bytes.Buffer
	if err := WriteCSV(&buf, p); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadCSV(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if diff := cmp.Diff(p, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestAudit_EmbedsOriginalResponse(t *testing.T) {
	results := sampleResults()
	a := Audit(results)
	if len(a.Rows) != len(Preview(results).Rows) || a.Header[7] != FullJSONColumn {
		t.Fatalf("audit shape: %v rows=%d", a.Header, len(a.Rows))
	}

	var got, want any
	if err := json.Unmarshal([]byte(a.Rows[0][7]), &got); err != nil {
		t.Fatalf("embedded JSON: %v", err)
	}
	if err := json.Unmarshal(results[0].Original, &want); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("embedded JSON differs (-want +got):\n%s", diff)
	}
	if !strings.HasPrefix(a.Rows[0][7], `{"D1":`) {
		t.Fatalf("expected canonical key order, got %s", a.Rows[0][7])
	}
	if a.Rows[1][7] != "null" {
		t.Fatalf("missing original must embed null, got %q", a.Rows[1][7])
	}
}

func TestCanonicalJSON_InvalidKeptAsString(t *testing.T) {
	got := CanonicalJSON(json.RawMessage(`{broken`))
	var s string
	if err := json.Unmarshal([]byte(got), &s); err != nil || s != "{broken" {
		t.Fatalf("got %q", got)
	}
}

func TestEncode_CSVAndXLSXParity(t *testing.T) {
	long := append(sampleResults(), longResult(40000), longResult(90000))
	for _, table := range []Table{Preview(sampleResults()), Audit(sampleResults()), Audit(long)} {
		csvData, err := Encode(table, ".csv")
		if err != nil {
			t.Fatalf("csv: %v", err)
		}
		xlsxData, err := Encode(table, "XLSX")
		if err != nil {
			t.Fatalf("xlsx: %v", err)
		}
		if !bytes.HasPrefix(xlsxData, []byte("PK")) {
			t.Fatalf("xlsx must be a zip container")
		}
		fromCSV, err := Decode(csvData, "csv")
		if err != nil {
			t.Fatalf("decode csv: %v", err)
		}
		fromXLSX, err := Decode(xlsxData, ".xlsx")
		if err != nil {
			t.Fatalf("decode xlsx: %v", err)
		}
		if diff := cmp.Diff(fromCSV, fromXLSX); diff != "" {
			t.Fatalf("csv and xlsx differ (-csv +xlsx):\n%s", diff)
		}
		if diff := cmp.Diff(table, fromCSV); diff != "" {
			t.Fatalf("decoded table differs (-want +got):\n%s", diff)
		}
	}
}

func TestWriteXLSX_LongCellsUseOverflowColumns(t *testing.T) {
	table := Audit([]rob.StudyResult{longResult(90000)})
	cell := table.Rows[0][7]
	split := splitOverflow(table)
	if len(split.Header) <= len(table.Header) || split.Header[8] != FullJSONColumn+"+2" {
		t.Fatalf("expected overflow columns, got header %v", split.Header)
	}
	var joined string
	for c, v := range split.Rows[0] {
		if c == 7 || c >= len(table.Header) {
			if n := len(utf16.Encode([]rune(v))); n > excelize.TotalCellChars {
				t.Fatalf("column %d holds %d units", c, n)
			}
			joined += v
		}
	}
	if joined != cell {
		t.Fatalf("parts do not rebuild the cell: %d vs %d bytes", len(joined), len(cell))
	}
	if diff := cmp.Diff(table, joinOverflow(split)); diff != "" {
		t.Fatalf("join mismatch (-want +got):\n%s", diff)
	}
	short := Preview(sampleResults())
	if diff := cmp.Diff(short, splitOverflow(short)); diff != "" {
		t.Fatalf("short tables must pass through:\n%s", diff)
	}
}

func TestAudit_DuplicateKeysStayObjects(t *testing.T) {
	raw := []byte(`{"D1":{"judgment":"high"},"D1":{"judgment":"Probably yes","support":"later"},` +
		`"D2":{"judgment":"low"},"D3":{"judgment":"low"},"D4":{"judgment":"low"},"D5":{"judgment":"low"},` +
		`"Overall":{"judgment":"low","score":2.5}}`)
	resp, err := rob.ParseResponse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	res := rob.ResultFrom("Dup2021", resp)
	if res.Status != rob.StatusComplete || res.Judgment(rob.D1) != rob.Low {
		t.Fatalf("unexpected row: %+v", res)
	}

	cell := Audit([]rob.StudyResult{res}).Rows[0][7]
	var got, want any
	dec := json.NewDecoder(strings.NewReader(cell))
	dec.UseNumber()
	if err := dec.Decode(&got); err != nil {
		t.Fatalf("cell is not JSON: %v", err)
	}
	if _, ok := got.(map[string]any); !ok {
		t.Fatalf("cell must hold the response object, got %T: %s", got, cell)
	}
	dec = json.NewDecoder(bytes.NewReader(res.Original))
	dec.UseNumber()
	if err := dec.Decode(&want); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("embedded JSON differs (-want +got):\n%s", diff)
	}
	if !strings.HasPrefix(cell, `{"D1":{"judgment":"Probably yes"`) {
		t.Fatalf("expected the last D1 in canonical form, got %s", cell)
	}
}

func TestEncode_UnknownFormat(t *testing.T) {
	for _, f := range []string{"", ".pdf", "json"} {
		if _, err := Encode(Preview(nil), f); !errors.Is(err, ErrUnknownFormat) {
			t.Fatalf("%q: expected ErrUnknownFormat, got %v", f, err)
		}
	}
}

func TestWriteHTML_ListsEveryStudy(t *testing.T) {
	var buf bytes.Buffer
	results := sampleResults()
	if err := WriteHTML(&buf, results); err != nil {
		t.Fatalf("render: %v", err)
	}
	doc, err := html.Parse(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var headings []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "h2" && n.FirstChild != nil {
			headings = append(headings, n.FirstChild.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	if len(headings) != 2 || headings[0] != results[0].Study || headings[1] != results[1].Study {
		t.Fatalf("headings: %q", headings)
	}
	if !strings.Contains(buf.String(), "Concealed allocation") || !strings.Contains(buf.String(), "connection refused") {
		t.Fatalf("support or error text missing")
	}
}

func TestWritePDF_ListsEveryStudy(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePDF(&buf, sampleResults()); err != nil {
		t.Fatalf("render: %v", err)
	}
	sc, err := extract.PDFExtractor{}.Extract(context.Background(), extract.Document{Name: "report.pdf", Content: buf.Bytes()})
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	for _, want := range []string{"Smith 2019", "Jones-2021", "Concealed allocation"} {
		if !strings.Contains(sc.Text, want) {
			t.Fatalf("pdf text missing %q: %q", want, sc.Text)
		}
	}
}
