package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hyperifyio/robextract/internal/rob"
)

// JustificationTitle heads both justification reports.
const JustificationTitle = "RoB-2 assessments and justifications"

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func withText(a atom.Atom, s string, attrs ...html.Attribute) *html.Node {
	n := element(a, attrs...)
	n.AppendChild(textNode(s))
	return n
}

// WriteHTML renders one section per study with the six judgments and the
// model's supporting reasons. Text is escaped by the renderer.
func WriteHTML(w io.Writer, results []rob.StudyResult) error {
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})
	root := element(atom.Html, html.Attribute{Key: "lang", Val: "en"})
	doc.AppendChild(root)

	head := element(atom.Head)
	head.AppendChild(element(atom.Meta, html.Attribute{Key: "charset", Val: "utf-8"}))
	head.AppendChild(withText(atom.Title, JustificationTitle))
	head.AppendChild(withText(atom.Style, "table{border-collapse:collapse}td,th{border:1px solid #999;padding:4px 8px;vertical-align:top}"))
	root.AppendChild(head)

	body := element(atom.Body)
	root.AppendChild(body)
	body.AppendChild(withText(atom.H1, JustificationTitle))
	if len(results) == 0 {
		body.AppendChild(withText(atom.P, "No studies were assessed."))
	}

	for _, r := range results {
		sec := element(atom.Section, html.Attribute{Key: "id", Val: "study-" + anchor(r.Study)})
		sec.AppendChild(withText(atom.H2, r.Study))
		meta := fmt.Sprintf("Status: %s. Attempts: %d.", r.Status, r.Attempts)
		if r.Err != "" {
			meta += " " + r.Err
		}
		sec.AppendChild(withText(atom.P, meta))

		table := element(atom.Table)
		hdr := element(atom.Tr)
		for _, h := range []string{"Domain", "Judgment", "Support"} {
			hdr.AppendChild(withText(atom.Th, h))
		}
		table.AppendChild(hdr)
		for i, d := range rob.Domains {
			tr := element(atom.Tr)
			tr.AppendChild(withText(atom.Td, string(d)))
			tr.AppendChild(withText(atom.Td, string(r.Judgments[i])))
			tr.AppendChild(withText(atom.Td, r.Support[i]))
			table.AppendChild(tr)
		}
		sec.AppendChild(table)
		body.AppendChild(sec)
	}
	return html.Render(w, doc)
}

func anchor(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

// WritePDF renders the same content as WriteHTML to an A4 PDF. Text outside
// the core font's code page is replaced.
func WritePDF(w io.Writer, results []rob.StudyResult) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(JustificationTitle, true)
	pdf.SetFont("Helvetica", "", 10)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, JustificationTitle, "", 1, "L", false, 0, "")
	pdf.Ln(2)
	if len(results) == 0 {
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, "No studies were assessed.", "", "L", false)
	}

	for _, r := range results {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 7, tr(r.Study), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "I", 9)
		meta := fmt.Sprintf("Status: %s. Attempts: %d.", r.Status, r.Attempts)
		if r.Err != "" {
			meta += " " + r.Err
		}
		pdf.MultiCell(0, 4.5, tr(meta), "", "L", false)
		for i, d := range rob.Domains {
			pdf.SetFont("Helvetica", "B", 10)
			pdf.CellFormat(22, 5, string(d), "", 0, "L", false, 0, "")
			pdf.CellFormat(30, 5, tr(string(r.Judgments[i])), "", 1, "L", false, 0, "")
			if s := strings.TrimSpace(r.Support[i]); s != "" {
				pdf.SetFont("Helvetica", "", 9)
				pdf.SetX(pdf.GetX() + 22)
				pdf.MultiCell(0, 4.5, tr(s), "", "L", false)
			}
		}
		pdf.Ln(4)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}
