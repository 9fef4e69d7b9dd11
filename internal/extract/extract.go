package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/unicode/norm"
)

// DefaultMaxChars caps the study context handed to the model.
const DefaultMaxChars = 15000

// ErrExtraction marks a document that could not be parsed into text.
var ErrExtraction = errors.New("text extraction failed")

// Document is an uploaded file: its name and binary content. Err is set when
// the content could not be read; such a document fails extraction alone.
type Document struct {
	Name    string
	Content []byte
	Err     error
}

// StudyContext is the normalized, truncated text derived from a Document.
type StudyContext struct {
	Text string
	// Pages is the page count reported by the document; TextPages counts the
	// pages that yielded any text.
	Pages     int
	TextPages int
	Truncated bool
}

// PDFExtractor reads text page by page from PDF documents.
type PDFExtractor struct {
	// MaxChars bounds the context length in characters; <= 0 uses DefaultMaxChars.
	MaxChars int
}

func init() {
	// keep pdfcpu from creating a config directory under the user's home
	api.DisableConfigDir()
}

// Extract validates the document structure, pulls plain text from every page
// and normalizes it. Failures wrap ErrExtraction.
func (e PDFExtractor) Extract(ctx context.Context, doc Document) (StudyContext, error) {
	if err := ctx.Err(); err != nil {
		return StudyContext{}, err
	}
	if doc.Err != nil {
		return StudyContext{}, fmt.Errorf("%w: %s: %w", ErrExtraction, doc.Name, doc.Err)
	}
	if len(doc.Content) == 0 {
		return StudyContext{}, fmt.Errorf("%w: %s: empty document", ErrExtraction, doc.Name)
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	pageCount, err := api.PageCount(bytes.NewReader(doc.Content), conf)
	if err != nil {
		return StudyContext{}, fmt.Errorf("%w: %s: %v", ErrExtraction, doc.Name, err)
	}

	pages, err := readPages(doc.Content)
	if err != nil {
		return StudyContext{}, fmt.Errorf("%w: %s: %v", ErrExtraction, doc.Name, err)
	}

	textPages := 0
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			textPages++
		}
	}
	limit := e.MaxChars
	if limit <= 0 {
		limit = DefaultMaxChars
	}
	full := Normalize(pages, 0)
	text := Truncate(full, limit)
	if textPages == 0 {
		log.Warn().Str("document", doc.Name).Int("pages", pageCount).Msg("no extractable text; document may be scanned")
	}
	return StudyContext{
		Text:      text,
		Pages:     pageCount,
		TextPages: textPages,
		Truncated: len(text) < len(full),
	}, nil
}

// readPages returns the plain text of every page in order. The reader panics
// on some malformed inputs, which is reported as an error.
func readPages(content []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("pdf reader: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}
	n := r.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			log.Debug().Err(err).Int("page", i).Msg("page text unavailable")
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// Normalize joins page texts with single spaces, skipping pages without text,
// applies NFKC so ligatures read as plain letters, collapses every whitespace
// run to one space and trims. limit > 0 truncates to that many characters.
func Normalize(pages []string, limit int) string {
	kept := make([]string, 0, len(pages))
	for _, p := range pages {
		if p != "" {
			kept = append(kept, p)
		}
	}
	joined := norm.NFKC.String(strings.Join(kept, " "))
	out := strings.Join(strings.Fields(joined), " ")
	if limit > 0 {
		out = Truncate(out, limit)
	}
	return out
}

// Truncate returns the first limit characters of s.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
