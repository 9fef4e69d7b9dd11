package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/robextract/internal/extract"
	"github.com/hyperifyio/robextract/internal/report"
)

// ErrNoInputs is returned when the input resolves to no PDF files.
var ErrNoInputs = errors.New("no PDF documents found")

// Output file names inside Config.OutputDir.
const (
	resultsBaseName        = "rob2_results"
	auditBaseName          = "rob2_full_audit"
	justificationsBaseName = "rob2_justifications"
	manifestFileName       = "rob2_manifest.json"
)

func outputPath(dir, base, ext string) string {
	return filepath.Join(dir, base+ext)
}

// ResolveInputs expands the comma-separated -input value into PDF paths, in
// order: directories contribute their *.pdf entries sorted by name, globs
// ("papers/**/*.pdf") their sorted matches, and plain paths themselves.
// A path listed twice is kept once.
func ResolveInputs(input string) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	add := func(p string) {
		clean := filepath.Clean(p)
		if !seen[clean] {
			seen[clean] = true
			out = append(out, clean)
		}
	}
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.ContainsAny(part, "*?[{") {
			matches, err := doublestar.Glob(part)
			if err != nil {
				return nil, fmt.Errorf("input glob %q: %w", part, err)
			}
			sort.Strings(matches)
			for _, m := range matches {
				if isPDFName(m) {
					add(m)
				}
			}
			continue
		}
		info, err := os.Stat(part)
		if err != nil {
			return nil, fmt.Errorf("input: %w", err)
		}
		if !info.IsDir() {
			add(part)
			continue
		}
		entries, err := os.ReadDir(part)
		if err != nil {
			return nil, fmt.Errorf("input dir: %w", err)
		}
		// ReadDir sorts by file name.
		for _, e := range entries {
			if e.Type().IsRegular() && isPDFName(e.Name()) {
				add(filepath.Join(part, e.Name()))
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w in %q", ErrNoInputs, input)
	}
	return out, nil
}

func isPDFName(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// LoadDocuments reads every resolved input into memory as a Document named by
// its base file name. A file that cannot be read still yields a Document,
// carrying the read error, so only that study fails.
func LoadDocuments(input string) ([]extract.Document, error) {
	paths, err := ResolveInputs(input)
	if err != nil {
		return nil, err
	}
	docs := make([]extract.Document, 0, len(paths))
	var total uint64
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			log.Warn().Err(err).Str("path", p).Msg("document unreadable; it will be reported as an extraction failure")
			docs = append(docs, extract.Document{Name: filepath.Base(p), Err: fmt.Errorf("read: %w", err)})
			continue
		}
		total += uint64(len(b))
		docs = append(docs, extract.Document{Name: filepath.Base(p), Content: b})
		log.Debug().Str("path", p).Str("size", humanize.Bytes(uint64(len(b)))).Msg("loaded document")
	}
	log.Info().Int("documents", len(docs)).Str("size", humanize.Bytes(total)).Msg("inputs loaded")
	return docs, nil
}

// previewFileName returns the preview export name for the normalized format.
func previewFileName(dir, format string) string {
	if format == "" {
		format = report.FormatCSV
	}
	return outputPath(dir, resultsBaseName, format)
}
