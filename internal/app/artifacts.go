package app

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/robextract/internal/batch"
	"github.com/hyperifyio/robextract/internal/report"
)

// writeFileAtomic writes data to path via a temp file in the same directory,
// so an interrupted run never leaves a truncated export behind.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(name, 0o644); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func writeRendered(path string, render func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		return fmt.Errorf("render %s: %w", filepath.Base(path), err)
	}
	return writeFileAtomic(path, buf.Bytes())
}

// writeExports writes the preview in the configured format, the full audit as
// CSV (plus XLSX when that is the configured format) and the optional
// justification reports. It returns the paths written.
func writeExports(cfg Config, format string, rep batch.Report) ([]string, error) {
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir output: %w", err)
	}
	var written []string
	put := func(path string, data []byte) error {
		if err := writeFileAtomic(path, data); err != nil {
			return err
		}
		written = append(written, path)
		log.Info().Str("out", path).Msg("wrote export")
		return nil
	}

	preview := report.Preview(rep.Results)
	data, err := report.Encode(preview, format)
	if err != nil {
		return written, fmt.Errorf("encode preview: %w", err)
	}
	if err := put(previewFileName(cfg.OutputDir, format), data); err != nil {
		return written, err
	}

	audit := report.Audit(rep.Results)
	auditFormats := []string{report.FormatCSV}
	if format == report.FormatXLSX {
		auditFormats = append(auditFormats, report.FormatXLSX)
	}
	for _, f := range auditFormats {
		data, err := report.Encode(audit, f)
		if err != nil {
			return written, fmt.Errorf("encode audit: %w", err)
		}
		if err := put(outputPath(cfg.OutputDir, auditBaseName, f), data); err != nil {
			return written, err
		}
	}

	if cfg.HTMLReport {
		path := outputPath(cfg.OutputDir, justificationsBaseName, ".html")
		if err := writeRendered(path, func(w io.Writer) error { return report.WriteHTML(w, rep.Results) }); err != nil {
			return written, err
		}
		written = append(written, path)
		log.Info().Str("out", path).Msg("wrote justification report")
	}
	if cfg.PDFReport {
		path := outputPath(cfg.OutputDir, justificationsBaseName, ".pdf")
		if err := writeRendered(path, func(w io.Writer) error { return report.WritePDF(w, rep.Results) }); err != nil {
			return written, err
		}
		written = append(written, path)
		log.Info().Str("out", path).Msg("wrote justification report")
	}
	return written, nil
}
