// Package app wires configuration, the model client, the batch runner and the
// exports into one run.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/robextract/internal/batch"
	"github.com/hyperifyio/robextract/internal/budget"
	"github.com/hyperifyio/robextract/internal/extract"
	"github.com/hyperifyio/robextract/internal/extraction"
	"github.com/hyperifyio/robextract/internal/llm"
	"github.com/hyperifyio/robextract/internal/report"
	"github.com/hyperifyio/robextract/internal/rob"
)

// ErrNoResults is returned when no document produced a report row. Per the
// exit code policy this yields a non-zero exit.
var ErrNoResults = errors.New("no study produced a result row")

type App struct {
	cfg      Config
	format   string
	provider *llm.OpenAIProvider
	client   llm.Client
	prompt   string
	runID    string
	logger   zerolog.Logger
	out      io.Writer
}

// New fills defaults, loads the prompt override and builds the model client.
// Unless this is a dry run it checks that the server lists the model; the
// check only warns.
func New(ctx context.Context, cfg Config) (*App, error) {
	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}
	if cfg.Format == "" {
		cfg.Format = DefaultFormat
	}
	if cfg.LLMBaseURL == "" {
		cfg.LLMBaseURL = llm.DefaultBaseURL
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = extraction.DefaultMaxAttempts
	}
	if cfg.MaxContextChars == 0 {
		cfg.MaxContextChars = extract.DefaultMaxChars
	}
	format, err := report.NormalizeFormat(cfg.Format)
	if err != nil {
		return nil, err
	}

	prompt := cfg.SystemPrompt
	if strings.TrimSpace(cfg.PromptFile) != "" {
		b, err := os.ReadFile(cfg.PromptFile)
		if err != nil {
			return nil, fmt.Errorf("read prompt file: %w", err)
		}
		prompt = string(b)
	}

	provider := llm.NewOpenAIProvider(cfg.LLMBaseURL, cfg.LLMAPIKey, newLLMHTTPClient())
	runID := uuid.NewString()
	a := &App{
		cfg:      cfg,
		format:   format,
		provider: provider,
		client:   provider,
		prompt:   prompt,
		runID:    runID,
		logger:   log.With().Str("run_id", runID).Logger(),
		out:      os.Stdout,
	}
	if !cfg.DryRun {
		a.preflight(ctx)
	}
	return a, nil
}

// SetOutput redirects the terminal preview, which goes to stdout by default.
func (a *App) SetOutput(w io.Writer) { a.out = w }

// RunID identifies this run in logs and the manifest.
func (a *App) RunID() string { return a.runID }

func (a *App) Close() {
	// nothing to release
}

func (a *App) preflight(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	names, err := llm.ListModelNames(ctx, a.provider)
	if err != nil {
		a.logger.Warn().Err(err).Str("base", a.cfg.LLMBaseURL).Msg("LLM model list failed; continuing")
		return
	}
	if len(names) == 0 {
		a.logger.Warn().Msg("LLM returned zero models")
		return
	}
	if !slices.Contains(names, a.cfg.LLMModel) {
		a.logger.Warn().Str("model", a.cfg.LLMModel).Strs("available", names).Msg("model not reported by server")
		return
	}
	a.logger.Info().Int("count", len(names)).Str("model", a.cfg.LLMModel).Msg("LLM model available")
}

// ListModels returns the models installed on the server, sorted.
func (a *App) ListModels(ctx context.Context) ([]string, error) {
	return llm.ListModelNames(ctx, a.provider)
}

// Run processes every input document and writes the exports and manifest.
func (a *App) Run(ctx context.Context) error {
	docs, err := LoadDocuments(a.cfg.InputPath)
	if err != nil {
		return err
	}
	if a.cfg.DryRun {
		return a.dryRun(ctx, docs)
	}

	a.logger.Info().Int("documents", len(docs)).Str("model", a.cfg.LLMModel).Int("max_attempts", a.cfg.MaxAttempts).Msg("starting RoB-2 extraction")
	a.checkContextWindow()
	runner := &batch.Runner{
		Extractor: extract.PDFExtractor{MaxChars: a.cfg.MaxContextChars},
		Loop: &extraction.Loop{
			Client:       a.client,
			Model:        a.cfg.LLMModel,
			MaxAttempts:  a.cfg.MaxAttempts,
			SystemPrompt: a.prompt,
			Timeout:      a.cfg.CallTimeout,
		},
		PlaceholderOnExtractionFailure: a.cfg.PlaceholderFailed,
		Progress:                       a.progress,
	}
	rep := runner.Run(ctx, docs)

	if err := os.MkdirAll(a.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("mkdir output: %w", err)
	}
	if err := a.writeManifest(len(docs), rep); err != nil {
		return err
	}
	if len(rep.Results) == 0 {
		return ErrNoResults
	}
	if _, err := writeExports(a.cfg, a.format, rep); err != nil {
		return fmt.Errorf("write exports: %w", err)
	}

	printPreview(a.out, report.Preview(rep.Results))
	fmt.Fprint(a.out, reproFooter(a.runID, a.cfg.LLMModel, a.cfg.LLMBaseURL, rep.Results, len(rep.Failures)))
	if rep.Cancelled {
		return fmt.Errorf("batch stopped early: %w", context.Cause(ctx))
	}
	return nil
}

func (a *App) writeManifest(documents int, rep batch.Report) error {
	meta := manifestMeta{
		RunID:           a.runID,
		Model:           a.cfg.LLMModel,
		LLMBaseURL:      a.cfg.LLMBaseURL,
		Format:          a.format,
		MaxAttempts:     a.cfg.MaxAttempts,
		MaxContextChars: a.cfg.MaxContextChars,
		Documents:       documents,
		Rows:            len(rep.Results),
		Cancelled:       rep.Cancelled,
		Version:         BuildVersion,
		Commit:          BuildCommit,
		GeneratedAt:     time.Now().UTC(),
	}
	data, err := marshalManifestJSON(meta, buildManifestEntries(rep), buildManifestFailures(rep))
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	path := filepath.Join(a.cfg.OutputDir, manifestFileName)
	if err := writeFileAtomic(path, data); err != nil {
		return err
	}
	a.logger.Debug().Str("out", path).Msg("wrote manifest")
	return nil
}

// checkContextWindow warns once when a prompt carrying the full study text
// budget may not fit the model's context window.
func (a *App) checkContextWindow() budget.Estimate {
	worst := extraction.BuildPrompt(a.prompt, strings.Repeat(" ", a.cfg.MaxContextChars))
	est := budget.Check(a.cfg.LLMModel, worst)
	if !est.Fits {
		a.logger.Warn().
			Int("prompt_tokens", est.PromptTokens).
			Int("model_context", est.ModelContext).
			Str("model", a.cfg.LLMModel).
			Msg("prompt may exceed the model context window; lower -max.contextChars or pick a larger model")
	}
	return est
}

// progress turns batch events into log lines. Retries are already logged by
// the extraction loop.
func (a *App) progress(ev batch.Event) {
	pct := strconv.Itoa(int(ev.Fraction*100)) + "%"
	switch ev.Kind {
	case batch.EventStart:
		a.logger.Info().Int("total", ev.Total).Msg(ev.Status)
	case batch.EventAttempt:
		a.logger.Info().Str("study", ev.Study).Int("attempt", ev.Attempt).Str("progress", pct).Msg(ev.Status)
	case batch.EventDocumentDone:
		e := a.logger.Info()
		if ev.Err != nil {
			e = a.logger.Warn().Err(ev.Err)
		}
		e.Str("study", ev.Study).Int("attempts", ev.Attempt).Str("progress", pct).Msg(ev.Status)
	case batch.EventDocumentFailed:
		a.logger.Warn().Err(ev.Err).Str("study", ev.Study).Str("progress", pct).Msg(ev.Status)
	case batch.EventFinished:
		a.logger.Info().Str("progress", pct).Msg(ev.Status)
	}
}

// dryRun extracts every document and prints what the model would receive,
// without calling it.
func (a *App) dryRun(ctx context.Context, docs []extract.Document) error {
	ex := extract.PDFExtractor{MaxChars: a.cfg.MaxContextChars}
	t := report.Table{Header: []string{"Study", "Pages", "Text pages", "Chars", "Truncated", "Est. tokens", "Fits"}}
	for i := range docs {
		study := rob.StudyID(docs[i].Name)
		sc, err := ex.Extract(ctx, docs[i])
		docs[i].Content = nil
		if err != nil {
			a.logger.Warn().Err(err).Str("study", study).Msg("text extraction failed")
			continue
		}
		est := budget.Check(a.cfg.LLMModel, extraction.BuildPrompt(a.prompt, sc.Text))
		t.Rows = append(t.Rows, []string{
			study,
			strconv.Itoa(sc.Pages),
			strconv.Itoa(sc.TextPages),
			strconv.Itoa(len([]rune(sc.Text))),
			strconv.FormatBool(sc.Truncated),
			strconv.Itoa(est.PromptTokens),
			strconv.FormatBool(est.Fits),
		})
	}
	if len(t.Rows) == 0 {
		return ErrNoResults
	}
	printPreview(a.out, t)
	a.logger.Info().Int("documents", len(docs)).Int("readable", len(t.Rows)).Msg("dry run complete")
	return nil
}
