// Package batch processes uploaded documents one at a time, isolating each
// document's failures from the rest of the run.
package batch

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/robextract/internal/extract"
	"github.com/hyperifyio/robextract/internal/extraction"
	"github.com/hyperifyio/robextract/internal/rob"
)

// TextExtractor derives the study context from a document.
type TextExtractor interface {
	Extract(ctx context.Context, doc extract.Document) (extract.StudyContext, error)
}

// Assessor runs the bounded extraction loop for one study.
type Assessor interface {
	Run(ctx context.Context, study, text string, observe func(extraction.Attempt)) extraction.Outcome
}

// EventKind identifies a progress event.
type EventKind int

const (
	EventStart EventKind = iota
	EventAttempt
	EventRetry
	EventDocumentDone
	EventDocumentFailed
	EventFinished
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventAttempt:
		return "attempt"
	case EventRetry:
		return "retry"
	case EventDocumentDone:
		return "document_done"
	case EventDocumentFailed:
		return "document_failed"
	case EventFinished:
		return "finished"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is emitted to the Progress callback as the batch advances.
type Event struct {
	Kind  EventKind
	Index int // 1-based document index; 0 for batch-level events
	Total int
	Study string
	// Attempt and MaxAttempts are set for EventAttempt and EventRetry.
	Attempt     int
	MaxAttempts int
	// Status is the human-readable progress line.
	Status string
	// Fraction is completed documents over Total.
	Fraction float64
	Err      error
}

// Failure records a document that produced no assessed row.
type Failure struct {
	Study string
	Err   error
}

// Report is the ordered outcome of a batch.
type Report struct {
	Results  []rob.StudyResult
	Failures []Failure
	// Outcomes holds the terminal state per assessed study, aligned with Results.
	Outcomes []extraction.State
	// Contexts holds the extracted study context per row, aligned with Results.
	Contexts []extract.StudyContext
	// Cancelled is set when the run stopped before the last document.
	Cancelled bool
}

// Runner wires the extractor and the extraction loop.
type Runner struct {
	Extractor TextExtractor
	Loop      Assessor
	// PlaceholderOnExtractionFailure emits an all N/A row with status
	// extraction_failed instead of skipping the document.
	PlaceholderOnExtractionFailure bool
	Progress                       func(Event)
}

func (r *Runner) emit(ev Event) {
	if r.Progress != nil {
		r.Progress(ev)
	}
}

// StatusLine formats the progress text shown while a study is analyzed.
func StatusLine(index, total int, study string, attempt, maxAttempts int) string {
	return fmt.Sprintf("Study %d/%d: Analyzing %s (Attempt %d/%d)", index, total, study, attempt, maxAttempts)
}

// Run processes docs in order. Cancellation is checked between documents; a
// document in flight runs to completion. Each document's content is released
// once its text has been extracted.
func (r *Runner) Run(ctx context.Context, docs []extract.Document) Report {
	total := len(docs)
	rep := Report{Results: make([]rob.StudyResult, 0, total)}
	done := 0
	r.emit(Event{Kind: EventStart, Total: total, Status: fmt.Sprintf("Starting batch of %d studies", total)})

	for i := range docs {
		if err := ctx.Err(); err != nil {
			rep.Cancelled = true
			log.Warn().Err(err).Int("done", i).Int("total", total).Msg("batch cancelled")
			break
		}
		idx := i + 1
		done = idx
		study := rob.StudyID(docs[i].Name)
		logger := log.With().Str("study", study).Int("index", idx).Int("total", total).Logger()

		// a started document is not interrupted; only the next one is skipped
		docCtx := context.WithoutCancel(ctx)
		sc, err := r.Extractor.Extract(docCtx, docs[i])
		docs[i].Content = nil
		if err != nil {
			logger.Error().Err(err).Msg("text extraction failed")
			rep.Failures = append(rep.Failures, Failure{Study: study, Err: err})
			if r.PlaceholderOnExtractionFailure {
				row := rob.NewPlaceholder(study, rob.StatusExtractionFailed)
				row.Err = err.Error()
				rep.Results = append(rep.Results, row)
				rep.Outcomes = append(rep.Outcomes, extraction.ExhaustedError)
				rep.Contexts = append(rep.Contexts, extract.StudyContext{})
			}
			r.emit(Event{Kind: EventDocumentFailed, Index: idx, Total: total, Study: study, Err: err,
				Status: fmt.Sprintf("Study %d/%d: %s could not be read", idx, total, study), Fraction: fraction(idx, total)})
			continue
		}
		logger.Debug().Int("pages", sc.Pages).Int("text_pages", sc.TextPages).Bool("truncated", sc.Truncated).Msg("study context ready")

		out := r.Loop.Run(docCtx, study, sc.Text, func(a extraction.Attempt) {
			switch {
			case a.Phase == extraction.AttemptStarted:
				r.emit(Event{Kind: EventAttempt, Index: idx, Total: total, Study: study, Attempt: a.Number, MaxAttempts: a.Max,
					Status: StatusLine(idx, total, study, a.Number, a.Max), Fraction: fraction(i, total)})
			case a.Next == extraction.Attempting:
				r.emit(Event{Kind: EventRetry, Index: idx, Total: total, Study: study, Attempt: a.Number, MaxAttempts: a.Max, Err: a.Err,
					Status: fmt.Sprintf("Study %d/%d: retrying %s after attempt %d/%d", idx, total, study, a.Number, a.Max), Fraction: fraction(i, total)})
			}
		})
		rep.Results = append(rep.Results, out.Result)
		rep.Outcomes = append(rep.Outcomes, out.State)
		rep.Contexts = append(rep.Contexts, sc)
		r.emit(Event{Kind: EventDocumentDone, Index: idx, Total: total, Study: study, Attempt: out.Attempts, Err: out.Err,
			Status: fmt.Sprintf("Study %d/%d: %s %s", idx, total, study, out.Result.Status), Fraction: fraction(idx, total)})
	}

	r.emit(Event{Kind: EventFinished, Total: total, Fraction: fraction(done, total),
		Status: fmt.Sprintf("Finished: %d rows, %d extraction failures", len(rep.Results), len(rep.Failures))})
	return rep
}

func fraction(done, total int) float64 {
	if total == 0 {
		return 1
	}
	return float64(done) / float64(total)
}
