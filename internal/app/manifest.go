package app

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
	"unicode/utf8"

	"github.com/hyperifyio/robextract/internal/batch"
	"github.com/hyperifyio/robextract/internal/report"
	"github.com/hyperifyio/robextract/internal/rob"
)

// manifestEntry records how one report row was produced.
type manifestEntry struct {
	Index     int        `json:"index"`
	Study     string     `json:"study"`
	Status    rob.Status `json:"status"`
	State     string     `json:"state"`
	Attempts  int        `json:"attempts"`
	Pages     int        `json:"pages"`
	TextPages int        `json:"text_pages"`
	Chars     int        `json:"chars"`
	Truncated bool       `json:"truncated"`
	// ContextSHA256 digests the exact text sent to the model.
	ContextSHA256 string `json:"context_sha256,omitempty"`
	// ResponseSHA256 digests the canonical JSON of the model's last answer.
	ResponseSHA256 string `json:"response_sha256,omitempty"`
	Error          string `json:"error,omitempty"`
}

// manifestFailure is a document whose text could not be extracted.
type manifestFailure struct {
	Study string `json:"study"`
	Error string `json:"error"`
}

// manifestMeta captures high-level run details that aid reproducibility.
type manifestMeta struct {
	RunID           string    `json:"run_id"`
	Model           string    `json:"model"`
	LLMBaseURL      string    `json:"llm_base_url"`
	Format          string    `json:"format"`
	MaxAttempts     int       `json:"max_attempts"`
	MaxContextChars int       `json:"max_context_chars"`
	Documents       int       `json:"documents"`
	Rows            int       `json:"rows"`
	Cancelled       bool      `json:"cancelled,omitempty"`
	Version         string    `json:"version"`
	Commit          string    `json:"commit"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// computeSHA256Hex returns a lowercase hex-encoded SHA-256 of the given text.
func computeSHA256Hex(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// buildManifestEntries pairs every row with its study context.
func buildManifestEntries(rep batch.Report) []manifestEntry {
	out := make([]manifestEntry, 0, len(rep.Results))
	for i, r := range rep.Results {
		e := manifestEntry{
			Index:    i + 1,
			Study:    r.Study,
			Status:   r.Status,
			Attempts: r.Attempts,
			Error:    r.Err,
		}
		if i < len(rep.Outcomes) {
			e.State = rep.Outcomes[i].String()
		}
		if i < len(rep.Contexts) {
			sc := rep.Contexts[i]
			e.Pages, e.TextPages, e.Truncated = sc.Pages, sc.TextPages, sc.Truncated
			e.Chars = utf8.RuneCountInString(sc.Text)
			if sc.Text != "" {
				e.ContextSHA256 = computeSHA256Hex(sc.Text)
			}
		}
		if len(r.Original) > 0 {
			e.ResponseSHA256 = computeSHA256Hex(report.CanonicalJSON(r.Original))
		}
		out = append(out, e)
	}
	return out
}

func buildManifestFailures(rep batch.Report) []manifestFailure {
	out := make([]manifestFailure, 0, len(rep.Failures))
	for _, f := range rep.Failures {
		out = append(out, manifestFailure{Study: f.Study, Error: f.Err.Error()})
	}
	return out
}

// marshalManifestJSON encodes the machine-readable run manifest.
func marshalManifestJSON(meta manifestMeta, entries []manifestEntry, failures []manifestFailure) ([]byte, error) {
	payload := struct {
		Meta     manifestMeta      `json:"meta"`
		Studies  []manifestEntry   `json:"studies"`
		Failures []manifestFailure `json:"extraction_failures"`
	}{Meta: meta, Studies: entries, Failures: failures}
	return json.MarshalIndent(payload, "", "  ")
}
