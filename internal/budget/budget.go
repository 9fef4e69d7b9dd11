// Package budget estimates whether a study prompt fits a model's context
// window.
package budget

import (
	"math"
	"strings"
	"unicode/utf8"
)

// DefaultContextTokens is assumed for models not listed in knownModelMax.
const DefaultContextTokens = 8192

// ReservedOutputTokens is kept free for the six-domain JSON answer.
const ReservedOutputTokens = 1024

// EstimateTokensFromChars converts a character count into an estimated token
// count using a conservative heuristic (~4 chars per token in English). The
// result is always at least 1 when chars > 0.
func EstimateTokensFromChars(charCount int) int {
	if charCount <= 0 {
		return 0
	}
	return int(math.Ceil(float64(charCount) / 4.0))
}

// EstimateTokens returns the estimated token count of a string.
func EstimateTokens(s string) int {
	return EstimateTokensFromChars(utf8.RuneCountInString(s))
}

// ModelContextTokens returns an estimated context window for an Ollama or
// OpenAI-style model name. A tag suffix (":8b", ":70b-instruct") is ignored
// when the family is known.
func ModelContextTokens(modelName string) int {
	name := strings.ToLower(strings.TrimSpace(modelName))
	if name == "" {
		return DefaultContextTokens
	}
	if v, ok := knownModelMax[name]; ok {
		return v
	}
	if family, _, ok := strings.Cut(name, ":"); ok {
		if v, ok := knownModelMax[family]; ok {
			return v
		}
	}
	for _, s := range []struct {
		suffix string
		tokens int
	}{{"1m", 1_000_000}, {"200k", 200_000}, {"128k", 128_000}, {"32k", 32_768}} {
		if strings.HasSuffix(name, s.suffix) {
			return s.tokens
		}
	}
	return DefaultContextTokens
}

// Estimate is the prompt size against the model's window.
type Estimate struct {
	PromptTokens int
	ModelContext int
	Reserved     int
	Remaining    int
	Fits         bool
}

// Check estimates the tokens of the full prompt and the room left for the
// answer. Remaining is never negative.
func Check(modelName, prompt string) Estimate {
	e := Estimate{
		PromptTokens: EstimateTokens(prompt),
		ModelContext: ModelContextTokens(modelName),
		Reserved:     ReservedOutputTokens,
	}
	e.Remaining = e.ModelContext - e.Reserved - e.PromptTokens
	e.Fits = e.Remaining > 0
	if e.Remaining < 0 {
		e.Remaining = 0
	}
	return e
}

// knownModelMax holds rough context sizes of common local model families.
// Servers may run them with a smaller configured window.
var knownModelMax = map[string]int{
	"llama3.1":      128_000,
	"llama3.2":      128_000,
	"llama3":        8_192,
	"command-r":     128_000,
	"qwen2.5":       32_768,
	"gemma":         8_192,
	"gemma2":        8_192,
	"mistral":       32_768,
	"mixtral":       32_768,
	"phi3":          4_096,
	"gpt-4o":        128_000,
	"gpt-4o-mini":   128_000,
	"gpt-3.5-turbo": 16_384,
}
