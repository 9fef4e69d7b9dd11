package app

import "time"

// Defaults shared by the CLI flags and config validation.
const (
	DefaultOutputDir = "rob2-out"
	DefaultFormat    = ".csv"
)

// Config holds runtime configuration for the application.
type Config struct {
	// InputPath is a directory of PDFs, a glob, or a comma-separated list of
	// either.
	InputPath string
	OutputDir string
	// Format selects the preview export: ".csv" or ".xlsx".
	Format string

	// LLM
	LLMBaseURL  string
	LLMModel    string
	LLMAPIKey   string
	CallTimeout time.Duration

	// Extraction
	MaxAttempts     int
	MaxContextChars int
	SystemPrompt    string
	PromptFile      string

	// Reports
	PlaceholderFailed bool
	HTMLReport        bool
	PDFReport         bool

	// Behavior
	DryRun  bool
	Verbose bool
}
