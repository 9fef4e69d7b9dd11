// Command robextract extracts RoB-2 risk-of-bias judgments from clinical
// trial PDFs with a local OpenAI-compatible model and exports them as tables.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/robextract/internal/app"
	"github.com/hyperifyio/robextract/internal/extract"
	"github.com/hyperifyio/robextract/internal/extraction"
	"github.com/hyperifyio/robextract/internal/llm"
)

// Exit codes.
const (
	exitOK        = 0
	exitConfig    = 1
	exitNoResults = 2
)

// errConfig marks failures that happen before any document is processed.
var errConfig = errors.New("configuration error")

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	os.Exit(realMain(os.Args[1:], os.Stdout))
}

// realMain parses args, resolves configuration and runs; it returns the
// process exit code.
func realMain(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("robextract", flag.ContinueOnError)
	var (
		cfg         app.Config
		configPath  string
		envFiles    string
		listModels  bool
		showVersion bool
	)
	fs.StringVar(&cfg.InputPath, "input", "", "Directory of PDFs, glob (papers/**/*.pdf), or comma-separated PDF paths")
	fs.StringVar(&cfg.OutputDir, "output", app.DefaultOutputDir, "Directory for exports and the run manifest")
	fs.StringVar(&cfg.Format, "format", app.DefaultFormat, "Preview export format: .csv or .xlsx")
	fs.StringVar(&cfg.LLMBaseURL, "llm.base", llm.DefaultBaseURL, "OpenAI-compatible base URL (Ollama: http://localhost:11434/v1)")
	fs.StringVar(&cfg.LLMModel, "llm.model", "", "Model name, e.g. llama3.1:8b")
	fs.StringVar(&cfg.LLMAPIKey, "llm.key", "", "API key for OpenAI-compatible server (optional for local servers)")
	fs.DurationVar(&cfg.CallTimeout, "timeout", 0, "Per model call timeout (e.g. 5m); 0 disables")
	fs.IntVar(&cfg.MaxAttempts, "max.attempts", extraction.DefaultMaxAttempts, "Model attempts per study before giving up")
	fs.IntVar(&cfg.MaxContextChars, "max.contextChars", extract.DefaultMaxChars, "Maximum characters of study text sent to the model")
	fs.StringVar(&cfg.PromptFile, "prompt.file", "", "Path to a file replacing the expert system prompt")
	fs.BoolVar(&cfg.PlaceholderFailed, "placeholder.failed", false, "Emit an all N/A row for PDFs whose text cannot be extracted")
	fs.BoolVar(&cfg.HTMLReport, "report.html", false, "Also write rob2_justifications.html")
	fs.BoolVar(&cfg.PDFReport, "report.pdf", false, "Also write rob2_justifications.pdf")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Extract text and report sizes without calling the model")
	fs.BoolVar(&cfg.Verbose, "v", false, "Verbose logging")
	fs.StringVar(&configPath, "config", "", "YAML or JSON config file")
	fs.StringVar(&envFiles, "env", ".env", "Comma-separated dotenv files loaded before env overrides")
	fs.BoolVar(&listModels, "list-models", false, "List models available on the server and exit")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitConfig
	}
	if showVersion {
		fmt.Fprintln(stdout, app.VersionString())
		return exitOK
	}

	explicit := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	if err := app.LoadEnvFiles(strings.Split(envFiles, ",")...); err != nil {
		log.Error().Err(err).Msg("load env files")
		return exitConfig
	}
	if configPath != "" {
		fc, err := app.LoadConfigFile(configPath)
		if err != nil {
			log.Error().Err(err).Str("config", configPath).Msg("load config file")
			return exitConfig
		}
		if err := app.ApplyFileConfig(&cfg, fc, explicit); err != nil {
			log.Error().Err(err).Msg("apply config file")
			return exitConfig
		}
	}
	app.ApplyEnvOverrides(&cfg, explicit)

	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if listModels {
		return printModels(ctx, cfg, stdout)
	}

	if err := app.ValidateConfig(cfg); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return exitConfig
	}

	if err := run(ctx, cfg, stdout); err != nil {
		log.Error().Err(err).Msg("run failed")
		return exitCode(err)
	}
	return exitOK
}

// exitCode maps run errors to the exit code policy: nothing to report is 2,
// configuration and I/O problems are 1.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, app.ErrNoResults), errors.Is(err, app.ErrNoInputs):
		return exitNoResults
	default:
		return exitConfig
	}
}

func run(ctx context.Context, cfg app.Config, stdout io.Writer) error {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", errConfig, err)
	}
	defer a.Close()
	a.SetOutput(stdout)
	log.Info().Str("run_id", a.RunID()).Str("input", cfg.InputPath).Str("output", cfg.OutputDir).Msg("run started")
	return a.Run(ctx)
}

// printModels lists installed models, or the recommended ones with a warning
// when the server reports none.
func printModels(ctx context.Context, cfg app.Config, stdout io.Writer) int {
	cfg.DryRun = true
	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("init")
		return exitConfig
	}
	defer a.Close()
	names, err := a.ListModels(ctx)
	if err != nil {
		log.Warn().Err(err).Str("base", cfg.LLMBaseURL).Msg("could not list models")
	}
	if len(names) == 0 {
		log.Warn().Msg("no models reported; showing recommended models (pull one with `ollama pull <name>`)")
		names = llm.RecommendedModels
	}
	for _, n := range names {
		fmt.Fprintln(stdout, n)
	}
	return exitOK
}
