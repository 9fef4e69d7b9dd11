package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// envBinding ties an environment variable to the flag it stands in for.
type envBinding struct {
	flag string
	env  string
	set  func(cfg *Config, v string) error
}

var envBindings = []envBinding{
	{"input", "ROB2_INPUT", func(c *Config, v string) error { c.InputPath = v; return nil }},
	{"output", "ROB2_OUTPUT", func(c *Config, v string) error { c.OutputDir = v; return nil }},
	{"format", "ROB2_FORMAT", func(c *Config, v string) error { c.Format = v; return nil }},
	{"llm.base", "LLM_BASE_URL", func(c *Config, v string) error { c.LLMBaseURL = v; return nil }},
	{"llm.model", "LLM_MODEL", func(c *Config, v string) error { c.LLMModel = v; return nil }},
	{"llm.key", "LLM_API_KEY", func(c *Config, v string) error { c.LLMAPIKey = v; return nil }},
	{"timeout", "LLM_TIMEOUT", func(c *Config, v string) error { return parseDuration(&c.CallTimeout, v) }},
	{"max.attempts", "ROB2_MAX_ATTEMPTS", func(c *Config, v string) error { return parseInt(&c.MaxAttempts, v) }},
	{"max.contextChars", "ROB2_MAX_CONTEXT_CHARS", func(c *Config, v string) error { return parseInt(&c.MaxContextChars, v) }},
	{"prompt.file", "ROB2_PROMPT_FILE", func(c *Config, v string) error { c.PromptFile = v; return nil }},
	{"placeholder.failed", "ROB2_PLACEHOLDER_FAILED", func(c *Config, v string) error { return parseBool(&c.PlaceholderFailed, v) }},
	{"report.html", "ROB2_REPORT_HTML", func(c *Config, v string) error { return parseBool(&c.HTMLReport, v) }},
	{"report.pdf", "ROB2_REPORT_PDF", func(c *Config, v string) error { return parseBool(&c.PDFReport, v) }},
	{"dry-run", "DRY_RUN", func(c *Config, v string) error { return parseBool(&c.DryRun, v) }},
	{"v", "VERBOSE", func(c *Config, v string) error { return parseBool(&c.Verbose, v) }},
}

// ApplyEnvOverrides overrides cfg with every environment variable that is set,
// except where the matching flag was given explicitly. Run it after
// ApplyFileConfig so that flags beat env and env beats the config file.
// Unparseable values are logged and ignored.
func ApplyEnvOverrides(cfg *Config, explicit map[string]bool) {
	if cfg == nil {
		return
	}
	for _, b := range envBindings {
		if explicit[b.flag] {
			continue
		}
		v := strings.TrimSpace(os.Getenv(b.env))
		if v == "" {
			continue
		}
		if err := b.set(cfg, v); err != nil {
			log.Warn().Err(err).Str("env", b.env).Msg("ignoring environment value")
		}
	}
}

func parseInt(dst *int, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func parseDuration(dst *time.Duration, v string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

func parseBool(dst *bool, v string) error {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		*dst = true
	case "0", "false", "no", "off":
		*dst = false
	default:
		return fmt.Errorf("not a boolean: %q", v)
	}
	return nil
}
