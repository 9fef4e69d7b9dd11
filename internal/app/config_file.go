package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	yaml "gopkg.in/yaml.v3"

	"github.com/hyperifyio/robextract/internal/report"
)

// FileConfig represents the single-file configuration schema.
// Nested sections mirror the dotted flag names.
type FileConfig struct {
	Input  string `yaml:"input" json:"input"`
	Output string `yaml:"output" json:"output"`
	Format string `yaml:"format" json:"format"`

	LLM struct {
		BaseURL string `yaml:"base" json:"base"`
		Model   string `yaml:"model" json:"model"`
		APIKey  string `yaml:"key" json:"key"`
		// Timeout is a Go duration string such as "2m".
		Timeout string `yaml:"timeout" json:"timeout"`
	} `yaml:"llm" json:"llm"`

	Max struct {
		Attempts     int `yaml:"attempts" json:"attempts"`
		ContextChars int `yaml:"contextChars" json:"contextChars"`
	} `yaml:"max" json:"max"`

	Prompt struct {
		System string `yaml:"system" json:"system"`
		File   string `yaml:"file" json:"file"`
	} `yaml:"prompt" json:"prompt"`

	Placeholder struct {
		Failed *bool `yaml:"failed" json:"failed"`
	} `yaml:"placeholder" json:"placeholder"`

	Report struct {
		HTML *bool `yaml:"html" json:"html"`
		PDF  *bool `yaml:"pdf" json:"pdf"`
	} `yaml:"report" json:"report"`

	DryRun  *bool `yaml:"dryRun" json:"dryRun"`
	Verbose *bool `yaml:"verbose" json:"verbose"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		// Try YAML then JSON
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays values from fc onto cfg for every setting whose
// flag was not given explicitly. Empty file values leave cfg untouched.
func ApplyFileConfig(cfg *Config, fc FileConfig, explicit map[string]bool) error {
	if cfg == nil {
		return nil
	}
	str := func(flag string, dst *string, v string) {
		if !explicit[flag] && strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	num := func(flag string, dst *int, v int) {
		if !explicit[flag] && v != 0 {
			*dst = v
		}
	}
	flagBool := func(flag string, dst *bool, v *bool) {
		if !explicit[flag] && v != nil {
			*dst = *v
		}
	}

	str("input", &cfg.InputPath, fc.Input)
	str("output", &cfg.OutputDir, fc.Output)
	str("format", &cfg.Format, fc.Format)
	str("llm.base", &cfg.LLMBaseURL, fc.LLM.BaseURL)
	str("llm.model", &cfg.LLMModel, fc.LLM.Model)
	str("llm.key", &cfg.LLMAPIKey, fc.LLM.APIKey)
	if !explicit["timeout"] && strings.TrimSpace(fc.LLM.Timeout) != "" {
		if err := parseDuration(&cfg.CallTimeout, strings.TrimSpace(fc.LLM.Timeout)); err != nil {
			return fmt.Errorf("config: llm.timeout: %w", err)
		}
	}
	num("max.attempts", &cfg.MaxAttempts, fc.Max.Attempts)
	num("max.contextChars", &cfg.MaxContextChars, fc.Max.ContextChars)
	if cfg.SystemPrompt == "" && fc.Prompt.System != "" {
		cfg.SystemPrompt = fc.Prompt.System
	}
	str("prompt.file", &cfg.PromptFile, fc.Prompt.File)
	flagBool("placeholder.failed", &cfg.PlaceholderFailed, fc.Placeholder.Failed)
	flagBool("report.html", &cfg.HTMLReport, fc.Report.HTML)
	flagBool("report.pdf", &cfg.PDFReport, fc.Report.PDF)
	flagBool("dry-run", &cfg.DryRun, fc.DryRun)
	flagBool("v", &cfg.Verbose, fc.Verbose)
	return nil
}

// ValidateConfig performs minimal validation for required settings.
// For dry-run, the model may be omitted.
func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.InputPath) == "" {
		return errors.New("config: input is required")
	}
	if strings.TrimSpace(cfg.OutputDir) == "" {
		return errors.New("config: output directory is required")
	}
	if _, err := report.NormalizeFormat(cfg.Format); err != nil {
		return fmt.Errorf("config: format: %w", err)
	}
	if !cfg.DryRun && strings.TrimSpace(cfg.LLMModel) == "" {
		return errors.New("config: llm.model is required (or set LLM_MODEL)")
	}
	if cfg.MaxAttempts < 1 {
		return errors.New("config: max.attempts must be at least 1")
	}
	if cfg.MaxContextChars < 1 {
		return errors.New("config: max.contextChars must be at least 1")
	}
	if cfg.CallTimeout < 0 {
		return errors.New("config: timeout must not be negative")
	}
	return nil
}
