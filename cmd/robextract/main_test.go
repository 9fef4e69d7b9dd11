package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"

	"github.com/hyperifyio/robextract/internal/app"
	"github.com/hyperifyio/robextract/internal/llm"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"LLM_BASE_URL", "LLM_MODEL", "LLM_API_KEY", "ROB2_INPUT", "ROB2_OUTPUT", "ROB2_FORMAT", "VERBOSE", "DRY_RUN"} {
		t.Setenv(k, "")
	}
}

// newServer answers chat completions with a complete RoB-2 object and lists
// the given models.
func newServer(t *testing.T, models ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/models"):
			data := make([]map[string]string, 0, len(models))
			for _, m := range models {
				data = append(data, map[string]string{"id": m, "object": "model"})
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
		case strings.HasSuffix(r.URL.Path, "/chat/completions"):
			content := `{"D1":{"judgment":"low"},"D2":{"judgment":"low"},"D3":{"judgment":"low"},"D4":{"judgment":"low"},"D5":{"judgment":"low"},"Overall":{"judgment":"low"}}`
			_ = json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]any{{"index": 0, "message": map[string]string{"role": "assistant", "content": content}}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writePDF(t *testing.T, path string) {
	t.Helper()
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.AddPage()
	pdf.Cell(40, 10, "Randomised controlled trial")
	if err := pdf.OutputFileAndClose(path); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
}

func TestRealMain_WritesResults(t *testing.T) {
	clearEnv(t)
	srv := newServer(t, "m1")
	dir := t.TempDir()
	writePDF(t, filepath.Join(dir, "Trial.pdf"))
	out := filepath.Join(dir, "out")

	var stdout bytes.Buffer
	code := realMain([]string{"-env=", "-input", dir, "-output", out, "-llm.base", srv.URL + "/v1", "-llm.model", "m1"}, &stdout)
	if code != exitOK {
		t.Fatalf("exit code %d", code)
	}
	b, err := os.ReadFile(filepath.Join(out, "rob2_results.csv"))
	if err != nil {
		t.Fatalf("read results: %v", err)
	}
	if !strings.Contains(string(b), "Trial,Low,Low,Low,Low,Low,Low") {
		t.Fatalf("unexpected csv:\n%s", b)
	}
}

func TestRealMain_ConfigFileAndEnv(t *testing.T) {
	clearEnv(t)
	srv := newServer(t, "m1")
	dir := t.TempDir()
	writePDF(t, filepath.Join(dir, "A.pdf"))
	out := filepath.Join(dir, "from-config")
	cfgPath := filepath.Join(dir, "robextract.yaml")
	yml := fmt.Sprintf("input: %s\noutput: %s\nformat: xlsx\nllm:\n  model: wrong-model\n", dir, out)
	if err := os.WriteFile(cfgPath, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LLM_BASE_URL", srv.URL+"/v1")
	t.Setenv("LLM_MODEL", "m1")

	code := realMain([]string{"-env=", "-config", cfgPath}, &bytes.Buffer{})
	if code != exitOK {
		t.Fatalf("exit code %d", code)
	}
	if _, err := os.Stat(filepath.Join(out, "rob2_results.xlsx")); err != nil {
		t.Fatalf("expected xlsx results from config format: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(out, "rob2_manifest.json"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"model": "m1"`) {
		t.Fatalf("env model must override config file:\n%s", b)
	}
}

func TestRealMain_NoRowsExitCode(t *testing.T) {
	clearEnv(t)
	srv := newServer(t, "m1")
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.pdf"), []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	code := realMain([]string{"-env=", "-input", dir, "-output", filepath.Join(dir, "out"), "-llm.base", srv.URL + "/v1", "-llm.model", "m1"}, &bytes.Buffer{})
	if code != exitNoResults {
		t.Fatalf("expected exit %d, got %d", exitNoResults, code)
	}
	code = realMain([]string{"-env=", "-input", t.TempDir(), "-llm.model", "m1"}, &bytes.Buffer{})
	if code != exitNoResults {
		t.Fatalf("empty input dir: expected exit %d, got %d", exitNoResults, code)
	}
}

func TestRealMain_ConfigErrors(t *testing.T) {
	clearEnv(t)
	cases := [][]string{
		{"-env=", "-llm.model", "m1"},
		{"-env=", "-input", "x", "-format", ".ods", "-llm.model", "m1"},
		{"-env=", "-input", "x"},
		{"-env=", "-input", "x", "-llm.model", "m1", "-max.attempts", "0"},
		{"-env=", "-config", filepath.Join(t.TempDir(), "missing.yaml")},
		{"-no-such-flag"},
	}
	for _, args := range cases {
		if code := realMain(args, &bytes.Buffer{}); code != exitConfig {
			t.Fatalf("%v: expected exit %d, got %d", args, exitConfig, code)
		}
	}
}

func TestRealMain_ListModels(t *testing.T) {
	clearEnv(t)
	srv := newServer(t, "zeta", "alpha")
	var stdout bytes.Buffer
	if code := realMain([]string{"-env=", "-list-models", "-llm.base", srv.URL + "/v1"}, &stdout); code != exitOK {
		t.Fatalf("exit code %d", code)
	}
	if stdout.String() != "alpha\nzeta\n" {
		t.Fatalf("unexpected listing: %q", stdout.String())
	}

	empty := newServer(t)
	stdout.Reset()
	if code := realMain([]string{"-env=", "-list-models", "-llm.base", empty.URL + "/v1"}, &stdout); code != exitOK {
		t.Fatalf("exit code %d", code)
	}
	if stdout.String() != strings.Join(llm.RecommendedModels, "\n")+"\n" {
		t.Fatalf("expected recommended fallback, got %q", stdout.String())
	}
}

func TestRealMain_Version(t *testing.T) {
	var stdout bytes.Buffer
	if code := realMain([]string{"-version"}, &stdout); code != exitOK {
		t.Fatalf("exit code %d", code)
	}
	if !strings.HasPrefix(stdout.String(), "robextract ") {
		t.Fatalf("unexpected version output: %q", stdout.String())
	}
}

func TestExitCode(t *testing.T) {
	if exitCode(fmt.Errorf("wrap: %w", app.ErrNoResults)) != exitNoResults {
		t.Fatalf("ErrNoResults must map to %d", exitNoResults)
	}
	if exitCode(errors.New("disk full")) != exitConfig {
		t.Fatalf("other errors map to %d", exitConfig)
	}
}
