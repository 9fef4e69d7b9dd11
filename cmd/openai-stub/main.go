// Command openai-stub serves a minimal OpenAI-compatible API that answers
// every chat completion with a RoB-2 judgment object, for end-to-end runs
// without a model.
package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// Answer modes selected with STUB_MODE.
const (
	modeComplete     = "complete"
	modePartialFirst = "partial-first"
	modeGarbage      = "garbage"
)

const completeAnswer = `{"D1":{"judgment":"Probably yes","support":"Allocation sequence was computer generated."},"D2":{"judgment":"Probably no","support":"Participants were aware of their assignment."},"D3":{"judgment":"Definitely yes","support":"Outcome data were available for all participants."},"D4":{"judgment":"Probably yes","support":"Outcome assessors were blinded."},"D5":{"judgment":"Probably no","support":"No pre-registered analysis plan was found."},"Overall":{"judgment":"Some concerns","support":"Deviations and selective reporting cannot be excluded."}}`

const partialAnswer = `{"D1":{"judgment":"Probably yes","support":"Allocation sequence was computer generated."},"D2":{"support":"Not reported."}}`

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	model := os.Getenv("MODEL_ID")
	if strings.TrimSpace(model) == "" {
		model = "test-model"
	}
	addr := os.Getenv("ADDR")
	if strings.TrimSpace(addr) == "" {
		addr = ":8081"
	}
	mode := os.Getenv("STUB_MODE")
	if strings.TrimSpace(mode) == "" {
		mode = modeComplete
	}

	log.Info().Str("addr", addr).Str("model", model).Str("mode", mode).Msg("openai-stub listening")
	if err := http.ListenAndServe(addr, newHandler(model, mode)); err != nil {
		log.Fatal().Err(err).Msg("serve")
	}
}

// newHandler returns the stub API. In partial-first mode the first request
// for each distinct prompt gets an incomplete answer and later ones a complete
// answer, which exercises the retry path.
func newHandler(model, mode string) http.Handler {
	var (
		mu   sync.Mutex
		seen = map[string]int{}
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   []map[string]any{{"id": model, "object": "model"}},
		})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		prompt := req.Messages[len(req.Messages)-1].Content
		if !strings.Contains(prompt, "Article Content:") {
			http.Error(w, "unexpected prompt", http.StatusBadRequest)
			return
		}
		sum := sha256.Sum256([]byte(prompt))
		key := hex.EncodeToString(sum[:8])
		mu.Lock()
		seen[key]++
		n := seen[key]
		mu.Unlock()

		content := completeAnswer
		switch mode {
		case modeGarbage:
			content = "I am unable to produce JSON today."
		case modePartialFirst:
			if n == 1 {
				content = partialAnswer
			}
		}
		log.Debug().Str("prompt", key).Int("call", n).Str("mode", mode).Msg("chat completion")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-stub",
			"object": "chat.completion",
			"model":  req.Model,
			"choices": []map[string]any{
				{"index": 0, "message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"},
			},
		})
	})
	return mux
}
