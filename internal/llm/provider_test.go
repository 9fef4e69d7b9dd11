package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestListModelNames_SortedAndDeduplicated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"id": "qwen2.5:7b", "object": "model"},
				{"id": "llama3.1:8b", "object": "model"},
				{"id": "qwen2.5:7b", "object": "model"},
				{"id": "", "object": "model"},
			},
		})
	}))
	defer srv.Close()

	p := NewOpenAIProvider(srv.URL+"/v1/", "", srv.Client())
	names, err := ListModelNames(context.Background(), p)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 2 || names[0] != "llama3.1:8b" || names[1] != "qwen2.5:7b" {
		t.Fatalf("unexpected names: %v", names)
	}
}

func TestListModelNames_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(srv.URL+"/v1", "", srv.Client())
	if _, err := ListModelNames(context.Background(), p); err == nil {
		t.Fatalf("expected error from failing server")
	}
}
