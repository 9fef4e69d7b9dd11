package llm

import (
	"context"
	"net/http"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultBaseURL is the OpenAI-compatible endpoint of a local Ollama server.
const DefaultBaseURL = "http://localhost:11434/v1"

// RecommendedModels is offered when the server lists no installed models.
var RecommendedModels = []string{"llama3.1:70b", "command-r", "qwen2.5:7b", "llama3.1:8b", "gemma:2b"}

// Client is the minimal interface needed by core logic to call a chat model.
// It mirrors CreateChatCompletion so that any OpenAI-compatible or local
// backend can be adapted.
type Client interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ModelLister is an optional capability that allows listing available models.
// Providers that do not support this can omit it; callers should use a type
// assertion to detect availability.
type ModelLister interface {
	ListModels(ctx context.Context) (openai.ModelsList, error)
}

// OpenAIProvider adapts *openai.Client to the Client/ModelLister interfaces.
type OpenAIProvider struct {
	Inner *openai.Client
}

func (p *OpenAIProvider) CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return p.Inner.CreateChatCompletion(ctx, request)
}

func (p *OpenAIProvider) ListModels(ctx context.Context) (openai.ModelsList, error) {
	return p.Inner.ListModels(ctx)
}

// NewOpenAIProvider builds a provider for baseURL. Local servers ignore the
// key, so an empty one is fine.
func NewOpenAIProvider(baseURL, apiKey string, httpClient *http.Client) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if strings.TrimSpace(baseURL) != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &OpenAIProvider{Inner: openai.NewClientWithConfig(cfg)}
}

// ListModelNames returns the sorted, de-duplicated model ids reported by l.
func ListModelNames(ctx context.Context, l ModelLister) ([]string, error) {
	list, err := l.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(list.Models))
	names := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		id := strings.TrimSpace(m.ID)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		names = append(names, id)
	}
	sort.Strings(names)
	return names, nil
}
