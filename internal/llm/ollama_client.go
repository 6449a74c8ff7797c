package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	gwapi "github.com/zeeshanml/math-assistant/internal/api"
)

// OllamaClient runs the assistant against a local Ollama server. It needs no
// API key; the credential field only gates the session like any other
// provider.
type OllamaClient struct {
	client *api.Client
}

var _ LLMClient = (*OllamaClient)(nil)

// NewOllamaClient creates a client for the server at baseURL. An empty
// baseURL falls back to OLLAMA_HOST or the local default.
func NewOllamaClient(baseURL string) (*OllamaClient, error) {
	if baseURL == "" {
		client, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		return &OllamaClient{client: client}, nil
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama base URL: %w", err)
	}
	return &OllamaClient{client: api.NewClient(u, &http.Client{Timeout: defaultTimeout})}, nil
}

// Provider implements LLMClient.
func (c *OllamaClient) Provider() string { return ProviderOllama }

// Close implements LLMClient. The HTTP client holds nothing to release.
func (c *OllamaClient) Close() error { return nil }

// Generate performs a non-streaming chat request.
func (c *OllamaClient) Generate(ctx context.Context, messages []Message, config *GenerationConfig) (*GenerationResult, error) {
	stream := false
	req := &api.ChatRequest{
		Model:    config.Model,
		Messages: toOllamaMessages(messages),
		Stream:   &stream,
		Options:  map[string]any{},
	}
	if config.Temperature != nil {
		req.Options["temperature"] = *config.Temperature
	}
	if config.MaxTokens > 0 {
		req.Options["num_predict"] = config.MaxTokens
	}

	var (
		contentBuilder strings.Builder
		usage          gwapi.Usage
	)
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		contentBuilder.WriteString(resp.Message.Content)
		if resp.Done {
			usage.PromptTokens = resp.PromptEvalCount
			usage.CompletionTokens = resp.EvalCount
			usage.TotalTokens = resp.PromptEvalCount + resp.EvalCount
		}
		return nil
	})
	if err != nil {
		var statusErr api.StatusError
		if errors.As(err, &statusErr) {
			return nil, classifyStatus(ProviderOllama, statusErr.StatusCode, err)
		}
		return nil, fmt.Errorf("ollama API call failed: %w", err)
	}

	content := strings.TrimSpace(contentBuilder.String())
	if content == "" {
		return nil, fmt.Errorf("ollama: %w", ErrEmptyResponse)
	}
	return &GenerationResult{Content: content, Usage: usage}, nil
}

func toOllamaMessages(messages []Message) []api.Message {
	out := make([]api.Message, 0, len(messages))
	for _, msg := range messages {
		out = append(out, api.Message{Role: string(msg.Role), Content: msg.Content})
	}
	return out
}
