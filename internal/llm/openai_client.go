// In file: internal/llm/openai_client.go
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/zeeshanml/math-assistant/internal/api"
)

// OpenAIClient talks to any provider that implements the OpenAI chat
// completions protocol. Groq (the default provider), OpenAI and Mistral only
// differ in base URL.
type OpenAIClient struct {
	client   openai.Client
	provider string
}

// Statically verify that OpenAIClient implements the LLMClient interface.
var _ LLMClient = (*OpenAIClient)(nil)

// NewOpenAIClient creates a chat completions client. An empty baseURL uses
// the SDK default (api.openai.com).
func NewOpenAIClient(provider, apiKey, baseURL string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s API key cannot be empty", provider)
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(maxRetries),
		option.WithRequestTimeout(defaultTimeout),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIClient{
		client:   openai.NewClient(opts...),
		provider: provider,
	}, nil
}

// Provider implements LLMClient.
func (c *OpenAIClient) Provider() string { return c.provider }

// Close implements LLMClient.
func (c *OpenAIClient) Close() error { return nil }

// Generate performs a standard, blocking chat completion.
func (c *OpenAIClient) Generate(ctx context.Context, messages []Message, config *GenerationConfig) (*GenerationResult, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(config.Model),
		Messages: toOpenAIMessages(messages),
	}
	if config.Temperature != nil {
		params.Temperature = openai.Float(float64(*config.Temperature))
	}
	if config.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(config.MaxTokens))
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, classifyStatus(c.provider, apiErr.StatusCode, err)
		}
		return nil, fmt.Errorf("%s API call failed: %w", c.provider, err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("%s: %w", c.provider, ErrEmptyResponse)
	}

	return &GenerationResult{
		Content: strings.TrimSpace(completion.Choices[0].Message.Content),
		Usage: api.Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}, nil
}

// toOpenAIMessages converts our internal message slice to the SDK's union type.
func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}
