package llm

import (
	"fmt"
	"strings"
)

// NewClient creates the client for a provider. baseURL overrides the
// provider's default endpoint and may be empty. model is only needed by
// providers that bind the model at construction time (Gemini); the others
// take it per request from GenerationConfig.
func NewClient(provider, apiKey, baseURL, model string) (LLMClient, error) {
	switch strings.ToLower(provider) {
	case ProviderGroq, "":
		if baseURL == "" {
			baseURL = groqBaseURL
		}
		return NewOpenAIClient(ProviderGroq, apiKey, baseURL)
	case ProviderOpenAI:
		return NewOpenAIClient(ProviderOpenAI, apiKey, baseURL)
	case ProviderMistral:
		if baseURL == "" {
			baseURL = mistralBaseURL
		}
		return NewOpenAIClient(ProviderMistral, apiKey, baseURL)
	case ProviderGemini:
		return NewGeminiClient(apiKey, model)
	case ProviderOllama:
		return NewOllamaClient(baseURL)
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey, baseURL)
	default:
		return nil, fmt.Errorf("unknown model provider %q", provider)
	}
}
