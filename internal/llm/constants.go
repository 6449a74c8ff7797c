// In file: internal/llm/constants.go
package llm

import "time"

// This file centralizes constants shared across multiple clients and services
// in the llm package.
const (
	defaultTimeout    = 120 * time.Second
	maxRetries        = 3
	initialRetryDelay = 2 * time.Second
	defaultMaxTokens  = 1024
)

// Supported providers. Groq, OpenAI and Mistral all speak the OpenAI chat
// completions protocol and share one client implementation.
const (
	ProviderGroq      = "groq"
	ProviderOpenAI    = "openai"
	ProviderMistral   = "mistral"
	ProviderGemini    = "gemini"
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
)

// Base URLs for the OpenAI-compatible providers.
const (
	groqBaseURL    = "https://api.groq.com/openai/v1"
	mistralBaseURL = "https://api.mistral.ai/v1"
)

// DefaultModel is the model the assistant uses when none is configured.
const DefaultModel = "gemma2-9b-it"
