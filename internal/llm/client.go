// In file: internal/llm/client.go

// Package llm contains the clients for the hosted language models the
// assistant talks to, plus the small amount of shared plumbing around them
// (error classification, usage profiling, the prompt-in/text-out adapter).
package llm

import (
	"context"

	"github.com/zeeshanml/math-assistant/internal/api"
)

// =================================================================================
// Core Data Structures
// =================================================================================

// Role represents the originator of a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single message sent to a model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// GenerationConfig holds the parameters that control a generation call.
type GenerationConfig struct {
	// The specific model to use for the generation (e.g., "gemma2-9b-it").
	Model string
	// Controls randomness. A nil pointer leaves the provider default.
	Temperature *float32
	// The maximum number of tokens to generate in the response.
	MaxTokens int
}

// GenerationResult holds the complete output of a model call.
type GenerationResult struct {
	// The generated text content from the model.
	Content string
	// Token usage statistics for the generation request.
	Usage api.Usage
}

// =================================================================================
// LLM Client Interface
// =================================================================================

// LLMClient is the interface every model client implements. The assistant
// only ever needs complete responses: every router decision depends on the
// whole of the previous one.
type LLMClient interface {
	// Generate performs a blocking request with the full message list and
	// returns the complete result.
	Generate(ctx context.Context, messages []Message, config *GenerationConfig) (*GenerationResult, error)

	// Provider returns the provider identifier ("groq", "gemini", ...).
	Provider() string

	// Close releases the client's connections. The client is unusable after.
	Close() error
}
