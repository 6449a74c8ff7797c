package llm

import (
	"context"
	"time"
)

// TextModel binds a client to one generation config so that callers who only
// need "prompt in, text out" do not have to know about message lists. Every
// call is recorded in the profiler.
type TextModel struct {
	client   LLMClient
	config   GenerationConfig
	profiler *Profiler
}

// NewTextModel creates a TextModel. profiler may be nil.
func NewTextModel(client LLMClient, config GenerationConfig, profiler *Profiler) *TextModel {
	return &TextModel{client: client, config: config, profiler: profiler}
}

// Model returns the configured model ID.
func (m *TextModel) Model() string { return m.config.Model }

// Close closes the underlying client.
func (m *TextModel) Close() error { return m.client.Close() }

// Complete sends prompt as a single user message and returns the reply text.
func (m *TextModel) Complete(ctx context.Context, prompt string) (string, error) {
	result, err := m.Chat(ctx, []Message{{Role: RoleUser, Content: prompt}})
	if err != nil {
		return "", err
	}
	return result.Content, nil
}

// Chat sends a full message list and returns the complete result.
func (m *TextModel) Chat(ctx context.Context, messages []Message) (*GenerationResult, error) {
	start := time.Now()
	cfg := m.config
	result, err := m.client.Generate(ctx, messages, &cfg)
	if err != nil {
		m.profiler.UpdateProfileOnFailure(ctx, m.config.Model)
		return nil, err
	}
	m.profiler.UpdateProfileOnSuccess(ctx, m.config.Model, time.Since(start), result.Usage)
	return result, nil
}
