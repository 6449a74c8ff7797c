package tools

import (
	"context"
	"fmt"
	"strings"
)

// reasoningPromptTemplate is the fixed step-by-step prompt. %s is the question.
const reasoningPromptTemplate = `
You are a helpful assistant. Your task is to solve user's math problems.
Logically arrive at the solution and provide a detailed explanation and
display it point wise for the question below:
Question: %s
Answer:
`

// ReasoningTool asks the language model to work a problem out step by step.
type ReasoningTool struct {
	model Completer
}

var _ ToolExecutor = (*ReasoningTool)(nil)

// NewReasoningTool creates a reasoning tool backed by model.
func NewReasoningTool(model Completer) *ReasoningTool {
	return &ReasoningTool{model: model}
}

// Definition implements ToolExecutor.
func (rt *ReasoningTool) Definition() Definition {
	return Definition{
		Name:        ReasoningToolName,
		Description: "Solve math problems.",
	}
}

// Execute formats the prompt and returns the model's raw answer.
func (rt *ReasoningTool) Execute(ctx context.Context, input string) (string, error) {
	reply, err := rt.model.Complete(ctx, FormatReasoningPrompt(input))
	if err != nil {
		return "", &ExternalServiceError{Service: "reasoning model", Err: err}
	}
	return reply, nil
}

// FormatReasoningPrompt renders the reasoning template for a question.
func FormatReasoningPrompt(question string) string {
	return fmt.Sprintf(reasoningPromptTemplate, strings.TrimSpace(question))
}
