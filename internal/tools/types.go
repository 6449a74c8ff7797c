// In file: internal/tools/types.go

// Package tools defines the fixed set of capabilities the assistant's router
// can call while working on a question. Every tool has the same text-in,
// text-out contract so the router can treat them uniformly: it only needs a
// name to select one and a description to show the model.
package tools

import "context"

// Names of the three tools registered at startup. The router and the model
// prompt refer to tools only through these strings.
const (
	LookupToolName     = "Wikipedia"
	CalculatorToolName = "Calculator"
	ReasoningToolName  = "Reasoning Tool"
)

// Definition describes a tool to the model.
type Definition struct {
	// Name is the unique identifier the model uses to select the tool.
	Name string `json:"name"`
	// Description tells the model when the tool is useful. It is consumed by
	// the model's routing prompt, never by deterministic code.
	Description string `json:"description"`
}

// ToolExecutor defines the standard interface for any tool that can be
// executed by the assistant's router.
type ToolExecutor interface {
	// Definition returns the tool's name and description.
	Definition() Definition

	// Execute runs the tool on a free-text input and returns free text.
	// Failures are reported as *ExpressionError or *ExternalServiceError so
	// the router can turn them into context for its next decision.
	Execute(ctx context.Context, input string) (string, error)
}

// ToolFunc adapts a plain function into a ToolExecutor.
type ToolFunc struct {
	Def Definition
	Fn  func(ctx context.Context, input string) (string, error)
}

var _ ToolExecutor = ToolFunc{}

// Definition implements ToolExecutor.
func (f ToolFunc) Definition() Definition { return f.Def }

// Execute implements ToolExecutor.
func (f ToolFunc) Execute(ctx context.Context, input string) (string, error) {
	return f.Fn(ctx, input)
}
