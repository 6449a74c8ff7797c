package agent

import (
	"context"

	"github.com/zeeshanml/math-assistant/internal/tools"
)

// ReActDecider asks a language model for the next step using the zero-shot
// ReAct prompt and parses its reply.
type ReActDecider struct {
	model tools.Completer
}

var _ Decider = (*ReActDecider)(nil)

// NewReActDecider creates a decider backed by model.
func NewReActDecider(model tools.Completer) *ReActDecider {
	return &ReActDecider{model: model}
}

// Decide implements Decider. Transport and authentication failures are
// returned as *tools.ExternalServiceError.
func (d *ReActDecider) Decide(ctx context.Context, dc DecisionContext) (Action, error) {
	reply, err := d.model.Complete(ctx, BuildReActPrompt(dc))
	if err != nil {
		return Action{}, &tools.ExternalServiceError{Service: "language model", Err: err}
	}

	action := ParseReAct(reply)
	if action.Kind == ActionUseTool {
		action.Tool = resolveToolName(action.Tool, dc.Tools)
	}
	return action, nil
}
