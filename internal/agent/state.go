package agent

import (
	"errors"

	"github.com/zeeshanml/math-assistant/internal/api"
)

// State is a router state.
type State string

const (
	StateThinking           State = "thinking"
	StateAwaitingToolResult State = "awaiting_tool_result"
	StateAnswered           State = "answered"
	StateFailed             State = "failed"
)

// Terminal reports whether no further transition is possible from s.
func (s State) Terminal() bool {
	return s == StateAnswered || s == StateFailed
}

var (
	// ErrStepLimitExceeded ends a turn whose model never settled on an answer.
	ErrStepLimitExceeded = errors.New("step limit exceeded")

	// ErrUnparsableOutput ends a turn when the model reply could not be read
	// and parse errors are not treated as answers.
	ErrUnparsableOutput = errors.New("could not parse model output")
)

// Step is one tool call made during a turn. A failed call keeps the error
// text as its output.
type Step struct {
	Tool    string
	Input   string
	Output  string
	Failed  bool
	Thought string
}

// APIStep converts the step to its wire form.
func (s Step) APIStep() api.Step {
	return api.Step{Tool: s.Tool, Input: s.Input, Output: s.Output, Failed: s.Failed}
}

// Result is the outcome of one turn. It is returned for failed turns too, so
// the caller can show the steps that were taken.
type Result struct {
	State     State
	Answer    string
	Steps     []Step
	Decisions int
	Err       error
}

// APISteps converts all steps to their wire form.
func (r *Result) APISteps() []api.Step {
	steps := make([]api.Step, len(r.Steps))
	for i, s := range r.Steps {
		steps[i] = s.APIStep()
	}
	return steps
}
