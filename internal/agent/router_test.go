package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/zeeshanml/math-assistant/internal/session"
	"github.com/zeeshanml/math-assistant/internal/tools"
)

// scriptedDecider replays a fixed list of actions and records every context
// it was asked to decide on.
type scriptedDecider struct {
	actions []Action
	seen    []DecisionContext
}

func (d *scriptedDecider) Decide(_ context.Context, dc DecisionContext) (Action, error) {
	d.seen = append(d.seen, dc)
	if len(d.actions) == 0 {
		return Action{}, errors.New("script exhausted")
	}
	a := d.actions[0]
	d.actions = d.actions[1:]
	return a, nil
}

func newTestRegistry(t *testing.T, calc func(context.Context, string) (string, error)) *tools.Registry {
	t.Helper()
	echo := func(_ context.Context, in string) (string, error) { return "echo: " + in, nil }
	if calc == nil {
		calc = echo
	}
	reg, err := tools.NewRegistry(
		tools.ToolFunc{Def: tools.Definition{Name: tools.LookupToolName, Description: "Search Wikipedia for information."}, Fn: echo},
		tools.ToolFunc{Def: tools.Definition{Name: tools.CalculatorToolName, Description: "Perform mathematical calculations."}, Fn: calc},
		tools.ToolFunc{Def: tools.Definition{Name: tools.ReasoningToolName, Description: "Solve math problems."}, Fn: echo},
	)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

func newTestRouter(t *testing.T, d Decider, reg Toolbox, cfg Config) *Router {
	t.Helper()
	r, err := NewRouter(d, reg, cfg)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return r
}

func TestRouterStepLimit(t *testing.T) {
	for _, maxSteps := range []int{1, 3, 15} {
		calls := 0
		decider := DeciderFunc(func(context.Context, DecisionContext) (Action, error) {
			calls++
			return UseTool(tools.CalculatorToolName, "1 + 1"), nil
		})
		toolRuns := 0
		reg := newTestRegistry(t, func(context.Context, string) (string, error) {
			toolRuns++
			return "Answer: 2", nil
		})
		r := newTestRouter(t, decider, reg, Config{MaxSteps: maxSteps, HandleParseErrors: true})

		res, err := r.Run(context.Background(), nil, "loop forever", nil)
		if !errors.Is(err, ErrStepLimitExceeded) {
			t.Fatalf("max=%d: err = %v, want ErrStepLimitExceeded", maxSteps, err)
		}
		if res.State != StateFailed {
			t.Errorf("max=%d: state = %s, want failed", maxSteps, res.State)
		}
		if calls != maxSteps || res.Decisions != maxSteps {
			t.Errorf("max=%d: decider called %d times (result says %d), want %d", maxSteps, calls, res.Decisions, maxSteps)
		}
		if toolRuns != maxSteps || len(res.Steps) != maxSteps {
			t.Errorf("max=%d: %d tool runs, %d steps, want %d", maxSteps, toolRuns, len(res.Steps), maxSteps)
		}
	}
}

func TestRouterDefaultStepLimit(t *testing.T) {
	r := newTestRouter(t, DeciderFunc(func(context.Context, DecisionContext) (Action, error) {
		return FinalAnswer("x"), nil
	}), newTestRegistry(t, nil), Config{})
	if got := r.Config().MaxSteps; got != DefaultMaxSteps {
		t.Errorf("MaxSteps = %d, want %d", got, DefaultMaxSteps)
	}
}

func TestRouterToolFailureIsNotFatal(t *testing.T) {
	failures := 0
	reg := newTestRegistry(t, func(_ context.Context, in string) (string, error) {
		failures++
		return "", &tools.ExpressionError{Input: in, Err: errors.New("unexpected token")}
	})
	decider := &scriptedDecider{actions: []Action{
		UseTool(tools.CalculatorToolName, "seventeen times"),
		FinalAnswer("I could not compute it, but the answer is 391."),
	}}
	r := newTestRouter(t, decider, reg, DefaultConfig())

	res, err := r.Run(context.Background(), nil, "What is 17 * 23?", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.State != StateAnswered {
		t.Fatalf("state = %s, want answered", res.State)
	}
	if failures != 1 {
		t.Errorf("tool ran %d times, want 1", failures)
	}
	if len(res.Steps) != 1 || !res.Steps[0].Failed {
		t.Fatalf("steps = %+v, want one failed step", res.Steps)
	}
	if !strings.Contains(res.Steps[0].Output, "unexpected token") {
		t.Errorf("failed step output = %q, want the error text", res.Steps[0].Output)
	}
	// The second decision must see the failure as context.
	if len(decider.seen) != 2 || len(decider.seen[1].Steps) != 1 {
		t.Fatalf("second decision did not receive the failed step: %+v", decider.seen)
	}
}

func TestRouterPureCalculation(t *testing.T) {
	reg := newTestRegistry(t, func(_ context.Context, in string) (string, error) {
		if in != "17 * 23" {
			t.Errorf("calculator input = %q", in)
		}
		return "391", nil
	})
	decider := DeciderFunc(func(_ context.Context, dc DecisionContext) (Action, error) {
		if len(dc.Steps) == 0 {
			return UseTool(tools.CalculatorToolName, "17 * 23"), nil
		}
		return FinalAnswer("17 * 23 = " + dc.Steps[0].Output), nil
	})
	r := newTestRouter(t, decider, reg, DefaultConfig())

	transcript := []session.Message{
		session.NewMessage(session.RoleAssistant, "Hi, I'm your math problem solving assistant. How can I help you today?"),
		session.NewMessage(session.RoleUser, "What is 17 * 23?"),
	}
	res, err := r.Run(context.Background(), transcript, "What is 17 * 23?", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.State != StateAnswered || !strings.Contains(res.Answer, "391") {
		t.Fatalf("result = %+v, want answered with 391", res)
	}
	if len(res.Steps) != 1 || res.Steps[0].Tool != tools.CalculatorToolName {
		t.Errorf("steps = %+v", res.Steps)
	}
}

func TestRouterNoToolsNeeded(t *testing.T) {
	decider := &scriptedDecider{actions: []Action{
		FinalAnswer("Write them as 2a and 2b; the sum is 2(a+b), which is even."),
	}}
	r := newTestRouter(t, decider, newTestRegistry(t, nil), DefaultConfig())

	res, err := r.Run(context.Background(), nil, "Explain why the sum of two even numbers is even.", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.State != StateAnswered {
		t.Fatalf("state = %s", res.State)
	}
	if res.Decisions != 1 || len(decider.seen) != 1 {
		t.Errorf("decisions = %d, want 1", res.Decisions)
	}
	if len(res.Steps) != 0 {
		t.Errorf("steps = %+v, want none", res.Steps)
	}
}

func TestRouterInventedToolNameIsFedBack(t *testing.T) {
	decider := &scriptedDecider{actions: []Action{UseTool("Spreadsheet", "A1+B1"), FinalAnswer("done")}}
	r := newTestRouter(t, decider, newTestRegistry(t, nil), DefaultConfig())

	var kinds []EventKind
	res, err := r.Run(context.Background(), nil, "q", func(ev Event) { kinds = append(kinds, ev.Kind) })
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.State != StateAnswered || res.Answer != "done" || res.Decisions != 2 {
		t.Fatalf("result = %+v", res)
	}
	if len(res.Steps) != 1 {
		t.Fatalf("steps = %+v", res.Steps)
	}
	step := res.Steps[0]
	want := "Spreadsheet is not a valid tool, try one of [Wikipedia, Calculator, Reasoning Tool]."
	if !step.Failed || step.Tool != "Spreadsheet" || step.Output != want {
		t.Errorf("step = %+v", step)
	}
	if got := decider.seen[1].Steps; len(got) != 1 || got[0].Output != want {
		t.Errorf("second decision saw %+v", got)
	}
	for _, k := range kinds {
		if k == EventToolStart {
			t.Errorf("events = %v, no tool should have started", kinds)
		}
	}
}

func TestRouterInventedToolNamesCountTowardsStepLimit(t *testing.T) {
	decider := DeciderFunc(func(context.Context, DecisionContext) (Action, error) {
		return UseTool("multiply", "17 * 23"), nil
	})
	r := newTestRouter(t, decider, newTestRegistry(t, nil), Config{MaxSteps: 2})

	res, err := r.Run(context.Background(), nil, "q", nil)
	if !errors.Is(err, ErrStepLimitExceeded) {
		t.Fatalf("err = %v, want ErrStepLimitExceeded", err)
	}
	if len(res.Steps) != 2 {
		t.Errorf("steps = %+v", res.Steps)
	}
}

// driftingToolbox offers a tool its registry cannot find.
type driftingToolbox struct {
	*tools.Registry
}

func (d driftingToolbox) GetDefinitions() []tools.Definition {
	return append(d.Registry.GetDefinitions(), tools.Definition{Name: "Spreadsheet", Description: "Gone."})
}

func TestRouterOfferedButMissingToolIsFatal(t *testing.T) {
	decider := &scriptedDecider{actions: []Action{UseTool("Spreadsheet", "A1+B1"), FinalAnswer("never")}}
	r := newTestRouter(t, decider, driftingToolbox{newTestRegistry(t, nil)}, DefaultConfig())

	res, err := r.Run(context.Background(), nil, "q", nil)
	if !errors.Is(err, tools.ErrUnknownTool) {
		t.Fatalf("err = %v, want ErrUnknownTool", err)
	}
	if res.State != StateFailed || len(res.Steps) != 0 || res.Decisions != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestRouterUnparsableOutput(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		lenient   bool
		wantState State
		wantErr   error
	}{
		{"lenient policy answers verbatim", "The answer is probably 42", true, StateAnswered, nil},
		{"strict policy fails", "The answer is probably 42", false, StateFailed, ErrUnparsableOutput},
		{"blank output fails even when lenient", "  \n", true, StateFailed, ErrUnparsableOutput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decider := &scriptedDecider{actions: []Action{Unparsable(tt.raw)}}
			r := newTestRouter(t, decider, newTestRegistry(t, nil), Config{MaxSteps: 5, HandleParseErrors: tt.lenient})

			res, err := r.Run(context.Background(), nil, "q", nil)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if res.State != tt.wantState {
				t.Errorf("state = %s, want %s", res.State, tt.wantState)
			}
			if tt.wantState == StateAnswered && res.Answer != tt.raw {
				t.Errorf("answer = %q", res.Answer)
			}
		})
	}
}

func TestRouterDeciderErrorIsFatal(t *testing.T) {
	boom := &tools.ExternalServiceError{Service: "language model", Err: errors.New("401 unauthorized")}
	decider := DeciderFunc(func(context.Context, DecisionContext) (Action, error) {
		return Action{}, boom
	})
	r := newTestRouter(t, decider, newTestRegistry(t, nil), DefaultConfig())

	res, err := r.Run(context.Background(), nil, "q", nil)
	var ext *tools.ExternalServiceError
	if !errors.As(err, &ext) {
		t.Fatalf("err = %v, want *ExternalServiceError", err)
	}
	if res.State != StateFailed {
		t.Errorf("state = %s", res.State)
	}
}

func TestRouterCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	decider := &scriptedDecider{actions: []Action{FinalAnswer("x")}}
	r := newTestRouter(t, decider, newTestRegistry(t, nil), DefaultConfig())

	res, err := r.Run(ctx, nil, "q", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if res.State != StateFailed || len(decider.seen) != 0 {
		t.Errorf("result = %+v, decider calls = %d", res, len(decider.seen))
	}
}

func TestRouterObserverEvents(t *testing.T) {
	decider := &scriptedDecider{actions: []Action{
		UseTool(tools.LookupToolName, "Pythagorean theorem"),
		FinalAnswer("a^2 + b^2 = c^2"),
	}}
	r := newTestRouter(t, decider, newTestRegistry(t, nil), DefaultConfig())

	var kinds []EventKind
	var states []State
	_, err := r.Run(context.Background(), nil, "q", func(ev Event) {
		kinds = append(kinds, ev.Kind)
		states = append(states, ev.State)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantKinds := []EventKind{EventDecision, EventToolStart, EventStep, EventAnswer}
	wantStates := []State{StateAwaitingToolResult, StateAwaitingToolResult, StateThinking, StateAnswered}
	if len(kinds) != len(wantKinds) {
		t.Fatalf("events = %v, want %v", kinds, wantKinds)
	}
	for i := range wantKinds {
		if kinds[i] != wantKinds[i] || states[i] != wantStates[i] {
			t.Errorf("event %d = (%s, %s), want (%s, %s)", i, kinds[i], states[i], wantKinds[i], wantStates[i])
		}
	}
}

func TestNewRouterRequiresCollaborators(t *testing.T) {
	if _, err := NewRouter(nil, newTestRegistry(t, nil), DefaultConfig()); err == nil {
		t.Error("expected error for nil decider")
	}
	if _, err := NewRouter(&scriptedDecider{}, nil, DefaultConfig()); err == nil {
		t.Error("expected error for nil toolbox")
	}
}
