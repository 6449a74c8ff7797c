package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/zeeshanml/math-assistant/internal/session"
	"github.com/zeeshanml/math-assistant/internal/tools"
)

type fakeCompleter struct {
	replies []string
	err     error
	prompts []string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return reply, nil
}

var testDefs = []tools.Definition{
	{Name: tools.LookupToolName, Description: "Search Wikipedia for information."},
	{Name: tools.CalculatorToolName, Description: "Perform mathematical calculations."},
	{Name: tools.ReasoningToolName, Description: "Solve math problems."},
}

func TestBuildReActPrompt(t *testing.T) {
	dc := DecisionContext{
		Transcript: []session.Message{
			session.NewMessage(session.RoleAssistant, "Hi, how can I help?"),
			session.NewMessage(session.RoleUser, "What is 17 * 23?"),
		},
		Question: "What is 17 * 23?",
		Tools:    testDefs,
		Steps: []Step{
			{Tool: "Calculator", Input: "17 * 23", Output: "Answer: 391", Thought: " multiply\nAction: Calculator\nAction Input: 17 * 23"},
		},
	}
	prompt := BuildReActPrompt(dc)

	for _, want := range []string{
		"Calculator: Perform mathematical calculations.",
		"should be one of [Wikipedia, Calculator, Reasoning Tool]",
		"assistant: Hi, how can I help?",
		"Question: What is 17 * 23?\nThought: multiply\nAction: Calculator\nAction Input: 17 * 23\nObservation: Answer: 391\nThought:",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q\n---\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "user: What is 17 * 23?") {
		t.Error("the current question should not be repeated as a prior turn")
	}
	if !strings.HasSuffix(prompt, "Thought:") {
		t.Error("prompt should end with an open Thought")
	}
}

func TestReActDeciderResolvesToolNames(t *testing.T) {
	model := &fakeCompleter{replies: []string{"Action: calculator\nAction Input: 2+2"}}
	d := NewReActDecider(model)

	action, err := d.Decide(context.Background(), DecisionContext{Question: "2+2?", Tools: testDefs})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if action.Kind != ActionUseTool || action.Tool != tools.CalculatorToolName {
		t.Errorf("action = %+v, want Calculator", action)
	}
	if len(model.prompts) != 1 {
		t.Errorf("model called %d times", len(model.prompts))
	}
}

func TestReActDeciderWrapsModelErrors(t *testing.T) {
	d := NewReActDecider(&fakeCompleter{err: errors.New("rate limited")})
	_, err := d.Decide(context.Background(), DecisionContext{Question: "q", Tools: testDefs})
	var ext *tools.ExternalServiceError
	if !errors.As(err, &ext) {
		t.Fatalf("err = %v, want *ExternalServiceError", err)
	}
}

func TestReActDeciderDrivesRouter(t *testing.T) {
	model := &fakeCompleter{replies: []string{
		" I need to multiply.\nAction: Calculator\nAction Input: 17 * 23",
		" I now know the final answer\nFinal Answer: 391",
	}}
	calc := tools.NewCalculatorTool(nil)
	reg, err := tools.NewRegistry(calc)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	r, err := NewRouter(NewReActDecider(model), reg, DefaultConfig())
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	res, err := r.Run(context.Background(), nil, "What is 17 * 23?", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Answer != "391" || len(res.Steps) != 1 || res.Steps[0].Output != "Answer: 391" {
		t.Fatalf("result = %+v", res)
	}
	if !strings.Contains(model.prompts[1], "Observation: Answer: 391") {
		t.Errorf("second prompt lacks the observation:\n%s", model.prompts[1])
	}
}

func TestReActDeciderRecoversFromMisnamedTool(t *testing.T) {
	model := &fakeCompleter{replies: []string{
		" I should multiply.\nAction: multiply\nAction Input: 17 * 23",
		" Let me use the calculator.\nAction: Calculator\nAction Input: 17 * 23",
		" I now know the final answer\nFinal Answer: 391",
	}}
	reg, err := tools.NewRegistry(
		tools.NewLookupTool(nil),
		tools.NewCalculatorTool(nil),
		tools.NewReasoningTool(nil),
	)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	r, err := NewRouter(NewReActDecider(model), reg, DefaultConfig())
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	res, err := r.Run(context.Background(), nil, "What is 17 * 23?", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.State != StateAnswered || res.Answer != "391" || res.Decisions != 3 || len(res.Steps) != 2 {
		t.Fatalf("result = %+v", res)
	}
	if !res.Steps[0].Failed || res.Steps[1].Output != "Answer: 391" {
		t.Errorf("steps = %+v", res.Steps)
	}
	want := "Observation: multiply is not a valid tool, try one of [Wikipedia, Calculator, Reasoning Tool]."
	if !strings.Contains(model.prompts[1], want) {
		t.Errorf("second prompt lacks the invalid tool observation:\n%s", model.prompts[1])
	}
}
