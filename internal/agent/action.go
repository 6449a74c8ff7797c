// Package agent implements the turn loop that decides, step by step, whether
// to call a tool or to answer the user.
//
// The loop is an explicit state machine (Thinking, AwaitingToolResult,
// Answered, Failed). The decision in each Thinking step is delegated to a
// Decider so that the control flow can be exercised without a real model.
package agent

import "fmt"

// ActionKind tags the variant held by an Action.
type ActionKind int

const (
	// ActionUseTool asks the router to invoke Tool with Input.
	ActionUseTool ActionKind = iota
	// ActionFinalAnswer ends the turn with Answer.
	ActionFinalAnswer
	// ActionUnparsable carries model output that matched neither form.
	ActionUnparsable
)

func (k ActionKind) String() string {
	switch k {
	case ActionUseTool:
		return "use_tool"
	case ActionFinalAnswer:
		return "final_answer"
	case ActionUnparsable:
		return "unparsable"
	default:
		return fmt.Sprintf("ActionKind(%d)", int(k))
	}
}

// Action is the outcome of one decision.
type Action struct {
	Kind   ActionKind
	Tool   string
	Input  string
	Answer string
	Raw    string

	// Log is the model text that led to the action. The ReAct decider replays
	// it in later prompts; other deciders may leave it empty.
	Log string
}

// UseTool builds an ActionUseTool.
func UseTool(name, input string) Action {
	return Action{Kind: ActionUseTool, Tool: name, Input: input}
}

// FinalAnswer builds an ActionFinalAnswer.
func FinalAnswer(text string) Action {
	return Action{Kind: ActionFinalAnswer, Answer: text}
}

// Unparsable builds an ActionUnparsable.
func Unparsable(raw string) Action {
	return Action{Kind: ActionUnparsable, Raw: raw}
}
