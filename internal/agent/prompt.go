package agent

import (
	"fmt"
	"strings"

	"github.com/zeeshanml/math-assistant/internal/session"
	"github.com/zeeshanml/math-assistant/internal/tools"
)

const promptPrefix = "Answer the following questions as best you can. You have access to the following tools:"

const formatInstructions = `Use the following format:

Question: the input question you must answer
Thought: you should always think about what to do
Action: the action to take, should be one of [%s]
Action Input: the input to the action
Observation: the result of the action
... (this Thought/Action/Action Input/Observation can repeat N times)
Thought: I now know the final answer
Final Answer: the final answer to the original input question`

const promptSuffix = "Begin!"

// BuildReActPrompt renders the zero-shot prompt for one decision: the tool
// list, the format instructions, the earlier conversation, the question and
// the scratchpad of steps taken so far.
func BuildReActPrompt(dc DecisionContext) string {
	var b strings.Builder

	b.WriteString(promptPrefix)
	b.WriteString("\n\n")
	names := make([]string, len(dc.Tools))
	for i, def := range dc.Tools {
		names[i] = def.Name
		fmt.Fprintf(&b, "%s: %s\n", def.Name, def.Description)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, formatInstructions, strings.Join(names, ", "))
	b.WriteString("\n\n")
	b.WriteString(promptSuffix)
	b.WriteString("\n\n")

	if history := priorTurns(dc.Transcript, dc.Question); len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, msg := range history {
			fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Question: %s\n", dc.Question)
	b.WriteString("Thought:")
	b.WriteString(scratchpad(dc.Steps))
	return b.String()
}

// priorTurns drops the trailing user message when it is the question itself,
// which is the case when the caller appended it before running the turn.
func priorTurns(transcript []session.Message, question string) []session.Message {
	n := len(transcript)
	if n > 0 && transcript[n-1].Role == session.RoleUser && transcript[n-1].Content == question {
		return transcript[:n-1]
	}
	return transcript
}

func scratchpad(steps []Step) string {
	var b strings.Builder
	for _, s := range steps {
		thought := s.Thought
		if thought == "" {
			thought = fmt.Sprintf("\nAction: %s\nAction Input: %s", s.Tool, s.Input)
		}
		if !strings.HasPrefix(thought, " ") && !strings.HasPrefix(thought, "\n") {
			thought = " " + thought
		}
		b.WriteString(thought)
		fmt.Fprintf(&b, "\nObservation: %s\nThought:", s.Output)
	}
	return b.String()
}

// resolveToolName matches a model-written tool name against the registered
// names ignoring case and surrounding brackets or quotes.
func resolveToolName(name string, defs []tools.Definition) string {
	clean := strings.Trim(strings.TrimSpace(name), "[]`\"'")
	for _, def := range defs {
		if strings.EqualFold(def.Name, clean) {
			return def.Name
		}
	}
	return name
}
