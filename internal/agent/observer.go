package agent

import "github.com/zeeshanml/math-assistant/internal/api"

// EventKind names an observable moment in a turn.
type EventKind string

const (
	EventDecision  EventKind = "decision"
	EventToolStart EventKind = "tool_start"
	EventStep      EventKind = "step"
	EventAnswer    EventKind = "answer"
	EventFailed    EventKind = "error"
)

// Event is passed to an Observer as the turn progresses.
type Event struct {
	Kind   EventKind
	State  State
	Tool   string
	Input  string
	Step   *Step
	Answer string
	Err    error
}

// Observer receives events synchronously from the goroutine running the
// turn. It must not block for long.
type Observer func(Event)

// Frame converts the event to its websocket form.
func (e Event) Frame() api.StreamFrame {
	frame := api.StreamFrame{
		Type:  string(e.Kind),
		State: string(e.State),
		Tool:  e.Tool,
		Input: e.Input,
	}
	switch e.Kind {
	case EventStep:
		if e.Step != nil {
			s := e.Step.APIStep()
			frame.Step = &s
		}
	case EventAnswer:
		frame.Content = e.Answer
	case EventFailed:
		if e.Err != nil {
			frame.Content = e.Err.Error()
		}
	}
	return frame
}
