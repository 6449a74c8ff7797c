package agent

import (
	"regexp"
	"strings"
)

const (
	finalAnswerMarker = "Final Answer:"
	observationMarker = "Observation:"
)

var actionRegex = regexp.MustCompile(`(?s)Action\s*\d*\s*:[\s]*(.*?)[\s]*Action\s*\d*\s*Input\s*\d*\s*:[\s]*(.*)`)

// ParseReAct reads a reply written in the Thought/Action/Action Input format.
// Models often keep going and invent an Observation themselves; everything
// from the first Observation line on is discarded.
func ParseReAct(text string) Action {
	cut := text
	if idx := strings.Index(cut, "\n"+observationMarker); idx >= 0 {
		cut = cut[:idx]
	} else if strings.HasPrefix(strings.TrimSpace(cut), observationMarker) {
		return Unparsable(text)
	}

	finalIdx := strings.Index(cut, finalAnswerMarker)
	m := actionRegex.FindStringSubmatch(cut)

	// A reply that both calls a tool and answers is ambiguous; the model has
	// to pick one.
	if m != nil && finalIdx >= 0 {
		return Unparsable(strings.TrimSpace(text))
	}

	if m != nil {
		name := strings.TrimSpace(m[1])
		input := strings.Trim(strings.TrimSpace(m[2]), `"`)
		if name == "" {
			return Unparsable(text)
		}
		action := UseTool(name, input)
		action.Log = strings.TrimRight(cut, " \n")
		return action
	}

	if finalIdx >= 0 {
		answer := strings.TrimSpace(cut[finalIdx+len(finalAnswerMarker):])
		if answer == "" {
			return Unparsable(strings.TrimSpace(text))
		}
		action := FinalAnswer(answer)
		action.Log = cut
		return action
	}
	return Unparsable(strings.TrimSpace(text))
}
