// Package api holds the wire types shared between the web layer and the
// internal services: the JSON request and response bodies of the HTTP API
// and the token accounting reported by model clients.
package api

// Usage holds token accounting for one or more model calls.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Message is one transcript entry as exposed over the API.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AskRequest is the body of POST /api/v1/ask and of a websocket question frame.
type AskRequest struct {
	Question string `json:"question" binding:"required"`
}

// CredentialRequest is the body of POST /api/v1/credential.
type CredentialRequest struct {
	APIKey string `json:"api_key" binding:"required"`
}

// Step is one recorded tool call of a turn.
type Step struct {
	Tool   string `json:"tool"`
	Input  string `json:"input"`
	Output string `json:"output"`
	Failed bool   `json:"failed,omitempty"`
}

// AskResponse is the result of one turn.
type AskResponse struct {
	Answer    string `json:"answer"`
	State     string `json:"state"`
	Error     string `json:"error,omitempty"`
	Steps     []Step `json:"steps"`
	Decisions int    `json:"decisions"`
	LatencyMS int64  `json:"latency_ms"`
}

// TranscriptResponse is the body of GET /api/v1/transcript.
type TranscriptResponse struct {
	SessionID     string    `json:"session_id"`
	HasCredential bool      `json:"has_credential"`
	Messages      []Message `json:"messages"`
}

// StreamFrame is one websocket message sent while a turn is running.
type StreamFrame struct {
	// Type is "decision", "tool_start", "step", "answer" or "error".
	Type    string `json:"type"`
	State   string `json:"state,omitempty"`
	Step    *Step  `json:"step,omitempty"`
	Tool    string `json:"tool,omitempty"`
	Input   string `json:"input,omitempty"`
	Content string `json:"content,omitempty"`
}
