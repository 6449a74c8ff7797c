// Package session keeps the transcript of one conversation.
//
// A transcript starts with a single assistant greeting and is append-only
// after that. Each session owns its own Store; nothing is shared between
// sessions.
package session

import (
	"context"
	"errors"
	"time"
)

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversational turn. Messages are never modified once
// appended.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessage stamps a message with the current time.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content, CreatedAt: time.Now().UTC()}
}

// ErrEmptyContent is returned by Append for a message with no content.
var ErrEmptyContent = errors.New("message content is empty")

// Store holds the transcript of one session.
type Store interface {
	// Initialize seeds an empty transcript with an assistant greeting. It is
	// a no-op when the transcript already exists.
	Initialize(ctx context.Context, greeting string) error

	// Append adds a message to the end of the transcript.
	Append(ctx context.Context, msg Message) error

	// All returns the transcript in creation order. The returned slice is a
	// copy owned by the caller.
	All(ctx context.Context) ([]Message, error)

	// Destroy drops the transcript. The store may be initialized again.
	Destroy(ctx context.Context) error
}
