package session

import (
	"context"
	"sync"
)

// MemoryStore keeps the transcript in process memory.
type MemoryStore struct {
	mu          sync.RWMutex
	messages    []Message
	initialized bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty, uninitialized store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Initialize(_ context.Context, greeting string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return nil
	}
	s.messages = []Message{NewMessage(RoleAssistant, greeting)}
	s.initialized = true
	return nil
}

func (s *MemoryStore) Append(_ context.Context, msg Message) error {
	if msg.Content == "" {
		return ErrEmptyContent
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

func (s *MemoryStore) All(_ context.Context) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out, nil
}

func (s *MemoryStore) Destroy(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.initialized = false
	return nil
}
