package assistant

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/zeeshanml/math-assistant/internal/session"
)

// StoreFactory creates the transcript store for a new session.
type StoreFactory func(sessionID string) session.Store

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	NewStore StoreFactory
	Build    RouterBuilder
	Settings Settings

	// IdleTTL is how long an unused session is kept. Zero disables eviction.
	IdleTTL time.Duration

	// DefaultAPIKey, when set, is applied to every new session so the UI
	// starts out ready. A key entered in the UI still replaces it.
	DefaultAPIKey string
}

// Manager maps session IDs to conversations. Sessions share nothing but the
// router builder.
type Manager struct {
	cfg ManagerConfig

	mu    sync.Mutex
	convs map[string]*Conversation
}

// NewManager creates an empty manager. A nil NewStore keeps transcripts in
// memory.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.NewStore == nil {
		cfg.NewStore = func(string) session.Store { return session.NewMemoryStore() }
	}
	return &Manager{cfg: cfg, convs: make(map[string]*Conversation)}
}

// Get returns the conversation for id, creating it on first use.
func (m *Manager) Get(id string) *Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conv, ok := m.convs[id]; ok {
		return conv
	}

	conv := NewConversation(id, m.cfg.NewStore(id), m.cfg.Build, m.cfg.Settings)
	if m.cfg.DefaultAPIKey != "" {
		if err := conv.SetCredential(m.cfg.DefaultAPIKey); err != nil {
			log.Printf("⚠️ Default credential rejected for session %s: %v", shortID(id), err)
		}
	}
	m.convs[id] = conv
	return conv
}

// Lookup returns the conversation for id without creating one.
func (m *Manager) Lookup(id string) (*Conversation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.convs[id]
	return conv, ok
}

// Remove closes and forgets a session. A session answering a question is
// kept and ErrBusy returned.
func (m *Manager) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	conv, ok := m.convs[id]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	if !conv.busy.CompareAndSwap(false, true) {
		m.mu.Unlock()
		return ErrBusy
	}
	delete(m.convs, id)
	m.mu.Unlock()

	defer conv.busy.Store(false)
	return conv.teardown(ctx)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.convs)
}

// EvictIdle closes every session that has been idle longer than IdleTTL at
// now and is not answering a question. It returns the number evicted.
func (m *Manager) EvictIdle(ctx context.Context, now time.Time) int {
	if m.cfg.IdleTTL <= 0 {
		return 0
	}

	// The guard is taken while the map is locked, so a turn cannot start
	// on a session between being picked and being dropped.
	var idle []*Conversation
	m.mu.Lock()
	for id, conv := range m.convs {
		if now.Sub(conv.idleSince()) < m.cfg.IdleTTL {
			continue
		}
		if !conv.busy.CompareAndSwap(false, true) {
			continue
		}
		idle = append(idle, conv)
		delete(m.convs, id)
	}
	m.mu.Unlock()

	for _, conv := range idle {
		if err := conv.teardown(ctx); err != nil {
			log.Printf("⚠️ Failed to close session %s: %v", shortID(conv.ID()), err)
		}
		conv.busy.Store(false)
	}
	return len(idle)
}

// RunJanitor evicts idle sessions every interval until ctx is done.
func (m *Manager) RunJanitor(ctx context.Context, interval time.Duration) {
	if m.cfg.IdleTTL <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Println("🧹 Session janitor started.")
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := m.EvictIdle(ctx, now); n > 0 {
				log.Printf("🧹 Evicted %d idle sessions, %d remain.", n, m.Len())
			}
		}
	}
}
