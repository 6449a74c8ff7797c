// Package assistant ties one browser session's transcript to a router and
// runs question turns against it.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeeshanml/math-assistant/internal/agent"
	"github.com/zeeshanml/math-assistant/internal/api"
	"github.com/zeeshanml/math-assistant/internal/session"
)

const (
	DefaultGreeting      = "Hi, I'm your math problem solving assistant. How can I help you today?"
	DefaultFailureNotice = "Sorry, I couldn't work that one out. Please try asking again."

	// User-facing warnings for the two guard errors.
	EmptyQuestionWarning     = "Please enter a question."
	MissingCredentialWarning = "Please enter your API key."
)

var (
	// ErrEmptyQuestion is returned for a blank question. Nothing is recorded.
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrMissingCredential is returned while no API key has been supplied.
	ErrMissingCredential = errors.New("no API key has been supplied")

	// ErrBusy is returned when a turn is already running for the session.
	ErrBusy = errors.New("a question is already being answered")
)

// Runner runs one question turn. Close releases the model client behind it.
type Runner interface {
	Run(ctx context.Context, transcript []session.Message, question string, observer agent.Observer) (*agent.Result, error)
	Close() error
}

// RouterBuilder creates a Runner bound to an API key.
type RouterBuilder func(apiKey string) (Runner, error)

// Turn is the outcome of one Ask. A turn whose router failed is still a turn:
// Err is set and Answer holds the failure notice that was recorded.
type Turn struct {
	Question  string
	Answer    string
	State     agent.State
	Steps     []agent.Step
	Decisions int
	Err       error
	Latency   time.Duration
}

// Failed reports whether the router ended in the Failed state.
func (t *Turn) Failed() bool { return t.State == agent.StateFailed }

// Response converts the turn to its JSON form.
func (t *Turn) Response() api.AskResponse {
	resp := api.AskResponse{
		Answer:    t.Answer,
		State:     string(t.State),
		Steps:     make([]api.Step, len(t.Steps)),
		Decisions: t.Decisions,
		LatencyMS: t.Latency.Milliseconds(),
	}
	for i, s := range t.Steps {
		resp.Steps[i] = s.APIStep()
	}
	if t.Err != nil {
		resp.Error = t.Err.Error()
	}
	return resp
}

// Conversation is one session: its transcript, its credential-bound router
// and the last turn for display. Only one turn runs at a time.
type Conversation struct {
	id            string
	store         session.Store
	build         RouterBuilder
	greeting      string
	failureNotice string

	busy atomic.Bool

	mu       sync.Mutex
	runner   Runner
	lastTurn *Turn
	lastUsed time.Time
}

// NewConversation creates a conversation over store. build is called each
// time a credential is set.
func NewConversation(id string, store session.Store, build RouterBuilder, settings Settings) *Conversation {
	settings = settings.withDefaults()
	return &Conversation{
		id:            id,
		store:         store,
		build:         build,
		greeting:      settings.Greeting,
		failureNotice: settings.FailureNotice,
		lastUsed:      time.Now(),
	}
}

// ID returns the session ID.
func (c *Conversation) ID() string { return c.id }

// SetCredential builds a router for apiKey. The previous router, if any, is
// replaced only when the new one was built successfully, and is then closed.
// It returns ErrBusy while a turn is running on the previous router.
func (c *Conversation) SetCredential(apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return ErrMissingCredential
	}
	if !c.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer c.busy.Store(false)

	runner, err := c.build(apiKey)
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	c.mu.Lock()
	previous := c.runner
	c.runner = runner
	c.lastUsed = time.Now()
	c.mu.Unlock()
	log.Printf("🔑 Credential set for session %s", shortID(c.id))

	if previous != nil {
		if err := previous.Close(); err != nil {
			log.Printf("⚠️ Failed to close previous router for session %s: %v", shortID(c.id), err)
		}
	}
	return nil
}

// HasCredential reports whether questions can be asked.
func (c *Conversation) HasCredential() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runner != nil
}

// Ask records question, runs the router over the transcript and records the
// answer, or the failure notice when the router failed. Guard failures
// (ErrEmptyQuestion, ErrMissingCredential, ErrBusy) leave the transcript
// untouched.
func (c *Conversation) Ask(ctx context.Context, question string, observer agent.Observer) (*Turn, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	c.mu.Lock()
	runner := c.runner
	c.lastUsed = time.Now()
	c.mu.Unlock()
	if runner == nil {
		return nil, ErrMissingCredential
	}

	if !c.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer c.busy.Store(false)

	if err := c.store.Initialize(ctx, c.greeting); err != nil {
		return nil, err
	}
	if err := c.store.Append(ctx, session.NewMessage(session.RoleUser, question)); err != nil {
		return nil, err
	}
	transcript, err := c.store.All(ctx)
	if err != nil {
		return nil, err
	}

	log.Printf("--- New question (Session: %s, Question: '%.40s') ---", shortID(c.id), question)
	start := time.Now()
	result, runErr := runner.Run(ctx, transcript, question, observer)

	turn := &Turn{
		Question:  question,
		Answer:    result.Answer,
		State:     result.State,
		Steps:     result.Steps,
		Decisions: result.Decisions,
		Err:       runErr,
		Latency:   time.Since(start),
	}
	if runErr != nil {
		log.Printf("❌ Turn failed after %d steps: %v", len(result.Steps), runErr)
		turn.Answer = c.failureNotice
	} else {
		log.Printf("✅ Answered in %d steps (%s)", len(result.Steps), turn.Latency.Round(time.Millisecond))
	}

	// The question is already recorded; its reply must be too, even when the
	// client has gone away.
	if err := c.store.Append(context.WithoutCancel(ctx), session.NewMessage(session.RoleAssistant, turn.Answer)); err != nil {
		return turn, err
	}

	c.mu.Lock()
	c.lastTurn = turn
	c.lastUsed = time.Now()
	c.mu.Unlock()
	return turn, nil
}

// Transcript returns the transcript, seeding the greeting on first use.
func (c *Conversation) Transcript(ctx context.Context) ([]session.Message, error) {
	if err := c.store.Initialize(ctx, c.greeting); err != nil {
		return nil, err
	}
	return c.store.All(ctx)
}

// LastTurn returns the most recent turn, or nil.
func (c *Conversation) LastTurn() *Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastTurn
}

// Reset starts a new chat: the transcript is dropped and re-seeded, the
// credential is kept.
func (c *Conversation) Reset(ctx context.Context) error {
	if !c.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer c.busy.Store(false)

	if err := c.store.Destroy(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	c.lastTurn = nil
	c.mu.Unlock()
	return c.store.Initialize(ctx, c.greeting)
}

// Close tears the session down: the transcript is destroyed and the router
// closed. It returns ErrBusy while a turn is running.
func (c *Conversation) Close(ctx context.Context) error {
	if !c.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer c.busy.Store(false)
	return c.teardown(ctx)
}

// teardown must be called with the busy guard held.
func (c *Conversation) teardown(ctx context.Context) error {
	c.mu.Lock()
	runner := c.runner
	c.runner = nil
	c.lastTurn = nil
	c.mu.Unlock()

	var errs []error
	if runner != nil {
		if err := runner.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close router: %w", err))
		}
	}
	if err := c.store.Destroy(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Busy reports whether a turn is in flight.
func (c *Conversation) Busy() bool { return c.busy.Load() }

func (c *Conversation) idleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsed
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
