package assistant

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zeeshanml/math-assistant/internal/agent"
	"github.com/zeeshanml/math-assistant/internal/session"
)

// fakeRunner answers every question with a fixed result and counts calls.
type fakeRunner struct {
	mu       sync.Mutex
	calls    int
	result   *agent.Result
	err      error
	block    chan struct{}
	started  chan struct{}
	lastSeen []session.Message
	closed   int
}

func (f *fakeRunner) Run(_ context.Context, transcript []session.Message, _ string, observer agent.Observer) (*agent.Result, error) {
	f.mu.Lock()
	f.calls++
	f.lastSeen = transcript
	f.mu.Unlock()
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		<-f.block
	}
	if observer != nil {
		observer(agent.Event{Kind: agent.EventAnswer, State: f.result.State, Answer: f.result.Answer})
	}
	return f.result, f.err
}

func (f *fakeRunner) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeRunner) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func answering(answer string) *fakeRunner {
	return &fakeRunner{result: &agent.Result{State: agent.StateAnswered, Answer: answer, Decisions: 1}}
}

func builderFor(r Runner) RouterBuilder {
	return func(string) (Runner, error) { return r, nil }
}

func newTestConversation(t *testing.T, r Runner) (*Conversation, *session.MemoryStore) {
	t.Helper()
	store := session.NewMemoryStore()
	conv := NewConversation("session-under-test", store, builderFor(r), Settings{})
	return conv, store
}

func TestAskRecordsQuestionAndAnswer(t *testing.T) {
	runner := answering("17 * 23 = 391")
	conv, store := newTestConversation(t, runner)
	if err := conv.SetCredential("gsk-test"); err != nil {
		t.Fatalf("SetCredential: %v", err)
	}

	turn, err := conv.Ask(context.Background(), "  What is 17 * 23?  ", nil)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if turn.Answer != "17 * 23 = 391" || turn.Failed() {
		t.Errorf("turn = %+v", turn)
	}

	all, _ := store.All(context.Background())
	want := []struct {
		role    session.Role
		content string
	}{
		{session.RoleAssistant, DefaultGreeting},
		{session.RoleUser, "What is 17 * 23?"},
		{session.RoleAssistant, "17 * 23 = 391"},
	}
	if len(all) != len(want) {
		t.Fatalf("transcript = %+v", all)
	}
	for i, w := range want {
		if all[i].Role != w.role || all[i].Content != w.content {
			t.Errorf("message %d = %+v, want %s %q", i, all[i], w.role, w.content)
		}
	}
	// The router sees the question as the last transcript entry.
	if n := len(runner.lastSeen); n != 2 || runner.lastSeen[n-1].Content != "What is 17 * 23?" {
		t.Errorf("router saw %+v", runner.lastSeen)
	}
}

func TestAskEmptyQuestionTouchesNothing(t *testing.T) {
	runner := answering("unused")
	conv, store := newTestConversation(t, runner)
	_ = conv.SetCredential("key")

	for _, q := range []string{"", "   ", "\n\t"} {
		if _, err := conv.Ask(context.Background(), q, nil); !errors.Is(err, ErrEmptyQuestion) {
			t.Errorf("Ask(%q) error = %v, want ErrEmptyQuestion", q, err)
		}
	}
	if runner.callCount() != 0 {
		t.Errorf("router invoked %d times", runner.callCount())
	}
	all, _ := store.All(context.Background())
	if len(all) != 0 {
		t.Errorf("transcript was touched: %+v", all)
	}
}

func TestAskRequiresCredential(t *testing.T) {
	runner := answering("unused")
	conv, store := newTestConversation(t, runner)

	if conv.HasCredential() {
		t.Fatal("new conversation should not have a credential")
	}
	if _, err := conv.Ask(context.Background(), "What is 1 + 1?", nil); !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("err = %v, want ErrMissingCredential", err)
	}
	if err := conv.SetCredential("   "); !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("SetCredential(blank) = %v, want ErrMissingCredential", err)
	}
	all, _ := store.All(context.Background())
	if len(all) != 0 || runner.callCount() != 0 {
		t.Errorf("transcript %+v, router calls %d", all, runner.callCount())
	}
}

func TestAskFailedTurnRecordsNotice(t *testing.T) {
	runner := &fakeRunner{
		result: &agent.Result{State: agent.StateFailed, Steps: []agent.Step{{Tool: "Calculator", Input: "x", Output: "boom", Failed: true}}},
		err:    agent.ErrStepLimitExceeded,
	}
	store := session.NewMemoryStore()
	conv := NewConversation("s", store, builderFor(runner), Settings{FailureNotice: "Something went wrong."})
	_ = conv.SetCredential("key")

	turn, err := conv.Ask(context.Background(), "Loop please", nil)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !turn.Failed() || !errors.Is(turn.Err, agent.ErrStepLimitExceeded) {
		t.Errorf("turn = %+v", turn)
	}
	resp := turn.Response()
	if resp.State != "failed" || resp.Error == "" || len(resp.Steps) != 1 {
		t.Errorf("response = %+v", resp)
	}

	all, _ := store.All(context.Background())
	if len(all) != 3 {
		t.Fatalf("transcript = %+v", all)
	}
	if all[1].Content != "Loop please" || all[2].Content != "Something went wrong." {
		t.Errorf("transcript = %+v", all)
	}
}

func TestAskRejectsConcurrentTurns(t *testing.T) {
	runner := answering("done")
	runner.block = make(chan struct{})
	runner.started = make(chan struct{})
	conv, _ := newTestConversation(t, runner)
	_ = conv.SetCredential("key")

	errc := make(chan error, 1)
	go func() {
		_, err := conv.Ask(context.Background(), "first", nil)
		errc <- err
	}()
	<-runner.started

	if _, err := conv.Ask(context.Background(), "second", nil); !errors.Is(err, ErrBusy) {
		t.Errorf("second Ask error = %v, want ErrBusy", err)
	}
	if err := conv.Reset(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("Reset during a turn = %v, want ErrBusy", err)
	}
	if err := conv.Close(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("Close during a turn = %v, want ErrBusy", err)
	}
	if err := conv.SetCredential("other"); !errors.Is(err, ErrBusy) {
		t.Errorf("SetCredential during a turn = %v, want ErrBusy", err)
	}
	close(runner.block)
	if err := <-errc; err != nil {
		t.Fatalf("first Ask: %v", err)
	}
	if conv.Busy() {
		t.Error("conversation still busy after the turn")
	}
	if runner.closeCount() != 0 {
		t.Error("router closed while its turn was running")
	}
}

// gatedStore blocks Destroy until release is closed.
type gatedStore struct {
	*session.MemoryStore
	entered chan struct{}
	release chan struct{}
}

func (s *gatedStore) Destroy(ctx context.Context) error {
	close(s.entered)
	<-s.release
	return s.MemoryStore.Destroy(ctx)
}

func TestResetHoldsTurnGuard(t *testing.T) {
	runner := answering("ok")
	store := &gatedStore{MemoryStore: session.NewMemoryStore(), entered: make(chan struct{}), release: make(chan struct{})}
	conv := NewConversation("s", store, builderFor(runner), Settings{})
	_ = conv.SetCredential("key")

	errc := make(chan error, 1)
	go func() { errc <- conv.Reset(context.Background()) }()
	<-store.entered

	if _, err := conv.Ask(context.Background(), "slipped in", nil); !errors.Is(err, ErrBusy) {
		t.Errorf("Ask during reset = %v, want ErrBusy", err)
	}
	if err := conv.Close(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("Close during reset = %v, want ErrBusy", err)
	}
	close(store.release)
	if err := <-errc; err != nil {
		t.Fatalf("Reset: %v", err)
	}

	all, _ := store.All(context.Background())
	if len(all) != 1 || all[0].Content != DefaultGreeting {
		t.Errorf("transcript after reset = %+v", all)
	}
	if runner.callCount() != 0 || conv.Busy() {
		t.Errorf("router calls %d, busy %v", runner.callCount(), conv.Busy())
	}
}

// strictStore refuses writes under a done context, like a Redis client does.
type strictStore struct {
	*session.MemoryStore
}

func (s strictStore) Append(ctx context.Context, msg session.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MemoryStore.Append(ctx, msg)
}

// cancelingRunner cancels the request while the turn is running.
type cancelingRunner struct {
	cancel context.CancelFunc
}

func (r cancelingRunner) Run(ctx context.Context, _ []session.Message, _ string, _ agent.Observer) (*agent.Result, error) {
	r.cancel()
	return &agent.Result{State: agent.StateFailed, Decisions: 1}, ctx.Err()
}

func (cancelingRunner) Close() error { return nil }

func TestAskRecordsNoticeAfterClientGoesAway(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := strictStore{session.NewMemoryStore()}
	conv := NewConversation("s", store, builderFor(cancelingRunner{cancel: cancel}), Settings{})
	_ = conv.SetCredential("key")

	turn, err := conv.Ask(ctx, "What is 2 + 2?", nil)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !turn.Failed() || !errors.Is(turn.Err, context.Canceled) {
		t.Errorf("turn = %+v", turn)
	}

	all, _ := store.All(context.Background())
	if len(all) != 3 || all[1].Content != "What is 2 + 2?" || all[2].Content != DefaultFailureNotice {
		t.Errorf("transcript = %+v", all)
	}
}

func TestAskForwardsObserver(t *testing.T) {
	conv, _ := newTestConversation(t, answering("4"))
	_ = conv.SetCredential("key")

	var got []agent.EventKind
	if _, err := conv.Ask(context.Background(), "2+2", func(ev agent.Event) { got = append(got, ev.Kind) }); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(got) != 1 || got[0] != agent.EventAnswer {
		t.Errorf("events = %v", got)
	}
}

func TestResetKeepsCredential(t *testing.T) {
	conv, store := newTestConversation(t, answering("ok"))
	_ = conv.SetCredential("key")
	if _, err := conv.Ask(context.Background(), "hello", nil); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if err := conv.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	all, _ := store.All(context.Background())
	if len(all) != 1 || all[0].Content != DefaultGreeting {
		t.Errorf("transcript after reset = %+v", all)
	}
	if !conv.HasCredential() || conv.LastTurn() != nil {
		t.Error("reset should keep the credential and clear the last turn")
	}
}

func TestSetCredentialBuildFailureKeepsOldRouter(t *testing.T) {
	good := answering("ok")
	calls := 0
	build := func(key string) (Runner, error) {
		calls++
		if key == "bad" {
			return nil, errors.New("unknown provider")
		}
		return good, nil
	}
	conv := NewConversation("s", session.NewMemoryStore(), build, Settings{})
	if err := conv.SetCredential("good"); err != nil {
		t.Fatalf("SetCredential(good): %v", err)
	}
	if err := conv.SetCredential("bad"); err == nil {
		t.Fatal("expected build error")
	}
	if !conv.HasCredential() {
		t.Error("failed SetCredential dropped the working router")
	}
}

func TestSetCredentialClosesReplacedRouter(t *testing.T) {
	first, second := answering("one"), answering("two")
	build := func(key string) (Runner, error) {
		if key == "first" {
			return first, nil
		}
		return second, nil
	}
	conv := NewConversation("s", session.NewMemoryStore(), build, Settings{})
	if err := conv.SetCredential("first"); err != nil {
		t.Fatalf("SetCredential(first): %v", err)
	}
	if err := conv.SetCredential("second"); err != nil {
		t.Fatalf("SetCredential(second): %v", err)
	}
	if first.closeCount() != 1 || second.closeCount() != 0 {
		t.Errorf("closed first %d, second %d times", first.closeCount(), second.closeCount())
	}

	turn, err := conv.Ask(context.Background(), "which?", nil)
	if err != nil || turn.Answer != "two" {
		t.Fatalf("Ask = %+v, %v", turn, err)
	}
	if err := conv.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if second.closeCount() != 1 {
		t.Errorf("Close closed the router %d times, want 1", second.closeCount())
	}
}

func TestTranscriptSeedsGreetingOnce(t *testing.T) {
	conv, _ := newTestConversation(t, answering("ok"))
	for i := 0; i < 2; i++ {
		all, err := conv.Transcript(context.Background())
		if err != nil {
			t.Fatalf("Transcript: %v", err)
		}
		if len(all) != 1 || all[0].Role != session.RoleAssistant {
			t.Fatalf("transcript = %+v", all)
		}
	}
}

func TestManagerGetAndEvict(t *testing.T) {
	m := NewManager(ManagerConfig{
		Build:         builderFor(answering("ok")),
		IdleTTL:       time.Minute,
		DefaultAPIKey: "env-key",
	})

	a := m.Get("a")
	if m.Get("a") != a {
		t.Fatal("Get should return the same conversation for the same ID")
	}
	if !a.HasCredential() {
		t.Error("default API key was not applied")
	}
	b := m.Get("b")
	if _, err := b.Transcript(context.Background()); err != nil {
		t.Fatalf("Transcript: %v", err)
	}
	if m.Len() != 2 {
		t.Fatalf("Len = %d", m.Len())
	}

	if n := m.EvictIdle(context.Background(), time.Now()); n != 0 {
		t.Errorf("evicted %d fresh sessions", n)
	}
	if n := m.EvictIdle(context.Background(), time.Now().Add(2*time.Minute)); n != 2 {
		t.Errorf("evicted %d, want 2", n)
	}
	if _, ok := m.Lookup("a"); ok {
		t.Error("evicted session still present")
	}
	if a.HasCredential() {
		t.Error("evicted session kept its credential")
	}
}

func TestManagerSkipsBusySessions(t *testing.T) {
	runner := answering("ok")
	runner.block = make(chan struct{})
	runner.started = make(chan struct{})
	m := NewManager(ManagerConfig{Build: builderFor(runner), IdleTTL: time.Nanosecond, DefaultAPIKey: "k"})
	conv := m.Get("busy")

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = conv.Ask(context.Background(), "slow question", nil)
	}()
	<-runner.started

	if n := m.EvictIdle(context.Background(), time.Now().Add(time.Hour)); n != 0 {
		t.Errorf("evicted %d busy sessions", n)
	}
	if err := m.Remove(context.Background(), "busy"); !errors.Is(err, ErrBusy) {
		t.Errorf("Remove of a busy session = %v, want ErrBusy", err)
	}
	if got, ok := m.Lookup("busy"); !ok || got != conv {
		t.Error("busy session was dropped")
	}
	close(runner.block)
	<-done

	if n := m.EvictIdle(context.Background(), time.Now().Add(time.Hour)); n != 1 {
		t.Errorf("evicted %d after the turn, want 1", n)
	}
	if runner.closeCount() != 1 {
		t.Errorf("router closed %d times, want 1", runner.closeCount())
	}
}

func TestManagerRemove(t *testing.T) {
	m := NewManager(ManagerConfig{Build: builderFor(answering("ok"))})
	m.Get("x")
	if err := m.Remove(context.Background(), "x"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := m.Remove(context.Background(), "missing"); err != nil {
		t.Fatalf("Remove(missing): %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len = %d", m.Len())
	}
	if n := m.EvictIdle(context.Background(), time.Now().Add(time.Hour)); n != 0 {
		t.Errorf("eviction without IdleTTL removed %d", n)
	}
}
