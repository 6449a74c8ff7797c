package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/zeeshanml/math-assistant/internal/session"
	"github.com/zeeshanml/math-assistant/internal/tools"
)

const instrumentationName = "github.com/zeeshanml/math-assistant/internal/agent"

// DefaultMaxSteps bounds the Thinking/AwaitingToolResult cycle when the
// configuration does not.
const DefaultMaxSteps = 15

// Config holds the router settings loaded from assistant.yaml.
type Config struct {
	// MaxSteps is the number of tool calls allowed in one turn.
	MaxSteps int `yaml:"max_steps"`

	// HandleParseErrors treats an unparsable model reply as the final answer
	// instead of failing the turn.
	HandleParseErrors bool `yaml:"handle_parse_errors"`
}

// DefaultConfig returns the router defaults.
func DefaultConfig() Config {
	return Config{MaxSteps: DefaultMaxSteps, HandleParseErrors: true}
}

// Toolbox is the part of the tool registry the router needs.
type Toolbox interface {
	Lookup(name string) (tools.ToolExecutor, error)
	GetDefinitions() []tools.Definition
}

// DecisionContext is everything a Decider sees in one Thinking step.
type DecisionContext struct {
	Transcript []session.Message
	Question   string
	Tools      []tools.Definition
	Steps      []Step
}

// Decider chooses the next action. Implementations should return an error
// only when they could not reach the model at all.
type Decider interface {
	Decide(ctx context.Context, dc DecisionContext) (Action, error)
}

// DeciderFunc adapts a function into a Decider.
type DeciderFunc func(ctx context.Context, dc DecisionContext) (Action, error)

func (f DeciderFunc) Decide(ctx context.Context, dc DecisionContext) (Action, error) {
	return f(ctx, dc)
}

// Router runs one question to an answer. It is stateless between turns and
// safe for concurrent use as long as its Decider and tools are.
type Router struct {
	decider Decider
	tools   Toolbox
	config  Config

	tracer      trace.Tracer
	turns       metric.Int64Counter
	invocations metric.Int64Counter
}

// Option configures a Router.
type Option func(*Router)

// WithTracer sets the tracer used for turn and step spans.
func WithTracer(t trace.Tracer) Option {
	return func(r *Router) { r.tracer = t }
}

// NewRouter creates a router. Without options it reports to the global
// OpenTelemetry providers, which are no-ops unless telemetry is configured.
func NewRouter(decider Decider, toolbox Toolbox, cfg Config, opts ...Option) (*Router, error) {
	if decider == nil {
		return nil, errors.New("router requires a decider")
	}
	if toolbox == nil {
		return nil, errors.New("router requires a toolbox")
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}

	r := &Router{
		decider: decider,
		tools:   toolbox,
		config:  cfg,
		tracer:  otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.initMetrics(otel.Meter(instrumentationName)); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Router) initMetrics(meter metric.Meter) error {
	var err error
	r.turns, err = meter.Int64Counter(
		"assistant.router.turns",
		metric.WithDescription("Router turns by terminal state"),
	)
	if err != nil {
		return fmt.Errorf("failed to create turn counter: %w", err)
	}
	r.invocations, err = meter.Int64Counter(
		"assistant.router.tool_invocations",
		metric.WithDescription("Tool invocations by tool and outcome"),
	)
	if err != nil {
		return fmt.Errorf("failed to create tool counter: %w", err)
	}
	return nil
}

// Config returns the effective configuration.
func (r *Router) Config() Config { return r.config }

// Run drives the state machine for one question until it reaches Answered or
// Failed. The returned Result is never nil. The error is non-nil exactly when
// the turn failed and is the same as Result.Err.
func (r *Router) Run(ctx context.Context, transcript []session.Message, question string, observer Observer) (*Result, error) {
	ctx, span := r.tracer.Start(ctx, "agent.turn", trace.WithAttributes(
		attribute.Int("agent.max_steps", r.config.MaxSteps),
	))
	defer span.End()

	t := &turn{
		router:   r,
		observer: observer,
		dc: DecisionContext{
			Transcript: transcript,
			Question:   question,
			Tools:      r.tools.GetDefinitions(),
		},
		state: StateThinking,
	}
	res := t.run(ctx)

	span.SetAttributes(
		attribute.String("agent.state", string(res.State)),
		attribute.Int("agent.steps", len(res.Steps)),
		attribute.Int("agent.decisions", res.Decisions),
	)
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
	}
	r.turns.Add(ctx, 1, metric.WithAttributes(attribute.String("state", string(res.State))))
	return res, res.Err
}

// turn is the working memory of a single Run.
type turn struct {
	router   *Router
	observer Observer
	dc       DecisionContext
	state    State
	pending  Action
	result   Result
}

func (t *turn) run(ctx context.Context) *Result {
	for !t.state.Terminal() {
		switch t.state {
		case StateThinking:
			t.think(ctx)
		case StateAwaitingToolResult:
			t.callTool(ctx)
		}
	}
	t.result.State = t.state
	t.result.Steps = t.dc.Steps
	return &t.result
}

func (t *turn) think(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		t.fail(err)
		return
	}
	if len(t.dc.Steps) >= t.router.config.MaxSteps {
		t.fail(fmt.Errorf("%w after %d steps", ErrStepLimitExceeded, len(t.dc.Steps)))
		return
	}

	ctx, span := t.router.tracer.Start(ctx, "agent.decide")
	action, err := t.router.decider.Decide(ctx, t.dc)
	t.result.Decisions++
	span.SetAttributes(attribute.String("agent.action", action.Kind.String()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	if err != nil {
		t.fail(fmt.Errorf("decision failed: %w", err))
		return
	}

	switch action.Kind {
	case ActionUseTool:
		t.pending = action
		t.transition(StateAwaitingToolResult)
		t.emit(Event{Kind: EventDecision, State: t.state, Tool: action.Tool, Input: action.Input})
	case ActionFinalAnswer:
		t.answer(action.Answer)
	default:
		if t.router.config.HandleParseErrors && strings.TrimSpace(action.Raw) != "" {
			log.Printf("⚠️ Unparsable model output treated as the answer (%d bytes)", len(action.Raw))
			t.answer(action.Raw)
			return
		}
		t.fail(fmt.Errorf("%w: %q", ErrUnparsableOutput, action.Raw))
	}
}

func (t *turn) callTool(ctx context.Context) {
	action := t.pending
	t.pending = Action{}

	// A name the model invented is an observation, not a failure: the next
	// decision sees the valid names and can choose again.
	if !t.offered(action.Tool) {
		step := Step{
			Tool:    action.Tool,
			Input:   action.Input,
			Output:  invalidToolObservation(action.Tool, t.dc.Tools),
			Failed:  true,
			Thought: action.Log,
		}
		log.Printf("⚠️ Model asked for unknown tool %q", action.Tool)
		t.record(ctx, step)
		return
	}

	tool, err := t.router.tools.Lookup(action.Tool)
	if err != nil {
		t.fail(err)
		return
	}

	t.emit(Event{Kind: EventToolStart, State: t.state, Tool: action.Tool, Input: action.Input})
	log.Printf("🛠️ Executing tool: %s with input: %q", action.Tool, action.Input)

	ctx, span := t.router.tracer.Start(ctx, "agent.tool", trace.WithAttributes(
		attribute.String("tool.name", action.Tool),
	))
	output, err := tool.Execute(ctx, action.Input)
	step := Step{Tool: action.Tool, Input: action.Input, Output: output, Thought: action.Log}
	if err != nil {
		// The error text becomes the observation for the next decision.
		step.Output = err.Error()
		step.Failed = true
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Printf("⚠️ Tool %s failed: %v", action.Tool, err)
	}
	span.End()
	t.record(ctx, step)
}

// record appends a finished step and returns to Thinking.
func (t *turn) record(ctx context.Context, step Step) {
	t.router.invocations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", step.Tool),
		attribute.Bool("failed", step.Failed),
	))

	t.dc.Steps = append(t.dc.Steps, step)
	t.transition(StateThinking)
	t.emit(Event{Kind: EventStep, State: t.state, Step: &step})
}

// offered reports whether name is one of the tools shown to the decider.
func (t *turn) offered(name string) bool {
	for _, def := range t.dc.Tools {
		if def.Name == name {
			return true
		}
	}
	return false
}

func invalidToolObservation(name string, defs []tools.Definition) string {
	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = def.Name
	}
	return fmt.Sprintf("%s is not a valid tool, try one of [%s].", name, strings.Join(names, ", "))
}

func (t *turn) answer(text string) {
	t.result.Answer = text
	t.transition(StateAnswered)
	t.emit(Event{Kind: EventAnswer, State: t.state, Answer: text})
}

func (t *turn) fail(err error) {
	t.result.Err = err
	t.transition(StateFailed)
	t.emit(Event{Kind: EventFailed, State: t.state, Err: err})
}

func (t *turn) transition(next State) {
	t.state = next
}

func (t *turn) emit(ev Event) {
	if t.observer != nil {
		t.observer(ev)
	}
}
