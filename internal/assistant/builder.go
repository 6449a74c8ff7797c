package assistant

import (
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/zeeshanml/math-assistant/internal/agent"
	"github.com/zeeshanml/math-assistant/internal/llm"
	"github.com/zeeshanml/math-assistant/internal/tools"
)

// BuilderConfig holds what is needed to assemble a router once the user has
// supplied an API key.
type BuilderConfig struct {
	Provider    string
	Model       string
	BaseURL     string
	Temperature *float32
	MaxTokens   int
	Router      agent.Config

	Encyclopedia tools.Encyclopedia
	Profiler     *llm.Profiler
	Tracer       trace.Tracer
}

// NewRouterBuilder returns a RouterBuilder that wires the language model,
// the three tools and the ReAct decider into an agent.Router.
func NewRouterBuilder(cfg BuilderConfig) RouterBuilder {
	return func(apiKey string) (Runner, error) {
		client, err := llm.NewClient(cfg.Provider, apiKey, cfg.BaseURL, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s client: %w", cfg.Provider, err)
		}
		model := llm.NewTextModel(client, llm.GenerationConfig{
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		}, cfg.Profiler)

		registry, err := tools.NewRegistry(
			tools.NewLookupTool(cfg.Encyclopedia),
			tools.NewCalculatorTool(model),
			tools.NewReasoningTool(model),
		)
		if err != nil {
			_ = model.Close()
			return nil, err
		}

		var opts []agent.Option
		if cfg.Tracer != nil {
			opts = append(opts, agent.WithTracer(cfg.Tracer))
		}
		router, err := agent.NewRouter(agent.NewReActDecider(model), registry, cfg.Router, opts...)
		if err != nil {
			_ = model.Close()
			return nil, err
		}
		return &boundRouter{Router: router, model: model}, nil
	}
}

// boundRouter is a router together with the model client it owns.
type boundRouter struct {
	*agent.Router
	model *llm.TextModel
}

func (r *boundRouter) Close() error { return r.model.Close() }
