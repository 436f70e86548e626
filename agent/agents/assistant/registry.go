package assistant

import (
	"context"
	"fmt"
	"sync"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/travel-concierge/agent/contract"
	llmx "github.com/tanpawarit/travel-concierge/agent/llm"
	promptx "github.com/tanpawarit/travel-concierge/agent/prompt"
	statex "github.com/tanpawarit/travel-concierge/agent/state"
	"golang.org/x/sync/errgroup"
)

// ModelFactory creates the chat model an agent is bound to.
type ModelFactory func(ctx context.Context, kind statex.AgentID) (einomodel.ToolCallingChatModel, error)

// ToolSource hands out each agent's ordinary tools.
type ToolSource interface {
	ToolsFor(kind statex.AgentID) ([]einotool.BaseTool, error)
}

// OpenRouterModels builds one OpenRouter model per agent from cfg.
func OpenRouterModels(cfg llmx.Config) ModelFactory {
	return func(ctx context.Context, kind statex.AgentID) (einomodel.ToolCallingChatModel, error) {
		modelCfg := cfg.OpenRouterFor(kind)
		return modelCfg.New(ctx)
	}
}

type Registry struct {
	units map[statex.AgentID]*Unit
}

var _ contractx.Registry = (*Registry)(nil)

func (r *Registry) Unit(kind statex.AgentID) (contractx.AgentUnit, bool) {
	u, ok := r.units[kind]
	if !ok {
		return nil, false
	}
	return u, true
}

// NewRegistry builds every known agent concurrently. Any failure aborts
// startup with ErrConfiguration.
func NewRegistry(
	ctx context.Context,
	prompts promptx.PromptSet,
	models ModelFactory,
	tools ToolSource,
	clock func() time.Time,
) (*Registry, error) {
	if models == nil {
		return nil, fmt.Errorf("%w: model factory is nil", contractx.ErrConfiguration)
	}

	var (
		mu    sync.Mutex
		units = make(map[statex.AgentID]*Unit, len(statex.KnownAgents))
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range statex.KnownAgents {
		kind := kind
		g.Go(func() error {
			p, ok := prompts[kind]
			if !ok {
				return fmt.Errorf("%w: %w: agent=%s", contractx.ErrConfiguration, contractx.ErrPromptMissing, kind)
			}

			chatModel, err := models(gctx, kind)
			if err != nil {
				return fmt.Errorf("%w: create model for agent=%s: %v", contractx.ErrConfiguration, kind, err)
			}

			var agentTools []einotool.BaseTool
			if tools != nil {
				agentTools, err = tools.ToolsFor(kind)
				if err != nil {
					return fmt.Errorf("%w: tools for agent=%s: %v", contractx.ErrConfiguration, kind, err)
				}
			}

			unit, err := Build(gctx, Spec{
				Kind:         kind,
				Model:        chatModel,
				Tools:        agentTools,
				StaticPrompt: staticPrompt(p),
				Clock:        clock,
			})
			if err != nil {
				return err
			}

			mu.Lock()
			units[kind] = unit
			mu.Unlock()

			log.Debug().Str("agent", string(kind)).Int("tools", len(agentTools)).Msg("agent ready")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Registry{units: units}, nil
}

func staticPrompt(p promptx.AgentPrompt) string {
	if p.Description == "" {
		return p.Instructions
	}
	return p.Description + "\n\n" + p.Instructions
}
