package contract

import (
	"context"

	"github.com/cloudwego/eino/schema"
	statex "github.com/tanpawarit/travel-concierge/agent/state"
)

// Invoker is one model-backed invocation of an agent.
type Invoker interface {
	Invoke(ctx context.Context, in TurnInput) (*schema.Message, error)
}

// AgentUnit is a composed agent: prompt, bound model and tool set.
type AgentUnit interface {
	Invoker
	Kind() statex.AgentID
	// RunTools executes the ordinary (non-directive) tool calls carried by msg
	// and returns one tool message per call.
	RunTools(ctx context.Context, msg *schema.Message) ([]*schema.Message, error)
}

type Registry interface {
	Unit(kind statex.AgentID) (AgentUnit, bool)
}
