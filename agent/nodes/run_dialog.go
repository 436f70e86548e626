package conciergenode

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/travel-concierge/agent/contract"
	executorx "github.com/tanpawarit/travel-concierge/agent/executor"
	routerx "github.com/tanpawarit/travel-concierge/agent/router"
	statex "github.com/tanpawarit/travel-concierge/agent/state"
	toolx "github.com/tanpawarit/travel-concierge/agent/tool"
)

const (
	DefaultMaxHops       = 4
	DefaultMaxToolRounds = 4

	OutcomeHopsExhausted      = "hops_exhausted"
	OutcomeToolRoundsExceeded = "tool_rounds_exhausted"
	OutcomeToolFailed         = "tool_failed"
	OutcomeUnknownAgent       = "unknown_agent"
)

// Dialog is what the dialog loop needs to run agents.
type Dialog struct {
	Registry      contractx.Registry
	Executor      *executorx.Executor
	MaxHops       int
	MaxToolRounds int
}

// AppendUserMessage commits the incoming message to the durable history.
func AppendUserMessage(in *GraphState) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	in.Session.Append(schema.UserMessage(in.Text))
	return in, nil
}

// RunDialog drives the active agent until it produces a user-facing reply.
// Tool results and seeded handoff context live only in the working list of
// the agent that needs them; the durable history is not touched here.
func RunDialog(ctx context.Context, in *GraphState, d Dialog) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	if d.Registry == nil || d.Executor == nil {
		return nil, fmt.Errorf("%w: dialog is not configured", contractx.ErrConfiguration)
	}
	maxHops := d.MaxHops
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}
	maxToolRounds := d.MaxToolRounds
	if maxToolRounds <= 0 {
		maxToolRounds = DefaultMaxToolRounds
	}

	st := in.Session
	ctx = toolx.WithSession(ctx, st.SessionID, st.UserContext)

	var (
		stack      = append([]statex.AgentID{}, st.DialogState...)
		history    = st.History()
		scratch    []*schema.Message
		hops       int
		toolRounds int
	)

	finish := func(reply *schema.Message, outcome string) (*GraphState, error) {
		st.DialogState = stack
		in.Reply = reply
		in.Outcome = outcome
		return in, nil
	}

	for {
		active := statex.ActiveAgent(stack)
		logger := log.With().Str("session_id", st.SessionID).Str("agent", string(active)).Logger()

		unit, ok := d.Registry.Unit(active)
		if !ok {
			logger.Error().Msg("no agent registered for dialog state, resetting to supervisor")
			stack = []statex.AgentID{}
			return finish(schema.AssistantMessage(contractx.SystemErrorApology, nil), OutcomeUnknownAgent)
		}

		working := append(append(make([]*schema.Message, 0, len(history)+len(scratch)), history...), scratch...)
		res := d.Executor.Execute(ctx, unit, contractx.TurnInput{
			Messages:    working,
			UserContext: st.UserContext,
			DialogState: stack,
		})

		decision := routerx.Route(res)
		stack = decision.Apply(stack)
		logger.Debug().
			Str("action", string(decision.Action)).
			Str("outcome", string(res.Outcome)).
			Int("attempt", res.Attempts).
			Msg("agent turn routed")

		switch decision.Action {
		case routerx.ActionStay:
			return finish(decision.Reply, string(res.Outcome))

		case routerx.ActionInvalid, routerx.ActionDegraded:
			logger.Warn().Err(decision.Err).Str("action", string(decision.Action)).Msg("turn degraded")
			outcome := string(res.Outcome)
			if decision.Action == routerx.ActionInvalid {
				outcome = string(executorx.OutcomeMalformed)
			}
			return finish(decision.Reply, outcome)

		case routerx.ActionRunTools:
			toolRounds++
			if toolRounds > maxToolRounds {
				logger.Warn().Int("rounds", toolRounds).Msg("tool round limit reached")
				return finish(schema.AssistantMessage(contractx.DefaultApology, nil), OutcomeToolRoundsExceeded)
			}
			results, err := unit.RunTools(ctx, decision.Call)
			if err != nil {
				logger.Error().Err(err).Msg("tool execution failed")
				return finish(schema.AssistantMessage(contractx.DefaultApology, nil), OutcomeToolFailed)
			}
			scratch = append(scratch, decision.Call)
			scratch = append(scratch, results...)

		case routerx.ActionHandoff, routerx.ActionEscalate:
			hops++
			if hops > maxHops {
				logger.Warn().Int("hops", hops).Msg("handoff limit reached")
				return finish(schema.AssistantMessage(contractx.DefaultApology, nil), OutcomeHopsExhausted)
			}
			// The next agent starts from the durable history plus one seed.
			toolRounds = 0
			if decision.Action == routerx.ActionHandoff {
				logger.Info().Str("to", string(decision.Handoff.Target())).Msg("handing off")
				scratch = []*schema.Message{routerx.SeedHandoff(active, decision.Handoff)}
			} else {
				logger.Info().Str("reason", decision.Escalation.Reason).Msg("returning control")
				scratch = []*schema.Message{routerx.SeedEscalation(active, *decision.Escalation)}
			}

		default:
			return nil, fmt.Errorf("unhandled routing action %q", decision.Action)
		}
	}
}
