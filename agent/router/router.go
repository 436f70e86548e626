// Package router decides, from a finished agent turn, whether the dialog stays
// with the active agent, runs tools, hands off to a specialist, or returns
// control up the dialog stack.
package router

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/travel-concierge/agent/contract"
	directivex "github.com/tanpawarit/travel-concierge/agent/directive"
	executorx "github.com/tanpawarit/travel-concierge/agent/executor"
	statex "github.com/tanpawarit/travel-concierge/agent/state"
)

type Action string

const (
	// ActionStay: plain reply, the active agent keeps the conversation.
	ActionStay Action = "stay"
	// ActionRunTools: ordinary tool calls must run before the agent answers.
	ActionRunTools Action = "run_tools"
	// ActionHandoff: push a specialist and let it answer.
	ActionHandoff Action = "handoff"
	// ActionEscalate: pop the stack and let the previous agent answer.
	ActionEscalate Action = "escalate"
	// ActionInvalid: the reply is discarded and replaced by an apology.
	ActionInvalid Action = "invalid"
	// ActionDegraded: the executor already produced an apology.
	ActionDegraded Action = "degraded"
)

type Decision struct {
	Action Action
	// Reply is the user-facing message for stay, invalid and degraded.
	Reply *schema.Message
	// Call is the assistant message carrying ordinary tool calls.
	Call       *schema.Message
	Handoff    directivex.Handoff
	Escalation *directivex.CompleteOrEscalate
	// Signal is the dialog stack signal; nil leaves the stack untouched.
	Signal *string
	Err    error
}

// Ends reports whether the turn is over once this decision is applied.
func (d Decision) Ends() bool {
	switch d.Action {
	case ActionStay, ActionInvalid, ActionDegraded:
		return true
	default:
		return false
	}
}

// Apply returns the dialog stack after this decision.
func (d Decision) Apply(stack []statex.AgentID) []statex.AgentID {
	return statex.UpdateDialogStack(stack, d.Signal)
}

// Route classifies an executor result. Completion directives win over handoffs
// in the same reply; two or more handoffs make the reply invalid.
func Route(res executorx.Result) Decision {
	if res.Message == nil {
		return invalid(fmt.Errorf("%w: nil reply", contractx.ErrEmptyResponse))
	}

	if res.Degraded() {
		d := Decision{
			Action: ActionDegraded,
			Reply:  textOnly(res.Message),
			Err:    res.Err,
		}
		if directives, _, err := directivex.Split(res.Message); err == nil && hasEscalation(directives) {
			d.Signal = statex.Pop()
		}
		return d
	}

	directives, ordinary, err := directivex.Split(res.Message)
	if err != nil {
		return invalid(err)
	}

	var (
		escalation *directivex.CompleteOrEscalate
		handoffs   []directivex.Handoff
	)
	for _, d := range directives {
		switch v := d.(type) {
		case directivex.CompleteOrEscalate:
			if escalation == nil {
				c := v
				escalation = &c
			}
		case directivex.Handoff:
			handoffs = append(handoffs, v)
		}
	}

	switch {
	case escalation != nil:
		if len(handoffs) > 0 {
			log.Warn().Int("handoffs", len(handoffs)).Msg("completion and handoff in one reply, returning control")
		}
		return Decision{Action: ActionEscalate, Escalation: escalation, Signal: statex.Pop()}
	case len(handoffs) > 1:
		return invalid(fmt.Errorf("%w: %d handoff directives in one reply", contractx.ErrMalformedDirective, len(handoffs)))
	case len(handoffs) == 1:
		if len(ordinary) > 0 {
			log.Warn().Int("tool_calls", len(ordinary)).Msg("dropping tool calls emitted alongside a handoff")
		}
		h := handoffs[0]
		return Decision{Action: ActionHandoff, Handoff: h, Signal: statex.Push(h.Target())}
	case len(ordinary) > 0:
		call := schema.AssistantMessage(res.Message.Content, ordinary)
		return Decision{Action: ActionRunTools, Call: call}
	default:
		return Decision{Action: ActionStay, Reply: textOnly(res.Message)}
	}
}

func invalid(err error) Decision {
	return Decision{
		Action: ActionInvalid,
		Reply:  schema.AssistantMessage(contractx.MalformedApology, nil),
		Err:    err,
	}
}

func hasEscalation(directives []directivex.Directive) bool {
	for _, d := range directives {
		if _, ok := d.(directivex.CompleteOrEscalate); ok {
			return true
		}
	}
	return false
}

// textOnly strips tool calls so only user-presentable text is committed.
func textOnly(msg *schema.Message) *schema.Message {
	text := strings.TrimSpace(msg.Content)
	if text == "" && len(msg.MultiContent) > 0 {
		text = strings.TrimSpace(msg.MultiContent[0].Text)
	}
	return schema.AssistantMessage(text, nil)
}

// SeedHandoff is the opening context handed to the specialist that receives
// control. It carries the directive's request and structured fields only.
func SeedHandoff(from statex.AgentID, h directivex.Handoff) *schema.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "You are now the %s, taking over from the %s. ", h.Target(), from)
	b.WriteString("The user's intent is not yet satisfied. Use your tools to help the user. ")
	b.WriteString("If the user changes their mind or needs help outside your scope, call CompleteOrEscalate.\n")
	fmt.Fprintf(&b, "Request: %s", strings.TrimSpace(h.Request()))
	if details := h.Details(); details != "" {
		fmt.Fprintf(&b, "\nDetails: %s", details)
	}
	return schema.SystemMessage(b.String())
}

// SeedEscalation tells the agent that regains control why it got it back.
func SeedEscalation(from statex.AgentID, c directivex.CompleteOrEscalate) *schema.Message {
	reason := strings.TrimSpace(c.Reason)
	if reason == "" {
		reason = "no reason given"
	}
	status := "completed its task"
	if c.Cancel {
		status = "stopped without finishing"
	}
	return schema.SystemMessage(fmt.Sprintf(
		"Resuming the dialog: the %s %s. Reason: %s. Reflect on the conversation and assist the user as needed.",
		from, status, reason,
	))
}
