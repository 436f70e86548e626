// Package executor runs one agent turn: it invokes the agent unit, validates
// the reply, retries empty output and degrades to a fixed apology.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/travel-concierge/agent/contract"
	directivex "github.com/tanpawarit/travel-concierge/agent/directive"
	statex "github.com/tanpawarit/travel-concierge/agent/state"
)

const (
	DefaultMaxAttempts = 3

	// CorrectiveInstruction is appended as a user message after an empty reply.
	CorrectiveInstruction = "Respond with a real output."

	fallbackEscalationReason = "the specialist could not produce a response"
)

// phase is a state of the turn state machine.
type phase int

const (
	phaseInvoking phase = iota
	phaseValidating
	phaseRetrying
	phaseDegraded
	phaseDone
)

func (p phase) String() string {
	switch p {
	case phaseInvoking:
		return "invoking"
	case phaseValidating:
		return "validating"
	case phaseRetrying:
		return "retrying"
	case phaseDegraded:
		return "degraded"
	case phaseDone:
		return "done"
	default:
		return "unknown"
	}
}

type Outcome string

const (
	OutcomeOK                  Outcome = "ok"
	OutcomeMalformed           Outcome = "malformed"
	OutcomeEmptyExhausted      Outcome = "empty_exhausted"
	OutcomeToolError           Outcome = "tool_error"
	OutcomeInvocationExhausted Outcome = "invocation_exhausted"
)

// Result is the single final message of a turn.
type Result struct {
	Message  *schema.Message
	Outcome  Outcome
	Attempts int
	// Err is the classified cause of a degraded result. Never shown to users.
	Err error
}

func (r Result) Degraded() bool {
	return r.Outcome != OutcomeOK
}

type Executor struct {
	maxAttempts int
}

type Option func(*Executor)

func WithMaxAttempts(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

func New(opts ...Option) *Executor {
	e := &Executor{maxAttempts: DefaultMaxAttempts}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// run holds the mutable data of one Execute call.
type run struct {
	in        contractx.TurnInput
	attempts  int
	reply     *schema.Message
	invokeErr error
	cause     error
	outcome   Outcome
}

// Execute invokes unit until it yields a usable reply or the attempt budget is
// spent. It never returns an error and never panics past its boundary.
func (e *Executor) Execute(ctx context.Context, unit contractx.Invoker, in contractx.TurnInput) (res Result) {
	r := &run{in: in.Normalized()}

	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Int("attempts", r.attempts).Msg("agent invocation panicked")
			res = e.degrade(r, OutcomeInvocationExhausted, fmt.Errorf("%w: panic: %v", contractx.ErrModelInvoke, p))
		}
	}()

	p := phaseInvoking
	for {
		log.Trace().Str("phase", p.String()).Int("attempt", r.attempts).Msg("turn executor transition")
		switch p {
		case phaseInvoking:
			r.attempts++
			r.reply, r.invokeErr = invoke(ctx, unit, r.in)
			p = phaseValidating

		case phaseValidating:
			p = e.validate(r)

		case phaseRetrying:
			log.Debug().
				Int("attempt", r.attempts).
				Err(r.cause).
				Msg("retrying agent invocation")
			p = phaseInvoking

		case phaseDegraded:
			return e.degrade(r, r.outcome, r.cause)

		case phaseDone:
			return Result{Message: r.reply, Outcome: OutcomeOK, Attempts: r.attempts}
		}
	}
}

// invoke runs one attempt. A panic counts as a failed attempt.
func invoke(ctx context.Context, unit contractx.Invoker, in contractx.TurnInput) (msg *schema.Message, err error) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Msg("agent invocation panicked")
			msg, err = nil, fmt.Errorf("%w: panic: %v", contractx.ErrModelInvoke, p)
		}
	}()
	return unit.Invoke(ctx, in)
}

// validate classifies the last attempt and picks the next phase.
func (e *Executor) validate(r *run) phase {
	if r.invokeErr != nil {
		if isToolCallError(r.invokeErr) {
			r.cause = fmt.Errorf("%w: %v", contractx.ErrToolInvocation, r.invokeErr)
			r.outcome = OutcomeToolError
			return phaseDegraded
		}
		r.cause = fmt.Errorf("%w: %v", contractx.ErrModelInvoke, r.invokeErr)
		if r.attempts >= e.maxAttempts {
			r.outcome = OutcomeInvocationExhausted
			return phaseDegraded
		}
		// No corrective message here; the failed call produced nothing to correct.
		return phaseRetrying
	}

	if r.reply != nil && len(r.reply.ToolCalls) > 0 {
		for _, call := range r.reply.ToolCalls {
			if strings.TrimSpace(call.ID) == "" {
				r.cause = fmt.Errorf("%w: tool call %q has no id", contractx.ErrMalformedDirective, call.Function.Name)
				r.outcome = OutcomeMalformed
				return phaseDegraded
			}
		}
		return phaseDone
	}

	if hasText(r.reply) {
		return phaseDone
	}

	r.cause = contractx.ErrEmptyResponse
	if r.attempts >= e.maxAttempts {
		r.outcome = OutcomeEmptyExhausted
		return phaseDegraded
	}
	r.in.Messages = append(r.in.Messages, schema.UserMessage(CorrectiveInstruction))
	return phaseRetrying
}

func (e *Executor) degrade(r *run, outcome Outcome, cause error) Result {
	text := contractx.DefaultApology
	switch outcome {
	case OutcomeMalformed:
		text = contractx.MalformedApology
	case OutcomeInvocationExhausted:
		text = contractx.SystemErrorApology
	}

	msg := schema.AssistantMessage(text, nil)
	if active := statex.ActiveAgent(r.in.DialogState); active != statex.AgentSupervisor {
		fallback := directivex.NewFallbackEscalation(fallbackEscalationReason)
		msg.ToolCalls = []schema.ToolCall{directivex.ToolCall(fallback)}
	}

	log.Warn().
		Str("outcome", string(outcome)).
		Int("attempts", r.attempts).
		Err(cause).
		Msg("agent turn degraded")

	return Result{Message: msg, Outcome: outcome, Attempts: r.attempts, Err: cause}
}

// isToolCallError reports errors raised by half-formed tool call state, which
// retrying will not fix.
func isToolCallError(err error) bool {
	if errors.Is(err, contractx.ErrToolInvocation) {
		return true
	}
	text := err.Error()
	return strings.Contains(text, "tool_call_id") || strings.Contains(text, "tool_calls")
}

// hasText reports whether msg carries usable text. A multi-part reply counts
// only when its first part has text.
func hasText(msg *schema.Message) bool {
	if msg == nil {
		return false
	}
	if strings.TrimSpace(msg.Content) != "" {
		return true
	}
	if len(msg.MultiContent) > 0 {
		return strings.TrimSpace(msg.MultiContent[0].Text) != ""
	}
	return false
}
