package contract

import (
	"github.com/cloudwego/eino/schema"
	statex "github.com/tanpawarit/travel-concierge/agent/state"
)

// Fixed user-facing replies used when a turn degrades.
const (
	DefaultApology     = "I'm sorry, I couldn't put together a response just now. Could you rephrase your request?"
	MalformedApology   = "I'm sorry, something went wrong while handling your request. Please try again."
	SystemErrorApology = "I'm sorry, we're having technical difficulties at the moment. Please try again shortly."
)

// TurnInput is what an agent unit receives on every invocation.
type TurnInput struct {
	Messages    []*schema.Message `json:"messages"`
	UserContext map[string]any    `json:"user_context"`
	DialogState []statex.AgentID  `json:"dialog_state"`
}

// Normalized returns a copy with nil collections replaced by empty ones.
func (in TurnInput) Normalized() TurnInput {
	out := TurnInput{
		Messages:    append(make([]*schema.Message, 0, len(in.Messages)), in.Messages...),
		UserContext: in.UserContext,
		DialogState: append(make([]statex.AgentID, 0, len(in.DialogState)), in.DialogState...),
	}
	if out.UserContext == nil {
		out.UserContext = map[string]any{}
	}
	return out
}
