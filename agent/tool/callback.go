package tool

import (
	"context"
	"strings"
	"time"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
)

const callbackTopic = "human_callback"

// Notifier hands a message to an async delivery queue and returns its id.
type Notifier interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

type sessionKey struct{}

type sessionInfo struct {
	ID          string
	UserContext map[string]any
}

// WithSession makes the session visible to tools that act on behalf of the
// user, such as request_human_callback.
func WithSession(ctx context.Context, sessionID string, userContext map[string]any) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionInfo{ID: sessionID, UserContext: userContext})
}

func sessionFrom(ctx context.Context) sessionInfo {
	info, _ := ctx.Value(sessionKey{}).(sessionInfo)
	return info
}

type CallbackInput struct {
	Reason           string `json:"reason"`
	PreferredContact string `json:"preferred_contact,omitempty"`
}

type CallbackOutput struct {
	Status    string `json:"status"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

type callbackPayload struct {
	SessionID        string         `json:"session_id"`
	Reason           string         `json:"reason"`
	PreferredContact string         `json:"preferred_contact,omitempty"`
	UserContext      map[string]any `json:"user_context,omitempty"`
	RequestedAt      time.Time      `json:"requested_at"`
}

func newRequestHumanCallback(n Notifier, now func() time.Time) einotool.InvokableTool {
	info := &schema.ToolInfo{
		Name: ToolRequestHumanCallback,
		Desc: "Ask a human support agent to contact the user. Use only when the user explicitly wants a person or the issue cannot be resolved here.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"reason":            {Type: schema.String, Desc: "Short summary of what the user needs help with", Required: true},
			"preferred_contact": {Type: schema.String, Desc: "Phone, email or chat, if the user said"},
		}),
	}
	return utils.NewTool[CallbackInput, CallbackOutput](info, func(ctx context.Context, in CallbackInput) (CallbackOutput, error) {
		reason := strings.TrimSpace(in.Reason)
		if reason == "" {
			return CallbackOutput{Status: "rejected", Error: "reason is required"}, nil
		}

		session := sessionFrom(ctx)
		payload := callbackPayload{
			SessionID:        session.ID,
			Reason:           reason,
			PreferredContact: strings.TrimSpace(in.PreferredContact),
			UserContext:      session.UserContext,
			RequestedAt:      now().UTC(),
		}

		id, err := n.Publish(ctx, callbackTopic, payload)
		if err != nil {
			log.Error().Err(err).Str("session_id", session.ID).Msg("failed to queue human callback")
			return CallbackOutput{Status: "failed", Error: "could not reach the support queue"}, nil
		}

		log.Info().Str("session_id", session.ID).Str("message_id", id).Msg("human callback queued")
		return CallbackOutput{Status: "queued", MessageID: id}, nil
	})
}
