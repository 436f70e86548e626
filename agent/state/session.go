package state

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
)

// AgentID names one of the conversational agents that can own a session.
type AgentID string

const (
	AgentSupervisor      AgentID = "supervisor"
	AgentCustomerService AgentID = "customer_service"
	AgentHotel           AgentID = "hotel_agent"
	AgentFlight          AgentID = "flight_agent"
	AgentTour            AgentID = "tour_agent"
)

// KnownAgents lists every agent in registry order.
var KnownAgents = []AgentID{
	AgentSupervisor,
	AgentCustomerService,
	AgentHotel,
	AgentFlight,
	AgentTour,
}

func (a AgentID) IsKnown() bool {
	for _, k := range KnownAgents {
		if a == k {
			return true
		}
	}
	return false
}

// ConversationState is the persisted working memory of one session.
//   - Messages: durable history (user turns and final assistant replies).
//   - DialogState: LIFO stack of active agents, top owns the conversation.
//   - UserContext: identity/profile supplied by the caller, never mutated here.
type ConversationState struct {
	SessionID   string            `json:"session_id"`
	// Version counts saved turns; a state that was never saved is at 0.
	Version     int               `json:"version"`
	Messages    []*schema.Message `json:"messages,omitempty"`
	DialogState []AgentID         `json:"dialog_state,omitempty"`
	UserContext map[string]any    `json:"user_context,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

var (
	ErrNilState        = errors.New("conversation state is nil")
	ErrUnknownAgent    = errors.New("dialog state references unknown agent")
	ErrInvalidMessages = errors.New("conversation messages are invalid")
)

func NewConversationState(sessionID string, userContext map[string]any, now time.Time) *ConversationState {
	if userContext == nil {
		userContext = map[string]any{}
	}
	return &ConversationState{
		SessionID:   sessionID,
		Version:     0,
		Messages:    make([]*schema.Message, 0, 8),
		DialogState: []AgentID{},
		UserContext: userContext,
		UpdatedAt:   now.UTC(),
	}
}

func (s *ConversationState) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

// ActiveAgent returns the agent currently owning the conversation.
func (s *ConversationState) ActiveAgent() AgentID {
	if s == nil {
		return AgentSupervisor
	}
	return ActiveAgent(s.DialogState)
}

// Append commits messages to the durable history.
func (s *ConversationState) Append(msgs ...*schema.Message) {
	for _, m := range msgs {
		if m != nil {
			s.Messages = append(s.Messages, m)
		}
	}
}

// History returns a copy of the durable history safe for a working list.
func (s *ConversationState) History() []*schema.Message {
	if s == nil {
		return []*schema.Message{}
	}
	return append(make([]*schema.Message, 0, len(s.Messages)+4), s.Messages...)
}

// EnsureCollections replaces nil collections after decoding.
func (s *ConversationState) EnsureCollections() {
	if s.Messages == nil {
		s.Messages = make([]*schema.Message, 0, 8)
	}
	if s.DialogState == nil {
		s.DialogState = []AgentID{}
	}
	if s.UserContext == nil {
		s.UserContext = map[string]any{}
	}
}

func (s *ConversationState) Validate() error {
	if s == nil {
		return ErrNilState
	}
	if strings.TrimSpace(s.SessionID) == "" {
		return ErrInvalidSession
	}
	for i, id := range s.DialogState {
		if !id.IsKnown() {
			return fmt.Errorf("%w: dialog_state[%d]=%q", ErrUnknownAgent, i, id)
		}
	}
	for i, m := range s.Messages {
		if m == nil {
			return fmt.Errorf("%w: message %d is nil", ErrInvalidMessages, i)
		}
	}
	return nil
}
