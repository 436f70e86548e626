package conciergenode

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	statex "github.com/tanpawarit/travel-concierge/agent/state"
)

var (
	ErrInvalidMessage = errors.New("message is empty")
	ErrInvalidSession = errors.New("session id is empty")
)

// Lease holds the session lock for one turn. The caller releases it after the
// graph returns, whether or not a node failed.
type Lease struct {
	mu      sync.Mutex
	release func()
}

func (l *Lease) set(release func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.release = release
}

func (l *Lease) Release() {
	if l == nil {
		return
	}
	l.mu.Lock()
	release := l.release
	l.release = nil
	l.mu.Unlock()
	if release != nil {
		release()
	}
}

type GraphInput struct {
	SessionID   string
	Text        string
	UserContext map[string]any
	Lease       *Lease
}

type GraphOutput struct {
	Reply       string
	ActiveAgent statex.AgentID
	Outcome     string
}

type GraphState struct {
	SessionID   string
	Text        string
	UserContext map[string]any
	Now         time.Time
	Lease       *Lease

	Session *statex.ConversationState

	Reply   *schema.Message
	Outcome string
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrInvalidMessage
	}

	lease := in.Lease
	if lease == nil {
		lease = &Lease{}
	}

	return &GraphState{
		SessionID:   sessionID,
		Text:        text,
		UserContext: in.UserContext,
		Now:         nowFn().UTC(),
		Lease:       lease,
	}, nil
}
