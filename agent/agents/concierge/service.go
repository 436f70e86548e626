package concierge

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/travel-concierge/agent/contract"
	executorx "github.com/tanpawarit/travel-concierge/agent/executor"
	nodex "github.com/tanpawarit/travel-concierge/agent/nodes"
	statex "github.com/tanpawarit/travel-concierge/agent/state"
)

var (
	ErrInvalidMessage = nodex.ErrInvalidMessage
	ErrInvalidSession = nodex.ErrInvalidSession
)

type Config struct {
	MaxAttempts   int `split_words:"true" default:"3"`
	MaxHops       int `split_words:"true" default:"4"`
	MaxToolRounds int `split_words:"true" default:"4"`
}

type Option func(*Concierge)

func WithLocker(l statex.Locker) Option {
	return func(c *Concierge) {
		if l != nil {
			c.locker = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Concierge) {
		if now != nil {
			c.now = now
		}
	}
}

// Concierge is the entry point of a conversation turn.
type Concierge struct {
	store  statex.Store
	locker statex.Locker
	dialog nodex.Dialog

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	now func() time.Time
}

func New(store statex.Store, registry contractx.Registry, cfg Config, opts ...Option) (*Concierge, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}
	if registry == nil {
		return nil, errors.New("agent registry is required")
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = executorx.DefaultMaxAttempts
	}

	c := &Concierge{
		store:  store,
		locker: statex.NewLocalLocker(),
		dialog: nodex.Dialog{
			Registry:      registry,
			Executor:      executorx.New(executorx.WithMaxAttempts(maxAttempts)),
			MaxHops:       cfg.MaxHops,
			MaxToolRounds: cfg.MaxToolRounds,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	graphRunner, err := c.compileProcessTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	c.graphRunner = graphRunner

	return c, nil
}

// ProcessTurn handles one user message and returns the reply to show. Model
// failures resolve to an apology; errors are returned only for invalid input
// or when the session cannot be locked, loaded or saved.
func (c *Concierge) ProcessTurn(ctx context.Context, sessionID, message string, userContext map[string]any) (string, error) {
	lease := &nodex.Lease{}
	defer lease.Release()

	out, err := c.graphRunner.Invoke(ctx, nodex.GraphInput{
		SessionID:   sessionID,
		Text:        message,
		UserContext: userContext,
		Lease:       lease,
	})
	if err != nil {
		return "", err
	}

	log.Info().
		Str("session_id", sessionID).
		Str("agent", string(out.ActiveAgent)).
		Str("outcome", out.Outcome).
		Msg("turn processed")
	return out.Reply, nil
}
