package conciergenode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/travel-concierge/agent/contract"
	statex "github.com/tanpawarit/travel-concierge/agent/state"
)

// LoadOrCreateState takes the session lock and loads the conversation, or
// starts a new one. The lock is held until the caller releases the lease.
func LoadOrCreateState(
	ctx context.Context,
	in *GraphState,
	store statex.Store,
	locker statex.Locker,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	release, err := locker.Lock(ctx, in.SessionID)
	if err != nil {
		return nil, fmt.Errorf("lock session %s: %w", in.SessionID, err)
	}
	in.Lease.set(release)

	st, err := loadOrCreateState(ctx, store, in.SessionID, in.UserContext, in.Now)
	if err != nil {
		return nil, err
	}
	in.Session = st
	return in, nil
}

func loadOrCreateState(
	ctx context.Context,
	store statex.Store,
	sessionID string,
	userContext map[string]any,
	now time.Time,
) (*statex.ConversationState, error) {
	st, err := store.Load(ctx, sessionID)
	if err == nil {
		st.EnsureCollections()
		// The caller's context is authoritative for this turn.
		if len(userContext) > 0 {
			st.UserContext = userContext
		}
		return st, nil
	}
	if !errors.Is(err, statex.ErrStateNotFound) {
		return nil, err
	}

	log.Info().Str("session_id", sessionID).Msg("starting new conversation")
	return statex.NewConversationState(sessionID, userContext, now), nil
}
