package conciergenode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/travel-concierge/agent/contract"
	statex "github.com/tanpawarit/travel-concierge/agent/state"
)

// ValidateAndSaveState commits the final reply and persists the turn. It runs
// while the session lock is still held.
func ValidateAndSaveState(
	ctx context.Context,
	in *GraphState,
	store statex.Store,
) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	if in.Reply == nil {
		return nil, fmt.Errorf("%w: turn produced no reply", contractx.ErrValidation)
	}

	in.Session.Append(in.Reply)
	in.Session.Version++
	in.Session.Touch(in.Now)
	if err := in.Session.Validate(); err != nil {
		return nil, fmt.Errorf("state validation failed: %w", err)
	}
	if err := store.Save(ctx, in.Session); err != nil {
		return nil, err
	}

	return in, nil
}
