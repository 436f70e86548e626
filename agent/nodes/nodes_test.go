package conciergenode

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	contractx "github.com/tanpawarit/travel-concierge/agent/contract"
	executorx "github.com/tanpawarit/travel-concierge/agent/executor"
	statex "github.com/tanpawarit/travel-concierge/agent/state"
)

var testNow = time.Date(2026, 10, 17, 8, 30, 0, 0, time.UTC)

type memoryStore struct {
	state   *statex.ConversationState
	loadErr error
	saveErr error
	saved   *statex.ConversationState
}

func (m *memoryStore) Load(ctx context.Context, sessionID string) (*statex.ConversationState, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.state == nil {
		return nil, statex.ErrStateNotFound
	}
	return m.state, nil
}

func (m *memoryStore) Save(ctx context.Context, st *statex.ConversationState) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = st
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, sessionID string) error { return nil }

type failingLocker struct{ err error }

func (f failingLocker) Lock(ctx context.Context, sessionID string) (func(), error) {
	return nil, f.err
}

type scriptedUnit struct {
	kind    statex.AgentID
	replies []*schema.Message
	toolErr error
	seen    [][]*schema.Message
}

func (s *scriptedUnit) Kind() statex.AgentID { return s.kind }

func (s *scriptedUnit) Invoke(ctx context.Context, in contractx.TurnInput) (*schema.Message, error) {
	s.seen = append(s.seen, in.Messages)
	msg := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return msg, nil
}

func (s *scriptedUnit) RunTools(ctx context.Context, msg *schema.Message) ([]*schema.Message, error) {
	if s.toolErr != nil {
		return nil, s.toolErr
	}
	return []*schema.Message{schema.ToolMessage(`{"status":"queued"}`, msg.ToolCalls[0].ID)}, nil
}

type unitMap map[statex.AgentID]contractx.AgentUnit

func (u unitMap) Unit(kind statex.AgentID) (contractx.AgentUnit, bool) {
	unit, ok := u[kind]
	return unit, ok
}

func readyState(stack ...statex.AgentID) *GraphState {
	st := statex.NewConversationState("s-1", nil, testNow)
	st.DialogState = stack
	st.Append(schema.UserMessage("I need to cancel my booking"))
	return &GraphState{SessionID: "s-1", Text: "I need to cancel my booking", Now: testNow, Lease: &Lease{}, Session: st}
}

func TestValidateRequest(t *testing.T) {
	t.Parallel()

	_, err := ValidateRequest(GraphInput{SessionID: "", Text: "hi"}, time.Now)
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = ValidateRequest(GraphInput{SessionID: "s-1", Text: "\n\t"}, time.Now)
	assert.ErrorIs(t, err, ErrInvalidMessage)

	local := time.Date(2026, 10, 17, 15, 30, 0, 0, time.FixedZone("ICT", 7*3600))
	got, err := ValidateRequest(GraphInput{SessionID: " s-1 ", Text: " hello "}, func() time.Time { return local })
	require.NoError(t, err)
	assert.Equal(t, "s-1", got.SessionID)
	assert.Equal(t, "hello", got.Text)
	assert.Equal(t, time.UTC, got.Now.Location())
	assert.NotNil(t, got.Lease)
}

func TestLeaseReleaseOnce(t *testing.T) {
	t.Parallel()

	calls := 0
	l := &Lease{}
	l.set(func() { calls++ })
	l.Release()
	l.Release()
	assert.Equal(t, 1, calls)

	var nilLease *Lease
	assert.NotPanics(t, func() { nilLease.Release() })
}

func TestLoadOrCreateStateCreatesNewSession(t *testing.T) {
	t.Parallel()

	locker := statex.NewLocalLocker()
	in := &GraphState{SessionID: "s-new", Now: testNow, Lease: &Lease{}, UserContext: map[string]any{"tier": "gold"}}

	got, err := LoadOrCreateState(context.Background(), in, &memoryStore{}, locker)
	require.NoError(t, err)
	require.NotNil(t, got.Session)
	assert.Equal(t, "s-new", got.Session.SessionID)
	assert.Equal(t, "gold", got.Session.UserContext["tier"])
	assert.Empty(t, got.Session.DialogState)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "s-new")
	assert.Error(t, err, "lease must hold the lock until released")

	in.Lease.Release()
	release, err := locker.Lock(context.Background(), "s-new")
	require.NoError(t, err)
	release()
}

func TestLoadOrCreateStateUserContextOverride(t *testing.T) {
	t.Parallel()

	stored := statex.NewConversationState("s-1", map[string]any{"tier": "silver"}, testNow)
	stored.DialogState = nil
	stored.Messages = nil
	store := &memoryStore{state: stored}

	kept, err := LoadOrCreateState(context.Background(), &GraphState{SessionID: "s-1", Lease: &Lease{}}, store, statex.NewLocalLocker())
	require.NoError(t, err)
	assert.Equal(t, "silver", kept.Session.UserContext["tier"])
	assert.NotNil(t, kept.Session.DialogState)
	assert.NotNil(t, kept.Session.Messages)
	kept.Lease.Release()

	in := &GraphState{SessionID: "s-1", Lease: &Lease{}, UserContext: map[string]any{"tier": "gold"}}
	replaced, err := LoadOrCreateState(context.Background(), in, store, statex.NewLocalLocker())
	require.NoError(t, err)
	assert.Equal(t, "gold", replaced.Session.UserContext["tier"])
	replaced.Lease.Release()
}

func TestLoadOrCreateStateErrors(t *testing.T) {
	t.Parallel()

	lockErr := errors.New("lock backend down")
	_, err := LoadOrCreateState(context.Background(), &GraphState{SessionID: "s-1", Lease: &Lease{}}, &memoryStore{}, failingLocker{err: lockErr})
	assert.ErrorIs(t, err, lockErr)

	loadErr := errors.New("decode failed")
	in := &GraphState{SessionID: "s-1", Lease: &Lease{}}
	_, err = LoadOrCreateState(context.Background(), in, &memoryStore{loadErr: loadErr}, statex.NewLocalLocker())
	assert.ErrorIs(t, err, loadErr)
	in.Lease.Release()
}

func TestRunDialogRequiresConfiguration(t *testing.T) {
	t.Parallel()

	_, err := RunDialog(context.Background(), readyState(), Dialog{})
	assert.ErrorIs(t, err, contractx.ErrConfiguration)
}

func TestRunDialogToolFailureApologizes(t *testing.T) {
	t.Parallel()

	call := schema.AssistantMessage("", []schema.ToolCall{{
		ID:       "call_cb",
		Type:     "function",
		Function: schema.FunctionCall{Name: "request_human_callback", Arguments: `{"reason":"refund"}`},
	}})
	unit := &scriptedUnit{kind: statex.AgentCustomerService, replies: []*schema.Message{call}, toolErr: errors.New("boom")}
	in := readyState(statex.AgentSupervisor, statex.AgentCustomerService)

	got, err := RunDialog(context.Background(), in, Dialog{
		Registry: unitMap{statex.AgentCustomerService: unit},
		Executor: executorx.New(),
	})
	require.NoError(t, err)
	assert.Equal(t, contractx.DefaultApology, got.Reply.Content)
	assert.Equal(t, OutcomeToolFailed, got.Outcome)
	assert.Equal(t, []statex.AgentID{statex.AgentSupervisor, statex.AgentCustomerService}, got.Session.DialogState)
	assert.Len(t, got.Session.Messages, 1)
}

func TestRunDialogKeepsToolScratchOutOfHistory(t *testing.T) {
	t.Parallel()

	call := schema.AssistantMessage("", []schema.ToolCall{{
		ID:       "call_cb",
		Type:     "function",
		Function: schema.FunctionCall{Name: "request_human_callback", Arguments: `{"reason":"refund"}`},
	}})
	unit := &scriptedUnit{
		kind:    statex.AgentCustomerService,
		replies: []*schema.Message{call, schema.AssistantMessage("  A specialist will call you back.  ", nil)},
	}
	in := readyState(statex.AgentSupervisor, statex.AgentCustomerService)

	got, err := RunDialog(context.Background(), in, Dialog{
		Registry: unitMap{statex.AgentCustomerService: unit},
		Executor: executorx.New(),
	})
	require.NoError(t, err)
	assert.Equal(t, "A specialist will call you back.", got.Reply.Content)
	assert.Equal(t, string(executorx.OutcomeOK), got.Outcome)
	require.Len(t, unit.seen, 2)
	assert.Len(t, unit.seen[1], 3)
	assert.Len(t, got.Session.Messages, 1)
}

func TestValidateAndSaveState(t *testing.T) {
	t.Parallel()

	in := readyState(statex.AgentSupervisor)
	in.Reply = schema.AssistantMessage("Done.", nil)
	store := &memoryStore{}

	got, err := ValidateAndSaveState(context.Background(), in, store)
	require.NoError(t, err)
	require.NotNil(t, store.saved)
	assert.Equal(t, 1, got.Session.Version)
	assert.Len(t, store.saved.Messages, 2)

	_, err = ValidateAndSaveState(context.Background(), readyState(), store)
	assert.ErrorIs(t, err, contractx.ErrValidation)

	saveErr := errors.New("write failed")
	in = readyState()
	in.Reply = schema.AssistantMessage("Done.", nil)
	_, err = ValidateAndSaveState(context.Background(), in, &memoryStore{saveErr: saveErr})
	assert.ErrorIs(t, err, saveErr)
}

func TestFinalizeReply(t *testing.T) {
	t.Parallel()

	in := readyState(statex.AgentSupervisor, statex.AgentHotel)
	in.Reply = schema.AssistantMessage("   ", nil)
	in.Outcome = "ok"

	out, err := FinalizeReply(in)
	require.NoError(t, err)
	assert.Equal(t, contractx.DefaultApology, out.Reply)
	assert.Equal(t, statex.AgentHotel, out.ActiveAgent)
	assert.Equal(t, "ok", out.Outcome)

	_, err = FinalizeReply(nil)
	assert.ErrorIs(t, err, contractx.ErrValidation)
}
