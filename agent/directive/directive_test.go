package directive

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	contractx "github.com/tanpawarit/travel-concierge/agent/contract"
	statex "github.com/tanpawarit/travel-concierge/agent/state"
)

func call(id, name, args string) schema.ToolCall {
	return schema.ToolCall{
		ID:       id,
		Type:     "function",
		Function: schema.FunctionCall{Name: name, Arguments: args},
	}
}

func TestDecodeHandoff(t *testing.T) {
	t.Parallel()

	d, ok, err := Decode(call("call_1", NameToHotelAgent, `{"location":"Bali","checkin_date":"2026-11-02","request":"find a hotel in Bali"}`))
	require.NoError(t, err)
	require.True(t, ok)

	h, isHandoff := d.(Handoff)
	require.True(t, isHandoff)
	assert.Equal(t, "call_1", h.ID())
	assert.Equal(t, statex.AgentHotel, h.Target())
	assert.Equal(t, "find a hotel in Bali", h.Request())
	assert.Equal(t, "location=Bali, checkin_date=2026-11-02", h.Details())
}

func TestDecodeHandoffRequestOnly(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name   string
		target statex.AgentID
	}{
		{NameToHotelAgent, statex.AgentHotel},
		{NameToFlightAgent, statex.AgentFlight},
		{NameToTourAgent, statex.AgentTour},
	} {
		d, ok, err := Decode(call("call_1", tc.name, `{"request":"find a hotel in Bali"}`))
		require.NoError(t, err, tc.name)
		require.True(t, ok)
		h := d.(Handoff)
		assert.Equal(t, tc.target, h.Target())
		assert.Equal(t, "find a hotel in Bali", h.Request())
		assert.Empty(t, h.Details())
	}
}

func TestDecodeCompleteOrEscalateDefaultsCancel(t *testing.T) {
	t.Parallel()

	d, ok, err := Decode(call("call_2", NameCompleteOrEscalate, `{"reason":"user changed mind"}`))
	require.NoError(t, err)
	require.True(t, ok)

	c, isComplete := d.(CompleteOrEscalate)
	require.True(t, isComplete)
	assert.True(t, c.Cancel)
	assert.Equal(t, "user changed mind", c.Reason)

	d, _, err = Decode(call("call_3", NameCompleteOrEscalate, `{"cancel":false,"reason":"done"}`))
	require.NoError(t, err)
	assert.False(t, d.(CompleteOrEscalate).Cancel)
}

func TestDecodeOrdinaryTool(t *testing.T) {
	t.Parallel()

	d, ok, err := Decode(call("call_4", "search_hotels", `{"location":"Bali"}`))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, d)
}

func TestDecodeMalformed(t *testing.T) {
	t.Parallel()

	cases := map[string]schema.ToolCall{
		"missing id":       call("", NameToTourAgent, `{"destination":"Kyoto","request":"tea ceremony"}`),
		"missing request":  call("call_5", NameToFlightAgent, `{"route":"BKK-DPS"}`),
		"empty request":    call("call_8", NameToHotelAgent, `{"request":""}`),
		"wrong type":       call("call_6", NameCompleteOrEscalate, `{"cancel":"yes"}`),
		"broken json":      call("call_7", NameToCustomerService, `{"request":`),
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, ok, err := Decode(tc)
			assert.True(t, ok)
			assert.ErrorIs(t, err, contractx.ErrMalformedDirective)
		})
	}
}

func TestSplit(t *testing.T) {
	t.Parallel()

	msg := schema.AssistantMessage("", []schema.ToolCall{
		call("call_1", "search_tours", `{"destination":"Kyoto"}`),
		call("call_2", NameCompleteOrEscalate, `{"reason":"done"}`),
	})
	directives, ordinary, err := Split(msg)
	require.NoError(t, err)
	require.Len(t, directives, 1)
	require.Len(t, ordinary, 1)
	assert.Equal(t, "search_tours", ordinary[0].Function.Name)

	msg.ToolCalls = append(msg.ToolCalls, call("", "search_tours", `{}`))
	_, _, err = Split(msg)
	assert.ErrorIs(t, err, contractx.ErrMalformedDirective)
}

func TestToolCallRoundTrip(t *testing.T) {
	t.Parallel()

	fallback := NewFallbackEscalation("agent failed to respond")
	d, ok, err := Decode(ToolCall(fallback))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, fallback, d)
}

func TestToolInfos(t *testing.T) {
	t.Parallel()

	supervisor := ToolInfos(statex.AgentSupervisor)
	require.Len(t, supervisor, 4)
	for _, info := range supervisor {
		assert.NotEqual(t, NameCompleteOrEscalate, info.Name)
	}

	hotel := ToolInfos(statex.AgentHotel)
	require.Len(t, hotel, 1)
	assert.Equal(t, NameCompleteOrEscalate, hotel[0].Name)
}
