package negotiation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataspace-hub/dataspace-hub/internal/domain/policy"
	"github.com/dataspace-hub/dataspace-hub/internal/domain/process"
)

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    State
		to      State
		allowed bool
	}{
		{name: "requested to offered", from: StateRequested, to: StateOffered, allowed: true},
		{name: "requested to agreed", from: StateRequested, to: StateAgreed, allowed: true},
		{name: "requested re-entry", from: StateRequested, to: StateRequested, allowed: true},
		{name: "requested to verified skips", from: StateRequested, to: StateVerified, allowed: false},
		{name: "offered back to requested", from: StateOffered, to: StateRequested, allowed: true},
		{name: "offered to accepted", from: StateOffered, to: StateAccepted, allowed: true},
		{name: "accepted to agreed", from: StateAccepted, to: StateAgreed, allowed: true},
		{name: "agreed to verified", from: StateAgreed, to: StateVerified, allowed: true},
		{name: "verified to finalized", from: StateVerified, to: StateFinalized, allowed: true},
		{name: "any non-terminal may terminate", from: StateAgreed, to: StateTerminated, allowed: true},
		{name: "finalized is terminal", from: StateFinalized, to: StateTerminated, allowed: false},
		{name: "terminated is terminal", from: StateTerminated, to: StateRequested, allowed: false},
		{name: "terminated re-entry refused", from: StateTerminated, to: StateTerminated, allowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestNewNegotiation(t *testing.T) {
	n := New("n1", "c1", "pctx", "counterparty", "https://cb", "dsp", process.TypeResponder)

	require.NotNil(t, n)
	assert.Equal(t, "n1", n.ID)
	assert.Equal(t, "c1", n.CorrelationID)
	assert.Equal(t, 0, n.State)
	assert.Equal(t, 1, n.StateCount)
	assert.False(t, n.CreatedAt.IsZero())
}

func TestTransitionFromFreshEntity(t *testing.T) {
	n := New("n1", "c1", "pctx", "cp", "", "dsp", process.TypeResponder)

	require.NoError(t, n.Transition(StateRequested))
	assert.Equal(t, StateRequested, n.CurrentState())

	require.NoError(t, n.Transition(StateOffered))
	require.NoError(t, n.Transition(StateAccepted))
	assert.Equal(t, []int{0, int(StateRequested), int(StateOffered)}, n.PreviousStates)
}

func TestTransitionRejected(t *testing.T) {
	n := New("n1", "c1", "pctx", "cp", "", "dsp", process.TypeResponder)
	require.NoError(t, n.Transition(StateRequested))

	err := n.Transition(StateVerified)
	require.ErrorIs(t, err, process.ErrInvalidTransition)
	assert.Equal(t, StateRequested, n.CurrentState(), "failed transition must not change state")
}

func TestTerminalStateRefusesEverything(t *testing.T) {
	n := New("n1", "c1", "pctx", "cp", "", "dsp", process.TypeResponder)
	require.NoError(t, n.Transition(StateRequested))
	require.NoError(t, n.Transition(StateTerminated))

	assert.Error(t, n.Transition(StateRequested))
	assert.Error(t, n.Transition(StateTerminated))
}

func TestOffersAndAgreement(t *testing.T) {
	n := New("n1", "c1", "pctx", "cp", "", "dsp", process.TypeResponder)
	assert.Nil(t, n.LastOffer())

	n.AddOffer(Offer{ID: "o1", Policy: policy.Policy{Target: "asset-1"}})
	n.AddOffer(Offer{ID: "o2", Policy: policy.Policy{Target: "asset-2"}})

	last := n.LastOffer()
	require.NotNil(t, last)
	assert.Equal(t, "o2", last.ID)
	assert.Equal(t, "asset-2", last.AssetID())

	n.SetAgreement(Agreement{ID: "a1", AssetID: "asset-2"})
	require.NotNil(t, n.Agreement)
	assert.Equal(t, "a1", n.Agreement.ID)
}

func TestCopyDetached(t *testing.T) {
	n := New("n1", "c1", "pctx", "cp", "", "dsp", process.TypeResponder)
	n.AddOffer(Offer{ID: "o1"})
	n.SetAgreement(Agreement{ID: "a1"})

	c := n.Copy()
	c.Offers[0].ID = "changed"
	c.Agreement.ID = "changed"

	assert.Equal(t, "o1", n.Offers[0].ID)
	assert.Equal(t, "a1", n.Agreement.ID)
}
