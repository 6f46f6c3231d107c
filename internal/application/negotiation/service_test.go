package negotiation

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataspace-hub/dataspace-hub/internal/application/gate"
	"github.com/dataspace-hub/dataspace-hub/internal/domain/catalog"
	domainNegotiation "github.com/dataspace-hub/dataspace-hub/internal/domain/negotiation"
	"github.com/dataspace-hub/dataspace-hub/internal/domain/participant"
	domainPolicy "github.com/dataspace-hub/dataspace-hub/internal/domain/policy"
	"github.com/dataspace-hub/dataspace-hub/internal/domain/svcerror"
	"github.com/dataspace-hub/dataspace-hub/internal/infrastructure/memstore"
)

const (
	consumerID = "did:web:consumer"
	offerID    = "def-1:asset-1:nonce"
)

type stubAuthorizer struct {
	agent        *gate.Agent
	err          error
	messageTypes []string
}

func (a *stubAuthorizer) Verify(ctx context.Context, pctx *participant.Context, token gate.TokenRepresentation, pol domainPolicy.Policy, messageType string) (*gate.Agent, error) {
	a.messageTypes = append(a.messageTypes, messageType)
	if a.err != nil {
		return nil, a.err
	}
	return a.agent, nil
}

type stubOfferResolver struct {
	offer *catalog.ValidatableOffer
	err   error
}

func (r *stubOfferResolver) ResolveOffer(ctx context.Context, id string) (*catalog.ValidatableOffer, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.offer, nil
}

type passValidator struct{}

func (passValidator) ValidateInitialOffer(pctx *participant.Context, agent *gate.Agent, offer *catalog.ValidatableOffer) (*domainNegotiation.Offer, error) {
	return &domainNegotiation.Offer{ID: offer.OfferID, Policy: offer.Policy}, nil
}
func (passValidator) ValidateRequest(agent *gate.Agent, n *domainNegotiation.Negotiation) error {
	return nil
}
func (passValidator) ValidateConfirmed(agent *gate.Agent, agreement *domainNegotiation.Agreement, lastOffer *domainNegotiation.Offer) error {
	return nil
}

type countingListener struct {
	counts map[string]int
}

func newCountingListener() *countingListener {
	return &countingListener{counts: make(map[string]int)}
}

func (l *countingListener) bump(event string) error {
	l.counts[event]++
	return nil
}

func (l *countingListener) Requested(n *domainNegotiation.Negotiation) error  { return l.bump("requested") }
func (l *countingListener) Offered(n *domainNegotiation.Negotiation) error    { return l.bump("offered") }
func (l *countingListener) Accepted(n *domainNegotiation.Negotiation) error   { return l.bump("accepted") }
func (l *countingListener) Agreed(n *domainNegotiation.Negotiation) error     { return l.bump("agreed") }
func (l *countingListener) Verified(n *domainNegotiation.Negotiation) error   { return l.bump("verified") }
func (l *countingListener) Finalized(n *domainNegotiation.Negotiation) error  { return l.bump("finalized") }
func (l *countingListener) Terminated(n *domainNegotiation.Negotiation) error { return l.bump("terminated") }

type fixture struct {
	store    *memstore.NegotiationStore
	svc      *Service
	listener *countingListener
	pctx     *participant.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.NewNegotiationStore()
	listener := newCountingListener()
	auth := &stubAuthorizer{agent: &gate.Agent{Identity: consumerID}}
	offers := &stubOfferResolver{offer: &catalog.ValidatableOffer{
		OfferID:              offerID,
		ParticipantContextID: "pctx-1",
		AssetID:              "asset-1",
		Policy:               domainPolicy.Policy{Target: "asset-1"},
	}}
	svc := NewService(store, auth, passValidator{}, offers, []Listener{listener}, time.Minute, zerolog.Nop())
	return &fixture{
		store:    store,
		svc:      svc,
		listener: listener,
		pctx:     &participant.Context{ID: "pctx-1", ParticipantID: "did:web:provider"},
	}
}

func (f *fixture) request(t *testing.T, messageID string) *domainNegotiation.Negotiation {
	t.Helper()
	n, err := f.svc.NotifyRequested(context.Background(), f.pctx, RequestMessage{
		ID:              messageID,
		ConsumerPID:     "consumer-pid-1",
		CallbackAddress: "https://consumer/callback",
		OfferID:         offerID,
		Protocol:        "dataspace-protocol-http",
	}, gate.TokenRepresentation{Token: "t"})
	require.NoError(t, err)
	return n
}

func TestNotifyRequestedCreatesNegotiation(t *testing.T) {
	f := newFixture(t)
	n := f.request(t, "msg-1")

	assert.Equal(t, domainNegotiation.StateRequested, n.CurrentState())
	assert.Equal(t, "consumer-pid-1", n.CorrelationID)
	assert.Equal(t, consumerID, n.CounterPartyID)
	assert.Equal(t, "msg-1", n.LastProcessedMessageID)
	require.Len(t, n.Offers, 1)
	assert.Equal(t, offerID, n.Offers[0].ID)
	assert.Equal(t, 1, f.listener.counts["requested"])

	// Lease is cleared by the save.
	stored, err := f.store.FindByID(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Lease)
}

func TestRedeliveredInitialRequestCreatesNoSecondEntity(t *testing.T) {
	f := newFixture(t)
	first := f.request(t, "msg-1")
	second := f.request(t, "msg-1")

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, domainNegotiation.StateRequested, second.CurrentState())
	assert.Equal(t, 1, f.listener.counts["requested"], "duplicate must not re-fire listeners")

	all, err := f.store.List(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestDuplicateMessageSuppressedWithoutTransition(t *testing.T) {
	f := newFixture(t)
	n := f.request(t, "msg-1")

	term := TerminationMessage{ID: "msg-2", ProcessID: n.ID, Code: "C1", Reason: "done"}
	_, err := f.svc.NotifyTerminated(context.Background(), f.pctx, term, gate.TokenRepresentation{Token: "t"})
	require.NoError(t, err)

	// Redelivery of the identical message is a no-op success.
	out, err := f.svc.NotifyTerminated(context.Background(), f.pctx, term, gate.TokenRepresentation{Token: "t"})
	require.NoError(t, err)
	assert.Equal(t, domainNegotiation.StateTerminated, out.CurrentState())
	assert.Equal(t, 1, f.listener.counts["terminated"])

	stored, err := f.store.FindByID(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.StateCount, "suppressed duplicate must not bump the state count")
}

func TestLeasedNegotiationConflicts(t *testing.T) {
	f := newFixture(t)
	n := f.request(t, "msg-1")

	// Another worker holds the lease.
	_, err := f.store.FindByIDAndLease(context.Background(), n.ID, "other-worker", time.Minute)
	require.NoError(t, err)

	_, err = f.svc.NotifyTerminated(context.Background(), f.pctx, TerminationMessage{
		ID: "msg-2", ProcessID: n.ID,
	}, gate.TokenRepresentation{Token: "t"})
	require.Error(t, err)
	assert.Equal(t, svcerror.KindConflict, svcerror.KindOf(err))
	assert.True(t, svcerror.Retryable(err))
}

func TestTerminalNegotiationRejectsFurtherMessages(t *testing.T) {
	f := newFixture(t)
	n := f.request(t, "msg-1")

	_, err := f.svc.NotifyTerminated(context.Background(), f.pctx, TerminationMessage{
		ID: "msg-2", ProcessID: n.ID, Code: "C1", Reason: "cancelled",
	}, gate.TokenRepresentation{Token: "t"})
	require.NoError(t, err)

	_, err = f.svc.NotifyAgreed(context.Background(), f.pctx, AgreementMessage{
		ID: "msg-3", ProcessID: n.ID,
		Agreement: domainNegotiation.Agreement{ID: "agr-1", AssetID: "asset-1", ProviderID: consumerID},
	}, gate.TokenRepresentation{Token: "t"})
	require.Error(t, err)
	assert.Equal(t, svcerror.KindBadRequest, svcerror.KindOf(err))

	// A failed transition must not leave the lease behind.
	_, err = f.store.FindByIDAndLease(context.Background(), n.ID, "probe", time.Minute)
	require.NoError(t, err)
}

func TestInvalidTransitionLeavesEntityUntouched(t *testing.T) {
	f := newFixture(t)
	n := f.request(t, "msg-1")

	_, err := f.svc.NotifyVerified(context.Background(), f.pctx, VerificationMessage{
		ID: "msg-2", ProcessID: n.ID,
	}, gate.TokenRepresentation{Token: "t"})
	require.Error(t, err)
	assert.Equal(t, svcerror.KindBadRequest, svcerror.KindOf(err))

	stored, err := f.store.FindByID(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, domainNegotiation.StateRequested, stored.CurrentState())
	assert.Equal(t, "msg-1", stored.LastProcessedMessageID)
}

func TestAgreementRecordedOnAgreed(t *testing.T) {
	f := newFixture(t)
	n := f.request(t, "msg-1")

	out, err := f.svc.NotifyAgreed(context.Background(), f.pctx, AgreementMessage{
		ID: "msg-2", ProcessID: n.ID,
		Agreement: domainNegotiation.Agreement{ID: "agr-1", AssetID: "asset-1", ProviderID: consumerID},
	}, gate.TokenRepresentation{Token: "t"})
	require.NoError(t, err)

	assert.Equal(t, domainNegotiation.StateAgreed, out.CurrentState())
	require.NotNil(t, out.Agreement)
	assert.Equal(t, "agr-1", out.Agreement.ID)
	assert.Equal(t, "pctx-1", out.Agreement.ParticipantContextID)
	assert.Equal(t, 1, f.listener.counts["agreed"])

	// Verification may follow.
	verified, err := f.svc.NotifyVerified(context.Background(), f.pctx, VerificationMessage{
		ID: "msg-3", ProcessID: n.ID,
	}, gate.TokenRepresentation{Token: "t"})
	require.NoError(t, err)
	assert.Equal(t, domainNegotiation.StateVerified, verified.CurrentState())
}

func TestNotifyOfferedCreatesInitiatorSide(t *testing.T) {
	f := newFixture(t)
	n, err := f.svc.NotifyOffered(context.Background(), f.pctx, OfferMessage{
		ID:          "msg-1",
		ProviderPID: "provider-pid-1",
		Offer:       domainNegotiation.Offer{ID: offerID, Policy: domainPolicy.Policy{Target: "asset-1"}},
	}, gate.TokenRepresentation{Token: "t"})
	require.NoError(t, err)

	assert.Equal(t, domainNegotiation.StateOffered, n.CurrentState())
	assert.Equal(t, "provider-pid-1", n.CorrelationID)
	assert.Equal(t, 1, f.listener.counts["offered"])
}

func TestUnauthorizedCallerCreatesNothing(t *testing.T) {
	store := memstore.NewNegotiationStore()
	auth := &stubAuthorizer{err: svcerror.Unauthorized("token verification failed")}
	offers := &stubOfferResolver{offer: &catalog.ValidatableOffer{OfferID: offerID, ParticipantContextID: "pctx-1"}}
	svc := NewService(store, auth, passValidator{}, offers, nil, time.Minute, zerolog.Nop())

	_, err := svc.NotifyRequested(context.Background(), &participant.Context{ID: "pctx-1"}, RequestMessage{
		ID: "msg-1", ConsumerPID: "consumer-pid-1", OfferID: offerID,
	}, gate.TokenRepresentation{Token: "bad"})
	require.Error(t, err)
	assert.Equal(t, svcerror.KindUnauthorized, svcerror.KindOf(err))

	all, err := store.List(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestForeignParticipantContextIsNotFound(t *testing.T) {
	f := newFixture(t)
	n := f.request(t, "msg-1")

	other := &participant.Context{ID: "pctx-2"}
	_, err := f.svc.NotifyTerminated(context.Background(), other, TerminationMessage{
		ID: "msg-2", ProcessID: n.ID,
	}, gate.TokenRepresentation{Token: "t"})
	require.Error(t, err)
	assert.Equal(t, svcerror.KindNotFound, svcerror.KindOf(err))
}

func TestFindByID(t *testing.T) {
	f := newFixture(t)
	n := f.request(t, "msg-1")

	found, err := f.svc.FindByID(context.Background(), f.pctx, n.ID, gate.TokenRepresentation{Token: "t"})
	require.NoError(t, err)
	assert.Equal(t, n.ID, found.ID)

	_, err = f.svc.FindByID(context.Background(), f.pctx, "missing", gate.TokenRepresentation{Token: "t"})
	require.Error(t, err)
	assert.Equal(t, svcerror.KindNotFound, svcerror.KindOf(err))
}
