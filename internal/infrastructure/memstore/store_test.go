package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataspace-hub/dataspace-hub/internal/domain/negotiation"
	"github.com/dataspace-hub/dataspace-hub/internal/domain/process"
	"github.com/dataspace-hub/dataspace-hub/internal/domain/svcerror"
	"github.com/dataspace-hub/dataspace-hub/internal/domain/transfer"
)

func seedNegotiation(t *testing.T, s *NegotiationStore, id string) {
	t.Helper()
	n := negotiation.New(id, "corr-"+id, "pctx", "cp", "", "dsp", process.TypeResponder)
	require.NoError(t, s.Save(context.Background(), n))
}

func TestNegotiationRoundTrip(t *testing.T) {
	s := NewNegotiationStore()
	ctx := context.Background()
	seedNegotiation(t, s, "n1")

	n, err := s.FindByID(ctx, "n1")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "corr-n1", n.CorrelationID)

	byCorr, err := s.FindByCorrelationID(ctx, "corr-n1")
	require.NoError(t, err)
	require.NotNil(t, byCorr)
	assert.Equal(t, "n1", byCorr.ID)

	missing, err := s.FindByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFindByAgreementID(t *testing.T) {
	s := NewNegotiationStore()
	ctx := context.Background()
	n := negotiation.New("n1", "c1", "pctx", "cp", "", "dsp", process.TypeResponder)
	n.SetAgreement(negotiation.Agreement{ID: "agr-1"})
	require.NoError(t, s.Save(ctx, n))

	found, err := s.FindByAgreementID(ctx, "agr-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "n1", found.ID)

	none, err := s.FindByAgreementID(ctx, "agr-2")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestLeaseIsExclusive(t *testing.T) {
	s := NewNegotiationStore()
	ctx := context.Background()
	seedNegotiation(t, s, "n1")

	first, err := s.FindByIDAndLease(ctx, "n1", "owner-a", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, first.Lease)
	assert.Equal(t, "owner-a", first.Lease.OwnerToken)

	_, err = s.FindByIDAndLease(ctx, "n1", "owner-b", time.Minute)
	require.Error(t, err)
	assert.Equal(t, svcerror.KindConflict, svcerror.KindOf(err))
	assert.True(t, svcerror.Retryable(err))

	// Saving under the held lease releases it for the next owner.
	require.NoError(t, s.Save(ctx, first))
	_, err = s.FindByIDAndLease(ctx, "n1", "owner-b", time.Minute)
	require.NoError(t, err)
}

func TestExpiredLeaseIsTakenOver(t *testing.T) {
	s := NewNegotiationStore()
	ctx := context.Background()
	seedNegotiation(t, s, "n1")

	now := time.Now().UTC()
	s.now = func() time.Time { return now }
	stale, err := s.FindByIDAndLease(ctx, "n1", "owner-a", time.Minute)
	require.NoError(t, err)

	s.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, err = s.FindByIDAndLease(ctx, "n1", "owner-b", time.Minute)
	require.NoError(t, err)

	// The original owner's save must now fail and discard its changes.
	stale.CounterPartyAddress = "https://late-write"
	err = s.Save(ctx, stale)
	require.Error(t, err)
	assert.Equal(t, svcerror.KindConflict, svcerror.KindOf(err))

	current, err := s.FindByID(ctx, "n1")
	require.NoError(t, err)
	assert.Empty(t, current.CounterPartyAddress)
}

func TestLeaseNotFound(t *testing.T) {
	s := NewNegotiationStore()
	_, err := s.FindByIDAndLease(context.Background(), "missing", "o", time.Minute)
	require.Error(t, err)
	assert.Equal(t, svcerror.KindNotFound, svcerror.KindOf(err))
}

func TestList(t *testing.T) {
	s := NewNegotiationStore()
	for _, id := range []string{"n1", "n2", "n3"} {
		seedNegotiation(t, s, id)
	}
	all, err := s.List(context.Background(), 2, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	rest, err := s.List(context.Background(), 10, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

func TestTransferLease(t *testing.T) {
	s := NewTransferStore()
	ctx := context.Background()
	p := transfer.New("t1", "c1", "pctx", "cp", "", "dsp", process.TypeResponder, "agr-1", "asset-1")
	require.NoError(t, s.Save(ctx, p))

	leased, err := s.FindByIDAndLease(ctx, "t1", "owner-a", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, leased.Lease)

	_, err = s.FindByIDAndLease(ctx, "t1", "owner-b", time.Minute)
	require.Error(t, err)
	assert.Equal(t, svcerror.KindConflict, svcerror.KindOf(err))

	require.NoError(t, s.Save(ctx, leased))
	found, err := s.FindByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "agr-1", found.AgreementID)
}
