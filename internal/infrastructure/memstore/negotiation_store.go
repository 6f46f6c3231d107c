package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dataspace-hub/dataspace-hub/internal/domain/negotiation"
	"github.com/dataspace-hub/dataspace-hub/internal/domain/process"
	"github.com/dataspace-hub/dataspace-hub/internal/domain/svcerror"
)

// NegotiationStore is a mutex-guarded in-memory negotiation.Store with the
// same lease semantics as the postgres implementation. Used in tests and
// single-node development mode.
type NegotiationStore struct {
	mu       sync.Mutex
	entities map[string]*negotiation.Negotiation
	leases   map[string]*process.Lease
	now      func() time.Time
}

func NewNegotiationStore() *NegotiationStore {
	return &NegotiationStore{
		entities: make(map[string]*negotiation.Negotiation),
		leases:   make(map[string]*process.Lease),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *NegotiationStore) FindByID(ctx context.Context, id string) (*negotiation.Negotiation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.entities[id]
	if !ok {
		return nil, nil
	}
	return n.Copy(), nil
}

func (s *NegotiationStore) FindByCorrelationID(ctx context.Context, correlationID string) (*negotiation.Negotiation, error) {
	if correlationID == "" {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.entities {
		if n.CorrelationID == correlationID {
			return n.Copy(), nil
		}
	}
	return nil, nil
}

func (s *NegotiationStore) FindByAgreementID(ctx context.Context, agreementID string) (*negotiation.Negotiation, error) {
	if agreementID == "" {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.entities {
		if n.Agreement != nil && n.Agreement.ID == agreementID {
			return n.Copy(), nil
		}
	}
	return nil, nil
}

func (s *NegotiationStore) FindByIDAndLease(ctx context.Context, id, ownerToken string, duration time.Duration) (*negotiation.Negotiation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.entities[id]
	if !ok {
		return nil, svcerror.NotFound("no negotiation with id %s found", id)
	}
	now := s.now()
	if l := s.leases[id]; l != nil && !l.Expired(now) {
		return nil, svcerror.Conflict("negotiation %s is leased by another owner", id)
	}
	lease := &process.Lease{OwnerToken: ownerToken, AcquiredAt: now, Duration: duration}
	s.leases[id] = lease
	c := n.Copy()
	held := *lease
	c.Lease = &held
	return c, nil
}

func (s *NegotiationStore) Save(ctx context.Context, n *negotiation.Negotiation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.Lease != nil {
		l := s.leases[n.ID]
		if l == nil || l.OwnerToken != n.Lease.OwnerToken {
			return svcerror.Conflict("lease on negotiation %s was lost", n.ID)
		}
		delete(s.leases, n.ID)
	}
	n.Lease = nil
	s.entities[n.ID] = n.Copy()
	return nil
}

func (s *NegotiationStore) List(ctx context.Context, limit, offset int) ([]*negotiation.Negotiation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]*negotiation.Negotiation, 0, len(s.entities))
	for _, n := range s.entities {
		all = append(all, n.Copy())
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, limit, offset), nil
}

func page[T any](all []T, limit, offset int) []T {
	if offset >= len(all) {
		return nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}
