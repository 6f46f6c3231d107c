package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dataspace-hub/dataspace-hub/internal/domain/process"
	"github.com/dataspace-hub/dataspace-hub/internal/domain/svcerror"
	"github.com/dataspace-hub/dataspace-hub/internal/domain/transfer"
)

// TransferStore is the in-memory transfer.Store counterpart of
// NegotiationStore.
type TransferStore struct {
	mu       sync.Mutex
	entities map[string]*transfer.Process
	leases   map[string]*process.Lease
	now      func() time.Time
}

func NewTransferStore() *TransferStore {
	return &TransferStore{
		entities: make(map[string]*transfer.Process),
		leases:   make(map[string]*process.Lease),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *TransferStore) FindByID(ctx context.Context, id string) (*transfer.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.entities[id]
	if !ok {
		return nil, nil
	}
	return p.Copy(), nil
}

func (s *TransferStore) FindByCorrelationID(ctx context.Context, correlationID string) (*transfer.Process, error) {
	if correlationID == "" {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.entities {
		if p.CorrelationID == correlationID {
			return p.Copy(), nil
		}
	}
	return nil, nil
}

func (s *TransferStore) FindByIDAndLease(ctx context.Context, id, ownerToken string, duration time.Duration) (*transfer.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.entities[id]
	if !ok {
		return nil, svcerror.NotFound("no transfer process with id %s found", id)
	}
	now := s.now()
	if l := s.leases[id]; l != nil && !l.Expired(now) {
		return nil, svcerror.Conflict("transfer process %s is leased by another owner", id)
	}
	lease := &process.Lease{OwnerToken: ownerToken, AcquiredAt: now, Duration: duration}
	s.leases[id] = lease
	c := p.Copy()
	held := *lease
	c.Lease = &held
	return c, nil
}

func (s *TransferStore) Save(ctx context.Context, p *transfer.Process) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Lease != nil {
		l := s.leases[p.ID]
		if l == nil || l.OwnerToken != p.Lease.OwnerToken {
			return svcerror.Conflict("lease on transfer process %s was lost", p.ID)
		}
		delete(s.leases, p.ID)
	}
	p.Lease = nil
	s.entities[p.ID] = p.Copy()
	return nil
}

func (s *TransferStore) List(ctx context.Context, limit, offset int) ([]*transfer.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]*transfer.Process, 0, len(s.entities))
	for _, p := range s.entities {
		all = append(all, p.Copy())
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, limit, offset), nil
}
