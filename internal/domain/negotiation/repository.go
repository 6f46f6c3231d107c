package negotiation

import (
	"context"
	"time"
)

// Store persists negotiations and arbitrates exclusive access to them.
//
// FindByIDAndLease must acquire the lease atomically against concurrent
// callers: it succeeds when no lease exists or the existing one expired, and
// fails with a conflict otherwise. Save persists the entity and releases its
// lease in one atomic write; when the lease lapsed and was taken over by
// another owner it fails with a conflict and discards the caller's changes.
type Store interface {
	// FindByID returns (nil, nil) when no negotiation matches.
	FindByID(ctx context.Context, id string) (*Negotiation, error)

	// FindByCorrelationID looks a negotiation up by the counterpart's
	// process id. Returns (nil, nil) when none matches.
	FindByCorrelationID(ctx context.Context, correlationID string) (*Negotiation, error)

	// FindByAgreementID returns the negotiation holding the agreement, or
	// (nil, nil).
	FindByAgreementID(ctx context.Context, agreementID string) (*Negotiation, error)

	// FindByIDAndLease atomically leases and returns the negotiation.
	FindByIDAndLease(ctx context.Context, id, ownerToken string, duration time.Duration) (*Negotiation, error)

	// Save persists the negotiation and clears its lease. A negotiation
	// without a lease is inserted (or plainly updated) instead.
	Save(ctx context.Context, n *Negotiation) error

	// List returns negotiations for the management API, newest first.
	List(ctx context.Context, limit, offset int) ([]*Negotiation, error)
}
