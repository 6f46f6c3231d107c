package transfer

import (
	"context"
	"time"
)

// Store persists transfer processes with the same lease semantics as the
// negotiation store: atomic lease acquisition on read, lease release on save,
// conflict when another owner holds or took over the lease.
type Store interface {
	// FindByID returns (nil, nil) when no process matches.
	FindByID(ctx context.Context, id string) (*Process, error)

	// FindByCorrelationID looks a process up by the counterpart's id.
	// Returns (nil, nil) when none matches.
	FindByCorrelationID(ctx context.Context, correlationID string) (*Process, error)

	// FindByIDAndLease atomically leases and returns the process.
	FindByIDAndLease(ctx context.Context, id, ownerToken string, duration time.Duration) (*Process, error)

	// Save persists the process and clears its lease.
	Save(ctx context.Context, p *Process) error

	// List returns processes for the management API, newest first.
	List(ctx context.Context, limit, offset int) ([]*Process, error)
}
