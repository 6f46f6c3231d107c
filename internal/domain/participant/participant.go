package participant

import (
	"context"
	"time"
)

// Context is the identity the local connector presents within one dataspace
// context. Immutable once created; a participant may present different
// identities to different dataspaces.
type Context struct {
	ID            string    `json:"id"`
	ParticipantID string    `json:"participantId"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Repository persists participant contexts.
type Repository interface {
	// GetByID returns (nil, nil) when no context matches.
	GetByID(ctx context.Context, id string) (*Context, error)
	Create(ctx context.Context, pc *Context) error
	List(ctx context.Context, limit, offset int) ([]*Context, error)
}
