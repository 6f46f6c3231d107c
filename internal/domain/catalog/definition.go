package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dataspace-hub/dataspace-hub/internal/domain/policy"
)

// Definition is a published contract definition: the policy under which one
// asset is offered by one participant context.
type Definition struct {
	ID                   string        `json:"id"`
	ParticipantContextID string        `json:"participantContextId"`
	AssetID              string        `json:"assetId"`
	Policy               policy.Policy `json:"policy"`
	CreatedAt            time.Time     `json:"createdAt"`
}

// Repository persists contract definitions.
type Repository interface {
	// GetByID returns (nil, nil) when no definition matches.
	GetByID(ctx context.Context, id string) (*Definition, error)
	Create(ctx context.Context, d *Definition) error
	List(ctx context.Context, limit, offset int) ([]*Definition, error)
}

// ValidatableOffer is a resolved offer: the referenced definition plus the
// policy an inbound request must be evaluated against.
type ValidatableOffer struct {
	OfferID              string
	ParticipantContextID string
	AssetID              string
	Policy               policy.Policy
}

// ParseOfferID splits a composite offer id of the form
// "definitionId:assetId:nonce".
func ParseOfferID(offerID string) (definitionID, assetID string, err error) {
	parts := strings.Split(offerID, ":")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed offer id: %s", offerID)
	}
	return parts[0], parts[1], nil
}
