package catalog

import (
	"context"

	"github.com/rs/zerolog"

	domainCatalog "github.com/dataspace-hub/dataspace-hub/internal/domain/catalog"
	domainNegotiation "github.com/dataspace-hub/dataspace-hub/internal/domain/negotiation"
	"github.com/dataspace-hub/dataspace-hub/internal/domain/svcerror"
)

// OfferResolver resolves composite offer ids against the published contract
// definitions. Used at negotiation creation time only.
type OfferResolver struct {
	definitions domainCatalog.Repository
	logger      zerolog.Logger
}

func NewOfferResolver(definitions domainCatalog.Repository, logger zerolog.Logger) *OfferResolver {
	return &OfferResolver{
		definitions: definitions,
		logger:      logger.With().Str("service", "catalog").Logger(),
	}
}

// ResolveOffer parses the offer id, loads the referenced definition and
// returns the policy an inbound request must be evaluated against.
func (r *OfferResolver) ResolveOffer(ctx context.Context, offerID string) (*domainCatalog.ValidatableOffer, error) {
	definitionID, assetID, err := domainCatalog.ParseOfferID(offerID)
	if err != nil {
		return nil, svcerror.BadRequest("malformed offer id")
	}
	def, err := r.definitions.GetByID(ctx, definitionID)
	if err != nil {
		return nil, svcerror.Internal(err, "loading contract definition %s", definitionID)
	}
	if def == nil || def.AssetID != assetID {
		r.logger.Debug().Str("offerId", offerID).Msg("no contract definition for offer")
		return nil, svcerror.NotFound("not found")
	}
	pol := def.Policy
	pol.Target = assetID
	return &domainCatalog.ValidatableOffer{
		OfferID:              offerID,
		ParticipantContextID: def.ParticipantContextID,
		AssetID:              assetID,
		Policy:               pol,
	}, nil
}

// AgreementResolver looks agreements up on the negotiations that hold them.
type AgreementResolver struct {
	negotiations domainNegotiation.Store
}

func NewAgreementResolver(negotiations domainNegotiation.Store) *AgreementResolver {
	return &AgreementResolver{negotiations: negotiations}
}

// ResolveAgreement returns the agreement with the given id, or (nil, nil).
// Only finalized negotiations carry a usable agreement.
func (r *AgreementResolver) ResolveAgreement(ctx context.Context, agreementID string) (*domainNegotiation.Agreement, error) {
	n, err := r.negotiations.FindByAgreementID(ctx, agreementID)
	if err != nil {
		return nil, svcerror.Internal(err, "loading agreement %s", agreementID)
	}
	if n == nil || n.Agreement == nil {
		return nil, nil
	}
	if n.CurrentState() != domainNegotiation.StateFinalized {
		return nil, nil
	}
	return n.Agreement, nil
}
