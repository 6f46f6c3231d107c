package validation

import (
	"github.com/rs/zerolog"

	"github.com/dataspace-hub/dataspace-hub/internal/application/gate"
	"github.com/dataspace-hub/dataspace-hub/internal/domain/catalog"
	domainNegotiation "github.com/dataspace-hub/dataspace-hub/internal/domain/negotiation"
	"github.com/dataspace-hub/dataspace-hub/internal/domain/participant"
	"github.com/dataspace-hub/dataspace-hub/internal/domain/svcerror"
	domainTransfer "github.com/dataspace-hub/dataspace-hub/internal/domain/transfer"
)

// Validator holds the business-rule checks of the negotiation protocol.
type Validator struct {
	logger zerolog.Logger
}

func New(logger zerolog.Logger) *Validator {
	return &Validator{logger: logger.With().Str("service", "validation").Logger()}
}

// ValidateInitialOffer checks a consumer-proposed offer against the resolved
// definition and returns the offer to record on the negotiation.
func (v *Validator) ValidateInitialOffer(pctx *participant.Context, agent *gate.Agent, offer *catalog.ValidatableOffer) (*domainNegotiation.Offer, error) {
	if offer.Policy.Assignee != "" && offer.Policy.Assignee != agent.Identity {
		v.logger.Debug().Str("offerId", offer.OfferID).Str("identity", agent.Identity).Msg("offer assigned to a different consumer")
		return nil, svcerror.BadRequest("contract offer is not valid: not assigned to caller")
	}
	return &domainNegotiation.Offer{ID: offer.OfferID, Policy: offer.Policy}, nil
}

// ValidateRequest checks that the caller is the negotiation's recorded
// counterparty.
func (v *Validator) ValidateRequest(agent *gate.Agent, n *domainNegotiation.Negotiation) error {
	if agent.Identity != n.CounterPartyID {
		v.logger.Debug().Str("id", n.ID).Str("identity", agent.Identity).Msg("caller is not the recorded counterparty")
		return svcerror.BadRequest("invalid client credentials")
	}
	return nil
}

// ValidateConfirmed checks the received agreement against the last offered
// terms.
func (v *Validator) ValidateConfirmed(agent *gate.Agent, agreement *domainNegotiation.Agreement, lastOffer *domainNegotiation.Offer) error {
	if lastOffer == nil {
		return svcerror.BadRequest("contract agreement received without a prior offer")
	}
	if agreement.AssetID != lastOffer.AssetID() {
		return svcerror.BadRequest("contract agreement targets a different asset than the last offer")
	}
	if agreement.ProviderID != agent.Identity {
		return svcerror.BadRequest("contract agreement provider does not match caller")
	}
	if assigner := lastOffer.Policy.Assigner; assigner != "" && assigner != agreement.ProviderID {
		return svcerror.BadRequest("contract agreement provider does not match offered terms")
	}
	return nil
}

// TransferValidator holds the business-rule checks of the transfer protocol.
type TransferValidator struct {
	logger zerolog.Logger
}

func NewTransferValidator(logger zerolog.Logger) *TransferValidator {
	return &TransferValidator{logger: logger.With().Str("service", "transfer-validation").Logger()}
}

// ValidateInitialRequest checks that the caller may open a transfer under
// the agreement.
func (v *TransferValidator) ValidateInitialRequest(agent *gate.Agent, agreement *domainNegotiation.Agreement) error {
	if agreement.ConsumerID != agent.Identity {
		v.logger.Debug().Str("agreementId", agreement.ID).Str("identity", agent.Identity).Msg("caller is not the agreement consumer")
		return svcerror.BadRequest("caller is not a party to the agreement")
	}
	return nil
}

// ValidateRequest checks that the caller is the transfer's recorded
// counterparty.
func (v *TransferValidator) ValidateRequest(agent *gate.Agent, p *domainTransfer.Process) error {
	if agent.Identity != p.CounterPartyID {
		v.logger.Debug().Str("id", p.ID).Str("identity", agent.Identity).Msg("caller is not the recorded counterparty")
		return svcerror.BadRequest("invalid client credentials")
	}
	return nil
}
