package negotiation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dataspace-hub/dataspace-hub/internal/application/gate"
	"github.com/dataspace-hub/dataspace-hub/internal/domain/catalog"
	domainNegotiation "github.com/dataspace-hub/dataspace-hub/internal/domain/negotiation"
	"github.com/dataspace-hub/dataspace-hub/internal/domain/participant"
	domainPolicy "github.com/dataspace-hub/dataspace-hub/internal/domain/policy"
	"github.com/dataspace-hub/dataspace-hub/internal/domain/process"
	"github.com/dataspace-hub/dataspace-hub/internal/domain/svcerror"
)

// RequestMessage asks the provider to open (or re-drive) a negotiation for
// an offer.
type RequestMessage struct {
	ID              string
	ProviderPID     string
	ConsumerPID     string
	CallbackAddress string
	OfferID         string
	Protocol        string
}

// OfferMessage carries a (counter-)offer from the provider.
type OfferMessage struct {
	ID              string
	ProviderPID     string
	ConsumerPID     string
	CallbackAddress string
	Protocol        string
	Offer           domainNegotiation.Offer
}

// EventMessage signals a state event (accepted, finalized) for a known
// process.
type EventMessage struct {
	ID        string
	ProcessID string
}

// AgreementMessage carries the provider's agreement.
type AgreementMessage struct {
	ID        string
	ProcessID string
	Agreement domainNegotiation.Agreement
}

// VerificationMessage signals the consumer verified the agreement.
type VerificationMessage struct {
	ID        string
	ProcessID string
}

// TerminationMessage ends the negotiation with a reason.
type TerminationMessage struct {
	ID        string
	ProcessID string
	Code      string
	Reason    string
}

// Authorizer verifies the caller and authorizes the operation. Implemented
// by gate.Gate.
type Authorizer interface {
	Verify(ctx context.Context, pctx *participant.Context, token gate.TokenRepresentation, pol domainPolicy.Policy, messageType string) (*gate.Agent, error)
}

// OfferResolver resolves the offer referenced by an initial request.
type OfferResolver interface {
	ResolveOffer(ctx context.Context, offerID string) (*catalog.ValidatableOffer, error)
}

// Validator runs the business checks specific to each operation.
type Validator interface {
	// ValidateInitialOffer checks a consumer-proposed offer and returns the
	// offer to record on the negotiation.
	ValidateInitialOffer(pctx *participant.Context, agent *gate.Agent, offer *catalog.ValidatableOffer) (*domainNegotiation.Offer, error)
	// ValidateRequest checks that the caller is the recorded counterparty.
	ValidateRequest(agent *gate.Agent, n *domainNegotiation.Negotiation) error
	// ValidateConfirmed checks the agreement against the last offered terms.
	ValidateConfirmed(agent *gate.Agent, agreement *domainNegotiation.Agreement, lastOffer *domainNegotiation.Offer) error
}

// Listener observes completed negotiation transitions. Fan-out is
// synchronous and in registration order; listener errors are logged, never
// propagated.
type Listener interface {
	Requested(n *domainNegotiation.Negotiation) error
	Offered(n *domainNegotiation.Negotiation) error
	Accepted(n *domainNegotiation.Negotiation) error
	Agreed(n *domainNegotiation.Negotiation) error
	Verified(n *domainNegotiation.Negotiation) error
	Finalized(n *domainNegotiation.Negotiation) error
	Terminated(n *domainNegotiation.Negotiation) error
}

// Service drives one negotiation state transition per inbound protocol call.
type Service struct {
	store         domainNegotiation.Store
	authorizer    Authorizer
	validator     Validator
	offers        OfferResolver
	listeners     []Listener
	leaseDuration time.Duration
	logger        zerolog.Logger
}

// NewService creates the negotiation protocol service. The listener list is
// fixed at construction.
func NewService(
	store domainNegotiation.Store,
	authorizer Authorizer,
	validator Validator,
	offers OfferResolver,
	listeners []Listener,
	leaseDuration time.Duration,
	logger zerolog.Logger,
) *Service {
	return &Service{
		store:         store,
		authorizer:    authorizer,
		validator:     validator,
		offers:        offers,
		listeners:     listeners,
		leaseDuration: leaseDuration,
		logger:        logger.With().Str("service", "negotiation").Logger(),
	}
}

// NotifyRequested handles an inbound contract request. Without a provider
// pid it establishes a new negotiation (or resumes the one already created
// for the consumer's pid on an earlier delivery).
func (s *Service) NotifyRequested(ctx context.Context, pctx *participant.Context, msg RequestMessage, token gate.TokenRepresentation) (*domainNegotiation.Negotiation, error) {
	voffer, err := s.resolveOffer(ctx, pctx, msg.OfferID)
	if err != nil {
		return nil, err
	}
	agent, err := s.authorizer.Verify(ctx, pctx, token, voffer.Policy, "ContractRequestMessage")
	if err != nil {
		return nil, err
	}
	offer, err := s.validator.ValidateInitialOffer(pctx, agent, voffer)
	if err != nil {
		return nil, err
	}

	var n *domainNegotiation.Negotiation
	if msg.ProviderPID != "" {
		n, err = s.leaseNegotiation(ctx, pctx, msg.ProviderPID)
	} else {
		n, err = s.resolveOrCreate(ctx, pctx, msg.ConsumerPID, func() *domainNegotiation.Negotiation {
			return domainNegotiation.New(uuid.NewString(), msg.ConsumerPID, pctx.ID, agent.Identity, msg.CallbackAddress, msg.Protocol, process.TypeResponder)
		})
	}
	if err != nil {
		return nil, err
	}

	return s.applyAndSave(ctx, n, msg.ID, domainNegotiation.StateRequested, func(n *domainNegotiation.Negotiation) {
		n.AddOffer(*offer)
	}, Listener.Requested)
}

// NotifyOffered handles a provider offer. Without a consumer pid it
// establishes a new negotiation on the consumer side.
func (s *Service) NotifyOffered(ctx context.Context, pctx *participant.Context, msg OfferMessage, token gate.TokenRepresentation) (*domainNegotiation.Negotiation, error) {
	agent, err := s.authorizer.Verify(ctx, pctx, token, msg.Offer.Policy, "ContractOfferMessage")
	if err != nil {
		return nil, err
	}

	var n *domainNegotiation.Negotiation
	if msg.ConsumerPID != "" {
		current, err := s.ownedNegotiation(ctx, pctx, msg.ConsumerPID)
		if err != nil {
			return nil, err
		}
		if err := s.validator.ValidateRequest(agent, current); err != nil {
			return nil, err
		}
		n, err = s.leaseNegotiation(ctx, pctx, msg.ConsumerPID)
		if err != nil {
			return nil, err
		}
	} else {
		n, err = s.resolveOrCreate(ctx, pctx, msg.ProviderPID, func() *domainNegotiation.Negotiation {
			return domainNegotiation.New(uuid.NewString(), msg.ProviderPID, pctx.ID, agent.Identity, msg.CallbackAddress, msg.Protocol, process.TypeInitiator)
		})
		if err != nil {
			return nil, err
		}
	}

	return s.applyAndSave(ctx, n, msg.ID, domainNegotiation.StateOffered, func(n *domainNegotiation.Negotiation) {
		n.AddOffer(msg.Offer)
	}, Listener.Offered)
}

// NotifyAccepted handles the consumer accepting the current offer.
func (s *Service) NotifyAccepted(ctx context.Context, pctx *participant.Context, msg EventMessage, token gate.TokenRepresentation) (*domainNegotiation.Negotiation, error) {
	return s.processMessage(ctx, pctx, token, msg.ProcessID, msg.ID, "ContractNegotiationEventMessage",
		s.validateCounterparty,
		domainNegotiation.StateAccepted, nil, Listener.Accepted)
}

// NotifyAgreed handles the provider's agreement.
func (s *Service) NotifyAgreed(ctx context.Context, pctx *participant.Context, msg AgreementMessage, token gate.TokenRepresentation) (*domainNegotiation.Negotiation, error) {
	return s.processMessage(ctx, pctx, token, msg.ProcessID, msg.ID, "ContractAgreementMessage",
		func(agent *gate.Agent, n *domainNegotiation.Negotiation) error {
			return s.validator.ValidateConfirmed(agent, &msg.Agreement, n.LastOffer())
		},
		domainNegotiation.StateAgreed, func(n *domainNegotiation.Negotiation) {
			agreement := msg.Agreement
			agreement.ParticipantContextID = n.ParticipantContextID
			n.SetAgreement(agreement)
		}, Listener.Agreed)
}

// NotifyVerified handles the consumer's agreement verification.
func (s *Service) NotifyVerified(ctx context.Context, pctx *participant.Context, msg VerificationMessage, token gate.TokenRepresentation) (*domainNegotiation.Negotiation, error) {
	return s.processMessage(ctx, pctx, token, msg.ProcessID, msg.ID, "ContractAgreementVerificationMessage",
		s.validateCounterparty,
		domainNegotiation.StateVerified, nil, Listener.Verified)
}

// NotifyFinalized handles the provider finalizing the negotiation.
func (s *Service) NotifyFinalized(ctx context.Context, pctx *participant.Context, msg EventMessage, token gate.TokenRepresentation) (*domainNegotiation.Negotiation, error) {
	return s.processMessage(ctx, pctx, token, msg.ProcessID, msg.ID, "ContractNegotiationEventMessage",
		s.validateCounterparty,
		domainNegotiation.StateFinalized, nil, Listener.Finalized)
}

// NotifyTerminated handles a counterparty termination.
func (s *Service) NotifyTerminated(ctx context.Context, pctx *participant.Context, msg TerminationMessage, token gate.TokenRepresentation) (*domainNegotiation.Negotiation, error) {
	return s.processMessage(ctx, pctx, token, msg.ProcessID, msg.ID, "ContractNegotiationTerminationMessage",
		s.validateCounterparty,
		domainNegotiation.StateTerminated, func(n *domainNegotiation.Negotiation) {
			n.Terminate(msg.Code, msg.Reason)
		}, Listener.Terminated)
}

// FindByID returns the negotiation after ownership and authorization checks.
// Read-only: no lease, no transition, no listener firing.
func (s *Service) FindByID(ctx context.Context, pctx *participant.Context, id string, token gate.TokenRepresentation) (*domainNegotiation.Negotiation, error) {
	n, err := s.ownedNegotiation(ctx, pctx, id)
	if err != nil {
		return nil, err
	}
	agent, err := s.authorizer.Verify(ctx, pctx, token, s.policyFor(n), "ContractNegotiationQuery")
	if err != nil {
		return nil, err
	}
	if err := s.validator.ValidateRequest(agent, n); err != nil {
		return nil, err
	}
	return n, nil
}

// processMessage runs the shared operation template for non-creating
// messages: resolve, authorize, validate, lease, dedup, transition, save,
// notify.
func (s *Service) processMessage(
	ctx context.Context,
	pctx *participant.Context,
	token gate.TokenRepresentation,
	processID, messageID, messageType string,
	validate func(*gate.Agent, *domainNegotiation.Negotiation) error,
	target domainNegotiation.State,
	mutate func(*domainNegotiation.Negotiation),
	fire func(Listener, *domainNegotiation.Negotiation) error,
) (*domainNegotiation.Negotiation, error) {
	current, err := s.ownedNegotiation(ctx, pctx, processID)
	if err != nil {
		return nil, err
	}
	agent, err := s.authorizer.Verify(ctx, pctx, token, s.policyFor(current), messageType)
	if err != nil {
		return nil, err
	}
	if err := validate(agent, current); err != nil {
		return nil, err
	}
	n, err := s.leaseNegotiation(ctx, pctx, processID)
	if err != nil {
		return nil, err
	}
	return s.applyAndSave(ctx, n, messageID, target, mutate, fire)
}

// applyAndSave finishes an operation on an already leased (or freshly
// created) negotiation: suppress duplicates, transition, persist, fan out.
func (s *Service) applyAndSave(
	ctx context.Context,
	n *domainNegotiation.Negotiation,
	messageID string,
	target domainNegotiation.State,
	mutate func(*domainNegotiation.Negotiation),
	fire func(Listener, *domainNegotiation.Negotiation) error,
) (*domainNegotiation.Negotiation, error) {
	if n.ShouldIgnore(messageID) {
		s.logger.Debug().Str("id", n.ID).Str("messageId", messageID).Msg("duplicate message suppressed")
		s.release(ctx, n)
		return n, nil
	}

	if err := n.Transition(target); err != nil {
		s.release(ctx, n)
		return nil, svcerror.BadRequest("negotiation %s cannot transition from %s to %s", n.ID, n.CurrentState(), target)
	}
	n.MessageReceived(messageID)
	if mutate != nil {
		mutate(n)
	}

	if err := s.store.Save(ctx, n); err != nil {
		return nil, err
	}
	s.logger.Debug().Str("id", n.ID).Str("type", string(n.Type)).Str("state", n.CurrentState().String()).Msg("negotiation transitioned")

	for _, l := range s.listeners {
		if err := fire(l, n); err != nil {
			s.logger.Warn().Err(err).Str("id", n.ID).Msg("negotiation listener failed")
		}
	}
	return n, nil
}

func (s *Service) validateCounterparty(agent *gate.Agent, n *domainNegotiation.Negotiation) error {
	return s.validator.ValidateRequest(agent, n)
}

// resolveOrCreate resumes the negotiation already created for the
// counterpart's pid on an earlier delivery, or builds a fresh one.
func (s *Service) resolveOrCreate(ctx context.Context, pctx *participant.Context, correlationID string, create func() *domainNegotiation.Negotiation) (*domainNegotiation.Negotiation, error) {
	if correlationID != "" {
		existing, err := s.store.FindByCorrelationID(ctx, correlationID)
		if err != nil {
			return nil, svcerror.Internal(err, "looking up negotiation by correlation id %s", correlationID)
		}
		if existing != nil {
			return s.leaseNegotiation(ctx, pctx, existing.ID)
		}
	}
	return create(), nil
}

// leaseNegotiation acquires exclusive access with a per-operation owner
// token. A mismatching participant context is reported as not found.
func (s *Service) leaseNegotiation(ctx context.Context, pctx *participant.Context, id string) (*domainNegotiation.Negotiation, error) {
	n, err := s.store.FindByIDAndLease(ctx, id, uuid.NewString(), s.leaseDuration)
	if err != nil {
		return nil, err
	}
	if n.ParticipantContextID != pctx.ID {
		s.release(ctx, n)
		return nil, svcerror.NotFound("no negotiation with id %s found", id)
	}
	return n, nil
}

func (s *Service) ownedNegotiation(ctx context.Context, pctx *participant.Context, id string) (*domainNegotiation.Negotiation, error) {
	n, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, svcerror.Internal(err, "loading negotiation %s", id)
	}
	if n == nil || n.ParticipantContextID != pctx.ID {
		return nil, svcerror.NotFound("no negotiation with id %s found", id)
	}
	return n, nil
}

func (s *Service) resolveOffer(ctx context.Context, pctx *participant.Context, offerID string) (*catalog.ValidatableOffer, error) {
	voffer, err := s.offers.ResolveOffer(ctx, offerID)
	if err != nil {
		s.logger.Debug().Err(err).Str("offerId", offerID).Msg("failed to resolve offer")
		return nil, err
	}
	if voffer.ParticipantContextID != pctx.ID {
		s.logger.Debug().Str("offerId", offerID).Str("participantContextId", pctx.ID).Msg("offer belongs to another participant context")
		return nil, svcerror.NotFound("not found")
	}
	return voffer, nil
}

// release persists the (unchanged) entity to clear the lease. Failures are
// logged only; the lease self-expires.
func (s *Service) release(ctx context.Context, n *domainNegotiation.Negotiation) {
	if n.Lease == nil {
		return
	}
	if err := s.store.Save(ctx, n); err != nil {
		s.logger.Warn().Err(err).Str("id", n.ID).Msg("failed to release negotiation lease")
	}
}

func (s *Service) policyFor(n *domainNegotiation.Negotiation) domainPolicy.Policy {
	if offer := n.LastOffer(); offer != nil {
		return offer.Policy
	}
	if n.Agreement != nil {
		return n.Agreement.Policy
	}
	return domainPolicy.Policy{}
}
