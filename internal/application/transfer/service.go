package transfer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dataspace-hub/dataspace-hub/internal/application/gate"
	domainNegotiation "github.com/dataspace-hub/dataspace-hub/internal/domain/negotiation"
	"github.com/dataspace-hub/dataspace-hub/internal/domain/participant"
	domainPolicy "github.com/dataspace-hub/dataspace-hub/internal/domain/policy"
	"github.com/dataspace-hub/dataspace-hub/internal/domain/process"
	"github.com/dataspace-hub/dataspace-hub/internal/domain/svcerror"
	domainTransfer "github.com/dataspace-hub/dataspace-hub/internal/domain/transfer"
)

// RequestMessage asks the provider to open a transfer under an agreement.
type RequestMessage struct {
	ID              string
	ProviderPID     string
	ConsumerPID     string
	CallbackAddress string
	AgreementID     string
	Protocol        string
}

// StartMessage signals the transfer started; the provider attaches the data
// endpoint.
type StartMessage struct {
	ID          string
	ProcessID   string
	DataAddress *domainTransfer.DataAddress
}

// SuspensionMessage pauses the transfer.
type SuspensionMessage struct {
	ID        string
	ProcessID string
	Code      string
	Reason    string
}

// CompletionMessage marks the transfer done.
type CompletionMessage struct {
	ID        string
	ProcessID string
}

// TerminationMessage ends the transfer with a reason.
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

// AgreementResolver looks up the agreement a transfer runs under.
type AgreementResolver interface {
	ResolveAgreement(ctx context.Context, agreementID string) (*domainNegotiation.Agreement, error)
}

// Validator runs the business checks specific to each operation.
type Validator interface {
	// ValidateInitialRequest checks that the caller may open a transfer
	// under the agreement.
	ValidateInitialRequest(agent *gate.Agent, agreement *domainNegotiation.Agreement) error
	// ValidateRequest checks that the caller is the recorded counterparty.
	ValidateRequest(agent *gate.Agent, p *domainTransfer.Process) error
}

// Listener observes completed transfer transitions.
type Listener interface {
	Requested(p *domainTransfer.Process) error
	Started(p *domainTransfer.Process) error
	Suspended(p *domainTransfer.Process) error
	Completed(p *domainTransfer.Process) error
	Terminated(p *domainTransfer.Process) error
}

// Service drives one transfer state transition per inbound protocol call.
type Service struct {
	store         domainTransfer.Store
	authorizer    Authorizer
	validator     Validator
	agreements    AgreementResolver
	listeners     []Listener
	leaseDuration time.Duration
	logger        zerolog.Logger
}

func NewService(
	store domainTransfer.Store,
	authorizer Authorizer,
	validator Validator,
	agreements AgreementResolver,
	listeners []Listener,
	leaseDuration time.Duration,
	logger zerolog.Logger,
) *Service {
	return &Service{
		store:         store,
		authorizer:    authorizer,
		validator:     validator,
		agreements:    agreements,
		listeners:     listeners,
		leaseDuration: leaseDuration,
		logger:        logger.With().Str("service", "transfer").Logger(),
	}
}

// NotifyRequested handles an inbound transfer request. Without a provider
// pid it establishes a new process (or resumes the one already created for
// the consumer's pid on an earlier delivery).
func (s *Service) NotifyRequested(ctx context.Context, pctx *participant.Context, msg RequestMessage, token gate.TokenRepresentation) (*domainTransfer.Process, error) {
	agreement, err := s.resolveAgreement(ctx, pctx, msg.AgreementID)
	if err != nil {
		return nil, err
	}
	agent, err := s.authorizer.Verify(ctx, pctx, token, agreement.Policy, "TransferRequestMessage")
	if err != nil {
		return nil, err
	}
	if err := s.validator.ValidateInitialRequest(agent, agreement); err != nil {
		return nil, err
	}

	var p *domainTransfer.Process
	if msg.ProviderPID != "" {
		p, err = s.leaseProcess(ctx, pctx, msg.ProviderPID)
	} else {
		p, err = s.resolveOrCreate(ctx, pctx, msg.ConsumerPID, func() *domainTransfer.Process {
			return domainTransfer.New(uuid.NewString(), msg.ConsumerPID, pctx.ID, agent.Identity, msg.CallbackAddress, msg.Protocol, process.TypeResponder, agreement.ID, agreement.AssetID)
		})
	}
	if err != nil {
		return nil, err
	}

	return s.applyAndSave(ctx, p, msg.ID, domainTransfer.StateRequested, nil, Listener.Requested)
}

// NotifyStarted handles the provider starting the transfer.
func (s *Service) NotifyStarted(ctx context.Context, pctx *participant.Context, msg StartMessage, token gate.TokenRepresentation) (*domainTransfer.Process, error) {
	return s.processMessage(ctx, pctx, token, msg.ProcessID, msg.ID, "TransferStartMessage",
		domainTransfer.StateStarted, func(p *domainTransfer.Process) {
			if msg.DataAddress != nil {
				p.SetDataAddress(*msg.DataAddress)
			}
		}, Listener.Started)
}

// NotifySuspended handles a counterparty suspension.
func (s *Service) NotifySuspended(ctx context.Context, pctx *participant.Context, msg SuspensionMessage, token gate.TokenRepresentation) (*domainTransfer.Process, error) {
	return s.processMessage(ctx, pctx, token, msg.ProcessID, msg.ID, "TransferSuspensionMessage",
		domainTransfer.StateSuspended, nil, Listener.Suspended)
}

// NotifyCompleted handles the transfer completing.
func (s *Service) NotifyCompleted(ctx context.Context, pctx *participant.Context, msg CompletionMessage, token gate.TokenRepresentation) (*domainTransfer.Process, error) {
	return s.processMessage(ctx, pctx, token, msg.ProcessID, msg.ID, "TransferCompletionMessage",
		domainTransfer.StateCompleted, nil, Listener.Completed)
}

// NotifyTerminated handles a counterparty termination.
func (s *Service) NotifyTerminated(ctx context.Context, pctx *participant.Context, msg TerminationMessage, token gate.TokenRepresentation) (*domainTransfer.Process, error) {
	return s.processMessage(ctx, pctx, token, msg.ProcessID, msg.ID, "TransferTerminationMessage",
		domainTransfer.StateTerminated, func(p *domainTransfer.Process) {
			p.Terminate(msg.Code, msg.Reason)
		}, Listener.Terminated)
}

// FindByID returns the process after ownership and authorization checks.
func (s *Service) FindByID(ctx context.Context, pctx *participant.Context, id string, token gate.TokenRepresentation) (*domainTransfer.Process, error) {
	p, err := s.ownedProcess(ctx, pctx, id)
	if err != nil {
		return nil, err
	}
	pol, err := s.policyFor(ctx, pctx, p)
	if err != nil {
		return nil, err
	}
	agent, err := s.authorizer.Verify(ctx, pctx, token, pol, "TransferProcessQuery")
	if err != nil {
		return nil, err
	}
	if err := s.validator.ValidateRequest(agent, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) processMessage(
	ctx context.Context,
	pctx *participant.Context,
	token gate.TokenRepresentation,
	processID, messageID, messageType string,
	target domainTransfer.State,
	mutate func(*domainTransfer.Process),
	fire func(Listener, *domainTransfer.Process) error,
) (*domainTransfer.Process, error) {
	current, err := s.ownedProcess(ctx, pctx, processID)
	if err != nil {
		return nil, err
	}
	pol, err := s.policyFor(ctx, pctx, current)
	if err != nil {
		return nil, err
	}
	agent, err := s.authorizer.Verify(ctx, pctx, token, pol, messageType)
	if err != nil {
		return nil, err
	}
	if err := s.validator.ValidateRequest(agent, current); err != nil {
		return nil, err
	}
	p, err := s.leaseProcess(ctx, pctx, processID)
	if err != nil {
		return nil, err
	}
	return s.applyAndSave(ctx, p, messageID, target, mutate, fire)
}

func (s *Service) applyAndSave(
	ctx context.Context,
	p *domainTransfer.Process,
	messageID string,
	target domainTransfer.State,
	mutate func(*domainTransfer.Process),
	fire func(Listener, *domainTransfer.Process) error,
) (*domainTransfer.Process, error) {
	if p.ShouldIgnore(messageID) {
		s.logger.Debug().Str("id", p.ID).Str("messageId", messageID).Msg("duplicate message suppressed")
		s.release(ctx, p)
		return p, nil
	}

	if err := p.Transition(target); err != nil {
		s.release(ctx, p)
		return nil, svcerror.BadRequest("transfer %s cannot transition from %s to %s", p.ID, p.CurrentState(), target)
	}
	p.MessageReceived(messageID)
	if mutate != nil {
		mutate(p)
	}

	if err := s.store.Save(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Debug().Str("id", p.ID).Str("type", string(p.Type)).Str("state", p.CurrentState().String()).Msg("transfer transitioned")

	for _, l := range s.listeners {
		if err := fire(l, p); err != nil {
			s.logger.Warn().Err(err).Str("id", p.ID).Msg("transfer listener failed")
		}
	}
	return p, nil
}

func (s *Service) resolveOrCreate(ctx context.Context, pctx *participant.Context, correlationID string, create func() *domainTransfer.Process) (*domainTransfer.Process, error) {
	if correlationID != "" {
		existing, err := s.store.FindByCorrelationID(ctx, correlationID)
		if err != nil {
			return nil, svcerror.Internal(err, "looking up transfer by correlation id %s", correlationID)
		}
		if existing != nil {
			return s.leaseProcess(ctx, pctx, existing.ID)
		}
	}
	return create(), nil
}

func (s *Service) leaseProcess(ctx context.Context, pctx *participant.Context, id string) (*domainTransfer.Process, error) {
	p, err := s.store.FindByIDAndLease(ctx, id, uuid.NewString(), s.leaseDuration)
	if err != nil {
		return nil, err
	}
	if p.ParticipantContextID != pctx.ID {
		s.release(ctx, p)
		return nil, svcerror.NotFound("no transfer process with id %s found", id)
	}
	return p, nil
}

func (s *Service) ownedProcess(ctx context.Context, pctx *participant.Context, id string) (*domainTransfer.Process, error) {
	p, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, svcerror.Internal(err, "loading transfer process %s", id)
	}
	if p == nil || p.ParticipantContextID != pctx.ID {
		return nil, svcerror.NotFound("no transfer process with id %s found", id)
	}
	return p, nil
}

func (s *Service) resolveAgreement(ctx context.Context, pctx *participant.Context, agreementID string) (*domainNegotiation.Agreement, error) {
	if agreementID == "" {
		return nil, svcerror.BadRequest("transfer request carries no agreement id")
	}
	agreement, err := s.agreements.ResolveAgreement(ctx, agreementID)
	if err != nil {
		return nil, err
	}
	if agreement == nil || agreement.ParticipantContextID != pctx.ID {
		s.logger.Debug().Str("agreementId", agreementID).Msg("agreement unknown or owned by another participant context")
		return nil, svcerror.NotFound("not found")
	}
	return agreement, nil
}

func (s *Service) policyFor(ctx context.Context, pctx *participant.Context, p *domainTransfer.Process) (domainPolicy.Policy, error) {
	agreement, err := s.resolveAgreement(ctx, pctx, p.AgreementID)
	if err != nil {
		return domainPolicy.Policy{}, err
	}
	return agreement.Policy, nil
}

func (s *Service) release(ctx context.Context, p *domainTransfer.Process) {
	if p.Lease == nil {
		return
	}
	if err := s.store.Save(ctx, p); err != nil {
		s.logger.Warn().Err(err).Str("id", p.ID).Msg("failed to release transfer lease")
	}
}
