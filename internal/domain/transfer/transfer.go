package transfer

import (
	"time"

	"github.com/dataspace-hub/dataspace-hub/internal/domain/process"
)

// State positions a transfer process in its transition graph.
type State int

const (
	StateRequested  State = 500
	StateStarted    State = 600
	StateSuspended  State = 700
	StateCompleted  State = 800
	StateTerminated State = 1400
)

func (s State) String() string {
	switch s {
	case StateRequested:
		return "REQUESTED"
	case StateStarted:
		return "STARTED"
	case StateSuspended:
		return "SUSPENDED"
	case StateCompleted:
		return "COMPLETED"
	case StateTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transition may leave the state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateTerminated
}

var transitions = map[State][]State{
	StateRequested: {StateStarted},
	StateStarted:   {StateSuspended, StateCompleted},
	StateSuspended: {StateStarted},
}

// CanTransitionTo validates a transfer state transition. Non-terminal states
// may re-enter themselves and may always terminate.
func (s State) CanTransitionTo(target State) bool {
	if s.Terminal() {
		return false
	}
	if target == s || target == StateTerminated {
		return true
	}
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// DataAddress locates the endpoint serving the transferred data. Attached by
// the provider when the transfer starts.
type DataAddress struct {
	Type       string            `json:"type"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Process is the persisted data transfer process.
type Process struct {
	process.Entity

	AgreementID       string       `json:"agreementId"`
	AssetID           string       `json:"assetId"`
	DataAddress       *DataAddress `json:"dataAddress,omitempty"`
	TerminationReason string       `json:"terminationReason,omitempty"`
	TerminationCode   string       `json:"terminationCode,omitempty"`
}

// New creates a transfer process in its initial persisted form.
func New(id, correlationID, participantContextID, counterPartyID, counterPartyAddress, protocol string, typ process.Type, agreementID, assetID string) *Process {
	now := time.Now().UTC()
	return &Process{
		Entity: process.Entity{
			ID:                   id,
			CorrelationID:        correlationID,
			ParticipantContextID: participantContextID,
			CounterPartyID:       counterPartyID,
			CounterPartyAddress:  counterPartyAddress,
			Protocol:             protocol,
			Type:                 typ,
			StateCount:           1,
			StateTimestamp:       now,
			CreatedAt:            now,
			UpdatedAt:            now,
		},
		AgreementID: agreementID,
		AssetID:     assetID,
	}
}

// CurrentState returns the typed state.
func (p *Process) CurrentState() State { return State(p.State) }

// Transition applies a validated transition, rejecting unreachable targets.
func (p *Process) Transition(target State) error {
	if state := p.CurrentState(); state != 0 && !state.CanTransitionTo(target) {
		return process.ErrInvalidTransition
	}
	p.TransitionTo(int(target))
	return nil
}

// SetDataAddress attaches the provider's data endpoint.
func (p *Process) SetDataAddress(da DataAddress) {
	p.DataAddress = &da
}

// Terminate records the counterparty's termination reason.
func (p *Process) Terminate(code, reason string) {
	p.TerminationCode = code
	p.TerminationReason = reason
}

// Copy returns a deep copy, detached from the original.
func (p *Process) Copy() *Process {
	c := &Process{
		Entity:            p.CopyEntity(),
		AgreementID:       p.AgreementID,
		AssetID:           p.AssetID,
		TerminationReason: p.TerminationReason,
		TerminationCode:   p.TerminationCode,
	}
	if p.DataAddress != nil {
		da := DataAddress{Type: p.DataAddress.Type, Properties: make(map[string]string, len(p.DataAddress.Properties))}
		for k, v := range p.DataAddress.Properties {
			da.Properties[k] = v
		}
		c.DataAddress = &da
	}
	return c
}
