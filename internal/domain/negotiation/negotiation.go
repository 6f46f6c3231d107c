package negotiation

import (
	"time"

	"github.com/dataspace-hub/dataspace-hub/internal/domain/policy"
	"github.com/dataspace-hub/dataspace-hub/internal/domain/process"
)

// State positions a negotiation in its transition graph. The codes leave
// room between externally visible states for internal intermediates and
// match the protocol state table.
type State int

const (
	StateRequested  State = 200
	StateOffered    State = 400
	StateAccepted   State = 800
	StateAgreed     State = 850
	StateVerified   State = 1100
	StateFinalized  State = 1200
	StateTerminated State = 1400
)

func (s State) String() string {
	switch s {
	case StateRequested:
		return "REQUESTED"
	case StateOffered:
		return "OFFERED"
	case StateAccepted:
		return "ACCEPTED"
	case StateAgreed:
		return "AGREED"
	case StateVerified:
		return "VERIFIED"
	case StateFinalized:
		return "FINALIZED"
	case StateTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transition may leave the state.
func (s State) Terminal() bool {
	return s == StateFinalized || s == StateTerminated
}

var transitions = map[State][]State{
	StateRequested: {StateOffered, StateAgreed},
	StateOffered:   {StateRequested, StateAccepted, StateAgreed},
	StateAccepted:  {StateAgreed},
	StateAgreed:    {StateVerified},
	StateVerified:  {StateFinalized},
}

// CanTransitionTo validates a negotiation state transition. Non-terminal
// states may re-enter themselves (counter-offers, repeated requests) and may
// always terminate.
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

// Offer is a concrete set of terms exchanged during the negotiation.
type Offer struct {
	ID     string        `json:"id"`
	Policy policy.Policy `json:"policy"`
}

// AssetID returns the asset the offer's policy targets.
func (o Offer) AssetID() string { return o.Policy.Target }

// Agreement is the contract both sides settled on.
type Agreement struct {
	ID                   string        `json:"id"`
	ParticipantContextID string        `json:"participantContextId"`
	ProviderID           string        `json:"providerId"`
	ConsumerID           string        `json:"consumerId"`
	AssetID              string        `json:"assetId"`
	Policy               policy.Policy `json:"policy"`
	SigningDate          int64         `json:"signingDate"`
}

// Negotiation is the persisted contract negotiation process.
type Negotiation struct {
	process.Entity

	Offers            []Offer    `json:"offers"`
	Agreement         *Agreement `json:"agreement,omitempty"`
	TerminationReason string     `json:"terminationReason,omitempty"`
	TerminationCode   string     `json:"terminationCode,omitempty"`
}

// New creates a negotiation in its initial persisted form. The first
// transition is applied by the operation that created it.
func New(id, correlationID, participantContextID, counterPartyID, counterPartyAddress, protocol string, typ process.Type) *Negotiation {
	now := time.Now().UTC()
	return &Negotiation{
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
	}
}

// CurrentState returns the typed state.
func (n *Negotiation) CurrentState() State { return State(n.State) }

// Transition applies a validated transition, rejecting unreachable targets.
func (n *Negotiation) Transition(target State) error {
	if state := n.CurrentState(); state != 0 && !state.CanTransitionTo(target) {
		return process.ErrInvalidTransition
	}
	n.TransitionTo(int(target))
	return nil
}

// AddOffer appends the offer to the exchange history.
func (n *Negotiation) AddOffer(o Offer) {
	n.Offers = append(n.Offers, o)
}

// LastOffer returns the most recently exchanged offer, or nil.
func (n *Negotiation) LastOffer() *Offer {
	if len(n.Offers) == 0 {
		return nil
	}
	return &n.Offers[len(n.Offers)-1]
}

// SetAgreement attaches the agreement received from the provider.
func (n *Negotiation) SetAgreement(a Agreement) {
	n.Agreement = &a
}

// Terminate records the counterparty's termination reason.
func (n *Negotiation) Terminate(code, reason string) {
	n.TerminationCode = code
	n.TerminationReason = reason
}

// Copy returns a deep copy, detached from the original.
func (n *Negotiation) Copy() *Negotiation {
	c := &Negotiation{
		Entity:            n.CopyEntity(),
		Offers:            append([]Offer(nil), n.Offers...),
		TerminationReason: n.TerminationReason,
		TerminationCode:   n.TerminationCode,
	}
	if n.Agreement != nil {
		a := *n.Agreement
		c.Agreement = &a
	}
	return c
}
