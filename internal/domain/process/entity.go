package process

import (
	"errors"
	"time"
)

// Type distinguishes the local connector's role in a process.
type Type string

const (
	// TypeInitiator marks the side that opened the process (consumer role).
	TypeInitiator Type = "INITIATOR"
	// TypeResponder marks the side that answers (provider role).
	TypeResponder Type = "RESPONDER"
)

var ErrInvalidTransition = errors.New("invalid state transition")

// Lease is a time-bounded exclusive claim on an entity. It is transient:
// acquired by the store on read, cleared again on save.
type Lease struct {
	OwnerToken string        `json:"ownerToken"`
	AcquiredAt time.Time     `json:"acquiredAt"`
	Duration   time.Duration `json:"duration"`
}

// Expired reports whether the lease lapsed at the given instant.
func (l *Lease) Expired(now time.Time) bool {
	return now.After(l.AcquiredAt.Add(l.Duration))
}

// Entity is the persisted core shared by negotiation and transfer processes.
// State advances only through TransitionTo; the state history and the
// last-processed protocol message id travel with the entity so that any
// worker holding the lease can resume where another left off.
type Entity struct {
	ID                     string     `json:"id"`
	CorrelationID          string     `json:"correlationId"`
	ParticipantContextID   string     `json:"participantContextId"`
	CounterPartyID         string     `json:"counterPartyId"`
	CounterPartyAddress    string     `json:"counterPartyAddress"`
	Protocol               string     `json:"protocol"`
	Type                   Type       `json:"type"`
	State                  int        `json:"state"`
	StateCount             int        `json:"stateCount"`
	StateTimestamp         time.Time  `json:"stateTimestamp"`
	PreviousStates         []int      `json:"previousStates"`
	LastProcessedMessageID string     `json:"lastProcessedMessageId"`
	ErrorDetail            string     `json:"errorDetail,omitempty"`
	CreatedAt              time.Time  `json:"createdAt"`
	UpdatedAt              time.Time  `json:"updatedAt"`
	Lease                  *Lease     `json:"-"`
}

// TransitionTo moves the entity to the target state. Re-entering the current
// state bumps StateCount, any other target resets it to 1 and appends the old
// state to the history. Reachability is checked by the caller.
func (e *Entity) TransitionTo(target int) {
	if e.State == target {
		e.StateCount++
	} else {
		e.PreviousStates = append(e.PreviousStates, e.State)
		e.StateCount = 1
		e.State = target
	}
	now := time.Now().UTC()
	e.StateTimestamp = now
	e.UpdatedAt = now
}

// ShouldIgnore reports whether the incoming message id matches the last one
// already applied. Peers retry with an unchanged message id, so a match means
// the message is a redelivery and must be suppressed as a no-op success.
func (e *Entity) ShouldIgnore(messageID string) bool {
	return messageID != "" && messageID == e.LastProcessedMessageID
}

// MessageReceived records the message id as processed. Called only after the
// operation's validation succeeded.
func (e *Entity) MessageReceived(messageID string) {
	e.LastProcessedMessageID = messageID
}

// CopyEntity returns a deep copy of the embedded core.
func (e *Entity) CopyEntity() Entity {
	c := *e
	c.PreviousStates = append([]int(nil), e.PreviousStates...)
	if e.Lease != nil {
		l := *e.Lease
		c.Lease = &l
	}
	return c
}
