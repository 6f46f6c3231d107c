package negotiation

import (
	"time"

	"github.com/rs/zerolog"

	domainNegotiation "github.com/dataspace-hub/dataspace-hub/internal/domain/negotiation"
	"github.com/dataspace-hub/dataspace-hub/internal/infrastructure/events"
)

// AuditListener writes one structured log line per completed transition.
type AuditListener struct {
	logger zerolog.Logger
}

func NewAuditListener(logger zerolog.Logger) *AuditListener {
	return &AuditListener{logger: logger.With().Str("listener", "negotiation-audit").Logger()}
}

func (l *AuditListener) log(event string, n *domainNegotiation.Negotiation) error {
	l.logger.Info().
		Str("event", event).
		Str("id", n.ID).
		Str("correlationId", n.CorrelationID).
		Str("counterPartyId", n.CounterPartyID).
		Str("state", n.CurrentState().String()).
		Int("stateCount", n.StateCount).
		Msg("contract negotiation transition")
	return nil
}

func (l *AuditListener) Requested(n *domainNegotiation.Negotiation) error  { return l.log("requested", n) }
func (l *AuditListener) Offered(n *domainNegotiation.Negotiation) error    { return l.log("offered", n) }
func (l *AuditListener) Accepted(n *domainNegotiation.Negotiation) error   { return l.log("accepted", n) }
func (l *AuditListener) Agreed(n *domainNegotiation.Negotiation) error     { return l.log("agreed", n) }
func (l *AuditListener) Verified(n *domainNegotiation.Negotiation) error   { return l.log("verified", n) }
func (l *AuditListener) Finalized(n *domainNegotiation.Negotiation) error  { return l.log("finalized", n) }
func (l *AuditListener) Terminated(n *domainNegotiation.Negotiation) error { return l.log("terminated", n) }

// HubListener broadcasts completed transitions to the in-process event hub
// consumed by the management event stream.
type HubListener struct {
	hub *events.Hub
}

func NewHubListener(hub *events.Hub) *HubListener {
	return &HubListener{hub: hub}
}

func (l *HubListener) broadcast(event string, n *domainNegotiation.Negotiation) error {
	l.hub.Broadcast(events.Event{
		Kind:        event,
		ProcessID:   n.ID,
		ProcessType: "negotiation",
		State:       n.CurrentState().String(),
		Timestamp:   time.Now().UTC(),
	})
	return nil
}

func (l *HubListener) Requested(n *domainNegotiation.Negotiation) error  { return l.broadcast("requested", n) }
func (l *HubListener) Offered(n *domainNegotiation.Negotiation) error    { return l.broadcast("offered", n) }
func (l *HubListener) Accepted(n *domainNegotiation.Negotiation) error   { return l.broadcast("accepted", n) }
func (l *HubListener) Agreed(n *domainNegotiation.Negotiation) error     { return l.broadcast("agreed", n) }
func (l *HubListener) Verified(n *domainNegotiation.Negotiation) error   { return l.broadcast("verified", n) }
func (l *HubListener) Finalized(n *domainNegotiation.Negotiation) error  { return l.broadcast("finalized", n) }
func (l *HubListener) Terminated(n *domainNegotiation.Negotiation) error { return l.broadcast("terminated", n) }
