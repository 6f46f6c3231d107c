package transfer

import (
	"time"

	"github.com/rs/zerolog"

	domainTransfer "github.com/dataspace-hub/dataspace-hub/internal/domain/transfer"
	"github.com/dataspace-hub/dataspace-hub/internal/infrastructure/events"
)

// AuditListener writes one structured log line per completed transition.
type AuditListener struct {
	logger zerolog.Logger
}

func NewAuditListener(logger zerolog.Logger) *AuditListener {
	return &AuditListener{logger: logger.With().Str("listener", "transfer-audit").Logger()}
}

func (l *AuditListener) log(event string, p *domainTransfer.Process) error {
	l.logger.Info().
		Str("event", event).
		Str("id", p.ID).
		Str("agreementId", p.AgreementID).
		Str("counterPartyId", p.CounterPartyID).
		Str("state", p.CurrentState().String()).
		Int("stateCount", p.StateCount).
		Msg("transfer process transition")
	return nil
}

func (l *AuditListener) Requested(p *domainTransfer.Process) error  { return l.log("requested", p) }
func (l *AuditListener) Started(p *domainTransfer.Process) error    { return l.log("started", p) }
func (l *AuditListener) Suspended(p *domainTransfer.Process) error  { return l.log("suspended", p) }
func (l *AuditListener) Completed(p *domainTransfer.Process) error  { return l.log("completed", p) }
func (l *AuditListener) Terminated(p *domainTransfer.Process) error { return l.log("terminated", p) }

// HubListener broadcasts completed transitions to the in-process event hub.
type HubListener struct {
	hub *events.Hub
}

func NewHubListener(hub *events.Hub) *HubListener {
	return &HubListener{hub: hub}
}

func (l *HubListener) broadcast(event string, p *domainTransfer.Process) error {
	l.hub.Broadcast(events.Event{
		Kind:        event,
		ProcessID:   p.ID,
		ProcessType: "transfer",
		State:       p.CurrentState().String(),
		Timestamp:   time.Now().UTC(),
	})
	return nil
}

func (l *HubListener) Requested(p *domainTransfer.Process) error  { return l.broadcast("requested", p) }
func (l *HubListener) Started(p *domainTransfer.Process) error    { return l.broadcast("started", p) }
func (l *HubListener) Suspended(p *domainTransfer.Process) error  { return l.broadcast("suspended", p) }
func (l *HubListener) Completed(p *domainTransfer.Process) error  { return l.broadcast("completed", p) }
func (l *HubListener) Terminated(p *domainTransfer.Process) error { return l.broadcast("terminated", p) }
