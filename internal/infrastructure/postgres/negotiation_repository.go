package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dataspace-hub/dataspace-hub/internal/domain/negotiation"
	"github.com/dataspace-hub/dataspace-hub/internal/domain/process"
	"github.com/dataspace-hub/dataspace-hub/internal/domain/svcerror"
)

const negotiationKind = "contract_negotiation"

const selectNegotiation = `
	SELECT id, correlation_id, participant_context_id, counterparty_id, counterparty_address,
	       protocol, type, state, state_count, state_timestamp, previous_states,
	       last_processed_message_id, error_detail, offers, agreement,
	       termination_reason, termination_code, created_at, updated_at
	FROM contract_negotiations`

// NegotiationRepository implements negotiation.Store on postgres.
//
// Lease acquisition is a single guarded upsert against the leases table so
// that concurrent workers race on one atomic statement instead of a
// read-then-write sequence.
type NegotiationRepository struct {
	pool *pgxpool.Pool
}

func NewNegotiationRepository(pool *pgxpool.Pool) *NegotiationRepository {
	return &NegotiationRepository{pool: pool}
}

func (r *NegotiationRepository) FindByID(ctx context.Context, id string) (*negotiation.Negotiation, error) {
	return scanNegotiation(r.pool.QueryRow(ctx, selectNegotiation+` WHERE id=$1`, id))
}

func (r *NegotiationRepository) FindByCorrelationID(ctx context.Context, correlationID string) (*negotiation.Negotiation, error) {
	if correlationID == "" {
		return nil, nil
	}
	return scanNegotiation(r.pool.QueryRow(ctx, selectNegotiation+` WHERE correlation_id=$1`, correlationID))
}

func (r *NegotiationRepository) FindByAgreementID(ctx context.Context, agreementID string) (*negotiation.Negotiation, error) {
	if agreementID == "" {
		return nil, nil
	}
	return scanNegotiation(r.pool.QueryRow(ctx, selectNegotiation+` WHERE agreement->>'id'=$1`, agreementID))
}

func (r *NegotiationRepository) FindByIDAndLease(ctx context.Context, id, ownerToken string, duration time.Duration) (*negotiation.Negotiation, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, svcerror.Internal(err, "beginning lease transaction")
	}
	defer tx.Rollback(ctx)

	n, err := scanNegotiation(tx.QueryRow(ctx, selectNegotiation+` WHERE id=$1`, id))
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, svcerror.NotFound("no negotiation with id %s found", id)
	}
	lease, err := acquireLease(ctx, tx, id, negotiationKind, ownerToken, duration)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, svcerror.Internal(err, "committing lease on negotiation %s", id)
	}
	n.Lease = lease
	return n, nil
}

func (r *NegotiationRepository) Save(ctx context.Context, n *negotiation.Negotiation) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return svcerror.Internal(err, "beginning save transaction")
	}
	defer tx.Rollback(ctx)

	if err := releaseLease(ctx, tx, n.ID, negotiationKind, n.Lease); err != nil {
		return err
	}

	previousStates, err := json.Marshal(n.PreviousStates)
	if err != nil {
		return err
	}
	offers, err := json.Marshal(n.Offers)
	if err != nil {
		return err
	}
	var agreement []byte
	if n.Agreement != nil {
		if agreement, err = json.Marshal(n.Agreement); err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO contract_negotiations
		(id, correlation_id, participant_context_id, counterparty_id, counterparty_address,
		 protocol, type, state, state_count, state_timestamp, previous_states,
		 last_processed_message_id, error_detail, offers, agreement,
		 termination_reason, termination_code, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		ON CONFLICT (id) DO UPDATE SET
		 state=EXCLUDED.state, state_count=EXCLUDED.state_count,
		 state_timestamp=EXCLUDED.state_timestamp, previous_states=EXCLUDED.previous_states,
		 last_processed_message_id=EXCLUDED.last_processed_message_id,
		 error_detail=EXCLUDED.error_detail, offers=EXCLUDED.offers,
		 agreement=EXCLUDED.agreement, termination_reason=EXCLUDED.termination_reason,
		 termination_code=EXCLUDED.termination_code, updated_at=EXCLUDED.updated_at
	`, n.ID, n.CorrelationID, n.ParticipantContextID, n.CounterPartyID, n.CounterPartyAddress,
		n.Protocol, n.Type, n.State, n.StateCount, n.StateTimestamp, previousStates,
		n.LastProcessedMessageID, n.ErrorDetail, offers, agreement,
		n.TerminationReason, n.TerminationCode, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return svcerror.Internal(err, "saving negotiation %s", n.ID)
	}
	if err := tx.Commit(ctx); err != nil {
		return svcerror.Internal(err, "committing negotiation %s", n.ID)
	}
	n.Lease = nil
	return nil
}

func (r *NegotiationRepository) List(ctx context.Context, limit, offset int) ([]*negotiation.Negotiation, error) {
	rows, err := r.pool.Query(ctx, selectNegotiation+` ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []*negotiation.Negotiation
	for rows.Next() {
		n, err := scanNegotiation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func scanNegotiation(row pgx.Row) (*negotiation.Negotiation, error) {
	var n negotiation.Negotiation
	var previousStates, offers, agreement []byte
	err := row.Scan(&n.ID, &n.CorrelationID, &n.ParticipantContextID, &n.CounterPartyID, &n.CounterPartyAddress,
		&n.Protocol, &n.Type, &n.State, &n.StateCount, &n.StateTimestamp, &previousStates,
		&n.LastProcessedMessageID, &n.ErrorDetail, &offers, &agreement,
		&n.TerminationReason, &n.TerminationCode, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(previousStates) > 0 {
		if err := json.Unmarshal(previousStates, &n.PreviousStates); err != nil {
			return nil, err
		}
	}
	if len(offers) > 0 {
		if err := json.Unmarshal(offers, &n.Offers); err != nil {
			return nil, err
		}
	}
	if len(agreement) > 0 {
		n.Agreement = &negotiation.Agreement{}
		if err := json.Unmarshal(agreement, n.Agreement); err != nil {
			return nil, err
		}
	}
	return &n, nil
}

// acquireLease writes the lease record iff none exists or the existing one
// expired. Zero affected rows means another owner holds a live lease.
func acquireLease(ctx context.Context, tx pgx.Tx, entityID, kind, ownerToken string, duration time.Duration) (*process.Lease, error) {
	now := time.Now().UTC()
	tag, err := tx.Exec(ctx, `
		INSERT INTO leases (entity_id, resource_kind, owner_token, acquired_at, duration_ms)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (entity_id, resource_kind) DO UPDATE SET
		 owner_token=EXCLUDED.owner_token, acquired_at=EXCLUDED.acquired_at, duration_ms=EXCLUDED.duration_ms
		WHERE leases.acquired_at + leases.duration_ms * interval '1 millisecond' < EXCLUDED.acquired_at
	`, entityID, kind, ownerToken, now, duration.Milliseconds())
	if err != nil {
		return nil, svcerror.Internal(err, "acquiring lease on %s %s", kind, entityID)
	}
	if tag.RowsAffected() == 0 {
		return nil, svcerror.Conflict("%s %s is leased by another owner", kind, entityID)
	}
	return &process.Lease{OwnerToken: ownerToken, AcquiredAt: now, Duration: duration}, nil
}

// releaseLease deletes the caller's lease record. An entity saved without a
// lease (freshly created) has nothing to release. Zero deleted rows means
// the lease expired and was taken over: the caller's changes must not win.
func releaseLease(ctx context.Context, tx pgx.Tx, entityID, kind string, lease *process.Lease) error {
	if lease == nil {
		return nil
	}
	tag, err := tx.Exec(ctx, `
		DELETE FROM leases WHERE entity_id=$1 AND resource_kind=$2 AND owner_token=$3
	`, entityID, kind, lease.OwnerToken)
	if err != nil {
		return svcerror.Internal(err, "releasing lease on %s %s", kind, entityID)
	}
	if tag.RowsAffected() == 0 {
		return svcerror.Conflict("lease on %s %s was lost", kind, entityID)
	}
	return nil
}
