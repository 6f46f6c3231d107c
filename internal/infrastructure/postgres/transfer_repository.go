package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dataspace-hub/dataspace-hub/internal/domain/svcerror"
	"github.com/dataspace-hub/dataspace-hub/internal/domain/transfer"
)

const transferKind = "transfer_process"

const selectTransfer = `
	SELECT id, correlation_id, participant_context_id, counterparty_id, counterparty_address,
	       protocol, type, state, state_count, state_timestamp, previous_states,
	       last_processed_message_id, error_detail, agreement_id, asset_id, data_address,
	       termination_reason, termination_code, created_at, updated_at
	FROM transfer_processes`

// TransferRepository implements transfer.Store on postgres, sharing the
// leases table with the negotiation repository under its own resource kind.
type TransferRepository struct {
	pool *pgxpool.Pool
}

func NewTransferRepository(pool *pgxpool.Pool) *TransferRepository {
	return &TransferRepository{pool: pool}
}

func (r *TransferRepository) FindByID(ctx context.Context, id string) (*transfer.Process, error) {
	return scanTransfer(r.pool.QueryRow(ctx, selectTransfer+` WHERE id=$1`, id))
}

func (r *TransferRepository) FindByCorrelationID(ctx context.Context, correlationID string) (*transfer.Process, error) {
	if correlationID == "" {
		return nil, nil
	}
	return scanTransfer(r.pool.QueryRow(ctx, selectTransfer+` WHERE correlation_id=$1`, correlationID))
}

func (r *TransferRepository) FindByIDAndLease(ctx context.Context, id, ownerToken string, duration time.Duration) (*transfer.Process, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, svcerror.Internal(err, "beginning lease transaction")
	}
	defer tx.Rollback(ctx)

	p, err := scanTransfer(tx.QueryRow(ctx, selectTransfer+` WHERE id=$1`, id))
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, svcerror.NotFound("no transfer process with id %s found", id)
	}
	lease, err := acquireLease(ctx, tx, id, transferKind, ownerToken, duration)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, svcerror.Internal(err, "committing lease on transfer %s", id)
	}
	p.Lease = lease
	return p, nil
}

func (r *TransferRepository) Save(ctx context.Context, p *transfer.Process) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return svcerror.Internal(err, "beginning save transaction")
	}
	defer tx.Rollback(ctx)

	if err := releaseLease(ctx, tx, p.ID, transferKind, p.Lease); err != nil {
		return err
	}

	previousStates, err := json.Marshal(p.PreviousStates)
	if err != nil {
		return err
	}
	var dataAddress []byte
	if p.DataAddress != nil {
		if dataAddress, err = json.Marshal(p.DataAddress); err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO transfer_processes
		(id, correlation_id, participant_context_id, counterparty_id, counterparty_address,
		 protocol, type, state, state_count, state_timestamp, previous_states,
		 last_processed_message_id, error_detail, agreement_id, asset_id, data_address,
		 termination_reason, termination_code, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		ON CONFLICT (id) DO UPDATE SET
		 state=EXCLUDED.state, state_count=EXCLUDED.state_count,
		 state_timestamp=EXCLUDED.state_timestamp, previous_states=EXCLUDED.previous_states,
		 last_processed_message_id=EXCLUDED.last_processed_message_id,
		 error_detail=EXCLUDED.error_detail, data_address=EXCLUDED.data_address,
		 termination_reason=EXCLUDED.termination_reason,
		 termination_code=EXCLUDED.termination_code, updated_at=EXCLUDED.updated_at
	`, p.ID, p.CorrelationID, p.ParticipantContextID, p.CounterPartyID, p.CounterPartyAddress,
		p.Protocol, p.Type, p.State, p.StateCount, p.StateTimestamp, previousStates,
		p.LastProcessedMessageID, p.ErrorDetail, p.AgreementID, p.AssetID, dataAddress,
		p.TerminationReason, p.TerminationCode, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return svcerror.Internal(err, "saving transfer %s", p.ID)
	}
	if err := tx.Commit(ctx); err != nil {
		return svcerror.Internal(err, "committing transfer %s", p.ID)
	}
	p.Lease = nil
	return nil
}

func (r *TransferRepository) List(ctx context.Context, limit, offset int) ([]*transfer.Process, error) {
	rows, err := r.pool.Query(ctx, selectTransfer+` ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []*transfer.Process
	for rows.Next() {
		p, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func scanTransfer(row pgx.Row) (*transfer.Process, error) {
	var p transfer.Process
	var previousStates, dataAddress []byte
	err := row.Scan(&p.ID, &p.CorrelationID, &p.ParticipantContextID, &p.CounterPartyID, &p.CounterPartyAddress,
		&p.Protocol, &p.Type, &p.State, &p.StateCount, &p.StateTimestamp, &previousStates,
		&p.LastProcessedMessageID, &p.ErrorDetail, &p.AgreementID, &p.AssetID, &dataAddress,
		&p.TerminationReason, &p.TerminationCode, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(previousStates) > 0 {
		if err := json.Unmarshal(previousStates, &p.PreviousStates); err != nil {
			return nil, err
		}
	}
	if len(dataAddress) > 0 {
		p.DataAddress = &transfer.DataAddress{}
		if err := json.Unmarshal(dataAddress, p.DataAddress); err != nil {
			return nil, err
		}
	}
	return &p, nil
}
