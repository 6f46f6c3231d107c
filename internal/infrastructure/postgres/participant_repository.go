package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dataspace-hub/dataspace-hub/internal/domain/participant"
)

// ParticipantRepository implements participant.Repository.
type ParticipantRepository struct {
	pool *pgxpool.Pool
}

func NewParticipantRepository(pool *pgxpool.Pool) *ParticipantRepository {
	return &ParticipantRepository{pool: pool}
}

func (r *ParticipantRepository) GetByID(ctx context.Context, id string) (*participant.Context, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, participant_id, created_at FROM participant_contexts WHERE id=$1
	`, id)
	var pc participant.Context
	if err := row.Scan(&pc.ID, &pc.ParticipantID, &pc.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &pc, nil
}

func (r *ParticipantRepository) Create(ctx context.Context, pc *participant.Context) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO participant_contexts (id, participant_id, created_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (id) DO NOTHING
	`, pc.ID, pc.ParticipantID, pc.CreatedAt)
	return err
}

func (r *ParticipantRepository) List(ctx context.Context, limit, offset int) ([]*participant.Context, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, participant_id, created_at FROM participant_contexts ORDER BY id LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []*participant.Context
	for rows.Next() {
		var pc participant.Context
		if err := rows.Scan(&pc.ID, &pc.ParticipantID, &pc.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &pc)
	}
	return result, rows.Err()
}
