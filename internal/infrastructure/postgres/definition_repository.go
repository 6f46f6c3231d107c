package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dataspace-hub/dataspace-hub/internal/domain/catalog"
)

// DefinitionRepository implements catalog.Repository.
type DefinitionRepository struct {
	pool *pgxpool.Pool
}

func NewDefinitionRepository(pool *pgxpool.Pool) *DefinitionRepository {
	return &DefinitionRepository{pool: pool}
}

func (r *DefinitionRepository) GetByID(ctx context.Context, id string) (*catalog.Definition, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, participant_context_id, asset_id, policy, created_at
		FROM contract_definitions WHERE id=$1
	`, id)
	return scanDefinition(row)
}

func (r *DefinitionRepository) Create(ctx context.Context, d *catalog.Definition) error {
	pol, err := json.Marshal(d.Policy)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO contract_definitions (id, participant_context_id, asset_id, policy, created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO NOTHING
	`, d.ID, d.ParticipantContextID, d.AssetID, pol, d.CreatedAt)
	return err
}

func (r *DefinitionRepository) List(ctx context.Context, limit, offset int) ([]*catalog.Definition, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, participant_context_id, asset_id, policy, created_at
		FROM contract_definitions ORDER BY id LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []*catalog.Definition
	for rows.Next() {
		d, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func scanDefinition(row pgx.Row) (*catalog.Definition, error) {
	var d catalog.Definition
	var pol []byte
	if err := row.Scan(&d.ID, &d.ParticipantContextID, &d.AssetID, &pol, &d.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(pol) > 0 {
		if err := json.Unmarshal(pol, &d.Policy); err != nil {
			return nil, err
		}
	}
	return &d, nil
}
