package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"3tcapital/saftprocessor/internal/core/opengcs"
)

// Repository implements opengcs.Repository using PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewRepository creates a new PostgreSQL OpenGCs repository.
func NewRepository(pool *pgxpool.Pool, log *slog.Logger) *Repository {
	return &Repository{pool: pool, log: log}
}

// Upsert replaces the snapshot of a store.
func (r *Repository) Upsert(ctx context.Context, rec opengcs.Record) error {
	data, err := json.Marshal(rec.Data)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	query := `
		INSERT INTO open_gcs_json (loja_id, nif, filial, data, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (loja_id) DO UPDATE SET
			nif = EXCLUDED.nif,
			filial = EXCLUDED.filial,
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := r.pool.Exec(ctx, query, rec.LojaID, rec.NIF, rec.Filial, data, rec.UpdatedAt); err != nil {
		return fmt.Errorf("upsert open gcs %s: %w", rec.LojaID, err)
	}

	if r.log != nil {
		r.log.Debug("OpenGCs snapshot saved", "loja_id", rec.LojaID, "count", rec.Data.Count)
	}
	return nil
}
