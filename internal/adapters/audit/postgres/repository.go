package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"3tcapital/saftprocessor/internal/core/audit"
)

// Repository implements the audit.Repository interface using PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewRepositoryWithLogger creates a new PostgreSQL audit repository with logging.
func NewRepositoryWithLogger(pool *pgxpool.Pool, log *slog.Logger) audit.Repository {
	return &Repository{pool: pool, log: log}
}

// Save persists one file outcome.
func (r *Repository) Save(ctx context.Context, rec audit.IngestionRecord) error {
	query := `
		INSERT INTO ingestion_audit_log (
			task_id, file, kind, status, state, message, invoices,
			references_seen, deactivated, failures, duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.pool.Exec(ctx, query,
		rec.TaskID,
		rec.File,
		rec.Kind,
		rec.Status,
		rec.State,
		rec.Message,
		rec.Invoices,
		rec.ReferencesSeen,
		rec.Deactivated,
		rec.Failures,
		rec.DurationMs,
	)
	if err != nil {
		errMsg := fmt.Errorf("insert ingestion audit: %w", err)
		if r.log != nil {
			r.log.Error("Failed to insert ingestion audit row",
				"task_id", rec.TaskID,
				"file", rec.File,
				"status", rec.Status,
				"error", errMsg,
			)
		}
		return errMsg
	}

	if r.log != nil {
		r.log.Debug("Ingestion audit row saved",
			"task_id", rec.TaskID,
			"file", rec.File,
			"status", rec.Status,
			"duration_ms", rec.DurationMs,
		)
	}
	return nil
}

// FindByTaskID retrieves every file outcome recorded under a task id, oldest first.
func (r *Repository) FindByTaskID(ctx context.Context, taskID string) ([]audit.IngestionRecord, error) {
	query := `
		SELECT id, task_id, file, kind, status, state, message, invoices,
		       references_seen, deactivated, failures, duration_ms, created_at
		FROM ingestion_audit_log
		WHERE task_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.pool.Query(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("query ingestion audit: %w", err)
	}
	defer rows.Close()

	var records []audit.IngestionRecord
	for rows.Next() {
		var rec audit.IngestionRecord
		err := rows.Scan(
			&rec.ID,
			&rec.TaskID,
			&rec.File,
			&rec.Kind,
			&rec.Status,
			&rec.State,
			&rec.Message,
			&rec.Invoices,
			&rec.ReferencesSeen,
			&rec.Deactivated,
			&rec.Failures,
			&rec.DurationMs,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan ingestion audit: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return records, nil
}
