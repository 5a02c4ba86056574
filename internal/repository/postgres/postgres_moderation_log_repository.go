package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dpetrov/speedrun-tracker/internal/models"
	pkgerrors "github.com/dpetrov/speedrun-tracker/pkg/errors"
)

type PostgresModerationLogRepository struct {
	db *sql.DB
}

func NewPostgresModerationLogRepository(db *sql.DB) *PostgresModerationLogRepository {
	return &PostgresModerationLogRepository{db: db}
}

func (r *PostgresModerationLogRepository) Create(ctx context.Context, entry *models.ModerationEntry) error {
	if entry == nil {
		return pkgerrors.ErrInternal
	}

	query := `
	INSERT INTO moderation_log (submission_id, action, actor)
	VALUES ($1, $2, $3)
	RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query, entry.SubmissionID, entry.Action, entry.Actor).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create moderation log entry: %w", err)
	}
	return nil
}

func (r *PostgresModerationLogRepository) ListBySubmission(ctx context.Context, submissionID int32) ([]models.ModerationEntry, error) {
	query := `SELECT id, submission_id, action, actor, created_at FROM moderation_log WHERE submission_id = $1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list moderation log: %w", err)
	}
	defer rows.Close()

	var entries []models.ModerationEntry
	for rows.Next() {
		var entry models.ModerationEntry
		if err := rows.Scan(&entry.ID, &entry.SubmissionID, &entry.Action, &entry.Actor, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan moderation log entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate moderation log: %w", err)
	}
	return entries, nil
}
