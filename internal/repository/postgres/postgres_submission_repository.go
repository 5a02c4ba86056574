package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dpetrov/speedrun-tracker/internal/infrastructure/observability"
	"github.com/dpetrov/speedrun-tracker/internal/models"
	pkgerrors "github.com/dpetrov/speedrun-tracker/pkg/errors"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type PostgresSubmissionRepository struct {
	db *sql.DB
}

func NewPostgresSubmissionRepository(db *sql.DB) *PostgresSubmissionRepository {
	return &PostgresSubmissionRepository{db: db}
}

const submissionColumns = `id, name, game, url, bugs, author, date, status, created_at`

func scanSubmission(row interface{ Scan(...any) error }, sub *models.Submission) error {
	return row.Scan(
		&sub.ID,
		&sub.Name,
		&sub.Game,
		&sub.URL,
		&sub.Bugs,
		&sub.Author,
		&sub.Date,
		&sub.Status,
		&sub.CreatedAt,
	)
}

// Create inserts the submission. The unique indexes on name and url are
// the authoritative duplicate guard; a violation is mapped back to the
// same sentinel the admission pre-check uses.
func (r *PostgresSubmissionRepository) Create(ctx context.Context, sub *models.Submission) error {
	var err error
	tracer := otel.Tracer("submission-repository")
	ctx, span := tracer.Start(ctx, "CreateSubmission")
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("CreateSubmission", status).Inc()
		observability.RepositoryDuration.WithLabelValues("CreateSubmission").Observe(time.Since(start).Seconds())
	}()

	if sub == nil {
		err = pkgerrors.ErrNilSubmission
		return err
	}
	if !sub.Status.Valid() {
		err = fmt.Errorf("invalid submission status %q", sub.Status)
		return err
	}

	span.SetAttributes(
		attribute.String("name", sub.Name),
		attribute.String("game", sub.Game),
		attribute.String("author", sub.Author),
	)

	query := `
	INSERT INTO submissions (name, game, url, bugs, author, date, status)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id, created_at
	`
	err = r.db.QueryRowContext(ctx, query,
		sub.Name, sub.Game, sub.URL, sub.Bugs, sub.Author, sub.Date, sub.Status,
	).Scan(&sub.ID, &sub.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == "23505" {
			if strings.Contains(pqErr.Constraint, "url") {
				err = pkgerrors.ErrURLExists
			} else {
				err = pkgerrors.ErrNameExists
			}
			slog.Warn("duplicate submission insert", "name", sub.Name, "constraint", pqErr.Constraint)
			return err
		}
		err = fmt.Errorf("failed to create submission: %w", err)
		return err
	}

	slog.Info("submission created", "id", sub.ID, "name", sub.Name, "author", sub.Author, "game", sub.Game)
	return nil
}

func (r *PostgresSubmissionRepository) GetByID(ctx context.Context, id int32) (*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`

	var sub models.Submission
	err := scanSubmission(r.db.QueryRowContext(ctx, query, id), &sub)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		return nil, pkgerrors.ErrSubmissionNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to get submission by id: %w", err)
	}
	return &sub, nil
}

func (r *PostgresSubmissionRepository) NameExists(ctx context.Context, name string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM submissions WHERE name = $1)`, name)
}

func (r *PostgresSubmissionRepository) URLExists(ctx context.Context, url string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM submissions WHERE url = $1)`, url)
}

func (r *PostgresSubmissionRepository) exists(ctx context.Context, query, arg string) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, arg).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}
	return exists, nil
}

func (r *PostgresSubmissionRepository) ListByAuthor(ctx context.Context, author string) ([]models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE author = $1`
	return r.list(ctx, query, author)
}

func (r *PostgresSubmissionRepository) ListByStatus(ctx context.Context, status models.Status) ([]models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE status = $1`
	return r.list(ctx, query, string(status))
}

func (r *PostgresSubmissionRepository) list(ctx context.Context, query string, arg string) ([]models.Submission, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var subs []models.Submission
	for rows.Next() {
		var sub models.Submission
		if err := scanSubmission(rows, &sub); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate submissions: %w", err)
	}
	return subs, nil
}

// SetStatus updates an existing submission. Unlike the usual upsert
// shortcut, a missing id is an error: moderation must not create
// partial records.
func (r *PostgresSubmissionRepository) SetStatus(ctx context.Context, id int32, status models.Status) error {
	var err error
	tracer := otel.Tracer("submission-repository")
	ctx, span := tracer.Start(ctx, "SetSubmissionStatus")
	span.SetAttributes(attribute.Int("submission_id", int(id)), attribute.String("status", string(status)))
	defer span.End()

	start := time.Now()
	defer func() {
		result := "success"
		if err != nil {
			result = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("SetSubmissionStatus", result).Inc()
		observability.RepositoryDuration.WithLabelValues("SetSubmissionStatus").Observe(time.Since(start).Seconds())
	}()

	if !status.Valid() {
		err = fmt.Errorf("invalid submission status %q", status)
		return err
	}

	res, err := r.db.ExecContext(ctx, `UPDATE submissions SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		err = fmt.Errorf("failed to update submission status: %w", err)
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		err = fmt.Errorf("failed to read affected rows: %w", err)
		return err
	}
	if affected == 0 {
		err = pkgerrors.ErrSubmissionNotFound
		return err
	}

	slog.Info("submission status updated", "id", id, "status", status)
	return nil
}

func (r *PostgresSubmissionRepository) Delete(ctx context.Context, id int32) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM submissions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete submission: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return pkgerrors.ErrSubmissionNotFound
	}
	slog.Info("submission deleted", "id", id)
	return nil
}
