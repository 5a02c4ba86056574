package repository

import (
	"context"

	"github.com/dpetrov/speedrun-tracker/internal/models"
)

type ModerationLogRepository interface {
	Create(ctx context.Context, entry *models.ModerationEntry) error
	ListBySubmission(ctx context.Context, submissionID int32) ([]models.ModerationEntry, error)
}
