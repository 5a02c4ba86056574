package repository

import (
	"context"

	"github.com/dpetrov/speedrun-tracker/internal/models"
)

type SubmissionRepository interface {
	Create(ctx context.Context, sub *models.Submission) error
	GetByID(ctx context.Context, id int32) (*models.Submission, error)
	NameExists(ctx context.Context, name string) (bool, error)
	URLExists(ctx context.Context, url string) (bool, error)
	ListByAuthor(ctx context.Context, author string) ([]models.Submission, error)
	ListByStatus(ctx context.Context, status models.Status) ([]models.Submission, error)
	SetStatus(ctx context.Context, id int32, status models.Status) error
	Delete(ctx context.Context, id int32) error
}
