package repository

import (
	"context"

	"github.com/dpetrov/speedrun-tracker/internal/models"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int32) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}
