package repository

import (
	"context"

	"github.com/dpetrov/speedrun-tracker/internal/models"
)

type GameRepository interface {
	Create(ctx context.Context, game *models.Game) error
	GetByName(ctx context.Context, name string) (*models.Game, error)
	List(ctx context.Context) ([]models.Game, error)
}
