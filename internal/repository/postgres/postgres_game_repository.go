package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dpetrov/speedrun-tracker/internal/models"
	pkgerrors "github.com/dpetrov/speedrun-tracker/pkg/errors"
	"github.com/lib/pq"
)

type PostgresGameRepository struct {
	db *sql.DB
}

func NewPostgresGameRepository(db *sql.DB) *PostgresGameRepository {
	return &PostgresGameRepository{db: db}
}

func (r *PostgresGameRepository) Create(ctx context.Context, game *models.Game) error {
	if game == nil {
		return pkgerrors.ErrNilGame
	}
	if game.Name == "" {
		return fmt.Errorf("game name is required")
	}

	query := `INSERT INTO games (name) VALUES ($1) RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, game.Name).Scan(&game.ID, &game.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return pkgerrors.ErrGameExists
		}
		return fmt.Errorf("failed to create game: %w", err)
	}
	return nil
}

func (r *PostgresGameRepository) GetByName(ctx context.Context, name string) (*models.Game, error) {
	query := `SELECT id, name, created_at FROM games WHERE name = $1`

	var game models.Game
	err := r.db.QueryRowContext(ctx, query, name).Scan(&game.ID, &game.Name, &game.CreatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, pkgerrors.ErrGameNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to get game by name: %w", err)
	}
	return &game, nil
}

func (r *PostgresGameRepository) List(ctx context.Context) ([]models.Game, error) {
	query := `SELECT id, name, created_at FROM games ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	var games []models.Game
	for rows.Next() {
		var game models.Game
		if err := rows.Scan(&game.ID, &game.Name, &game.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, game)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate games: %w", err)
	}
	return games, nil
}
