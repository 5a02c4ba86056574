package repository_test

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dpetrov/speedrun-tracker/internal/models"
	repository "github.com/dpetrov/speedrun-tracker/internal/repository/postgres"
	pkgerrors "github.com/dpetrov/speedrun-tracker/pkg/errors"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestPostgresGameRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresGameRepository(db)
	ctx := context.Background()

	query := regexp.QuoteMeta(`INSERT INTO games (name) VALUES ($1) RETURNING id, created_at`)

	t.Run("Success", func(t *testing.T) {
		game := &models.Game{Name: "CELESTE"}
		mock.ExpectQuery(query).
			WithArgs("CELESTE").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int32(1), time.Now()))

		err := repo.Create(ctx, game)
		assert.NoError(t, err)
		assert.Equal(t, int32(1), game.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("AlreadyExists", func(t *testing.T) {
		game := &models.Game{Name: "CELESTE"}
		mock.ExpectQuery(query).
			WithArgs("CELESTE").
			WillReturnError(&pq.Error{Code: "23505", Constraint: "games_name_key"})

		err := repo.Create(ctx, game)
		assert.ErrorIs(t, err, pkgerrors.ErrGameExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NilGame", func(t *testing.T) {
		err := repo.Create(ctx, nil)
		assert.ErrorIs(t, err, pkgerrors.ErrNilGame)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresGameRepository_GetByName(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresGameRepository(db)
	ctx := context.Background()

	query := regexp.QuoteMeta(`SELECT id, name, created_at FROM games WHERE name = $1`)

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs("CELESTE").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at"}).
				AddRow(int32(1), "CELESTE", time.Now()))

		game, err := repo.GetByName(ctx, "CELESTE")
		assert.NoError(t, err)
		assert.Equal(t, "CELESTE", game.Name)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs("UNDERTALE").
			WillReturnError(sql.ErrNoRows)

		game, err := repo.GetByName(ctx, "UNDERTALE")
		assert.Nil(t, game)
		assert.ErrorIs(t, err, pkgerrors.ErrGameNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresGameRepository_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresGameRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, name, created_at FROM games ORDER BY name`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at"}).
			AddRow(int32(1), "CELESTE", time.Now()).
			AddRow(int32(2), "HOLLOW KNIGHT", time.Now()))

	games, err := repo.List(ctx)
	assert.NoError(t, err)
	assert.Len(t, games, 2)
	assert.Equal(t, "CELESTE", games[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}
