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

func submissionRows(subs ...models.Submission) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "name", "game", "url", "bugs", "author", "date", "status", "created_at"})
	for _, s := range subs {
		rows.AddRow(s.ID, s.Name, s.Game, s.URL, s.Bugs, s.Author, s.Date, string(s.Status), time.Now())
	}
	return rows
}

func testSubmission() *models.Submission {
	return &models.Submission{
		Name:   "glitchless any% run",
		Game:   "CELESTE",
		URL:    "https://example.com/run",
		Bugs:   "No",
		Author: "alice123",
		Date:   "6/15/2023",
		Status: models.StatusAwaiting,
	}
}

func TestPostgresSubmissionRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresSubmissionRepository(db)
	ctx := context.Background()

	insert := regexp.QuoteMeta(`INSERT INTO submissions (name, game, url, bugs, author, date, status)`)

	t.Run("Success", func(t *testing.T) {
		sub := testSubmission()
		mock.ExpectQuery(insert).
			WithArgs(sub.Name, sub.Game, sub.URL, sub.Bugs, sub.Author, sub.Date, string(sub.Status)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int32(7), time.Now()))

		err := repo.Create(ctx, sub)
		assert.NoError(t, err)
		assert.Equal(t, int32(7), sub.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DuplicateName", func(t *testing.T) {
		sub := testSubmission()
		mock.ExpectQuery(insert).
			WithArgs(sub.Name, sub.Game, sub.URL, sub.Bugs, sub.Author, sub.Date, string(sub.Status)).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "submissions_name_key"})

		err := repo.Create(ctx, sub)
		assert.ErrorIs(t, err, pkgerrors.ErrNameExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DuplicateURL", func(t *testing.T) {
		sub := testSubmission()
		mock.ExpectQuery(insert).
			WithArgs(sub.Name, sub.Game, sub.URL, sub.Bugs, sub.Author, sub.Date, string(sub.Status)).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "submissions_url_key"})

		err := repo.Create(ctx, sub)
		assert.ErrorIs(t, err, pkgerrors.ErrURLExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NilSubmission", func(t *testing.T) {
		err := repo.Create(ctx, nil)
		assert.ErrorIs(t, err, pkgerrors.ErrNilSubmission)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("InvalidStatus", func(t *testing.T) {
		sub := testSubmission()
		sub.Status = models.Status("pending")
		err := repo.Create(ctx, sub)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid submission status")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresSubmissionRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresSubmissionRepository(db)
	ctx := context.Background()

	query := regexp.QuoteMeta(`SELECT id, name, game, url, bugs, author, date, status, created_at FROM submissions WHERE id = $1`)

	t.Run("Success", func(t *testing.T) {
		want := testSubmission()
		want.ID = 7
		mock.ExpectQuery(query).
			WithArgs(int32(7)).
			WillReturnRows(submissionRows(*want))

		sub, err := repo.GetByID(ctx, 7)
		assert.NoError(t, err)
		assert.Equal(t, want.Name, sub.Name)
		assert.Equal(t, models.StatusAwaiting, sub.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs(int32(404)).
			WillReturnError(sql.ErrNoRows)

		sub, err := repo.GetByID(ctx, 404)
		assert.Nil(t, sub)
		assert.ErrorIs(t, err, pkgerrors.ErrSubmissionNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresSubmissionRepository_Exists(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresSubmissionRepository(db)
	ctx := context.Background()

	t.Run("NameExists", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM submissions WHERE name = $1)`)).
			WithArgs("glitchless any% run").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		exists, err := repo.NameExists(ctx, "glitchless any% run")
		assert.NoError(t, err)
		assert.True(t, exists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("URLDoesNotExist", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM submissions WHERE url = $1)`)).
			WithArgs("https://example.com/run").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		exists, err := repo.URLExists(ctx, "https://example.com/run")
		assert.NoError(t, err)
		assert.False(t, exists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresSubmissionRepository_SetStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresSubmissionRepository(db)
	ctx := context.Background()

	update := regexp.QuoteMeta(`UPDATE submissions SET status = $1 WHERE id = $2`)

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec(update).
			WithArgs("approved", int32(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.SetStatus(ctx, 7, models.StatusApproved)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFoundIsNotAnUpsert", func(t *testing.T) {
		mock.ExpectExec(update).
			WithArgs("rejected", int32(404)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.SetStatus(ctx, 404, models.StatusRejected)
		assert.ErrorIs(t, err, pkgerrors.ErrSubmissionNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("InvalidStatus", func(t *testing.T) {
		err := repo.SetStatus(ctx, 7, models.Status("deleted"))
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresSubmissionRepository_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresSubmissionRepository(db)
	ctx := context.Background()

	del := regexp.QuoteMeta(`DELETE FROM submissions WHERE id = $1`)

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec(del).
			WithArgs(int32(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Delete(ctx, 7)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectExec(del).
			WithArgs(int32(404)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Delete(ctx, 404)
		assert.ErrorIs(t, err, pkgerrors.ErrSubmissionNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresSubmissionRepository_ListByStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	repo := repository.NewPostgresSubmissionRepository(db)
	ctx := context.Background()

	first := testSubmission()
	first.ID = 1
	second := testSubmission()
	second.ID = 2
	second.Name = "another awaiting run here"
	second.URL = "https://example.com/other"

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, name, game, url, bugs, author, date, status, created_at FROM submissions WHERE status = $1`)).
		WithArgs("awaiting").
		WillReturnRows(submissionRows(*first, *second))

	subs, err := repo.ListByStatus(ctx, models.StatusAwaiting)
	assert.NoError(t, err)
	assert.Len(t, subs, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}
