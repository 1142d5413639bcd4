package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memora-health/memora-api/internal/model"
	"github.com/memora-health/memora-api/internal/repository"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return sqlx.NewDb(db, "postgres"), mock
}

func TestProfileUpdateReturnsMatchedRows(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProfileRepository(db, "profiles")
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "profiles"`)).
		WithArgs("Dr. Smith", "Cardiology", model.RoleDoctor, id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	matched, err := repo.Update(context.Background(), id, &model.ProfilePatch{
		FullName:  "Dr. Smith",
		Specialty: "Cardiology",
		Role:      model.RoleDoctor,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), matched)
}

func TestProfileInsertConflict(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProfileRepository(db, "users")
	profile := &model.Profile{
		ID:        uuid.New(),
		Email:     "dr.smith@example.com",
		FullName:  "Dr. Smith",
		Specialty: "Cardiology",
		Role:      model.RoleDoctor,
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "users"`)).
		WithArgs(profile.ID, profile.Email, profile.FullName, profile.Specialty, profile.Role, sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := repo.Insert(context.Background(), profile)
	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.False(t, profile.CreatedAt.IsZero())
}

func TestProfileDeleteNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProfileRepository(db, "profiles")
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "profiles" WHERE id = $1`)).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), id), repository.ErrNotFound)
}

func TestProfileGet(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProfileRepository(db, "profiles")
	id := uuid.New()
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id,.*FROM "profiles" WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "full_name", "specialty", "role", "created_at"}).
			AddRow(id.String(), "dr.smith@example.com", "Dr. Smith", "Cardiology", "doctor", created))

	profile, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, profile.ID)
	assert.Equal(t, model.RoleDoctor, profile.Role)
	assert.Equal(t, created, profile.CreatedAt)
}

func TestProfileGetMissing(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProfileRepository(db, "profiles")
	id := uuid.New()

	mock.ExpectQuery(`FROM "profiles" WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.Get(context.Background(), id)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestProfileCountByRole(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProfileRepository(db, "profiles")

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "profiles" WHERE role = $1`)).
		WithArgs(model.RoleDoctor).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.CountByRole(context.Background(), model.RoleDoctor)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}
