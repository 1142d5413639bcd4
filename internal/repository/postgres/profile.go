package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/memora-health/memora-api/internal/model"
	"github.com/memora-health/memora-api/internal/repository"
)

const profileColumns = `id,
		COALESCE(email, '') AS email,
		COALESCE(full_name, '') AS full_name,
		COALESCE(specialty, '') AS specialty,
		COALESCE(role::text, '') AS role,
		COALESCE(created_at, NOW()) AS created_at`

type profileRepository struct {
	baseRepository
}

func NewProfileRepository(db *sqlx.DB, table string) repository.ProfileRepository {
	return &profileRepository{baseRepository: newBaseRepository(db, table)}
}

func (r *profileRepository) Insert(ctx context.Context, profile *model.Profile) error {
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO %s (id, email, full_name, specialty, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.exec(ctx, "insert profile", query,
		profile.ID,
		profile.Email,
		profile.FullName,
		profile.Specialty,
		profile.Role,
		profile.CreatedAt,
	)
	return err
}

func (r *profileRepository) Update(ctx context.Context, id uuid.UUID, patch *model.ProfilePatch) (int64, error) {
	query := `
		UPDATE %s
		SET full_name = $1, specialty = $2, role = $3
		WHERE id = $4
	`
	return r.exec(ctx, "update profile", query, patch.FullName, patch.Specialty, patch.Role, id)
}

func (r *profileRepository) Delete(ctx context.Context, id uuid.UUID) error {
	rows, err := r.exec(ctx, "delete profile", `DELETE FROM %s WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("profile %s: %w", id, repository.ErrNotFound)
	}
	return nil
}

func (r *profileRepository) Get(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.GetContext(ctx, &profile, r.q(`SELECT `+profileColumns+` FROM %s WHERE id = $1`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &profile, nil
}

func (r *profileRepository) ListByRole(ctx context.Context, role model.Role) ([]*model.Profile, error) {
	profiles := []*model.Profile{}
	query := `SELECT ` + profileColumns + ` FROM %s WHERE role = $1 ORDER BY full_name`
	if err := r.db.SelectContext(ctx, &profiles, r.q(query), role); err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	return profiles, nil
}

func (r *profileRepository) CountByRole(ctx context.Context, role model.Role) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, r.q(`SELECT COUNT(*) FROM %s WHERE role = $1`), role); err != nil {
		return 0, fmt.Errorf("failed to count profiles: %w", err)
	}
	return count, nil
}

func (r *profileRepository) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	if err := r.db.SelectContext(ctx, &ids, r.q(`SELECT id FROM %s`)); err != nil {
		return nil, fmt.Errorf("failed to list profile ids: %w", err)
	}
	return ids, nil
}
