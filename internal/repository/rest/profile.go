package rest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/memora-health/memora-api/internal/model"
	"github.com/memora-health/memora-api/internal/repository"
	"github.com/memora-health/memora-api/pkg/supabase"
)

const profileSelect = "id,email,full_name,specialty,role,created_at"

type profileRepository struct {
	baseRepository
}

func NewProfileRepository(client *supabase.Client, table string) repository.ProfileRepository {
	return &profileRepository{newBaseRepository(client, table)}
}

func (r *profileRepository) Insert(ctx context.Context, profile *model.Profile) error {
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now().UTC()
	}
	_, _, err := r.from(ctx, "insert profile").
		Insert(profile, false, "", "minimal", "").
		Execute()
	return wrap("insert profile", err)
}

func (r *profileRepository) Update(ctx context.Context, id uuid.UUID, patch *model.ProfilePatch) (int64, error) {
	_, matched, err := r.from(ctx, "update profile").
		Update(patch, "minimal", "exact").
		Eq("id", id.String()).
		Execute()
	if err != nil {
		return 0, wrap("update profile", err)
	}
	return matched, nil
}

func (r *profileRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, deleted, err := r.from(ctx, "delete profile").
		Delete("minimal", "exact").
		Eq("id", id.String()).
		Execute()
	if err != nil {
		return wrap("delete profile", err)
	}
	if deleted == 0 {
		return fmt.Errorf("profile %s: %w", id, repository.ErrNotFound)
	}
	return nil
}

func (r *profileRepository) Get(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	var rows []*model.Profile
	_, err := r.from(ctx, "get profile").
		Select(profileSelect, "", false).
		Eq("id", id.String()).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, wrap("get profile", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("profile %s: %w", id, repository.ErrNotFound)
	}
	return rows[0], nil
}

func (r *profileRepository) ListByRole(ctx context.Context, role model.Role) ([]*model.Profile, error) {
	q := r.from(ctx, "list profiles").
		Select(profileSelect, "", false).
		Eq("role", string(role)).
		Order("full_name", ascending).
		Order("id", ascending)

	rows, err := selectAll[*model.Profile](q, r.pageSize)
	if err != nil {
		return nil, wrap("list profiles", err)
	}
	return rows, nil
}

func (r *profileRepository) CountByRole(ctx context.Context, role model.Role) (int64, error) {
	_, count, err := r.from(ctx, "count profiles").
		Select("id", "exact", true).
		Eq("role", string(role)).
		Execute()
	if err != nil {
		return 0, wrap("count profiles", err)
	}
	return count, nil
}

func (r *profileRepository) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	q := r.from(ctx, "list profile ids").
		Select("id", "", false).
		Order("id", ascending)

	rows, err := selectAll[idRow](q, r.pageSize)
	if err != nil {
		return nil, wrap("list profile ids", err)
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		id, err := uuid.Parse(row.ID)
		if err != nil {
			return nil, fmt.Errorf("profile row has invalid id %q: %w", row.ID, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
