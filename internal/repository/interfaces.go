package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/memora-health/memora-api/internal/model"
)

var (
	// ErrNotFound is returned when no row or identity matched.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an insert hits an existing row.
	ErrConflict = errors.New("already exists")
	// ErrInvalidCredentials is returned when the provider rejects a password grant.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// All repository interfaces in one file
type (
	// ProfileRepository is the Profile Store's profiles table.
	ProfileRepository interface {
		Insert(ctx context.Context, profile *model.Profile) error
		// Update returns the number of rows the patch matched.
		Update(ctx context.Context, id uuid.UUID, patch *model.ProfilePatch) (int64, error)
		Delete(ctx context.Context, id uuid.UUID) error
		Get(ctx context.Context, id uuid.UUID) (*model.Profile, error)
		ListByRole(ctx context.Context, role model.Role) ([]*model.Profile, error)
		CountByRole(ctx context.Context, role model.Role) (int64, error)
		ListIDs(ctx context.Context) ([]uuid.UUID, error)
	}

	AppointmentRepository interface {
		// DeleteByDoctor returns the number of rows removed; zero is not an error.
		DeleteByDoctor(ctx context.Context, doctorID uuid.UUID) (int64, error)
		Delete(ctx context.Context, id uuid.UUID) error
		ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Appointment, error)
		// Count counts appointments with status, or all of them when status is empty.
		Count(ctx context.Context, status model.AppointmentStatus) (int64, error)
	}

	// IdentityProvider is the system of record for login credentials.
	IdentityProvider interface {
		CreateIdentity(ctx context.Context, email, password string, preverified bool) (*model.Identity, error)
		DeleteIdentity(ctx context.Context, id uuid.UUID) error
		Authenticate(ctx context.Context, email, password string) (*model.Session, error)
		// ListIdentities pages from 1. A short page is the last one.
		ListIdentities(ctx context.Context, page, perPage int) ([]*model.Identity, error)
	}
)
