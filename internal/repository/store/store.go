// Package store opens the Profile Store selected by configuration.
package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/memora-health/memora-api/internal/config"
	"github.com/memora-health/memora-api/internal/repository"
	"github.com/memora-health/memora-api/internal/repository/postgres"
	"github.com/memora-health/memora-api/internal/repository/rest"
	"github.com/memora-health/memora-api/pkg/supabase"
)

// Store bundles the Profile Store repositories.
type Store struct {
	Profiles     repository.ProfileRepository
	Appointments repository.AppointmentRepository

	db *sqlx.DB
}

// Open returns REST-backed repositories, or Postgres-backed ones when the
// driver is "postgres".
func Open(cfg *config.Config, client *supabase.Client) (*Store, error) {
	tables := cfg.ProfileStore

	switch tables.Driver {
	case config.DriverREST, "":
		return &Store{
			Profiles:     rest.NewProfileRepository(client, tables.ProfilesTable),
			Appointments: rest.NewAppointmentRepository(client, tables.AppointmentsTable),
		}, nil
	case config.DriverPostgres:
		db, err := postgres.NewDB(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open profile store: %w", err)
		}
		return &Store{
			Profiles:     postgres.NewProfileRepository(db, tables.ProfilesTable),
			Appointments: postgres.NewAppointmentRepository(db, tables.AppointmentsTable),
			db:           db,
		}, nil
	default:
		return nil, fmt.Errorf("unknown profile store driver %q", tables.Driver)
	}
}

// Ping checks the database connection. REST stores are checked through the
// Supabase client instead.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
