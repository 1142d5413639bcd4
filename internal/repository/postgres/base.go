package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/memora-health/memora-api/internal/repository"
)

const uniqueViolation = "23505"

// baseRepository provides common functionality for all repositories
type baseRepository struct {
	db    *sqlx.DB
	table string
}

func newBaseRepository(db *sqlx.DB, table string) baseRepository {
	return baseRepository{db: db, table: pq.QuoteIdentifier(table)}
}

// q substitutes the quoted table name into query.
func (r *baseRepository) q(query string) string {
	return fmt.Sprintf(query, r.table)
}

// exec runs a statement and returns the affected row count.
func (r *baseRepository) exec(ctx context.Context, op, query string, args ...interface{}) (int64, error) {
	result, err := r.db.ExecContext(ctx, r.q(query), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to %s: %w", op, translate(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}

// translate maps driver errors onto repository sentinels.
func translate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", repository.ErrConflict, pqErr.Message)
	}
	return err
}
