// Package rest implements the Profile Store over the hosted PostgREST API.
package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/supabase-community/postgrest-go"

	"github.com/memora-health/memora-api/internal/repository"
	"github.com/memora-health/memora-api/pkg/supabase"
)

const restPath = "/rest/v1"

// pageSize keeps every read under PostgREST's db-max-rows (1000 on Supabase).
const pageSize = 1000

type idRow struct {
	ID string `json:"id"`
}

type baseRepository struct {
	client   *supabase.Client
	table    string
	pageSize int
}

func newBaseRepository(client *supabase.Client, table string) baseRepository {
	return baseRepository{client: client, table: table, pageSize: pageSize}
}

// from starts a query on the table whose requests are bound to ctx and
// recorded as operation op.
func (r *baseRepository) from(ctx context.Context, op string) *postgrest.QueryBuilder {
	pc := postgrest.NewClient(r.client.Endpoint(restPath), "", nil)
	if pc.Transport != nil {
		pc.Transport.Parent = r.client.Transport(ctx, "rest."+op)
	}
	return pc.From(r.table)
}

// selectAll reads every row matched by q, one page at a time, until a short
// page comes back. q must carry a total order.
func selectAll[T any](q *postgrest.FilterBuilder, size int) ([]T, error) {
	rows := []T{}
	for from := 0; ; from += size {
		var page []T
		if _, err := q.Range(from, from+size-1, "").ExecuteTo(&page); err != nil {
			return nil, err
		}
		rows = append(rows, page...)
		if len(page) < size {
			return rows, nil
		}
	}
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to %s: %w", op, translate(err))
}

// translate maps PostgREST answers onto repository sentinels while keeping
// the API error in the chain.
func translate(err error) error {
	var apiErr *supabase.APIError
	if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusConflict || apiErr.Code == "23505") {
		return errors.Join(repository.ErrConflict, err)
	}
	return err
}

var (
	ascending  = &postgrest.OrderOpts{Ascending: true}
	descending = &postgrest.OrderOpts{Ascending: false}
)
