package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memora-health/memora-api/internal/model"
	"github.com/memora-health/memora-api/internal/repository"
	"github.com/memora-health/memora-api/pkg/supabase"
)

func newClient(t *testing.T, h http.HandlerFunc) *supabase.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := supabase.NewClient(supabase.Config{
		URL:            srv.URL,
		ServiceRoleKey: "service-role-key",
		Timeout:        2 * time.Second,
	})
	require.NoError(t, err)
	return c
}

// cappedTable serves one table the way PostgREST does with db-max-rows set:
// no response carries more than maxRows rows, whatever the limit asked for.
type cappedTable struct {
	mu       sync.Mutex
	rows     []map[string]string
	maxRows  int
	requests int
}

func (f *cappedTable) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++

	q := r.URL.Query()
	matched := make([]map[string]string, 0, len(f.rows))
	for _, row := range f.rows {
		if role := strings.TrimPrefix(q.Get("role"), "eq."); role != "" && row["role"] != role {
			continue
		}
		matched = append(matched, row)
	}

	if strings.Contains(r.Header.Get("Prefer"), "count=exact") {
		w.Header().Set("Content-Range", fmt.Sprintf("*/%d", len(matched)))
	}
	if r.Method == http.MethodHead {
		return
	}

	offset, _ := strconv.Atoi(q.Get("offset"))
	limit := len(matched)
	if raw := q.Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	limit = min(limit, f.maxRows)
	start := min(offset, len(matched))
	end := min(start+limit, len(matched))

	json.NewEncoder(w).Encode(matched[start:end])
}

func TestReadsPastRowCap(t *testing.T) {
	table := &cappedTable{maxRows: 1000}
	for i := 0; i < 1500; i++ {
		role := "doctor"
		if i%500 == 0 {
			role = "admin"
		}
		table.rows = append(table.rows, map[string]string{"id": uuid.NewString(), "role": role})
	}
	c := newClient(t, table.ServeHTTP)
	repo := NewProfileRepository(c, "profiles")

	ids, err := repo.ListIDs(context.Background())
	require.NoError(t, err)
	assert.Len(t, ids, 1500)
	assert.Equal(t, 2, table.requests)

	doctors, err := repo.CountByRole(context.Background(), model.RoleDoctor)
	require.NoError(t, err)
	assert.Equal(t, int64(1497), doctors)
}

func TestListIDsShortPageStops(t *testing.T) {
	table := &cappedTable{maxRows: 1000}
	for i := 0; i < 3; i++ {
		table.rows = append(table.rows, map[string]string{"id": uuid.NewString()})
	}
	c := newClient(t, table.ServeHTTP)

	repo := &profileRepository{newBaseRepository(c, "profiles")}
	repo.pageSize = 2

	ids, err := repo.ListIDs(context.Background())
	require.NoError(t, err)
	assert.Len(t, ids, 3)
	assert.Equal(t, 2, table.requests)
}

func TestProfileUpdateCountsMatchedRows(t *testing.T) {
	id := uuid.New()
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/rest/v1/profiles", r.URL.Path)
		assert.Equal(t, "eq."+id.String(), r.URL.Query().Get("id"))
		assert.Equal(t, "return=minimal,count=exact", r.Header.Get("Prefer"))
		assert.Equal(t, "Bearer service-role-key", r.Header.Get("Authorization"))

		var patch map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&patch))
		assert.Equal(t, map[string]string{
			"full_name": "Dr. Smith",
			"specialty": "Cardiology",
			"role":      "doctor",
		}, patch)

		w.Header().Set("Content-Range", "*/0")
		w.WriteHeader(http.StatusNoContent)
	})

	repo := NewProfileRepository(c, "profiles")
	matched, err := repo.Update(context.Background(), id, &model.ProfilePatch{
		FullName:  "Dr. Smith",
		Specialty: "Cardiology",
		Role:      model.RoleDoctor,
	})
	require.NoError(t, err)
	assert.Zero(t, matched)
}

func TestProfileInsertConflict(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/v1/users", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"email":"dr.smith@example.com"`)

		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"code":"23505","message":"duplicate key value violates unique constraint \"users_pkey\""}`))
	})

	repo := NewProfileRepository(c, "users")
	err := repo.Insert(context.Background(), &model.Profile{
		ID:    uuid.New(),
		Email: "dr.smith@example.com",
		Role:  model.RoleDoctor,
	})
	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.Equal(t, http.StatusConflict, supabase.StatusCode(err))
}

func TestProfileDeleteNotFound(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.Header().Set("Content-Range", "*/0")
		w.WriteHeader(http.StatusNoContent)
	})

	repo := NewProfileRepository(c, "profiles")
	assert.ErrorIs(t, repo.Delete(context.Background(), uuid.New()), repository.ErrNotFound)
}

func TestProfileGetAndList(t *testing.T) {
	id := uuid.New()
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("id") != "":
			assert.Equal(t, "1", q.Get("limit"))
			w.Write([]byte(`[{"id":"` + id.String() + `","email":"dr.smith@example.com","full_name":"Dr. Smith","specialty":null,"role":"doctor","created_at":"2025-03-01T09:00:00+00:00"}]`))
		case q.Get("role") == "eq.doctor":
			assert.Equal(t, "full_name.asc.nullslast,id.asc.nullslast", q.Get("order"))
			assert.Equal(t, "0", q.Get("offset"))
			w.Write([]byte(`[{"id":"` + id.String() + `","full_name":"Dr. Smith","role":"doctor"}]`))
		default:
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
	})

	repo := NewProfileRepository(c, "profiles")

	profile, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Dr. Smith", profile.FullName)
	assert.Empty(t, profile.Specialty)
	assert.Equal(t, model.RoleDoctor, profile.Role)

	doctors, err := repo.ListByRole(context.Background(), model.RoleDoctor)
	require.NoError(t, err)
	require.Len(t, doctors, 1)
	assert.Equal(t, id, doctors[0].ID)
}

func TestAppointmentDeleteByDoctorAndCount(t *testing.T) {
	doctorID := uuid.New()
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/appointments", r.URL.Path)
		switch r.Method {
		case http.MethodDelete:
			assert.Equal(t, "eq."+doctorID.String(), r.URL.Query().Get("doctor_id"))
			w.Header().Set("Content-Range", "*/2")
			w.WriteHeader(http.StatusNoContent)
		case http.MethodHead:
			assert.Equal(t, "count=exact", r.Header.Get("Prefer"))
			switch r.URL.Query().Get("status") {
			case "eq.booked":
				w.Header().Set("Content-Range", "*/1200")
			case "":
				w.Header().Set("Content-Range", "*/1350")
			}
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	})

	repo := NewAppointmentRepository(c, "appointments")

	n, err := repo.DeleteByDoctor(context.Background(), doctorID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	booked, err := repo.Count(context.Background(), model.AppointmentStatusBooked)
	require.NoError(t, err)
	assert.Equal(t, int64(1200), booked)

	total, err := repo.Count(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, int64(1350), total)
}
