package rest

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/memora-health/memora-api/internal/model"
	"github.com/memora-health/memora-api/internal/repository"
	"github.com/memora-health/memora-api/pkg/supabase"
)

type appointmentRepository struct {
	baseRepository
}

func NewAppointmentRepository(client *supabase.Client, table string) repository.AppointmentRepository {
	return &appointmentRepository{newBaseRepository(client, table)}
}

func (r *appointmentRepository) DeleteByDoctor(ctx context.Context, doctorID uuid.UUID) (int64, error) {
	_, deleted, err := r.from(ctx, "delete doctor appointments").
		Delete("minimal", "exact").
		Eq("doctor_id", doctorID.String()).
		Execute()
	if err != nil {
		return 0, wrap("delete doctor appointments", err)
	}
	return deleted, nil
}

func (r *appointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, deleted, err := r.from(ctx, "delete appointment").
		Delete("minimal", "exact").
		Eq("id", id.String()).
		Execute()
	if err != nil {
		return wrap("delete appointment", err)
	}
	if deleted == 0 {
		return fmt.Errorf("appointment %s: %w", id, repository.ErrNotFound)
	}
	return nil
}

func (r *appointmentRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Appointment, error) {
	q := r.from(ctx, "list appointments").
		Select("*", "", false).
		Eq("doctor_id", doctorID.String()).
		Order("date", descending).
		Order("time", descending).
		Order("id", ascending)

	rows, err := selectAll[*model.Appointment](q, r.pageSize)
	if err != nil {
		return nil, wrap("list appointments", err)
	}
	return rows, nil
}

func (r *appointmentRepository) Count(ctx context.Context, status model.AppointmentStatus) (int64, error) {
	q := r.from(ctx, "count appointments").Select("id", "exact", true)
	if status != "" {
		q = q.Eq("status", string(status))
	}

	_, count, err := q.Execute()
	if err != nil {
		return 0, wrap("count appointments", err)
	}
	return count, nil
}
