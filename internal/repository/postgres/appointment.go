package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/memora-health/memora-api/internal/model"
	"github.com/memora-health/memora-api/internal/repository"
)

type appointmentRepository struct {
	baseRepository
}

func NewAppointmentRepository(db *sqlx.DB, table string) repository.AppointmentRepository {
	return &appointmentRepository{baseRepository: newBaseRepository(db, table)}
}

func (r *appointmentRepository) DeleteByDoctor(ctx context.Context, doctorID uuid.UUID) (int64, error) {
	return r.exec(ctx, "delete doctor appointments", `DELETE FROM %s WHERE doctor_id = $1`, doctorID)
}

func (r *appointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	rows, err := r.exec(ctx, "delete appointment", `DELETE FROM %s WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("appointment %s: %w", id, repository.ErrNotFound)
	}
	return nil
}

func (r *appointmentRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Appointment, error) {
	query := `
		SELECT id, doctor_id,
			COALESCE(patient_name, '') AS patient_name,
			COALESCE(age, 0) AS age,
			COALESCE(phone, '') AS phone,
			COALESCE("date"::text, '') AS date,
			COALESCE("time"::text, '') AS time,
			COALESCE(status::text, '') AS status,
			COALESCE(is_available, false) AS is_available,
			COALESCE(created_at, NOW()) AS created_at
		FROM %s
		WHERE doctor_id = $1
		ORDER BY "date" DESC, "time" DESC
	`
	appointments := []*model.Appointment{}
	if err := r.db.SelectContext(ctx, &appointments, r.q(query), doctorID); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) Count(ctx context.Context, status model.AppointmentStatus) (int64, error) {
	var (
		count int64
		err   error
	)
	if status == "" {
		err = r.db.GetContext(ctx, &count, r.q(`SELECT COUNT(*) FROM %s`))
	} else {
		err = r.db.GetContext(ctx, &count, r.q(`SELECT COUNT(*) FROM %s WHERE status = $1`), string(status))
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count appointments: %w", err)
	}
	return count, nil
}
