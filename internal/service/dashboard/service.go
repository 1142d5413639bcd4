// Package dashboard serves the admin read side: doctors, their appointments
// and booking statistics.
package dashboard

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/memora-health/memora-api/internal/model"
	"github.com/memora-health/memora-api/internal/repository"
	apperrors "github.com/memora-health/memora-api/pkg/errors"
)

type Emitter interface {
	Emit(ctx context.Context, eventType string, payload interface{}) error
}

type Service struct {
	profiles     repository.ProfileRepository
	appointments repository.AppointmentRepository
	events       Emitter
	callTimeout  time.Duration
	logger       zerolog.Logger
}

func NewService(profiles repository.ProfileRepository, appointments repository.AppointmentRepository,
	events Emitter, callTimeout time.Duration, logger zerolog.Logger) *Service {
	if callTimeout <= 0 {
		callTimeout = 10 * time.Second
	}
	return &Service{
		profiles:     profiles,
		appointments: appointments,
		events:       events,
		callTimeout:  callTimeout,
		logger:       logger.With().Str("component", "dashboard").Logger(),
	}
}

func (s *Service) ListDoctors(ctx context.Context) ([]*model.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	doctors, err := s.profiles.ListByRole(ctx, model.RoleDoctor)
	if err != nil {
		return nil, apperrors.NewProfileStore("failed to list doctors", err)
	}
	return doctors, nil
}

func (s *Service) ListDoctorAppointments(ctx context.Context, doctorID string) ([]*model.Appointment, error) {
	id, err := parseID(doctorID, "Doctor ID required", "invalid doctor ID")
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	appointments, err := s.appointments.ListByDoctor(ctx, id)
	if err != nil {
		return nil, apperrors.NewProfileStore("failed to list appointments", err)
	}
	return appointments, nil
}

func (s *Service) DeleteAppointment(ctx context.Context, appointmentID string) (uuid.UUID, error) {
	id, err := parseID(appointmentID, "Appointment ID required", "invalid appointment ID")
	if err != nil {
		return uuid.Nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	err = s.appointments.Delete(callCtx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return uuid.Nil, apperrors.NewNotFound("appointment", err)
	}
	if err != nil {
		return uuid.Nil, apperrors.NewProfileStore("failed to delete appointment", err)
	}

	s.logger.Info().Str("appointment_id", id.String()).Msg("Appointment deleted")
	if s.events != nil {
		_ = s.events.Emit(context.WithoutCancel(ctx), model.EventAppointmentDeleted, map[string]string{
			"appointment_id": id.String(),
		})
	}
	return id, nil
}

func (s *Service) Stats(ctx context.Context) (*model.AppointmentStats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	doctors, err := s.profiles.CountByRole(ctx, model.RoleDoctor)
	if err != nil {
		return nil, apperrors.NewProfileStore("failed to count doctors", err)
	}

	stats := &model.AppointmentStats{TotalDoctors: doctors}
	for status, dst := range map[model.AppointmentStatus]*int64{
		"":                               &stats.TotalAppointments,
		model.AppointmentStatusBooked:    &stats.BookedAppointments,
		model.AppointmentStatusCancelled: &stats.CancelledAppointments,
	} {
		n, err := s.appointments.Count(ctx, status)
		if err != nil {
			return nil, apperrors.NewProfileStore("failed to count appointments", err)
		}
		*dst = n
	}
	return stats, nil
}

func parseID(raw, missing, invalid string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, apperrors.NewValidation(missing)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.NewValidation(invalid)
	}
	return id, nil
}
