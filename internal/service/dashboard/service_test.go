package dashboard

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memora-health/memora-api/internal/model"
	"github.com/memora-health/memora-api/internal/repository"
	apperrors "github.com/memora-health/memora-api/pkg/errors"
)

type stubProfiles struct {
	repository.ProfileRepository
	doctors []*model.Profile
	err     error
}

func (s *stubProfiles) ListByRole(ctx context.Context, role model.Role) ([]*model.Profile, error) {
	return s.doctors, s.err
}

func (s *stubProfiles) CountByRole(ctx context.Context, role model.Role) (int64, error) {
	return int64(len(s.doctors)), s.err
}

type stubAppointments struct {
	repository.AppointmentRepository
	rows   map[uuid.UUID]*model.Appointment
	counts map[model.AppointmentStatus]int64
}

func (s *stubAppointments) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Appointment, error) {
	var out []*model.Appointment
	for _, a := range s.rows {
		if a.DoctorID == doctorID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *stubAppointments) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := s.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.rows, id)
	return nil
}

func (s *stubAppointments) Count(ctx context.Context, status model.AppointmentStatus) (int64, error) {
	return s.counts[status], nil
}

type recordingEmitter struct {
	types []string
}

func (r *recordingEmitter) Emit(ctx context.Context, eventType string, payload interface{}) error {
	r.types = append(r.types, eventType)
	return nil
}

func TestListDoctorAppointments(t *testing.T) {
	doctorID := uuid.New()
	apptID := uuid.New()
	appts := &stubAppointments{rows: map[uuid.UUID]*model.Appointment{
		apptID:     {ID: apptID, DoctorID: doctorID},
		uuid.New(): {ID: uuid.New(), DoctorID: uuid.New()},
	}}
	svc := NewService(&stubProfiles{}, appts, nil, 0, zerolog.Nop())

	got, err := svc.ListDoctorAppointments(context.Background(), doctorID.String())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, apptID, got[0].ID)

	_, err = svc.ListDoctorAppointments(context.Background(), "abc")
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestDeleteAppointment(t *testing.T) {
	apptID := uuid.New()
	appts := &stubAppointments{rows: map[uuid.UUID]*model.Appointment{apptID: {ID: apptID}}}
	events := &recordingEmitter{}
	svc := NewService(&stubProfiles{}, appts, events, 0, zerolog.Nop())

	id, err := svc.DeleteAppointment(context.Background(), apptID.String())
	require.NoError(t, err)
	assert.Equal(t, apptID, id)
	assert.Equal(t, []string{model.EventAppointmentDeleted}, events.types)

	_, err = svc.DeleteAppointment(context.Background(), apptID.String())
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrNotFound, appErr.Code)
	assert.Equal(t, "appointment not found", appErr.Message)

	_, err = svc.DeleteAppointment(context.Background(), " ")
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestStats(t *testing.T) {
	profiles := &stubProfiles{doctors: []*model.Profile{{}, {}, {}}}
	appts := &stubAppointments{counts: map[model.AppointmentStatus]int64{
		model.AppointmentStatusBooked:    7,
		model.AppointmentStatusCancelled: 2,
		"":                               10,
	}}
	svc := NewService(profiles, appts, nil, 0, zerolog.Nop())

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &model.AppointmentStats{
		TotalDoctors:          3,
		TotalAppointments:     10,
		BookedAppointments:    7,
		CancelledAppointments: 2,
	}, stats)
}

func TestListDoctorsStoreFailure(t *testing.T) {
	svc := NewService(&stubProfiles{err: errors.New("boom")}, &stubAppointments{}, nil, 0, zerolog.Nop())

	_, err := svc.ListDoctors(context.Background())
	assert.True(t, apperrors.Is(err, apperrors.ErrProfileStore))
}
