package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memora-health/memora-api/internal/model"
	apperrors "github.com/memora-health/memora-api/pkg/errors"
)

type fakeService struct {
	doctors []*model.Profile
	err     error
}

func (f *fakeService) ListDoctors(ctx context.Context) ([]*model.Profile, error) {
	return f.doctors, f.err
}

func (f *fakeService) ListDoctorAppointments(ctx context.Context, doctorID string) ([]*model.Appointment, error) {
	return nil, f.err
}

func (f *fakeService) DeleteAppointment(ctx context.Context, appointmentID string) (uuid.UUID, error) {
	if f.err != nil {
		return uuid.Nil, f.err
	}
	return uuid.Parse(appointmentID)
}

func (f *fakeService) Stats(ctx context.Context) (*model.AppointmentStats, error) {
	return &model.AppointmentStats{TotalDoctors: 2, TotalAppointments: 5, BookedAppointments: 4, CancelledAppointments: 1}, f.err
}

func serve(svc Service, method, path string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestListDoctors(t *testing.T) {
	id := uuid.New()
	w := serve(&fakeService{doctors: []*model.Profile{{ID: id, FullName: "Dr. Smith", Role: model.RoleDoctor}}}, http.MethodGet, "/doctors")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool             `json:"success"`
		Doctors []*model.Profile `json:"doctors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	require.Len(t, body.Doctors, 1)
	assert.Equal(t, id, body.Doctors[0].ID)
}

func TestListAppointmentsEmptyIsArray(t *testing.T) {
	w := serve(&fakeService{}, http.MethodGet, "/doctors/"+uuid.NewString()+"/appointments")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"appointments":[]}`, w.Body.String())
}

func TestStats(t *testing.T) {
	w := serve(&fakeService{}, http.MethodGet, "/stats")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"stats":{"totalDoctors":2,"totalAppointments":5,"bookedAppointments":4,"cancelledAppointments":1}}`, w.Body.String())
}

func TestDeleteAppointmentNotFound(t *testing.T) {
	w := serve(&fakeService{err: apperrors.NewNotFound("appointment", nil)}, http.MethodDelete, "/appointments/"+uuid.NewString())
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"appointment not found"}`, w.Body.String())
}
