package dashboard

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/memora-health/memora-api/internal/handler"
	"github.com/memora-health/memora-api/internal/model"
)

type Service interface {
	ListDoctors(ctx context.Context) ([]*model.Profile, error)
	ListDoctorAppointments(ctx context.Context, doctorID string) ([]*model.Appointment, error)
	DeleteAppointment(ctx context.Context, appointmentID string) (uuid.UUID, error)
	Stats(ctx context.Context) (*model.AppointmentStats, error)
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/doctors", h.ListDoctors)
	r.GET("/doctors/:doctorId/appointments", h.ListDoctorAppointments)
	r.DELETE("/appointments/:appointmentId", h.DeleteAppointment)
	r.GET("/stats", h.Stats)
}

func (h *Handler) ListDoctors(c *gin.Context) {
	doctors, err := h.svc.ListDoctors(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	if doctors == nil {
		doctors = []*model.Profile{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "doctors": doctors})
}

func (h *Handler) ListDoctorAppointments(c *gin.Context) {
	appointments, err := h.svc.ListDoctorAppointments(c.Request.Context(), c.Param("doctorId"))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	if appointments == nil {
		appointments = []*model.Appointment{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "appointments": appointments})
}

func (h *Handler) DeleteAppointment(c *gin.Context) {
	id, err := h.svc.DeleteAppointment(c.Request.Context(), c.Param("appointmentId"))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deletedId": id.String()})
}

func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}
