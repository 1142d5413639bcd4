package doctor

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/memora-health/memora-api/internal/handler"
	"github.com/memora-health/memora-api/internal/service/provisioning"
	apperrors "github.com/memora-health/memora-api/pkg/errors"
)

// Provisioner creates and deletes doctor accounts.
type Provisioner interface {
	CreateDoctorAccount(ctx context.Context, in provisioning.CreateDoctorInput) (*provisioning.CreateDoctorResult, error)
	DeleteDoctorAccount(ctx context.Context, doctorID string) (*provisioning.DeleteDoctorResult, error)
}

type Handler struct {
	svc Provisioner
}

func NewHandler(svc Provisioner) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.POST("/createDoctor", h.CreateDoctor)
	r.DELETE("/deleteDoctor/:doctorId", h.DeleteDoctor)
	r.DELETE("/deleteDoctor", h.DeleteDoctor)
}

type createDoctorResponse struct {
	Success   bool   `json:"success"`
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	FullName  string `json:"fullName"`
	Specialty string `json:"specialty"`
}

type deleteDoctorResponse struct {
	Success   bool   `json:"success"`
	DeletedID string `json:"deletedId"`
	Message   string `json:"message"`
}

func (h *Handler) CreateDoctor(c *gin.Context) {
	var req provisioning.CreateDoctorInput
	if err := handler.BindJSON(c, &req); err != nil {
		handler.RespondError(c, err)
		return
	}

	res, err := h.svc.CreateDoctorAccount(c.Request.Context(), req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, createDoctorResponse{
		Success:   true,
		UserID:    res.AccountID.String(),
		Email:     res.Email,
		FullName:  res.FullName,
		Specialty: res.Specialty,
	})
}

func (h *Handler) DeleteDoctor(c *gin.Context) {
	doctorID := c.Param("doctorId")
	if doctorID == "" {
		handler.RespondError(c, apperrors.NewValidation("Doctor ID required"))
		return
	}

	res, err := h.svc.DeleteDoctorAccount(c.Request.Context(), doctorID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, deleteDoctorResponse{
		Success:   true,
		DeletedID: res.DeletedID.String(),
		Message:   "Doctor deleted successfully",
	})
}
