package auth

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/memora-health/memora-api/internal/handler"
	"github.com/memora-health/memora-api/internal/service/auth"
)

type Service interface {
	Login(ctx context.Context, in auth.LoginInput) (*auth.LoginResult, error)
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	group := r.Group("/auth")
	{
		group.POST("/login", h.Login)
	}
}

type loginResponse struct {
	Success      bool   `json:"success"`
	UserID       string `json:"userId"`
	Role         string `json:"role"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"`
}

func (h *Handler) Login(c *gin.Context) {
	var req auth.LoginInput
	if err := handler.BindJSON(c, &req); err != nil {
		handler.RespondError(c, err)
		return
	}

	res, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		Success:      true,
		UserID:       res.UserID.String(),
		Role:         string(res.Role),
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresIn:    res.ExpiresIn,
	})
}
