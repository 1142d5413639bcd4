package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/memora-health/memora-api/internal/handler"
	"github.com/memora-health/memora-api/internal/model"
	apperrors "github.com/memora-health/memora-api/pkg/errors"
)

const ContextPrincipal = "principal"

type Authorizer interface {
	Authorize(ctx context.Context, token string, role model.Role) (*model.Principal, error)
}

type AuthMiddleware struct {
	authorizer Authorizer
}

func NewAuthMiddleware(authorizer Authorizer) *AuthMiddleware {
	return &AuthMiddleware{authorizer: authorizer}
}

// RequireRole verifies the bearer token and requires the caller to hold role.
func (m *AuthMiddleware) RequireRole(role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			handler.RespondError(c, apperrors.NewUnauthorized("missing authorization header", nil))
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			handler.RespondError(c, apperrors.NewUnauthorized("invalid authorization format", nil))
			return
		}

		principal, err := m.authorizer.Authorize(c.Request.Context(), strings.TrimSpace(token), role)
		if err != nil {
			handler.RespondError(c, err)
			return
		}

		c.Set(ContextPrincipal, principal)
		c.Next()
	}
}

// PrincipalFrom returns the caller set by RequireRole.
func PrincipalFrom(c *gin.Context) (*model.Principal, bool) {
	v, ok := c.Get(ContextPrincipal)
	if !ok {
		return nil, false
	}
	p, ok := v.(*model.Principal)
	return p, ok
}
