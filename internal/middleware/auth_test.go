package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/memora-health/memora-api/internal/model"
	apperrors "github.com/memora-health/memora-api/pkg/errors"
)

type fakeAuthorizer struct {
	token string
	id    uuid.UUID
}

func (f *fakeAuthorizer) Authorize(ctx context.Context, token string, role model.Role) (*model.Principal, error) {
	if token != f.token {
		return nil, apperrors.NewUnauthorized("invalid token", nil)
	}
	if role != model.RoleAdmin {
		return nil, apperrors.NewForbidden("Access denied", nil)
	}
	return &model.Principal{ID: f.id, Role: role}, nil
}

func guarded(role model.Role, authorizer Authorizer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/secret", NewAuthMiddleware(authorizer).RequireRole(role), func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, p.ID.String())
	})
	return r
}

func TestRequireRole(t *testing.T) {
	id := uuid.New()
	authorizer := &fakeAuthorizer{token: "good", id: id}

	tests := []struct {
		name   string
		role   model.Role
		header string
		status int
		body   string
	}{
		{"ok", model.RoleAdmin, "Bearer good", http.StatusOK, id.String()},
		{"lowercase scheme", model.RoleAdmin, "bearer good", http.StatusOK, id.String()},
		{"missing", model.RoleAdmin, "", http.StatusUnauthorized, `{"success":false,"error":"missing authorization header"}`},
		{"basic", model.RoleAdmin, "Basic abc", http.StatusUnauthorized, `{"success":false,"error":"invalid authorization format"}`},
		{"bad token", model.RoleAdmin, "Bearer bad", http.StatusUnauthorized, `{"success":false,"error":"invalid token"}`},
		{"wrong role", model.RoleDoctor, "Bearer good", http.StatusForbidden, `{"success":false,"error":"Access denied"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/secret", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			guarded(tt.role, authorizer).ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.body, w.Body.String())
		})
	}
}
