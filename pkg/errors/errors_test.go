package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code   ErrorCode
		status int
	}{
		{ErrValidation, http.StatusBadRequest},
		{ErrBadRequest, http.StatusBadRequest},
		{ErrNotFound, http.StatusNotFound},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{ErrIdentityProvider, http.StatusInternalServerError},
		{ErrProfileStore, http.StatusInternalServerError},
		{ErrInvariantViolation, http.StatusInternalServerError},
		{ErrInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			assert.Equal(t, tt.status, tt.code.HTTPStatus())
		})
	}
}

func TestCodeOfWrapped(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := fmt.Errorf("create doctor: %w", NewProfileStore("failed to save doctor profile", cause))

	assert.Equal(t, ErrProfileStore, CodeOf(err))
	assert.True(t, Is(err, ErrProfileStore))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrorCode(0), CodeOf(cause))
}

func TestAppErrorMessage(t *testing.T) {
	err := NewIdentityProvider("User already registered", stderrors.New("status 422"))
	assert.Equal(t, "User already registered: status 422", err.Error())

	err = NewValidation("Missing fields: email")
	assert.Equal(t, "Missing fields: email", err.Error())
}
