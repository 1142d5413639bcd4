package provisioning

import (
	"context"
	"errors"

	"github.com/memora-health/memora-api/pkg/circuitbreaker"
)

// publicMessager is implemented by collaborator errors whose message is safe
// to show an administrator.
type publicMessager interface {
	PublicMessage() string
}

// publicMessage picks the text surfaced to the caller for an external failure.
func publicMessage(err error, fallback string) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fallback + ": request timed out"
	case errors.Is(err, circuitbreaker.ErrOpen):
		return fallback + ": service temporarily unavailable"
	}

	var pm publicMessager
	if errors.As(err, &pm) {
		if msg := pm.PublicMessage(); msg != "" {
			return msg
		}
	}
	return fallback
}
