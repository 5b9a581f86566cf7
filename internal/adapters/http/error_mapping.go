package httpadapter

import (
	"context"
	"errors"
	"net/http"

	"github.com/kirillkom/segment-advisor/internal/core/domain"
)

// An expired turn deadline wins over any backend kind wrapped around it.
// ErrTemporary is checked before ErrGeneration: a generation that failed
// because the backend is overloaded is reported as retryable.
func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
