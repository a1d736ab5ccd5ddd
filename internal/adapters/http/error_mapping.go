package httpadapter

import (
	"net/http"

	"github.com/antonkazakov/firewatch/internal/core/domain"
)

// mapError translates a pipeline error into the HTTP status and the stable
// machine-readable code carried in the error envelope.
func mapError(err error) (int, string) {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_request"
	case domain.IsKind(err, domain.ErrModelTimeout):
		return http.StatusGatewayTimeout, "model_timeout"
	case domain.IsKind(err, domain.ErrExternalService):
		return http.StatusBadGateway, "external_service_error"
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable, "temporarily_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
