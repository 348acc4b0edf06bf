package httpadapter

import (
	"net/http"

	"github.com/ballotbrief/ballotbrief/internal/core/domain"
)

// Parse and schema failures are upstream-model faults, reported as 502.
// Temporary and retrieval failures are dependency outages, reported as 503.
func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrMalformedOutput), domain.IsKind(err, domain.ErrSchemaViolation):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrTemporary), domain.IsKind(err, domain.ErrRetrieval):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
