// internal/app/features/shared/httpapi/httpapi.go
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/calebdock/comphub/internal/app/coordinator"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a JSON error body: { "error": "..." }.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}

// Decode parses the request body as JSON into v.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// ErrorStatus maps coordination errors to HTTP status codes.
// Constraint violations are conflicts, transient exhaustion is 503,
// unknown references are 404, anything else is a 500.
func ErrorStatus(err error) int {
	switch {
	case errors.Is(err, coordinator.ErrEventNotFound),
		errors.Is(err, coordinator.ErrTeamNotFound):
		return http.StatusNotFound
	case errors.Is(err, coordinator.ErrRegistrationClosed),
		errors.Is(err, coordinator.ErrInvalidInviteCode):
		return http.StatusUnprocessableEntity
	case coordinator.IsConstraintViolation(err):
		return http.StatusConflict
	case errors.Is(err, coordinator.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteCoordinatorError writes err with the status from ErrorStatus.
func WriteCoordinatorError(w http.ResponseWriter, err error) {
	WriteError(w, ErrorStatus(err), err.Error())
}
