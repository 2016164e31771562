package http

import (
	"errors"
	"log"
	"net/http"

	"finlink/internal/domain/account"
	"finlink/internal/domain/aggregation"
)

// ErrorResponse is the body of every non-2xx response. Provider fields are
// set only when the failure came from the aggregation provider.
type ErrorResponse struct {
	Error           string `json:"error"`
	ProviderStatus  int    `json:"provider_status,omitempty"`
	ProviderType    string `json:"error_type,omitempty"`
	ProviderCode    string `json:"error_code,omitempty"`
	ProviderMessage string `json:"error_message,omitempty"`
	RequestID       string `json:"request_id,omitempty"`
}

// writeServiceError maps domain errors onto HTTP statuses:
// invalid input 400, unknown user or account 404, no credentials 409,
// provider failure 502, anything else 500.
func writeServiceError(w http.ResponseWriter, userID, op string, err error) {
	var pe *aggregation.ProviderError

	switch {
	case errors.Is(err, aggregation.ErrInvalidInput), errors.Is(err, account.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, aggregation.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "User not found"})
	case errors.Is(err, account.ErrAccountNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Account not found"})
	case errors.Is(err, aggregation.ErrUserNotLinked):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "No linked institutions"})
	case errors.As(err, &pe):
		log.Printf("User %s: %s provider error: %v", userID, op, err)
		writeJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:           "Provider request failed",
			ProviderStatus:  pe.StatusCode,
			ProviderType:    pe.Type,
			ProviderCode:    pe.Code,
			ProviderMessage: pe.Message,
			RequestID:       pe.RequestID,
		})
	default:
		log.Printf("User %s: %s failed: %v", userID, op, err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
	}
}

// reportStatus picks the status for a run report: 200 when every
// credential succeeded, 207 when some failed. A report where all failed
// is handled as an error by the caller.
func reportStatus(err error) int {
	var partial *aggregation.PartialFailureError
	if errors.As(err, &partial) {
		return http.StatusMultiStatus
	}
	return http.StatusOK
}
