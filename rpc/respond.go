package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	"revledger/native/revshare"
)

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message, RequestID: r.Header.Get(RequestIDHeader)})
}

// statusForError maps engine errors onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, revshare.ErrOfferingNotFound),
		errors.Is(err, revshare.ErrPeriodNotFound),
		errors.Is(err, revshare.ErrNotEligible):
		return http.StatusNotFound
	case isRequestError(err),
		errors.Is(err, revshare.ErrInvalidPeriod),
		errors.Is(err, revshare.ErrInvalidAmount),
		errors.Is(err, revshare.ErrLimitReached),
		errors.Is(err, revshare.ErrInvalidRevenueShareBps),
		errors.Is(err, revshare.ErrInvalidBps),
		errors.Is(err, revshare.ErrInvalidFeeBps),
		errors.Is(err, revshare.ErrInvalidRoundingMode),
		errors.Is(err, revshare.ErrPaymentTokenMismatch),
		errors.Is(err, revshare.ErrMetadataTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, revshare.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, revshare.ErrPaused),
		errors.Is(err, revshare.ErrFrozen),
		errors.Is(err, revshare.ErrAlreadyInitialized),
		errors.Is(err, revshare.ErrAlreadyRegistered),
		errors.Is(err, revshare.ErrPeriodClosed),
		errors.Is(err, revshare.ErrOutOfOrderPeriod),
		errors.Is(err, revshare.ErrShareExceedsTotal),
		errors.Is(err, revshare.ErrConcentrationLimitExceeded):
		return http.StatusConflict
	case errors.Is(err, revshare.ErrNotInitialized):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		message = "internal error"
	}
	writeError(w, r, status, message)
}
