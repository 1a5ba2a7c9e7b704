package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"ms-boxoffice/internal/models"
)

type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func ErrorResponse(message, error string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Error:     error,
		Timestamp: time.Now(),
	}
}

func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func WriteSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	WriteJSON(w, status, SuccessResponse(message, data))
}

// WriteError maps ledger errors onto HTTP status codes.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	WriteJSON(w, status, ErrorResponse(http.StatusText(status), err.Error()))
}

func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrNoSeatsSelected),
		errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrSeatUnavailable),
		errors.Is(err, models.ErrQuotaExceeded),
		errors.Is(err, models.ErrQuotaExhausted),
		errors.Is(err, models.ErrInsufficientQuota),
		errors.Is(err, models.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, models.ErrReservationsClosed):
		return http.StatusForbidden
	case errors.Is(err, models.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSON reads a request body, reporting malformed input as ErrInvalidInput.
func DecodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Join(models.ErrInvalidInput, err)
	}
	return nil
}
