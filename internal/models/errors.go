package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrShowNotFound        = fmt.Errorf("show %w", ErrNotFound)
	ErrSessionNotFound     = fmt.Errorf("session %w", ErrNotFound)
	ErrTokenNotFound       = fmt.Errorf("token %w", ErrNotFound)
	ErrReservationNotFound = fmt.Errorf("reservation %w", ErrNotFound)
	ErrMemberNotFound      = fmt.Errorf("member %w", ErrNotFound)

	ErrQuotaExhausted     = errors.New("token quota exhausted")
	ErrQuotaExceeded      = errors.New("requested seats exceed remaining token quota")
	ErrInsufficientQuota  = errors.New("insufficient token quota")
	ErrSeatUnavailable    = errors.New("seat unavailable")
	ErrNoSeatsSelected    = errors.New("no seats selected")
	ErrReservationsClosed = errors.New("reservations are closed for this show")
	ErrInvalidTransition  = errors.New("invalid payment status transition")
	ErrInvalidInput       = errors.New("invalid input")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// SeatConflictError names the seats that could not be taken.
type SeatConflictError struct {
	Seats  []Seat
	Reason string
}

func (e *SeatConflictError) Error() string {
	labels := make([]string, 0, len(e.Seats))
	for _, s := range e.Seats {
		labels = append(labels, s.Label())
	}
	reason := e.Reason
	if reason == "" {
		reason = "already reserved"
	}
	return fmt.Sprintf("seat unavailable (%s): %s", reason, strings.Join(labels, ", "))
}

func (e *SeatConflictError) Unwrap() error {
	return ErrSeatUnavailable
}
