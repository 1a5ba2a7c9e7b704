package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsExpired(t *testing.T) {
	created := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	r := &Reservation{PaymentStatus: PaymentPending, CreatedAt: created}

	assert.False(t, IsExpired(r, created.Add(23*time.Hour), DefaultHoldWindow))
	assert.False(t, IsExpired(r, created.Add(24*time.Hour), DefaultHoldWindow))
	assert.True(t, IsExpired(r, created.Add(25*time.Hour), DefaultHoldWindow))

	for _, status := range []PaymentStatus{PaymentPaid, PaymentExempt, PaymentBypassed} {
		r.PaymentStatus = status
		assert.False(t, IsExpired(r, created.Add(30*24*time.Hour), DefaultHoldWindow), status)
	}
}

func TestPaymentStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to PaymentStatus
		ok       bool
	}{
		{PaymentPending, PaymentPaid, true},
		{PaymentPending, PaymentExempt, true},
		{PaymentPaid, PaymentPending, true},
		{PaymentPaid, PaymentPaid, true},
		{PaymentPaid, PaymentExempt, false},
		{PaymentExempt, PaymentPending, false},
		{PaymentExempt, PaymentPaid, false},
		{PaymentBypassed, PaymentPaid, false},
		{PaymentPending, PaymentBypassed, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestShow_HoldWindow(t *testing.T) {
	assert.Equal(t, DefaultHoldWindow, (&Show{}).HoldWindow(0))
	assert.Equal(t, 12*time.Hour, (&Show{}).HoldWindow(12*time.Hour))
	assert.Equal(t, 48*time.Hour, (&Show{HoldHours: 48}).HoldWindow(12*time.Hour))
}

func TestSeatConflictError(t *testing.T) {
	err := error(&SeatConflictError{Seats: []Seat{{Row: "A", Number: 3}, {Row: "B", Number: 1}}})

	assert.True(t, errors.Is(err, ErrSeatUnavailable))
	assert.Contains(t, err.Error(), "A3, B1")

	var conflict *SeatConflictError
	assert.True(t, errors.As(err, &conflict))
	assert.Len(t, conflict.Seats, 2)
}

func TestNewReservationEvent(t *testing.T) {
	evt := NewReservationEvent(EventReservationCreated, []Reservation{
		{ID: "r1", ShowID: "s1", SessionID: "x", Row: "A", SeatNumber: 1},
		{ID: "r2", ShowID: "s1", SessionID: "x", Row: "A", SeatNumber: 2},
	})

	assert.Equal(t, "s1/x", evt.FeedKey())
	assert.Equal(t, []string{"r1", "r2"}, evt.ReservationIDs)
	assert.Len(t, evt.Seats, 2)
}
