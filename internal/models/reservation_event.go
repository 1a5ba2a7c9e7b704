package models

import "time"

const (
	EventReservationCreated   = "reservation.created"
	EventReservationCheckedIn = "reservation.checked_in"
	EventPaymentUpdated       = "reservation.payment_updated"
	EventReservationDeleted   = "reservation.deleted"
)

// ReservationEvent is published after a committed ledger change so live
// seat maps and door scanners can refresh.
type ReservationEvent struct {
	Type           string    `json:"type"`
	ShowID         string    `json:"show_id"`
	SessionID      string    `json:"session_id,omitempty"`
	ReservationIDs []string  `json:"reservation_ids"`
	Seats          []Seat    `json:"seats,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// FeedKey identifies the live feed a reservation event belongs to.
func (e ReservationEvent) FeedKey() string {
	return e.ShowID + "/" + e.SessionID
}

func NewReservationEvent(eventType string, reservations []Reservation) ReservationEvent {
	evt := ReservationEvent{
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
	}
	for i := range reservations {
		r := &reservations[i]
		if evt.ShowID == "" {
			evt.ShowID = r.ShowID
			evt.SessionID = r.SessionID
		}
		evt.ReservationIDs = append(evt.ReservationIDs, r.ID)
		evt.Seats = append(evt.Seats, r.Seat())
	}
	return evt
}
