package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	DefaultHoldWindow = 24 * time.Hour
	DefaultCastQuota  = 2
)

type Show struct {
	bun.BaseModel `bun:"table:shows"`

	ID               string `bun:"id,pk" json:"id"`
	Title            string `bun:"title,notnull" json:"title"`
	Author           string `bun:"author" json:"author,omitempty"`
	Synopsis         string `bun:"synopsis" json:"synopsis,omitempty"`
	Year             int    `bun:"year" json:"year,omitempty"`
	OnBill           bool   `bun:"on_bill,notnull" json:"on_bill"`
	Draft            bool   `bun:"draft,notnull" json:"draft"`
	ReservationsOpen bool   `bun:"reservations_open,notnull" json:"reservations_open"`
	// ReservationRequired marks a show that runs through the box office at
	// all. Open reservations imply it; booking is gated by ReservationsOpen.
	ReservationRequired bool         `bun:"reservation_required,notnull" json:"reservation_required"`
	Paid                bool         `bun:"paid,notnull" json:"paid"`
	Price               float64      `bun:"price,notnull" json:"price"`
	PaymentPlace        string       `bun:"payment_place" json:"payment_place,omitempty"`
	HoldHours           int          `bun:"hold_hours,notnull" json:"hold_hours"`
	Sessions            []Session    `bun:"sessions" json:"sessions"`
	TicketConfig        TicketConfig `bun:"ticket_config" json:"ticket_config"`
	Layout              SeatLayout   `bun:"layout" json:"layout,omitempty"`
	BookingSeq          int64        `bun:"booking_seq,notnull" json:"-"`
	CreatedAt           time.Time    `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt           time.Time    `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

type Session struct {
	ID       string    `json:"id"`
	StartsAt time.Time `json:"starts_at"`
	Venue    string    `json:"venue,omitempty"`
}

type TicketConfig struct {
	CastQuota int `json:"cast_quota,omitempty"`
}

func (s *Show) FindSession(id string) (Session, bool) {
	for _, sess := range s.Sessions {
		if sess.ID == id {
			return sess, true
		}
	}
	return Session{}, false
}

// HoldWindow is how long a PENDING reservation keeps its seat.
func (s *Show) HoldWindow(fallback time.Duration) time.Duration {
	if s.HoldHours > 0 {
		return time.Duration(s.HoldHours) * time.Hour
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultHoldWindow
}

func (s *Show) CastQuota(fallback int) int {
	if s.TicketConfig.CastQuota > 0 {
		return s.TicketConfig.CastQuota
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultCastQuota
}

type Member struct {
	bun.BaseModel `bun:"table:members"`

	ID        string    `bun:"id,pk" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	Role      string    `bun:"role" json:"role,omitempty"`
	Bio       string    `bun:"bio" json:"bio,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

// Participation links a member to the cast of a show.
type Participation struct {
	bun.BaseModel `bun:"table:participations"`

	ID        string `bun:"id,pk" json:"id"`
	ShowID    string `bun:"show_id,notnull" json:"show_id"`
	MemberID  string `bun:"member_id,notnull" json:"member_id"`
	Character string `bun:"character_name" json:"character,omitempty"`

	Member *Member `bun:"rel:belongs-to,join:member_id=id" json:"member,omitempty"`
}
