package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentExempt   PaymentStatus = "EXEMPT"
	PaymentBypassed PaymentStatus = "BYPASSED"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentExempt, PaymentBypassed:
		return true
	}
	return false
}

// CanTransition reports whether staff may move a reservation from s to next.
// EXEMPT and BYPASSED are terminal; PAID can only go back to PENDING.
func (s PaymentStatus) CanTransition(next PaymentStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case PaymentPending:
		return next == PaymentPaid || next == PaymentExempt
	case PaymentPaid:
		return next == PaymentPending
	}
	return false
}

type Channel string

const (
	ChannelPublic  Channel = "public"
	ChannelToken   Channel = "token"
	ChannelAdmin   Channel = "admin"
	ChannelCounter Channel = "counter"
)

// IsStaff reports channels that skip the reservations-open flag.
func (c Channel) IsStaff() bool {
	return c == ChannelAdmin || c == ChannelCounter
}

type Reservation struct {
	bun.BaseModel `bun:"table:reservations"`

	ID            string        `bun:"id,pk" json:"id"`
	ShowID        string        `bun:"show_id,notnull" json:"show_id"`
	SessionID     string        `bun:"session_id,notnull" json:"session_id"`
	Row           string        `bun:"seat_row,notnull" json:"row"`
	SeatNumber    int           `bun:"seat_number,notnull" json:"seat_number"`
	HolderName    string        `bun:"holder_name,notnull" json:"holder_name"`
	HolderEmail   string        `bun:"holder_email" json:"holder_email,omitempty"`
	HolderPhone   string        `bun:"holder_phone" json:"holder_phone,omitempty"`
	TicketCode    string        `bun:"ticket_code,notnull,unique" json:"ticket_code"`
	PaymentStatus PaymentStatus `bun:"payment_status,notnull" json:"payment_status"`
	PricePaid     float64       `bun:"price_paid,notnull" json:"price_paid"`
	CounterFee    float64       `bun:"counter_fee,notnull" json:"counter_fee,omitempty"`
	PaidAt        time.Time     `bun:"paid_at,nullzero" json:"paid_at,omitempty"`
	CheckedIn     bool          `bun:"checked_in,notnull" json:"checked_in"`
	CheckedInAt   time.Time     `bun:"checked_in_at,nullzero" json:"checked_in_at,omitempty"`
	CreatedAt     time.Time     `bun:"created_at,notnull" json:"created_at"`
	GroupID       string        `bun:"group_id" json:"group_id,omitempty"`
	ClassName     string        `bun:"class_name" json:"class_name,omitempty"`
	TokenID       string        `bun:"token_id" json:"token_id,omitempty"`
	Channel       Channel       `bun:"channel,notnull" json:"channel"`
}

func (r *Reservation) Seat() Seat {
	return Seat{Row: r.Row, Number: r.SeatNumber}
}

// IsExpired is the single soft-expiration rule: an unpaid reservation older
// than the hold window no longer holds its seat. Nothing is ever written.
func IsExpired(r *Reservation, now time.Time, window time.Duration) bool {
	if r.PaymentStatus != PaymentPending {
		return false
	}
	return now.Sub(r.CreatedAt) > window
}

// IssuedTicket is what a booking hands back per seat.
type IssuedTicket struct {
	ReservationID string        `json:"reservation_id"`
	TicketCode    string        `json:"ticket_code"`
	Seat          Seat          `json:"seat"`
	GroupID       string        `json:"group_id,omitempty"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	PricePaid     float64       `json:"price_paid"`
}

type Holder struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// DashboardStats mirrors the staff dashboard counters.
type DashboardStats struct {
	Shows        int     `json:"shows"`
	Reservations int     `json:"reservations"`
	Active       int     `json:"active"`
	Paid         int     `json:"paid"`
	Pending      int     `json:"pending"`
	Expired      int     `json:"expired"`
	Exempt       int     `json:"exempt"`
	Bypassed     int     `json:"bypassed"`
	CheckedIn    int     `json:"checked_in"`
	Revenue      float64 `json:"revenue"`
}
