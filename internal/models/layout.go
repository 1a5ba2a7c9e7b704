package models

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// SeatLayoutRow is one row of the seat map. Map is the canonical form:
// '1' is a seat, '0' is a gap. Seats is the legacy plain count.
type SeatLayoutRow struct {
	Row   string `json:"row"`
	Map   string `json:"map,omitempty"`
	Seats int    `json:"seats,omitempty"`
}

type SeatLayout []SeatLayoutRow

// Seat identifies a bookable position. Number counts seats, not gaps.
type Seat struct {
	Row    string `json:"row"`
	Number int    `json:"number"`
}

func (s Seat) Label() string {
	return fmt.Sprintf("%s%d", s.Row, s.Number)
}

func (s Seat) String() string {
	return s.Label()
}

const GlobalLayoutKey = "global"

// LayoutConfig holds the venue-wide layout.
type LayoutConfig struct {
	bun.BaseModel `bun:"table:layouts"`

	Key       string     `bun:"layout_key,pk" json:"key"`
	Rows      SeatLayout `bun:"layout_rows" json:"rows"`
	UpdatedAt time.Time  `bun:"updated_at,nullzero" json:"updated_at"`
}
