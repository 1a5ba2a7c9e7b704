package layout

import (
	"fmt"
	"strings"

	"ms-boxoffice/internal/models"
)

const (
	seatMark = '1'
	gapMark  = '0'
)

// Default is the venue map used until staff save one.
func Default() models.SeatLayout {
	rows := []struct {
		label string
		seats int
	}{
		{"A", 10}, {"B", 12}, {"C", 14}, {"D", 14}, {"E", 12},
	}
	out := make(models.SeatLayout, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.SeatLayoutRow{Row: r.label, Map: strings.Repeat("1", r.seats)})
	}
	return out
}

// RowLabel is the canonical form of a row label; layouts and seat
// requests both go through it so "a " and "A" name the same row.
func RowLabel(label string) string {
	return strings.ToUpper(strings.TrimSpace(label))
}

// NormalizeRow turns a legacy count-only row into its bitmap form.
func NormalizeRow(row models.SeatLayoutRow) models.SeatLayoutRow {
	row.Row = RowLabel(row.Row)
	if row.Map == "" && row.Seats > 0 {
		row.Map = strings.Repeat(string(seatMark), row.Seats)
	}
	row.Seats = 0
	return row
}

func Normalize(l models.SeatLayout) models.SeatLayout {
	if len(l) == 0 {
		return l
	}
	out := make(models.SeatLayout, len(l))
	for i, row := range l {
		out[i] = NormalizeRow(row)
	}
	return out
}

// Expand lists every seat of the layout in row order, left to right.
// An empty layout yields no seats.
func Expand(l models.SeatLayout) []models.Seat {
	var seats []models.Seat
	for _, row := range l {
		row = NormalizeRow(row)
		n := 0
		for _, c := range row.Map {
			if c != seatMark {
				continue
			}
			n++
			seats = append(seats, models.Seat{Row: row.Row, Number: n})
		}
	}
	return seats
}

// Validate rejects rows without a label, duplicate labels and bitmap
// characters other than '0' and '1'.
func Validate(l models.SeatLayout) error {
	seen := make(map[string]struct{}, len(l))
	for i, row := range l {
		label := RowLabel(row.Row)
		if label == "" {
			return fmt.Errorf("%w: row %d has no label", models.ErrInvalidInput, i+1)
		}
		if _, dup := seen[label]; dup {
			return fmt.Errorf("%w: duplicate row %q", models.ErrInvalidInput, label)
		}
		seen[label] = struct{}{}

		if row.Seats < 0 {
			return fmt.Errorf("%w: row %q has a negative seat count", models.ErrInvalidInput, label)
		}
		for _, c := range row.Map {
			if c != seatMark && c != gapMark {
				return fmt.Errorf("%w: row %q map contains %q", models.ErrInvalidInput, label, c)
			}
		}
	}
	return nil
}

// Resolve picks the show override when present, otherwise the venue layout.
func Resolve(show *models.Show, global models.SeatLayout) models.SeatLayout {
	if show != nil && len(show.Layout) > 0 {
		return Normalize(show.Layout)
	}
	return Normalize(global)
}

type Index map[models.Seat]struct{}

func NewIndex(l models.SeatLayout) Index {
	seats := Expand(l)
	idx := make(Index, len(seats))
	for _, s := range seats {
		idx[s] = struct{}{}
	}
	return idx
}

func (i Index) Contains(s models.Seat) bool {
	_, ok := i[s]
	return ok
}

func Capacity(l models.SeatLayout) int {
	return len(Expand(l))
}
