package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-boxoffice/internal/models"
)

func TestExpand_SkipsGaps(t *testing.T) {
	seats := Expand(models.SeatLayout{{Row: "A", Map: "1101"}})

	assert.Equal(t, []models.Seat{
		{Row: "A", Number: 1},
		{Row: "A", Number: 2},
		{Row: "A", Number: 3},
	}, seats)
}

func TestExpand_LegacyCount(t *testing.T) {
	seats := Expand(models.SeatLayout{{Row: "B", Seats: 3}})

	require.Len(t, seats, 3)
	assert.Equal(t, models.Seat{Row: "B", Number: 3}, seats[2])
}

func TestExpand_Empty(t *testing.T) {
	assert.Empty(t, Expand(nil))
	assert.Empty(t, Expand(models.SeatLayout{}))
}

func TestNormalize_MapWinsOverCount(t *testing.T) {
	out := Normalize(models.SeatLayout{{Row: "A", Map: "101", Seats: 9}})

	assert.Equal(t, "101", out[0].Map)
	assert.Zero(t, out[0].Seats)
}

func TestNormalize_CanonicalRowLabels(t *testing.T) {
	out := Normalize(models.SeatLayout{{Row: "Balcony", Map: "11"}, {Row: " a ", Seats: 1}})

	assert.Equal(t, "BALCONY", out[0].Row)
	assert.Equal(t, "A", out[1].Row)
	assert.True(t, NewIndex(out).Contains(models.Seat{Row: RowLabel("balcony "), Number: 2}))
}

func TestDefault(t *testing.T) {
	d := Default()

	require.Len(t, d, 5)
	assert.Equal(t, 62, Capacity(d))
	assert.Equal(t, "A", d[0].Row)
	assert.Len(t, d[2].Map, 14)
}

func TestIndex_Contains(t *testing.T) {
	idx := NewIndex(models.SeatLayout{{Row: "A", Map: "110"}})

	assert.True(t, idx.Contains(models.Seat{Row: "A", Number: 1}))
	assert.True(t, idx.Contains(models.Seat{Row: "A", Number: 2}))
	assert.False(t, idx.Contains(models.Seat{Row: "A", Number: 3}))
	assert.False(t, idx.Contains(models.Seat{Row: "B", Number: 1}))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		layout  models.SeatLayout
		wantErr bool
	}{
		{"ok", models.SeatLayout{{Row: "A", Map: "1101"}, {Row: "B", Seats: 4}}, false},
		{"missing label", models.SeatLayout{{Map: "11"}}, true},
		{"duplicate", models.SeatLayout{{Row: "A", Map: "1"}, {Row: "A", Map: "1"}}, true},
		{"duplicate after trimming and case", models.SeatLayout{{Row: "a", Map: "1"}, {Row: "A ", Map: "1"}}, true},
		{"bad char", models.SeatLayout{{Row: "A", Map: "1x1"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.layout)
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolve_ShowOverride(t *testing.T) {
	global := models.SeatLayout{{Row: "A", Seats: 10}}
	show := &models.Show{Layout: models.SeatLayout{{Row: "Z", Seats: 2}}}

	assert.Equal(t, "Z", Resolve(show, global)[0].Row)
	assert.Equal(t, "A", Resolve(&models.Show{}, global)[0].Row)
}

func TestResolve_NormalizesShowOverride(t *testing.T) {
	show := &models.Show{Layout: models.SeatLayout{{Row: "z", Seats: 2}}}

	out := Resolve(show, nil)
	assert.Equal(t, models.SeatLayout{{Row: "Z", Map: "11"}}, out)
}
