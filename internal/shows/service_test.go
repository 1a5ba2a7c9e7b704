package shows

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-boxoffice/internal/database"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/models"
)

func setupTestService(t *testing.T) *ShowService {
	t.Helper()
	bunDB, err := database.OpenSQLite(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { bunDB.Close() })
	return NewShowService(bunDB, logger.NewDiscard())
}

func TestCreateAndGetShow(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	show, err := svc.CreateShow(ctx, ShowInput{Title: "  Hamlet ", Author: "Shakespeare", Price: 12.5, Paid: true})
	require.NoError(t, err)
	assert.Equal(t, "Hamlet", show.Title)

	got, err := svc.GetShow(ctx, show.ID)
	require.NoError(t, err)
	assert.Equal(t, "Shakespeare", got.Author)
	assert.Equal(t, 12.5, got.Price)
	assert.True(t, got.Paid)

	_, err = svc.GetShow(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrShowNotFound)
}

func TestCreateShow_RequiresTitle(t *testing.T) {
	svc := setupTestService(t)

	_, err := svc.CreateShow(context.Background(), ShowInput{Title: " "})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestUpdateShow(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()
	show, err := svc.CreateShow(ctx, ShowInput{Title: "Antigone"})
	require.NoError(t, err)

	_, err = svc.UpdateShow(ctx, show.ID, ShowInput{Title: "Antigona", ReservationsOpen: true, HoldHours: 48})
	require.NoError(t, err)

	got, err := svc.GetShow(ctx, show.ID)
	require.NoError(t, err)
	assert.Equal(t, "Antigona", got.Title)
	assert.True(t, got.ReservationRequired, "open reservations imply the box office")
	assert.True(t, got.ReservationsOpen)
	assert.Equal(t, 48*time.Hour, got.HoldWindow(0))
}

func TestCreateShow_LegacyRequiresTicket(t *testing.T) {
	svc := setupTestService(t)

	show, err := svc.CreateShow(context.Background(), ShowInput{Title: "Yerma", RequiresTicket: true})
	require.NoError(t, err)
	assert.True(t, show.ReservationRequired)
	assert.False(t, show.ReservationsOpen)
}

func TestSetOnBill_IsExclusive(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	var ids []string
	for _, title := range []string{"One", "Two", "Three"} {
		show, err := svc.CreateShow(ctx, ShowInput{Title: title})
		require.NoError(t, err)
		ids = append(ids, show.ID)
	}

	require.NoError(t, svc.SetOnBill(ctx, ids[0]))
	require.NoError(t, svc.SetOnBill(ctx, ids[2]))

	all, err := svc.ListShows(ctx, true)
	require.NoError(t, err)
	onBill := 0
	for _, s := range all {
		if s.OnBill {
			onBill++
			assert.Equal(t, ids[2], s.ID)
		}
	}
	assert.Equal(t, 1, onBill)

	current, err := svc.GetOnBill(ctx)
	require.NoError(t, err)
	assert.Equal(t, ids[2], current.ID)

	assert.ErrorIs(t, svc.SetOnBill(ctx, "missing"), models.ErrShowNotFound)
}

func TestSessions_SortedAndRemovable(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()
	show, err := svc.CreateShow(ctx, ShowInput{Title: "Ubu"})
	require.NoError(t, err)

	late := time.Date(2026, 5, 10, 21, 0, 0, 0, time.UTC)
	early := time.Date(2026, 5, 9, 21, 0, 0, 0, time.UTC)

	s1, err := svc.AddSession(ctx, show.ID, late, "Main hall")
	require.NoError(t, err)
	s2, err := svc.AddSession(ctx, show.ID, early, "Main hall")
	require.NoError(t, err)

	got, err := svc.GetShow(ctx, show.ID)
	require.NoError(t, err)
	require.Len(t, got.Sessions, 2)
	assert.Equal(t, s2.ID, got.Sessions[0].ID)
	assert.Equal(t, s1.ID, got.Sessions[1].ID)

	require.NoError(t, svc.RemoveSession(ctx, show.ID, s2.ID))
	assert.ErrorIs(t, svc.RemoveSession(ctx, show.ID, s2.ID), models.ErrSessionNotFound)

	got, err = svc.GetShow(ctx, show.ID)
	require.NoError(t, err)
	require.Len(t, got.Sessions, 1)
	assert.Equal(t, s1.ID, got.Sessions[0].ID)
}

func TestGlobalLayout_DefaultThenSaved(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	l, err := svc.GetGlobalLayout(ctx)
	require.NoError(t, err)
	assert.Len(t, l, 5)

	require.NoError(t, svc.SaveGlobalLayout(ctx, models.SeatLayout{{Row: "A", Seats: 3}}))
	// Saving twice replaces wholesale.
	require.NoError(t, svc.SaveGlobalLayout(ctx, models.SeatLayout{{Row: "A", Map: "101"}, {Row: "B", Seats: 2}}))

	l, err = svc.GetGlobalLayout(ctx)
	require.NoError(t, err)
	require.Len(t, l, 2)
	assert.Equal(t, "101", l[0].Map)
	assert.Equal(t, "11", l[1].Map)

	assert.ErrorIs(t, svc.SaveGlobalLayout(ctx, models.SeatLayout{{Row: "A", Map: "2"}}), models.ErrInvalidInput)
}

func TestResolveLayout_ShowOverride(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()
	show, err := svc.CreateShow(ctx, ShowInput{Title: "Yerma"})
	require.NoError(t, err)

	require.NoError(t, svc.SetShowLayout(ctx, show.ID, models.SeatLayout{{Row: "Z", Seats: 4}}))

	got, err := svc.GetShow(ctx, show.ID)
	require.NoError(t, err)
	l, err := svc.ResolveLayout(ctx, got)
	require.NoError(t, err)
	require.Len(t, l, 1)
	assert.Equal(t, "1111", l[0].Map)

	require.NoError(t, svc.SetShowLayout(ctx, show.ID, nil))
	got, err = svc.GetShow(ctx, show.ID)
	require.NoError(t, err)
	l, err = svc.ResolveLayout(ctx, got)
	require.NoError(t, err)
	assert.Len(t, l, 5)
}

func TestDeleteShow_CascadesParticipations(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	show, err := svc.CreateShow(ctx, ShowInput{Title: "Bodas de sangre"})
	require.NoError(t, err)
	other, err := svc.CreateShow(ctx, ShowInput{Title: "Mariana Pineda"})
	require.NoError(t, err)
	member, err := svc.CreateMember(ctx, "Lucía", "actor", "")
	require.NoError(t, err)

	_, err = svc.AddParticipation(ctx, show.ID, member.ID, "La novia")
	require.NoError(t, err)
	_, err = svc.AddParticipation(ctx, other.ID, member.ID, "Mariana")
	require.NoError(t, err)

	cast, err := svc.ListCast(ctx, show.ID)
	require.NoError(t, err)
	require.Len(t, cast, 1)
	require.NotNil(t, cast[0].Member)
	assert.Equal(t, "Lucía", cast[0].Member.Name)

	require.NoError(t, svc.DeleteShow(ctx, show.ID))

	cast, err = svc.ListCast(ctx, show.ID)
	require.NoError(t, err)
	assert.Empty(t, cast)

	cast, err = svc.ListCast(ctx, other.ID)
	require.NoError(t, err)
	assert.Len(t, cast, 1)

	assert.ErrorIs(t, svc.DeleteShow(ctx, show.ID), models.ErrShowNotFound)
}

func TestAddParticipation_UnknownMember(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()
	show, err := svc.CreateShow(ctx, ShowInput{Title: "Fuenteovejuna"})
	require.NoError(t, err)

	_, err = svc.AddParticipation(ctx, show.ID, "nobody", "")
	assert.ErrorIs(t, err, models.ErrMemberNotFound)
}
