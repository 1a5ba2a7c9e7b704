package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-boxoffice/internal/booking"
	"ms-boxoffice/internal/config"
	"ms-boxoffice/internal/database"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/models"
	"ms-boxoffice/internal/shows"
)

type fixture struct {
	app     *App
	out     *bytes.Buffer
	show    *models.Show
	session *models.Session
}

func setupApp(t *testing.T) *fixture {
	t.Helper()
	color.NoColor = true
	ctx := context.Background()

	bunDB, err := database.OpenSQLite(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { bunDB.Close() })

	cfg := config.Load()
	cfg.Database.Driver = database.DriverSQLite

	out := new(bytes.Buffer)
	app := NewApp(cfg, logger.NewDiscard(), bunDB)
	app.Out = out

	show, err := app.Shows.CreateShow(ctx, shows.ShowInput{Title: "Luces de bohemia", ReservationsOpen: true})
	require.NoError(t, err)
	require.NoError(t, app.Shows.SetShowLayout(ctx, show.ID, models.SeatLayout{{Row: "A", Map: "1101"}}))
	session, err := app.Shows.AddSession(ctx, show.ID, time.Now().Add(48*time.Hour), "Sala principal")
	require.NoError(t, err)

	return &fixture{app: app, out: out, show: show, session: session}
}

func (f *fixture) run(t *testing.T, args ...string) error {
	t.Helper()
	f.out.Reset()
	root := NewRootCommand(func(context.Context) (*App, error) { return f.app, nil })
	root.SetArgs(args)
	root.SetOut(f.out)
	root.SetErr(f.out)
	return root.ExecuteContext(context.Background())
}

func (f *fixture) book(t *testing.T, seat int) []models.IssuedTicket {
	t.Helper()
	tickets, err := f.app.Booking.SubmitBooking(context.Background(), booking.BookingRequest{
		ShowID:    f.show.ID,
		SessionID: f.session.ID,
		Seats:     []models.Seat{{Row: "A", Number: seat}},
		Holder:    models.Holder{Name: "Max Estrella", Email: "max@example.com"},
		Channel:   models.ChannelPublic,
	})
	require.NoError(t, err)
	return tickets
}

func TestShowsCommand_ListsSessions(t *testing.T) {
	f := setupApp(t)

	require.NoError(t, f.run(t, "shows"))
	assert.Contains(t, f.out.String(), "Luces de bohemia")
	assert.Contains(t, f.out.String(), f.session.ID)
}

func TestSeatsCommand_DrawsTakenSeats(t *testing.T) {
	f := setupApp(t)
	f.book(t, 2)

	require.NoError(t, f.run(t, "seats", "--show", f.show.ID, "--session", f.session.ID))
	assert.Contains(t, f.out.String(), "A   · ■   · ")
	assert.Contains(t, f.out.String(), "1/3 seats taken")
}

func TestReservationsCommand(t *testing.T) {
	f := setupApp(t)
	tickets := f.book(t, 1)

	t.Run("by show", func(t *testing.T) {
		require.NoError(t, f.run(t, "reservations", "--show", f.show.ID))
		assert.Contains(t, f.out.String(), tickets[0].TicketCode)
		assert.Contains(t, f.out.String(), "PENDING")
	})

	t.Run("needs a filter", func(t *testing.T) {
		err := f.run(t, "reservations")
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})
}

func TestEntryCommand(t *testing.T) {
	f := setupApp(t)
	tickets := f.book(t, 3)

	require.NoError(t, f.run(t, "entry", tickets[0].TicketCode))
	assert.Contains(t, f.out.String(), "PAYMENT_PENDING")

	require.NoError(t, f.run(t, "entry", "--override", tickets[0].TicketCode))
	assert.Contains(t, f.out.String(), "SUCCESS")
	assert.Contains(t, f.out.String(), "seat:   A3")

	// still unpaid, so a plain rescan keeps flagging it
	require.NoError(t, f.run(t, "entry", tickets[0].TicketCode))
	assert.Contains(t, f.out.String(), "PAYMENT_PENDING")

	require.NoError(t, f.run(t, "entry", "--override", tickets[0].TicketCode))
	assert.Contains(t, f.out.String(), "ALREADY_CHECKED_IN")
}

func TestTokensCommand_IssuesClassToken(t *testing.T) {
	f := setupApp(t)

	require.NoError(t, f.run(t, "tokens", "class", "--show", f.show.ID, "--name", "2ºA", "--seats", "12"))
	assert.Contains(t, f.out.String(), "2ºA (12 seats)")

	require.NoError(t, f.run(t, "tokens", "--show", f.show.ID, "--kind", "class"))
	assert.Contains(t, f.out.String(), "2ºA")
}

func TestStatsCommand(t *testing.T) {
	f := setupApp(t)
	f.book(t, 1)

	require.NoError(t, f.run(t, "stats", "--show", f.show.ID))
	assert.Contains(t, f.out.String(), "Reservations")
	assert.Contains(t, f.out.String(), "Pending")
}

func TestMigrateCommand_SQLiteCreatesSchema(t *testing.T) {
	f := setupApp(t)

	require.NoError(t, f.run(t, "migrate"))
	assert.Contains(t, f.out.String(), "sqlite schema in place")
}
