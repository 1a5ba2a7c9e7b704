package reservations

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-boxoffice/internal/database"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/models"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, evt models.ReservationEvent) error {
	args := m.Called(ctx, evt)
	return args.Error(0)
}

var baseTime = time.Date(2026, 4, 10, 18, 0, 0, 0, time.UTC)

type fixture struct {
	svc    *ReservationService
	events *MockPublisher
	clock  *time.Time
}

func setupTestService(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	bunDB, err := database.OpenSQLite(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { bunDB.Close() })

	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil).Maybe()

	svc := NewReservationService(bunDB, pub, logger.NewDiscard())
	clock := baseTime
	svc.Now = func() time.Time { return clock }

	show := &models.Show{ID: "show-1", Title: "Yerma", Paid: true, Price: 8, CreatedAt: baseTime}
	require.NoError(t, svc.Shows.CreateShow(ctx, show))

	return fixture{svc: svc, events: pub, clock: &clock}
}

func (f fixture) seed(t *testing.T, id string, seat models.Seat, status models.PaymentStatus, createdAt time.Time) models.Reservation {
	t.Helper()
	r := models.Reservation{
		ID:            id,
		ShowID:        "show-1",
		SessionID:     "sess-1",
		Row:           seat.Row,
		SeatNumber:    seat.Number,
		HolderName:    "Holder " + id,
		HolderEmail:   id + "@example.com",
		TicketCode:    fmt.Sprintf("TKT-%08s", id),
		PaymentStatus: status,
		PricePaid:     8,
		CreatedAt:     createdAt,
		Channel:       models.ChannelPublic,
	}
	require.NoError(t, f.svc.DB.CreateReservations(context.Background(), []models.Reservation{r}))
	return r
}

func seat(row string, n int) models.Seat { return models.Seat{Row: row, Number: n} }

func TestMarkPaymentStatus_Transitions(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()
	f.seed(t, "r1", seat("A", 1), models.PaymentPending, baseTime)

	r, err := f.svc.MarkPaymentStatus(ctx, "r1", models.PaymentPaid)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, r.PaymentStatus)
	assert.Equal(t, baseTime, r.PaidAt)

	// same status again is a no-op
	_, err = f.svc.MarkPaymentStatus(ctx, "r1", models.PaymentPaid)
	require.NoError(t, err)

	r, err = f.svc.MarkPaymentStatus(ctx, "r1", models.PaymentPending)
	require.NoError(t, err)
	assert.True(t, r.PaidAt.IsZero())

	_, err = f.svc.MarkPaymentStatus(ctx, "r1", models.PaymentExempt)
	require.NoError(t, err)

	_, err = f.svc.MarkPaymentStatus(ctx, "r1", models.PaymentPaid)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	_, err = f.svc.MarkPaymentStatus(ctx, "r1", "REFUNDED")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = f.svc.MarkPaymentStatus(ctx, "missing", models.PaymentPaid)
	assert.ErrorIs(t, err, models.ErrReservationNotFound)

	stored, err := f.svc.DB.GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentExempt, stored.PaymentStatus)
}

func TestMarkPaymentStatus_ExpiredSeatTaken(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()

	f.seed(t, "old", seat("A", 1), models.PaymentPending, baseTime.Add(-25*time.Hour))
	f.seed(t, "old2", seat("A", 2), models.PaymentPending, baseTime.Add(-25*time.Hour))
	f.seed(t, "new", seat("A", 1), models.PaymentPending, baseTime.Add(-time.Hour))

	_, err := f.svc.MarkPaymentStatus(ctx, "old", models.PaymentPaid)
	assert.ErrorIs(t, err, models.ErrSeatUnavailable)

	// expired but nobody took the seat
	r, err := f.svc.MarkPaymentStatus(ctx, "old2", models.PaymentPaid)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, r.PaymentStatus)
}

func TestBulkMarkPaid_AllOrNothing(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()
	f.seed(t, "p1", seat("A", 1), models.PaymentPending, baseTime)
	f.seed(t, "p2", seat("A", 2), models.PaymentPending, baseTime)
	f.seed(t, "ex", seat("A", 3), models.PaymentExempt, baseTime)

	_, err := f.svc.BulkMarkPaid(ctx, []string{"p1", "ex", "p2"})
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	p1, err := f.svc.DB.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, p1.PaymentStatus)

	n, err := f.svc.BulkMarkPaid(ctx, []string{"p1", "p2"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	f.events.AssertCalled(t, "Publish", mock.Anything, mock.MatchedBy(func(e models.ReservationEvent) bool {
		return e.Type == models.EventPaymentUpdated && len(e.ReservationIDs) == 2
	}))
}

func TestListBySession_ExpirationIsComputedOnRead(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()
	f.seed(t, "r1", seat("B", 4), models.PaymentPending, baseTime)
	f.seed(t, "r2", seat("B", 5), models.PaymentPaid, baseTime)

	*f.clock = baseTime.Add(23 * time.Hour)
	list, err := f.svc.ListBySession(ctx, "show-1", "sess-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.False(t, list[0].Expired)

	*f.clock = baseTime.Add(25 * time.Hour)
	list, err = f.svc.ListBySession(ctx, "show-1", "sess-1")
	require.NoError(t, err)
	assert.True(t, list[0].Expired)
	assert.False(t, list[1].Expired)

	// the row itself is untouched
	stored, err := f.svc.DB.GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, stored.PaymentStatus)
}

func TestSetCheckIn_Toggle(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()
	f.seed(t, "r1", seat("C", 1), models.PaymentPending, baseTime)

	r, err := f.svc.SetCheckIn(ctx, "r1", true)
	require.NoError(t, err)
	assert.True(t, r.CheckedIn)

	r, err = f.svc.SetCheckIn(ctx, "r1", false)
	require.NoError(t, err)
	assert.False(t, r.CheckedIn)

	stored, err := f.svc.DB.GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, stored.CheckedIn)
	assert.True(t, stored.CheckedInAt.IsZero())
}

func TestBulkCheckIn_CountsOnlyNewCheckIns(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()
	f.seed(t, "r1", seat("D", 1), models.PaymentPaid, baseTime)
	f.seed(t, "r2", seat("D", 2), models.PaymentPaid, baseTime)
	f.seed(t, "r3", seat("D", 3), models.PaymentPaid, baseTime)

	_, err := f.svc.SetCheckIn(ctx, "r2", true)
	require.NoError(t, err)

	n, err := f.svc.BulkCheckIn(ctx, []string{"r1", "r2", "r3"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestBulkDelete(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()
	f.seed(t, "r1", seat("E", 1), models.PaymentPending, baseTime)
	f.seed(t, "r2", seat("E", 2), models.PaymentPending, baseTime)
	f.seed(t, "r3", seat("E", 3), models.PaymentPending, baseTime)

	n, err := f.svc.BulkDelete(ctx, []string{"r1", "r3", "unknown"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err := f.svc.ListByShow(ctx, "show-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "r2", list[0].ID)

	assert.ErrorIs(t, f.svc.DeleteReservation(ctx, "r1"), models.ErrReservationNotFound)
	require.NoError(t, f.svc.DeleteReservation(ctx, "r2"))
}

func TestStats(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()
	f.seed(t, "paid", seat("A", 1), models.PaymentPaid, baseTime)
	f.seed(t, "pending", seat("A", 2), models.PaymentPending, baseTime.Add(-time.Hour))
	f.seed(t, "stale", seat("A", 3), models.PaymentPending, baseTime.Add(-30*time.Hour))
	f.seed(t, "exempt", seat("A", 4), models.PaymentExempt, baseTime)
	_, err := f.svc.SetCheckIn(ctx, "paid", true)
	require.NoError(t, err)

	stats, err := f.svc.Stats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Shows)
	assert.Equal(t, 4, stats.Reservations)
	assert.Equal(t, 3, stats.Active)
	assert.Equal(t, 1, stats.Paid)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.Expired)
	assert.Equal(t, 1, stats.Exempt)
	assert.Equal(t, 1, stats.CheckedIn)
	assert.Equal(t, 8.0, stats.Revenue)
}

func TestListByHolderEmail(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()
	f.seed(t, "r1", seat("A", 1), models.PaymentPending, baseTime)

	list, err := f.svc.ListByHolderEmail(ctx, "R1@example.com")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.svc.ListByHolderEmail(ctx, "")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}
