package reservations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-boxoffice/internal/events"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/models"
	"ms-boxoffice/internal/reservations/db"
	showdb "ms-boxoffice/internal/shows/db"
)

// ReservationView is a reservation with its read-time expiration state.
type ReservationView struct {
	models.Reservation
	Expired bool `json:"expired"`
}

type ReservationService struct {
	Bun    *bun.DB
	DB     *db.DB
	Shows  *showdb.DB
	Events events.Publisher
	Log    *logger.Logger

	// HoldWindow applies to shows without their own hold hours.
	HoldWindow time.Duration
	Now        func() time.Time
}

func NewReservationService(bunDB *bun.DB, publisher events.Publisher, log *logger.Logger) *ReservationService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &ReservationService{
		Bun:        bunDB,
		DB:         &db.DB{Bun: bunDB},
		Shows:      &showdb.DB{Bun: bunDB},
		Events:     publisher,
		Log:        log,
		HoldWindow: models.DefaultHoldWindow,
		Now:        time.Now,
	}
}

func (s *ReservationService) now() time.Time {
	return s.Now().UTC()
}

func (s *ReservationService) windowFor(ctx context.Context, store *showdb.DB, showID string, cache map[string]time.Duration) (time.Duration, error) {
	if w, ok := cache[showID]; ok {
		return w, nil
	}
	w := s.HoldWindow
	show, err := store.GetShow(ctx, showID)
	switch {
	case err == nil:
		w = show.HoldWindow(s.HoldWindow)
	case !errors.Is(err, models.ErrNotFound):
		return 0, err
	}
	if cache != nil {
		cache[showID] = w
	}
	return w, nil
}

func (s *ReservationService) views(ctx context.Context, list []models.Reservation) ([]ReservationView, error) {
	now := s.now()
	cache := make(map[string]time.Duration)
	out := make([]ReservationView, 0, len(list))
	for i := range list {
		w, err := s.windowFor(ctx, s.Shows, list[i].ShowID, cache)
		if err != nil {
			return nil, err
		}
		out = append(out, ReservationView{Reservation: list[i], Expired: models.IsExpired(&list[i], now, w)})
	}
	return out, nil
}

// ---------------- READS ----------------

func (s *ReservationService) ListBySession(ctx context.Context, showID, sessionID string) ([]ReservationView, error) {
	list, err := s.DB.ListBySession(ctx, showID, sessionID)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, list)
}

func (s *ReservationService) ListByShow(ctx context.Context, showID string) ([]ReservationView, error) {
	list, err := s.DB.ListByShow(ctx, showID)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, list)
}

func (s *ReservationService) ListByHolderEmail(ctx context.Context, email string) ([]ReservationView, error) {
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", models.ErrInvalidInput)
	}
	list, err := s.DB.ListByHolderEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, list)
}

func (s *ReservationService) GetByTicketCode(ctx context.Context, code string) (*ReservationView, error) {
	r, err := s.DB.GetByTicketCode(ctx, code)
	if err != nil {
		return nil, err
	}
	views, err := s.views(ctx, []models.Reservation{*r})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// ---------------- PAYMENT ----------------

// MarkPaymentStatus moves one reservation along the payment state machine.
// Re-applying the current status changes nothing.
func (s *ReservationService) MarkPaymentStatus(ctx context.Context, id string, status models.PaymentStatus) (*models.Reservation, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown payment status %q", models.ErrInvalidInput, status)
	}

	var (
		updated *models.Reservation
		changed bool
	)
	err := s.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		updated, changed, err = s.markInTx(ctx, tx, id, status, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return updated, nil
	}

	s.Log.Info("PAYMENT", fmt.Sprintf("Reservation %s is now %s", id, updated.PaymentStatus))
	events.Emit(ctx, s.Events, s.Log, models.NewReservationEvent(models.EventPaymentUpdated, []models.Reservation{*updated}))
	return updated, nil
}

// BulkMarkPaid marks every listed reservation PAID in one transaction. Any
// failure leaves all of them unchanged.
func (s *ReservationService) BulkMarkPaid(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: no reservations selected", models.ErrInvalidInput)
	}

	var changed []models.Reservation
	err := s.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		cache := make(map[string]time.Duration)
		for _, id := range ids {
			r, didChange, err := s.markInTx(ctx, tx, id, models.PaymentPaid, cache)
			if err != nil {
				return fmt.Errorf("reservation %s: %w", id, err)
			}
			if didChange {
				changed = append(changed, *r)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.Log.Info("PAYMENT", fmt.Sprintf("Bulk marked %d of %d reservations paid", len(changed), len(ids)))
	events.Emit(ctx, s.Events, s.Log, models.NewReservationEvent(models.EventPaymentUpdated, changed))
	return len(changed), nil
}

func (s *ReservationService) markInTx(ctx context.Context, tx bun.Tx, id string, status models.PaymentStatus, cache map[string]time.Duration) (*models.Reservation, bool, error) {
	store := s.DB.WithTx(tx)
	shows := s.Shows.WithTx(tx)

	r, err := store.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if r.PaymentStatus == status {
		return r, false, nil
	}
	if !r.PaymentStatus.CanTransition(status) {
		return nil, false, fmt.Errorf("%w: %s to %s", models.ErrInvalidTransition, r.PaymentStatus, status)
	}

	now := s.now()
	if r.PaymentStatus == models.PaymentPending && status != models.PaymentPending {
		window, err := s.windowFor(ctx, shows, r.ShowID, cache)
		if err != nil {
			return nil, false, err
		}
		// An expired hold may have lost its seat to someone else.
		if models.IsExpired(r, now, window) {
			if err := s.ensureSeatFree(ctx, store, shows, r, now, window); err != nil {
				return nil, false, err
			}
		}
	}

	var paidAt time.Time
	if status == models.PaymentPaid {
		paidAt = now
	}
	if err := store.UpdatePaymentStatus(ctx, r.ID, status, paidAt); err != nil {
		return nil, false, err
	}
	r.PaymentStatus = status
	r.PaidAt = paidAt
	return r, true, nil
}

func (s *ReservationService) ensureSeatFree(ctx context.Context, store *db.DB, shows *showdb.DB, r *models.Reservation, now time.Time, window time.Duration) error {
	if err := shows.LockShow(ctx, r.ShowID); err != nil && !errors.Is(err, models.ErrNotFound) {
		return err
	}
	others, err := store.ListBySession(ctx, r.ShowID, r.SessionID)
	if err != nil {
		return err
	}
	for i := range others {
		o := &others[i]
		if o.ID == r.ID || o.Seat() != r.Seat() {
			continue
		}
		if !models.IsExpired(o, now, window) {
			return &models.SeatConflictError{Seats: []models.Seat{r.Seat()}, Reason: "taken after this hold expired"}
		}
	}
	return nil
}

// ---------------- DELETE ----------------

func (s *ReservationService) DeleteReservation(ctx context.Context, id string) error {
	r, err := s.DB.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.DB.Delete(ctx, id); err != nil {
		return err
	}
	s.Log.LogDatabase("DELETE", "reservations", fmt.Sprintf("freed %s for show %s", r.Seat().Label(), r.ShowID))
	events.Emit(ctx, s.Events, s.Log, models.NewReservationEvent(models.EventReservationDeleted, []models.Reservation{*r}))
	return nil
}

func (s *ReservationService) BulkDelete(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: no reservations selected", models.ErrInvalidInput)
	}

	var (
		removed []models.Reservation
		n       int
	)
	err := s.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		store := s.DB.WithTx(tx)
		var err error
		if removed, err = store.ListByIDs(ctx, ids); err != nil {
			return err
		}
		n, err = store.DeleteMany(ctx, ids)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.Log.LogDatabase("DELETE", "reservations", fmt.Sprintf("bulk deleted %d reservations", n))
	for _, group := range bySession(removed) {
		events.Emit(ctx, s.Events, s.Log, models.NewReservationEvent(models.EventReservationDeleted, group))
	}
	return n, nil
}

// ---------------- CHECK-IN (staff) ----------------

// SetCheckIn is the staff toggle; unlike door validation it can undo a
// check-in and ignores payment status.
func (s *ReservationService) SetCheckIn(ctx context.Context, id string, checkedIn bool) (*models.Reservation, error) {
	r, err := s.DB.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.CheckedIn == checkedIn {
		return r, nil
	}

	if checkedIn {
		now := s.now()
		if _, err := s.DB.MarkCheckedIn(ctx, id, now); err != nil {
			return nil, err
		}
		r.CheckedIn, r.CheckedInAt = true, now
		events.Emit(ctx, s.Events, s.Log, models.NewReservationEvent(models.EventReservationCheckedIn, []models.Reservation{*r}))
	} else {
		if err := s.DB.ClearCheckIn(ctx, id); err != nil {
			return nil, err
		}
		r.CheckedIn, r.CheckedInAt = false, time.Time{}
	}
	s.Log.LogCheckIn(r.TicketCode, fmt.Sprintf("staff set checked_in=%t", checkedIn))
	return r, nil
}

// BulkCheckIn checks in every listed reservation not already in, in one
// transaction, and returns how many changed.
func (s *ReservationService) BulkCheckIn(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: no reservations selected", models.ErrInvalidInput)
	}

	var changed []models.Reservation
	err := s.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		store := s.DB.WithTx(tx)
		list, err := store.ListByIDs(ctx, ids)
		if err != nil {
			return err
		}
		now := s.now()
		for i := range list {
			ok, err := store.MarkCheckedIn(ctx, list[i].ID, now)
			if err != nil {
				return err
			}
			if ok {
				list[i].CheckedIn, list[i].CheckedInAt = true, now
				changed = append(changed, list[i])
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, group := range bySession(changed) {
		events.Emit(ctx, s.Events, s.Log, models.NewReservationEvent(models.EventReservationCheckedIn, group))
	}
	return len(changed), nil
}

func bySession(list []models.Reservation) [][]models.Reservation {
	index := make(map[string]int)
	var out [][]models.Reservation
	for _, r := range list {
		key := r.ShowID + "/" + r.SessionID
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, nil)
		}
		out[i] = append(out[i], r)
	}
	return out
}

// ---------------- STATS ----------------

// Stats computes the dashboard counters. An empty showID covers every show.
func (s *ReservationService) Stats(ctx context.Context, showID string) (models.DashboardStats, error) {
	var (
		list []models.Reservation
		err  error
	)
	if showID == "" {
		list, err = s.DB.ListAll(ctx)
	} else {
		list, err = s.DB.ListByShow(ctx, showID)
	}
	if err != nil {
		return models.DashboardStats{}, err
	}

	shows, err := s.Shows.ListShows(ctx, true)
	if err != nil {
		return models.DashboardStats{}, err
	}
	windows := make(map[string]time.Duration, len(shows))
	for i := range shows {
		windows[shows[i].ID] = shows[i].HoldWindow(s.HoldWindow)
	}

	stats := models.DashboardStats{Shows: len(shows), Reservations: len(list)}
	if showID != "" {
		stats.Shows = 1
	}
	now := s.now()
	for i := range list {
		r := &list[i]
		w, ok := windows[r.ShowID]
		if !ok {
			w = s.HoldWindow
		}
		expired := models.IsExpired(r, now, w)
		if !expired {
			stats.Active++
		}
		switch r.PaymentStatus {
		case models.PaymentPaid:
			stats.Paid++
			stats.Revenue += r.PricePaid
		case models.PaymentPending:
			if expired {
				stats.Expired++
			} else {
				stats.Pending++
			}
		case models.PaymentExempt:
			stats.Exempt++
		case models.PaymentBypassed:
			stats.Bypassed++
		}
		if r.CheckedIn {
			stats.CheckedIn++
		}
	}
	return stats, nil
}
