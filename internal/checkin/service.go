package checkin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"ms-boxoffice/internal/events"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/models"
	resdb "ms-boxoffice/internal/reservations/db"
	"ms-boxoffice/internal/utils"
)

type OutcomeKind string

const (
	OutcomeSuccess          OutcomeKind = "SUCCESS"
	OutcomeNotFound         OutcomeKind = "NOT_FOUND"
	OutcomePaymentPending   OutcomeKind = "PAYMENT_PENDING"
	OutcomeAlreadyCheckedIn OutcomeKind = "ALREADY_CHECKED_IN"
)

// Outcome is what the door scanner shows. Only Success changed state.
type Outcome struct {
	Kind           OutcomeKind          `json:"kind"`
	Code           string               `json:"code"`
	Group          bool                 `json:"group"`
	HolderName     string               `json:"holder_name,omitempty"`
	Seat           *models.Seat         `json:"seat,omitempty"`
	Seats          []models.Seat        `json:"seats,omitempty"`
	ShowID         string               `json:"show_id,omitempty"`
	SessionID      string               `json:"session_id,omitempty"`
	ValidatedCount int                  `json:"validated_count"`
	GroupSize      int                  `json:"group_size,omitempty"`
	PaymentStatus  models.PaymentStatus `json:"payment_status,omitempty"`
	CheckedInAt    time.Time            `json:"checked_in_at,omitempty"`
}

type CheckInService struct {
	Bun          *bun.DB
	Reservations *resdb.DB
	Events       events.Publisher
	Log          *logger.Logger
	Now          func() time.Time
}

func NewCheckInService(bunDB *bun.DB, publisher events.Publisher, log *logger.Logger) *CheckInService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &CheckInService{
		Bun:          bunDB,
		Reservations: &resdb.DB{Bun: bunDB},
		Events:       publisher,
		Log:          log,
		Now:          time.Now,
	}
}

// ValidateEntry admits a ticket or a whole class group. Errors are only
// returned for storage failures; every admission decision is an Outcome.
func (s *CheckInService) ValidateEntry(ctx context.Context, code string) (Outcome, error) {
	return s.validate(ctx, code, false)
}

// ValidateEntryOverride is the door override: PENDING tickets are admitted
// and the payment is left for staff to settle.
func (s *CheckInService) ValidateEntryOverride(ctx context.Context, code string) (Outcome, error) {
	return s.validate(ctx, code, true)
}

func (s *CheckInService) validate(ctx context.Context, code string, admitPending bool) (Outcome, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	var (
		out Outcome
		err error
	)
	if utils.IsGroupCode(code) {
		out, err = s.validateGroup(ctx, code)
	} else {
		out, err = s.validateTicket(ctx, code, admitPending)
	}
	if err != nil {
		s.Log.Error("CHECKIN", fmt.Sprintf("Entry validation failed for %s: %v", code, err))
		return Outcome{}, err
	}
	s.Log.LogCheckIn(code, string(out.Kind))
	return out, nil
}

func (s *CheckInService) validateTicket(ctx context.Context, code string, admitPending bool) (Outcome, error) {
	out := Outcome{Code: code}
	r, err := s.Reservations.GetByTicketCode(ctx, code)
	if errors.Is(err, models.ErrNotFound) {
		out.Kind = OutcomeNotFound
		return out, nil
	}
	if err != nil {
		return Outcome{}, err
	}

	seat := r.Seat()
	out.HolderName = r.HolderName
	out.Seat = &seat
	out.ShowID = r.ShowID
	out.SessionID = r.SessionID
	out.PaymentStatus = r.PaymentStatus

	// An unpaid balance is reported even for a holder already inside.
	if r.PaymentStatus == models.PaymentPending && !admitPending {
		out.Kind = OutcomePaymentPending
		out.CheckedInAt = r.CheckedInAt
		return out, nil
	}
	if r.CheckedIn {
		out.Kind = OutcomeAlreadyCheckedIn
		out.CheckedInAt = r.CheckedInAt
		return out, nil
	}

	now := s.Now().UTC()
	changed, err := s.Reservations.MarkCheckedIn(ctx, r.ID, now)
	if err != nil {
		return Outcome{}, err
	}
	if !changed {
		// another scanner got there first
		out.Kind = OutcomeAlreadyCheckedIn
		return out, nil
	}

	r.CheckedIn = true
	r.CheckedInAt = now
	out.Kind = OutcomeSuccess
	out.ValidatedCount = 1
	out.CheckedInAt = now
	events.Emit(ctx, s.Events, s.Log, models.NewReservationEvent(models.EventReservationCheckedIn, []models.Reservation{*r}))
	return out, nil
}

// validateGroup flips every member not yet inside in one transaction.
// Members checked in earlier keep their original timestamp.
func (s *CheckInService) validateGroup(ctx context.Context, code string) (Outcome, error) {
	out := Outcome{Code: code, Group: true}
	var flipped []models.Reservation

	err := s.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		store := s.Reservations.WithTx(tx)
		members, err := store.ListByGroup(ctx, code)
		if err != nil {
			return err
		}
		if len(members) == 0 {
			out.Kind = OutcomeNotFound
			return nil
		}

		out.GroupSize = len(members)
		out.HolderName = members[0].HolderName
		out.ShowID = members[0].ShowID
		out.SessionID = members[0].SessionID

		var pending []models.Reservation
		for _, m := range members {
			if !m.CheckedIn {
				pending = append(pending, m)
			}
		}
		if len(pending) == 0 {
			out.Kind = OutcomeAlreadyCheckedIn
			out.ValidatedCount = len(members)
			return nil
		}

		// Each member is flipped on its own guarded update so the outcome
		// lists exactly the rows this scan changed.
		now := s.Now().UTC()
		for _, m := range pending {
			changed, err := store.MarkCheckedIn(ctx, m.ID, now)
			if err != nil {
				return err
			}
			if !changed {
				continue
			}
			m.CheckedIn = true
			m.CheckedInAt = now
			flipped = append(flipped, m)
			out.Seats = append(out.Seats, m.Seat())
		}
		if len(flipped) == 0 {
			// another scanner got there first
			out.Kind = OutcomeAlreadyCheckedIn
			out.ValidatedCount = len(members)
			return nil
		}
		out.Kind = OutcomeSuccess
		out.ValidatedCount = len(flipped)
		out.CheckedInAt = now
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	if len(flipped) > 0 {
		events.Emit(ctx, s.Events, s.Log, models.NewReservationEvent(models.EventReservationCheckedIn, flipped))
	}
	return out, nil
}
