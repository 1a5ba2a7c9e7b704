package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"ms-boxoffice/internal/events"
	"ms-boxoffice/internal/layout"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/models"
	resdb "ms-boxoffice/internal/reservations/db"
	showdb "ms-boxoffice/internal/shows/db"
	tokendb "ms-boxoffice/internal/tokens/db"
	"ms-boxoffice/internal/utils"
)

const (
	CounterHolderName  = "Counter sale"
	CounterHolderEmail = "counter-sale@boxoffice.local"
)

// SeatLocker is the optional fast-fail layer in front of the transaction.
type SeatLocker interface {
	LockSeats(ctx context.Context, showID, sessionID string, seats []models.Seat, owner string) ([]models.Seat, error)
	UnlockSeats(ctx context.Context, showID, sessionID string, seats []models.Seat, owner string) error
}

type NoopLocker struct{}

func (NoopLocker) LockSeats(context.Context, string, string, []models.Seat, string) ([]models.Seat, error) {
	return nil, nil
}

func (NoopLocker) UnlockSeats(context.Context, string, string, []models.Seat, string) error {
	return nil
}

// LayoutSource supplies the venue layout for shows without an override.
type LayoutSource interface {
	GetGlobalLayout(ctx context.Context) (models.SeatLayout, error)
}

type BookingRequest struct {
	ShowID    string         `json:"show_id"`
	SessionID string         `json:"session_id"`
	Seats     []models.Seat  `json:"seats"`
	Holder    models.Holder  `json:"holder"`
	Token     string         `json:"token,omitempty"`
	Channel   models.Channel `json:"-"`
}

type Availability struct {
	ShowID    string            `json:"show_id"`
	SessionID string            `json:"session_id"`
	Layout    models.SeatLayout `json:"layout"`
	Capacity  int               `json:"capacity"`
	Occupied  []models.Seat     `json:"occupied"`
	Available []models.Seat     `json:"available"`
}

type BookingService struct {
	Bun          *bun.DB
	Shows        *showdb.DB
	Reservations *resdb.DB
	Tokens       *tokendb.DB
	Layouts      LayoutSource
	Locker       SeatLocker
	Events       events.Publisher
	Log          *logger.Logger

	HoldWindow time.Duration
	CounterFee float64
	Now        func() time.Time
}

func NewBookingService(bunDB *bun.DB, layouts LayoutSource, locker SeatLocker, publisher events.Publisher, log *logger.Logger) *BookingService {
	if locker == nil {
		locker = NoopLocker{}
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &BookingService{
		Bun:          bunDB,
		Shows:        &showdb.DB{Bun: bunDB},
		Reservations: &resdb.DB{Bun: bunDB},
		Tokens:       &tokendb.DB{Bun: bunDB},
		Layouts:      layouts,
		Locker:       locker,
		Events:       publisher,
		Log:          log,
		HoldWindow:   models.DefaultHoldWindow,
		Now:          time.Now,
	}
}

func (s *BookingService) now() time.Time {
	return s.Now().UTC()
}

func (s *BookingService) loadShowSession(ctx context.Context, showID, sessionID string) (*models.Show, models.SeatLayout, error) {
	show, err := s.Shows.GetShow(ctx, showID)
	if err != nil {
		return nil, nil, err
	}
	if _, ok := show.FindSession(sessionID); !ok {
		return nil, nil, models.ErrSessionNotFound
	}

	var global models.SeatLayout
	if len(show.Layout) == 0 {
		if global, err = s.Layouts.GetGlobalLayout(ctx); err != nil {
			return nil, nil, err
		}
	}
	return show, layout.Resolve(show, global), nil
}

// occupied returns the seats held by active reservations. Expired PENDING
// holds are ignored, never deleted.
func occupied(list []models.Reservation, now time.Time, window time.Duration) map[models.Seat]struct{} {
	taken := make(map[models.Seat]struct{}, len(list))
	for i := range list {
		if models.IsExpired(&list[i], now, window) {
			continue
		}
		taken[list[i].Seat()] = struct{}{}
	}
	return taken
}

// GetAvailableSeats splits the session's layout into free and taken seats.
func (s *BookingService) GetAvailableSeats(ctx context.Context, showID, sessionID string) (*Availability, error) {
	show, seatLayout, err := s.loadShowSession(ctx, showID, sessionID)
	if err != nil {
		return nil, err
	}
	list, err := s.Reservations.ListBySession(ctx, showID, sessionID)
	if err != nil {
		return nil, err
	}
	taken := occupied(list, s.now(), show.HoldWindow(s.HoldWindow))

	all := layout.Expand(seatLayout)
	av := &Availability{
		ShowID:    showID,
		SessionID: sessionID,
		Layout:    seatLayout,
		Capacity:  len(all),
		Occupied:  []models.Seat{},
		Available: make([]models.Seat, 0, len(all)),
	}
	for _, seat := range all {
		if _, ok := taken[seat]; ok {
			av.Occupied = append(av.Occupied, seat)
		} else {
			av.Available = append(av.Available, seat)
		}
	}
	return av, nil
}

func (s *BookingService) validateRequest(req *BookingRequest) error {
	if len(req.Seats) == 0 {
		return models.ErrNoSeatsSelected
	}

	seen := make(map[models.Seat]struct{}, len(req.Seats))
	var dup []models.Seat
	for i := range req.Seats {
		req.Seats[i].Row = layout.RowLabel(req.Seats[i].Row)
		if _, ok := seen[req.Seats[i]]; ok {
			dup = append(dup, req.Seats[i])
		}
		seen[req.Seats[i]] = struct{}{}
	}
	if len(dup) > 0 {
		return &models.SeatConflictError{Seats: dup, Reason: "selected more than once"}
	}

	req.Token = strings.TrimSpace(req.Token)
	switch req.Channel {
	case "", models.ChannelPublic, models.ChannelToken:
		req.Channel = models.ChannelPublic
		if req.Token != "" {
			req.Channel = models.ChannelToken
		}
	case models.ChannelAdmin, models.ChannelCounter:
		if req.Token != "" {
			return fmt.Errorf("%w: invitation tokens are only accepted on public bookings", models.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown channel %q", models.ErrInvalidInput, req.Channel)
	}

	req.Holder.Name = strings.TrimSpace(req.Holder.Name)
	req.Holder.Email = strings.TrimSpace(req.Holder.Email)
	if req.Channel == models.ChannelCounter {
		if req.Holder.Name == "" {
			req.Holder.Name = CounterHolderName
		}
		if req.Holder.Email == "" {
			req.Holder.Email = CounterHolderEmail
		}
	}
	if req.Holder.Name == "" && req.Channel != models.ChannelToken {
		return fmt.Errorf("%w: holder name is required", models.ErrInvalidInput)
	}
	return nil
}

// SubmitBooking reserves every requested seat or none. The occupancy check,
// the inserts and the token quota update share one transaction that first
// takes the show's row lock.
func (s *BookingService) SubmitBooking(ctx context.Context, req BookingRequest) ([]models.IssuedTicket, error) {
	if err := s.validateRequest(&req); err != nil {
		return nil, err
	}

	show, seatLayout, err := s.loadShowSession(ctx, req.ShowID, req.SessionID)
	if err != nil {
		return nil, err
	}
	if !req.Channel.IsStaff() && !show.ReservationsOpen {
		return nil, models.ErrReservationsClosed
	}

	idx := layout.NewIndex(seatLayout)
	var unknown []models.Seat
	for _, seat := range req.Seats {
		if !idx.Contains(seat) {
			unknown = append(unknown, seat)
		}
	}
	if len(unknown) > 0 {
		return nil, &models.SeatConflictError{Seats: unknown, Reason: "not in the seat layout"}
	}

	owner := utils.NewID()
	held, err := s.Locker.LockSeats(ctx, req.ShowID, req.SessionID, req.Seats, owner)
	if err != nil {
		s.Log.Warn("REDIS", fmt.Sprintf("Seat locks unavailable, relying on the database: %v", err))
	} else {
		if len(held) > 0 {
			return nil, &models.SeatConflictError{Seats: held, Reason: "being booked by someone else"}
		}
		defer func() {
			if err := s.Locker.UnlockSeats(context.Background(), req.ShowID, req.SessionID, req.Seats, owner); err != nil {
				s.Log.Warn("REDIS", fmt.Sprintf("Failed to release seat locks: %v", err))
			}
		}()
	}

	var created []models.Reservation
	err = s.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		created, err = s.reserveInTx(ctx, tx, show, req)
		return err
	})
	if err != nil {
		s.Log.LogBooking("REJECTED", req.ShowID, err.Error())
		return nil, err
	}

	s.Log.LogBooking("CREATED", req.ShowID, fmt.Sprintf("%d seats in session %s via %s", len(created), req.SessionID, req.Channel))
	events.Emit(ctx, s.Events, s.Log, models.NewReservationEvent(models.EventReservationCreated, created))

	tickets := make([]models.IssuedTicket, 0, len(created))
	for _, r := range created {
		tickets = append(tickets, models.IssuedTicket{
			ReservationID: r.ID,
			TicketCode:    r.TicketCode,
			Seat:          r.Seat(),
			GroupID:       r.GroupID,
			PaymentStatus: r.PaymentStatus,
			PricePaid:     r.PricePaid,
		})
	}
	return tickets, nil
}

func (s *BookingService) reserveInTx(ctx context.Context, tx bun.Tx, show *models.Show, req BookingRequest) ([]models.Reservation, error) {
	shows := s.Shows.WithTx(tx)
	store := s.Reservations.WithTx(tx)
	tokens := s.Tokens.WithTx(tx)

	if err := shows.LockShow(ctx, show.ID); err != nil {
		return nil, err
	}

	existing, err := store.ListBySession(ctx, show.ID, req.SessionID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	taken := occupied(existing, now, show.HoldWindow(s.HoldWindow))
	var conflicts []models.Seat
	for _, seat := range req.Seats {
		if _, ok := taken[seat]; ok {
			conflicts = append(conflicts, seat)
		}
	}
	if len(conflicts) > 0 {
		return nil, &models.SeatConflictError{Seats: conflicts}
	}

	var token *models.InvitationToken
	if req.Channel == models.ChannelToken {
		token, err = checkToken(ctx, tokens, req)
		if err != nil {
			return nil, err
		}
		if req.Holder.Name == "" {
			req.Holder.Name = token.HolderName
		}
	}

	status, price, fee := s.pricing(show, req.Channel)

	prefix := utils.TicketPrefix
	if req.Channel == models.ChannelCounter {
		prefix = utils.CounterPrefix
	}

	var groupID, className string
	if token != nil && token.IsClass() {
		className = token.ClassName
		if groupID, err = uniqueGroupID(ctx, store); err != nil {
			return nil, err
		}
	}

	var paidAt time.Time
	if status == models.PaymentPaid {
		paidAt = now
	}

	codes := make(map[string]struct{}, len(req.Seats))
	reservations := make([]models.Reservation, 0, len(req.Seats))
	for _, seat := range req.Seats {
		code, err := uniqueTicketCode(ctx, store, prefix, codes)
		if err != nil {
			return nil, err
		}
		codes[code] = struct{}{}

		r := models.Reservation{
			ID:            utils.NewID(),
			ShowID:        show.ID,
			SessionID:     req.SessionID,
			Row:           seat.Row,
			SeatNumber:    seat.Number,
			HolderName:    req.Holder.Name,
			HolderEmail:   req.Holder.Email,
			HolderPhone:   req.Holder.Phone,
			TicketCode:    code,
			PaymentStatus: status,
			PricePaid:     price,
			CounterFee:    fee,
			PaidAt:        paidAt,
			CreatedAt:     now,
			GroupID:       groupID,
			ClassName:     className,
			Channel:       req.Channel,
		}
		if token != nil {
			r.TokenID = token.ID
		}
		reservations = append(reservations, r)
	}

	if err := store.CreateReservations(ctx, reservations); err != nil {
		return nil, err
	}

	if token != nil {
		err := tokens.ConsumeQuota(ctx, token.ID, len(reservations))
		if errors.Is(err, models.ErrInsufficientQuota) {
			return nil, models.ErrQuotaExceeded
		}
		if err != nil {
			return nil, err
		}
	}
	return reservations, nil
}

// checkToken re-validates the token inside the booking transaction.
func checkToken(ctx context.Context, tokens *tokendb.DB, req BookingRequest) (*models.InvitationToken, error) {
	token, err := tokens.GetByToken(ctx, req.Token)
	if err != nil {
		return nil, err
	}
	if token.ShowID != req.ShowID {
		return nil, fmt.Errorf("%w: token belongs to another show", models.ErrInvalidInput)
	}
	if token.SessionID != "" && token.SessionID != req.SessionID {
		return nil, fmt.Errorf("%w: token is restricted to session %s", models.ErrInvalidInput, token.SessionID)
	}
	remaining := token.Remaining()
	if remaining == 0 {
		return nil, fmt.Errorf("%w: %w", models.ErrQuotaExceeded, models.ErrQuotaExhausted)
	}
	if len(req.Seats) > remaining {
		return nil, fmt.Errorf("%w: %d requested, %d left", models.ErrQuotaExceeded, len(req.Seats), remaining)
	}
	return token, nil
}

// pricing decides the initial payment status and amounts per channel.
func (s *BookingService) pricing(show *models.Show, channel models.Channel) (models.PaymentStatus, float64, float64) {
	price := 0.0
	if show.Paid {
		price = show.Price
	}
	switch channel {
	case models.ChannelCounter:
		return models.PaymentPaid, price + s.CounterFee, s.CounterFee
	case models.ChannelAdmin:
		return models.PaymentBypassed, 0, 0
	case models.ChannelToken:
		return models.PaymentExempt, 0, 0
	default:
		return models.PaymentPending, price, 0
	}
}

func uniqueTicketCode(ctx context.Context, store *resdb.DB, prefix string, batch map[string]struct{}) (string, error) {
	for i := 0; i < 5; i++ {
		code := utils.GenerateCode(prefix)
		if _, dup := batch[code]; dup {
			continue
		}
		exists, err := store.TicketCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w: could not generate a unique ticket code", models.ErrStorageUnavailable)
}

func uniqueGroupID(ctx context.Context, store *resdb.DB) (string, error) {
	for i := 0; i < 5; i++ {
		code := utils.GenerateGroupCode()
		exists, err := store.GroupExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w: could not generate a unique group code", models.ErrStorageUnavailable)
}

type CounterSaleRequest struct {
	ShowID    string        `json:"show_id"`
	SessionID string        `json:"session_id"`
	Seats     []models.Seat `json:"seats"`
	Holder    models.Holder `json:"holder"`
}

// SellAtCounter books seats sold in person: already paid, POS- codes,
// ticket price plus the counter fee.
func (s *BookingService) SellAtCounter(ctx context.Context, req CounterSaleRequest) ([]models.IssuedTicket, error) {
	return s.SubmitBooking(ctx, BookingRequest{
		ShowID:    req.ShowID,
		SessionID: req.SessionID,
		Seats:     req.Seats,
		Holder:    req.Holder,
		Channel:   models.ChannelCounter,
	})
}
