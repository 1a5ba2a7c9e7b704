package shows

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"ms-boxoffice/internal/layout"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/models"
	"ms-boxoffice/internal/shows/db"
	"ms-boxoffice/internal/utils"
)

// ShowInput carries the staff-editable fields of a show.
type ShowInput struct {
	Title               string `json:"title"`
	Author              string `json:"author"`
	Synopsis            string `json:"synopsis"`
	Year                int    `json:"year"`
	Draft               bool   `json:"draft"`
	ReservationsOpen    bool   `json:"reservations_open"`
	ReservationRequired bool   `json:"reservation_required"`
	// RequiresTicket is the older name of ReservationRequired, still sent by
	// some clients.
	RequiresTicket bool                `json:"requires_ticket,omitempty"`
	Paid           bool                `json:"paid"`
	Price          float64             `json:"price"`
	PaymentPlace   string              `json:"payment_place"`
	HoldHours      int                 `json:"hold_hours"`
	TicketConfig   models.TicketConfig `json:"ticket_config"`
}

func (in ShowInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", models.ErrInvalidInput)
	}
	if in.Price < 0 || in.HoldHours < 0 || in.TicketConfig.CastQuota < 0 {
		return fmt.Errorf("%w: price, hold hours and cast quota must not be negative", models.ErrInvalidInput)
	}
	return nil
}

type ShowService struct {
	Bun *bun.DB
	DB  *db.DB
	Log *logger.Logger
}

func NewShowService(bunDB *bun.DB, log *logger.Logger) *ShowService {
	return &ShowService{Bun: bunDB, DB: &db.DB{Bun: bunDB}, Log: log}
}

func (s *ShowService) inTx(ctx context.Context, fn func(ctx context.Context, store *db.DB) error) error {
	return s.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, s.DB.WithTx(tx))
	})
}

// ---------------- SHOWS ----------------

func (s *ShowService) CreateShow(ctx context.Context, in ShowInput) (*models.Show, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	show := &models.Show{
		ID:        utils.NewID(),
		Sessions:  []models.Session{},
		CreatedAt: time.Now().UTC(),
	}
	applyInput(show, in)

	if err := s.DB.CreateShow(ctx, show); err != nil {
		return nil, err
	}
	s.Log.LogDatabase("INSERT", "shows", fmt.Sprintf("created show %s (%s)", show.ID, show.Title))
	return show, nil
}

func applyInput(show *models.Show, in ShowInput) {
	show.Title = strings.TrimSpace(in.Title)
	show.Author = in.Author
	show.Synopsis = in.Synopsis
	show.Year = in.Year
	show.Draft = in.Draft
	show.ReservationsOpen = in.ReservationsOpen
	show.ReservationRequired = in.ReservationRequired || in.RequiresTicket || in.ReservationsOpen
	show.Paid = in.Paid
	show.Price = in.Price
	show.PaymentPlace = in.PaymentPlace
	show.HoldHours = in.HoldHours
	show.TicketConfig = in.TicketConfig
}

func (s *ShowService) GetShow(ctx context.Context, id string) (*models.Show, error) {
	return s.DB.GetShow(ctx, id)
}

func (s *ShowService) ListShows(ctx context.Context, includeDrafts bool) ([]models.Show, error) {
	return s.DB.ListShows(ctx, includeDrafts)
}

func (s *ShowService) GetOnBill(ctx context.Context) (*models.Show, error) {
	return s.DB.GetOnBill(ctx)
}

func (s *ShowService) UpdateShow(ctx context.Context, id string, in ShowInput) (*models.Show, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	show, err := s.DB.GetShow(ctx, id)
	if err != nil {
		return nil, err
	}
	applyInput(show, in)
	show.UpdatedAt = time.Now().UTC()

	if err := s.DB.UpdateShow(ctx, show); err != nil {
		return nil, err
	}
	return show, nil
}

// DeleteShow removes the show together with its cast participations.
// Reservations and tokens stay until staff delete them.
func (s *ShowService) DeleteShow(ctx context.Context, id string) error {
	return s.inTx(ctx, func(ctx context.Context, store *db.DB) error {
		n, err := store.DeleteParticipationsForShow(ctx, id)
		if err != nil {
			return err
		}
		if err := store.DeleteShow(ctx, id); err != nil {
			return err
		}
		s.Log.LogDatabase("DELETE", "shows", fmt.Sprintf("deleted show %s and %d participations", id, n))
		return nil
	})
}

// SetOnBill puts one show on the bill and takes every other show off it,
// in a single transaction.
func (s *ShowService) SetOnBill(ctx context.Context, id string) error {
	return s.inTx(ctx, func(ctx context.Context, store *db.DB) error {
		if err := store.SetOnBill(ctx, id, true); err != nil {
			return err
		}
		return store.ClearOnBill(ctx, id)
	})
}

func (s *ShowService) RemoveFromBill(ctx context.Context, id string) error {
	return s.DB.SetOnBill(ctx, id, false)
}

// ---------------- SESSIONS ----------------

func (s *ShowService) AddSession(ctx context.Context, showID string, startsAt time.Time, venue string) (*models.Session, error) {
	if startsAt.IsZero() {
		return nil, fmt.Errorf("%w: session start time is required", models.ErrInvalidInput)
	}
	session := models.Session{
		ID:       "session_" + utils.NewID()[:8],
		StartsAt: startsAt.UTC(),
		Venue:    venue,
	}

	err := s.inTx(ctx, func(ctx context.Context, store *db.DB) error {
		show, err := store.GetShow(ctx, showID)
		if err != nil {
			return err
		}
		show.Sessions = append(show.Sessions, session)
		sort.SliceStable(show.Sessions, func(i, j int) bool {
			return show.Sessions[i].StartsAt.Before(show.Sessions[j].StartsAt)
		})
		show.UpdatedAt = time.Now().UTC()
		return store.UpdateSessions(ctx, show)
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *ShowService) RemoveSession(ctx context.Context, showID, sessionID string) error {
	return s.inTx(ctx, func(ctx context.Context, store *db.DB) error {
		show, err := store.GetShow(ctx, showID)
		if err != nil {
			return err
		}
		kept := show.Sessions[:0]
		for _, sess := range show.Sessions {
			if sess.ID != sessionID {
				kept = append(kept, sess)
			}
		}
		if len(kept) == len(show.Sessions) {
			return models.ErrSessionNotFound
		}
		show.Sessions = kept
		show.UpdatedAt = time.Now().UTC()
		return store.UpdateSessions(ctx, show)
	})
}

// ---------------- LAYOUTS ----------------

// GetGlobalLayout returns the saved venue layout, or the default one when
// staff never saved a layout.
func (s *ShowService) GetGlobalLayout(ctx context.Context) (models.SeatLayout, error) {
	cfg, err := s.DB.GetLayoutConfig(ctx, models.GlobalLayoutKey)
	if errors.Is(err, models.ErrNotFound) {
		return layout.Default(), nil
	}
	if err != nil {
		return nil, err
	}
	return cfg.Rows, nil
}

func (s *ShowService) SaveGlobalLayout(ctx context.Context, rows models.SeatLayout) error {
	if err := layout.Validate(rows); err != nil {
		return err
	}
	cfg := &models.LayoutConfig{
		Key:       models.GlobalLayoutKey,
		Rows:      layout.Normalize(rows),
		UpdatedAt: time.Now().UTC(),
	}
	return s.inTx(ctx, func(ctx context.Context, store *db.DB) error {
		return store.SaveLayoutConfig(ctx, cfg)
	})
}

// SetShowLayout stores a per-show override. An empty layout removes it.
func (s *ShowService) SetShowLayout(ctx context.Context, showID string, rows models.SeatLayout) error {
	if err := layout.Validate(rows); err != nil {
		return err
	}
	show := &models.Show{ID: showID, Layout: layout.Normalize(rows), UpdatedAt: time.Now().UTC()}
	return s.DB.UpdateLayout(ctx, show)
}

// ResolveLayout is the layout bookings for this show are checked against.
func (s *ShowService) ResolveLayout(ctx context.Context, show *models.Show) (models.SeatLayout, error) {
	if len(show.Layout) > 0 {
		return layout.Resolve(show, nil), nil
	}
	global, err := s.GetGlobalLayout(ctx)
	if err != nil {
		return nil, err
	}
	return layout.Resolve(show, global), nil
}

// ---------------- MEMBERS & CAST ----------------

func (s *ShowService) CreateMember(ctx context.Context, name, role, bio string) (*models.Member, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: member name is required", models.ErrInvalidInput)
	}
	member := &models.Member{
		ID:        utils.NewID(),
		Name:      strings.TrimSpace(name),
		Role:      role,
		Bio:       bio,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.DB.CreateMember(ctx, member); err != nil {
		return nil, err
	}
	return member, nil
}

func (s *ShowService) ListMembers(ctx context.Context) ([]models.Member, error) {
	return s.DB.ListMembers(ctx)
}

func (s *ShowService) UpdateMember(ctx context.Context, member *models.Member) error {
	if strings.TrimSpace(member.Name) == "" {
		return fmt.Errorf("%w: member name is required", models.ErrInvalidInput)
	}
	return s.DB.UpdateMember(ctx, member)
}

func (s *ShowService) DeleteMember(ctx context.Context, id string) error {
	return s.inTx(ctx, func(ctx context.Context, store *db.DB) error {
		if err := store.DeleteParticipationsForMember(ctx, id); err != nil {
			return err
		}
		return store.DeleteMember(ctx, id)
	})
}

func (s *ShowService) AddParticipation(ctx context.Context, showID, memberID, character string) (*models.Participation, error) {
	if _, err := s.DB.GetShow(ctx, showID); err != nil {
		return nil, err
	}
	member, err := s.DB.GetMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	p := &models.Participation{
		ID:        utils.NewID(),
		ShowID:    showID,
		MemberID:  memberID,
		Character: character,
	}
	if err := s.DB.AddParticipation(ctx, p); err != nil {
		return nil, err
	}
	p.Member = member
	return p, nil
}

func (s *ShowService) RemoveParticipation(ctx context.Context, id string) error {
	return s.DB.RemoveParticipation(ctx, id)
}

func (s *ShowService) ListCast(ctx context.Context, showID string) ([]models.Participation, error) {
	return s.DB.ListParticipations(ctx, showID)
}
