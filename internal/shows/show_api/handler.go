package show_api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/models"
	"ms-boxoffice/internal/shows"
	"ms-boxoffice/internal/utils"
)

type Catalogue interface {
	CreateShow(ctx context.Context, in shows.ShowInput) (*models.Show, error)
	GetShow(ctx context.Context, id string) (*models.Show, error)
	ListShows(ctx context.Context, includeDrafts bool) ([]models.Show, error)
	GetOnBill(ctx context.Context) (*models.Show, error)
	UpdateShow(ctx context.Context, id string, in shows.ShowInput) (*models.Show, error)
	DeleteShow(ctx context.Context, id string) error
	SetOnBill(ctx context.Context, id string) error
	RemoveFromBill(ctx context.Context, id string) error
	AddSession(ctx context.Context, showID string, startsAt time.Time, venue string) (*models.Session, error)
	RemoveSession(ctx context.Context, showID, sessionID string) error
	GetGlobalLayout(ctx context.Context) (models.SeatLayout, error)
	SaveGlobalLayout(ctx context.Context, rows models.SeatLayout) error
	SetShowLayout(ctx context.Context, showID string, rows models.SeatLayout) error
	ResolveLayout(ctx context.Context, show *models.Show) (models.SeatLayout, error)
	CreateMember(ctx context.Context, name, role, bio string) (*models.Member, error)
	ListMembers(ctx context.Context) ([]models.Member, error)
	UpdateMember(ctx context.Context, member *models.Member) error
	DeleteMember(ctx context.Context, id string) error
	AddParticipation(ctx context.Context, showID, memberID, character string) (*models.Participation, error)
	RemoveParticipation(ctx context.Context, id string) error
	ListCast(ctx context.Context, showID string) ([]models.Participation, error)
}

type Handler struct {
	Shows  Catalogue
	Logger *logger.Logger
}

func NewHandler(svc Catalogue, log *logger.Logger) *Handler {
	return &Handler{Shows: svc, Logger: log}
}

func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/shows", h.ListPublished)
	r.Get("/shows/on-bill", h.GetOnBill)
	r.Get("/shows/{showID}", h.GetPublished)
	r.Get("/shows/{showID}/cast", h.ListCast)
}

func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/shows", h.ListAll)
	r.Post("/shows", h.CreateShow)
	r.Get("/shows/{showID}", h.GetShow)
	r.Put("/shows/{showID}", h.UpdateShow)
	r.Delete("/shows/{showID}", h.DeleteShow)
	r.Post("/shows/{showID}/on-bill", h.SetOnBill)
	r.Delete("/shows/{showID}/on-bill", h.RemoveFromBill)
	r.Post("/shows/{showID}/sessions", h.AddSession)
	r.Delete("/shows/{showID}/sessions/{sessionID}", h.RemoveSession)
	r.Put("/shows/{showID}/layout", h.SetShowLayout)
	r.Get("/shows/{showID}/cast", h.ListCast)
	r.Post("/shows/{showID}/cast", h.AddParticipation)
	r.Get("/layout", h.GetGlobalLayout)
	r.Put("/layout", h.SaveGlobalLayout)
	r.Delete("/participations/{participationID}", h.RemoveParticipation)
	r.Route("/members", func(r chi.Router) {
		r.Get("/", h.ListMembers)
		r.Post("/", h.CreateMember)
		r.Put("/{memberID}", h.UpdateMember)
		r.Delete("/{memberID}", h.DeleteMember)
	})
}

// ---------------- PUBLIC ----------------

func (h *Handler) ListPublished(w http.ResponseWriter, r *http.Request) {
	list, err := h.Shows.ListShows(r.Context(), false)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Shows", list)
}

func (h *Handler) GetOnBill(w http.ResponseWriter, r *http.Request) {
	show, err := h.Shows.GetOnBill(r.Context())
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	h.writeWithLayout(w, r, show)
}

// GetPublished hides drafts from the public site.
func (h *Handler) GetPublished(w http.ResponseWriter, r *http.Request) {
	show, err := h.Shows.GetShow(r.Context(), chi.URLParam(r, "showID"))
	if err == nil && show.Draft {
		err = models.ErrShowNotFound
	}
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	h.writeWithLayout(w, r, show)
}

func (h *Handler) writeWithLayout(w http.ResponseWriter, r *http.Request, show *models.Show) {
	rows, err := h.Shows.ResolveLayout(r.Context(), show)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	show.Layout = rows
	utils.WriteSuccess(w, http.StatusOK, show.Title, show)
}

func (h *Handler) ListCast(w http.ResponseWriter, r *http.Request) {
	cast, err := h.Shows.ListCast(r.Context(), chi.URLParam(r, "showID"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Cast", cast)
}

// ---------------- SHOWS ----------------

func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	list, err := h.Shows.ListShows(r.Context(), true)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Shows", list)
}

func (h *Handler) GetShow(w http.ResponseWriter, r *http.Request) {
	show, err := h.Shows.GetShow(r.Context(), chi.URLParam(r, "showID"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, show.Title, show)
}

func (h *Handler) CreateShow(w http.ResponseWriter, r *http.Request) {
	var in shows.ShowInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteError(w, err)
		return
	}
	show, err := h.Shows.CreateShow(r.Context(), in)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateShow: %v", err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Show created", show)
}

func (h *Handler) UpdateShow(w http.ResponseWriter, r *http.Request) {
	var in shows.ShowInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteError(w, err)
		return
	}
	show, err := h.Shows.UpdateShow(r.Context(), chi.URLParam(r, "showID"), in)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Show updated", show)
}

func (h *Handler) DeleteShow(w http.ResponseWriter, r *http.Request) {
	if err := h.Shows.DeleteShow(r.Context(), chi.URLParam(r, "showID")); err != nil {
		utils.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SetOnBill(w http.ResponseWriter, r *http.Request) {
	if err := h.Shows.SetOnBill(r.Context(), chi.URLParam(r, "showID")); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Show is on the bill", nil)
}

func (h *Handler) RemoveFromBill(w http.ResponseWriter, r *http.Request) {
	if err := h.Shows.RemoveFromBill(r.Context(), chi.URLParam(r, "showID")); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Show removed from the bill", nil)
}

// ---------------- SESSIONS & LAYOUT ----------------

type sessionRequest struct {
	StartsAt time.Time `json:"starts_at"`
	Venue    string    `json:"venue"`
}

func (h *Handler) AddSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	session, err := h.Shows.AddSession(r.Context(), chi.URLParam(r, "showID"), req.StartsAt, req.Venue)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Session added", session)
}

func (h *Handler) RemoveSession(w http.ResponseWriter, r *http.Request) {
	err := h.Shows.RemoveSession(r.Context(), chi.URLParam(r, "showID"), chi.URLParam(r, "sessionID"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetGlobalLayout(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Shows.GetGlobalLayout(r.Context())
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Venue layout", rows)
}

func (h *Handler) SaveGlobalLayout(w http.ResponseWriter, r *http.Request) {
	var rows models.SeatLayout
	if err := utils.DecodeJSON(r, &rows); err != nil {
		utils.WriteError(w, err)
		return
	}
	if err := h.Shows.SaveGlobalLayout(r.Context(), rows); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Venue layout saved", nil)
}

func (h *Handler) SetShowLayout(w http.ResponseWriter, r *http.Request) {
	var rows models.SeatLayout
	if err := utils.DecodeJSON(r, &rows); err != nil {
		utils.WriteError(w, err)
		return
	}
	if err := h.Shows.SetShowLayout(r.Context(), chi.URLParam(r, "showID"), rows); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Show layout saved", nil)
}

// ---------------- MEMBERS & CAST ----------------

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	list, err := h.Shows.ListMembers(r.Context())
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Members", list)
}

func (h *Handler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var m models.Member
	if err := utils.DecodeJSON(r, &m); err != nil {
		utils.WriteError(w, err)
		return
	}
	member, err := h.Shows.CreateMember(r.Context(), m.Name, m.Role, m.Bio)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Member created", member)
}

func (h *Handler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	var m models.Member
	if err := utils.DecodeJSON(r, &m); err != nil {
		utils.WriteError(w, err)
		return
	}
	m.ID = chi.URLParam(r, "memberID")
	if err := h.Shows.UpdateMember(r.Context(), &m); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Member updated", m)
}

func (h *Handler) DeleteMember(w http.ResponseWriter, r *http.Request) {
	if err := h.Shows.DeleteMember(r.Context(), chi.URLParam(r, "memberID")); err != nil {
		utils.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type participationRequest struct {
	MemberID  string `json:"member_id"`
	Character string `json:"character"`
}

func (h *Handler) AddParticipation(w http.ResponseWriter, r *http.Request) {
	var req participationRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	p, err := h.Shows.AddParticipation(r.Context(), chi.URLParam(r, "showID"), req.MemberID, req.Character)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Cast member added", p)
}

func (h *Handler) RemoveParticipation(w http.ResponseWriter, r *http.Request) {
	if err := h.Shows.RemoveParticipation(r.Context(), chi.URLParam(r, "participationID")); err != nil {
		utils.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
