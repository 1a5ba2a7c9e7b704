package reservation_api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/models"
	"ms-boxoffice/internal/reservations"
	"ms-boxoffice/internal/utils"
)

type Ledger interface {
	ListBySession(ctx context.Context, showID, sessionID string) ([]reservations.ReservationView, error)
	ListByShow(ctx context.Context, showID string) ([]reservations.ReservationView, error)
	ListByHolderEmail(ctx context.Context, email string) ([]reservations.ReservationView, error)
	GetByTicketCode(ctx context.Context, code string) (*reservations.ReservationView, error)
	MarkPaymentStatus(ctx context.Context, id string, status models.PaymentStatus) (*models.Reservation, error)
	BulkMarkPaid(ctx context.Context, ids []string) (int, error)
	DeleteReservation(ctx context.Context, id string) error
	BulkDelete(ctx context.Context, ids []string) (int, error)
	SetCheckIn(ctx context.Context, id string, checkedIn bool) (*models.Reservation, error)
	BulkCheckIn(ctx context.Context, ids []string) (int, error)
	Stats(ctx context.Context, showID string) (models.DashboardStats, error)
}

type Handler struct {
	Reservations Ledger
	Logger       *logger.Logger
}

func NewHandler(svc Ledger, log *logger.Logger) *Handler {
	return &Handler{Reservations: svc, Logger: log}
}

func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/reservations", h.ListByEmail)
}

func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/shows/{showID}/reservations", h.ListByShow)
	r.Get("/stats", h.Stats)
	r.Route("/reservations", func(r chi.Router) {
		r.Get("/code/{code}", h.GetByCode)
		r.Post("/payment", h.BulkMarkPaid)
		r.Post("/check-in", h.BulkCheckIn)
		r.Post("/delete", h.BulkDelete)
		r.Put("/{reservationID}/payment", h.MarkPaymentStatus)
		r.Put("/{reservationID}/check-in", h.SetCheckIn)
		r.Delete("/{reservationID}", h.Delete)
	})
}

type idsRequest struct {
	IDs []string `json:"ids"`
}

func decodeIDs(r *http.Request) ([]string, error) {
	var req idsRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		return nil, err
	}
	if len(req.IDs) == 0 {
		return nil, fmt.Errorf("%w: ids are required", models.ErrInvalidInput)
	}
	return req.IDs, nil
}

// ListByEmail lets a spectator find their own tickets.
func (h *Handler) ListByEmail(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		utils.WriteError(w, fmt.Errorf("%w: email is required", models.ErrInvalidInput))
		return
	}
	list, err := h.Reservations.ListByHolderEmail(r.Context(), email)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Reservations", list)
}

func (h *Handler) ListByShow(w http.ResponseWriter, r *http.Request) {
	showID := chi.URLParam(r, "showID")
	var (
		list []reservations.ReservationView
		err  error
	)
	if session := r.URL.Query().Get("session"); session != "" {
		list, err = h.Reservations.ListBySession(r.Context(), showID, session)
	} else {
		list, err = h.Reservations.ListByShow(r.Context(), showID)
	}
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Reservations", list)
}

func (h *Handler) GetByCode(w http.ResponseWriter, r *http.Request) {
	view, err := h.Reservations.GetByTicketCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Reservation", view)
}

func (h *Handler) MarkPaymentStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status models.PaymentStatus `json:"status"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	id := chi.URLParam(r, "reservationID")

	res, err := h.Reservations.MarkPaymentStatus(r.Context(), id, req.Status)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("MarkPaymentStatus: reservation=%s status=%s: %v", id, req.Status, err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Payment status updated", res)
}

func (h *Handler) BulkMarkPaid(w http.ResponseWriter, r *http.Request) {
	ids, err := decodeIDs(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	n, err := h.Reservations.BulkMarkPaid(r.Context(), ids)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Reservations marked as paid", map[string]int{"updated": n})
}

func (h *Handler) SetCheckIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CheckedIn bool `json:"checked_in"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	res, err := h.Reservations.SetCheckIn(r.Context(), chi.URLParam(r, "reservationID"), req.CheckedIn)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Check-in updated", res)
}

func (h *Handler) BulkCheckIn(w http.ResponseWriter, r *http.Request) {
	ids, err := decodeIDs(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	n, err := h.Reservations.BulkCheckIn(r.Context(), ids)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Reservations checked in", map[string]int{"updated": n})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Reservations.DeleteReservation(r.Context(), chi.URLParam(r, "reservationID")); err != nil {
		utils.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	ids, err := decodeIDs(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	n, err := h.Reservations.BulkDelete(r.Context(), ids)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Reservations deleted", map[string]int{"deleted": n})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Reservations.Stats(r.Context(), r.URL.Query().Get("show"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Dashboard", stats)
}
