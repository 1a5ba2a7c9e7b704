package booking_api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-boxoffice/internal/booking"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/models"
	"ms-boxoffice/internal/utils"
)

type Booker interface {
	GetAvailableSeats(ctx context.Context, showID, sessionID string) (*booking.Availability, error)
	SubmitBooking(ctx context.Context, req booking.BookingRequest) ([]models.IssuedTicket, error)
	SellAtCounter(ctx context.Context, req booking.CounterSaleRequest) ([]models.IssuedTicket, error)
}

type Handler struct {
	Booking Booker
	Logger  *logger.Logger
}

func NewHandler(svc Booker, log *logger.Logger) *Handler {
	return &Handler{Booking: svc, Logger: log}
}

func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/shows/{showID}/sessions/{sessionID}/seats", h.GetSeats)
	r.Post("/bookings", h.SubmitBooking)
}

func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/bookings", h.AdminBooking)
	r.Post("/counter-sales", h.CounterSale)
}

func (h *Handler) GetSeats(w http.ResponseWriter, r *http.Request) {
	showID := chi.URLParam(r, "showID")
	sessionID := chi.URLParam(r, "sessionID")

	av, err := h.Booking.GetAvailableSeats(r.Context(), showID, sessionID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetSeats: show=%s session=%s: %v", showID, sessionID, err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Seat map", av)
}

func (h *Handler) SubmitBooking(w http.ResponseWriter, r *http.Request) {
	var req booking.BookingRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	req.Channel = models.ChannelPublic
	h.book(w, r, req)
}

func (h *Handler) AdminBooking(w http.ResponseWriter, r *http.Request) {
	var req booking.BookingRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	req.Channel = models.ChannelAdmin
	h.book(w, r, req)
}

func (h *Handler) book(w http.ResponseWriter, r *http.Request, req booking.BookingRequest) {
	h.Logger.Debug("API", fmt.Sprintf("SubmitBooking: show=%s session=%s seats=%v channel=%s", req.ShowID, req.SessionID, req.Seats, req.Channel))

	tickets, err := h.Booking.SubmitBooking(r.Context(), req)
	if err != nil {
		h.writeBookingError(w, r, req.ShowID, req.SessionID, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Booking confirmed", tickets)
}

func (h *Handler) CounterSale(w http.ResponseWriter, r *http.Request) {
	var req booking.CounterSaleRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}

	tickets, err := h.Booking.SellAtCounter(r.Context(), req)
	if err != nil {
		h.writeBookingError(w, r, req.ShowID, req.SessionID, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Counter sale recorded", tickets)
}

// writeBookingError attaches the current seat map to seat and quota
// conflicts so the client can redraw before asking again.
func (h *Handler) writeBookingError(w http.ResponseWriter, r *http.Request, showID, sessionID string, err error) {
	h.Logger.Warn("API", fmt.Sprintf("Booking rejected: show=%s session=%s: %v", showID, sessionID, err))

	if !errors.Is(err, models.ErrSeatUnavailable) && !errors.Is(err, models.ErrQuotaExceeded) {
		utils.WriteError(w, err)
		return
	}

	resp := utils.ErrorResponse("Conflict", err.Error())
	if av, avErr := h.Booking.GetAvailableSeats(r.Context(), showID, sessionID); avErr == nil {
		resp.Data = av
	}
	utils.WriteJSON(w, http.StatusConflict, resp)
}
