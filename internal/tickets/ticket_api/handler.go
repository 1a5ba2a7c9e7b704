package ticket_api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/reservations"
	"ms-boxoffice/internal/tickets/qr"
	"ms-boxoffice/internal/utils"
)

type TicketLookup interface {
	GetByTicketCode(ctx context.Context, code string) (*reservations.ReservationView, error)
}

type Handler struct {
	Tickets     TicketLookup
	QRGenerator *qr.Generator
	Logger      *logger.Logger
}

func NewHandler(lookup TicketLookup, log *logger.Logger) *Handler {
	return &Handler{Tickets: lookup, QRGenerator: qr.NewGenerator(qr.DefaultSize), Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/tickets/{code}/qr", h.TicketQR)
}

// TicketQR renders the QR for an issued ticket or group code. Unknown ticket
// codes get a 404 so the endpoint is not a generic QR service.
func (h *Handler) TicketQR(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	if !utils.IsGroupCode(code) {
		if _, err := h.Tickets.GetByTicketCode(r.Context(), code); err != nil {
			utils.WriteError(w, err)
			return
		}
	}

	png, err := h.QRGenerator.PNG(code)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("TicketQR: %v", err))
		utils.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
