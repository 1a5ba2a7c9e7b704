package checkin_api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"ms-boxoffice/internal/checkin"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/models"
	"ms-boxoffice/internal/utils"
)

type Validator interface {
	ValidateEntry(ctx context.Context, code string) (checkin.Outcome, error)
	ValidateEntryOverride(ctx context.Context, code string) (checkin.Outcome, error)
}

type Handler struct {
	CheckIn Validator
	Logger  *logger.Logger
}

func NewHandler(svc Validator, log *logger.Logger) *Handler {
	return &Handler{CheckIn: svc, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/entry", h.ValidateEntry)
}

type entryRequest struct {
	Code     string `json:"code"`
	Override bool   `json:"override"`
}

// ValidateEntry answers 200 for every admission outcome; the scanner reads
// the kind. Only storage trouble turns into an error status.
func (h *Handler) ValidateEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		utils.WriteError(w, fmt.Errorf("%w: code is required", models.ErrInvalidInput))
		return
	}

	validate := h.CheckIn.ValidateEntry
	if req.Override {
		h.Logger.LogSecurity("ENTRY_OVERRIDE", fmt.Sprintf("door override requested for %s", req.Code))
		validate = h.CheckIn.ValidateEntryOverride
	}

	out, err := validate(r.Context(), req.Code)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ValidateEntry: %v", err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, string(out.Kind), out)
}
