package token_api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/models"
	"ms-boxoffice/internal/tokens"
	"ms-boxoffice/internal/utils"
)

type TokenManager interface {
	IssueCastToken(ctx context.Context, req tokens.CastTokenRequest) (*models.InvitationToken, error)
	IssueClassToken(ctx context.Context, req tokens.ClassTokenRequest) (*models.InvitationToken, error)
	RegenerateCastTokens(ctx context.Context, showID, sessionID string) ([]models.InvitationToken, error)
	ValidateToken(ctx context.Context, token string) (models.TokenValidation, error)
	RevokeToken(ctx context.Context, tokenID string) error
	RevokeAllTokensForShow(ctx context.Context, showID string) (int, error)
	ListTokens(ctx context.Context, showID string, kind models.HolderKind) ([]models.InvitationToken, error)
}

type Handler struct {
	Tokens TokenManager
	Logger *logger.Logger
}

func NewHandler(svc TokenManager, log *logger.Logger) *Handler {
	return &Handler{Tokens: svc, Logger: log}
}

func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/tokens/{token}", h.ValidateToken)
}

func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/shows/{showID}/tokens", h.ListTokens)
	r.Delete("/shows/{showID}/tokens", h.RevokeAll)
	r.Post("/shows/{showID}/tokens/cast", h.IssueCastToken)
	r.Post("/shows/{showID}/tokens/class", h.IssueClassToken)
	r.Post("/shows/{showID}/tokens/regenerate", h.RegenerateCastTokens)
	r.Delete("/tokens/{tokenID}", h.RevokeToken)
}

// ValidateToken never fails for unknown or spent tokens; the booking form
// reads Valid and Reason.
func (h *Handler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	v, err := h.Tokens.ValidateToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	if !v.Valid {
		h.Logger.LogSecurity("TOKEN_REJECTED", v.Reason)
	}
	utils.WriteSuccess(w, http.StatusOK, "Token checked", v)
}

func (h *Handler) ListTokens(w http.ResponseWriter, r *http.Request) {
	kind := models.HolderKind(r.URL.Query().Get("kind"))
	list, err := h.Tokens.ListTokens(r.Context(), chi.URLParam(r, "showID"), kind)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Tokens", list)
}

func (h *Handler) IssueCastToken(w http.ResponseWriter, r *http.Request) {
	var req tokens.CastTokenRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	req.ShowID = chi.URLParam(r, "showID")

	token, err := h.Tokens.IssueCastToken(r.Context(), req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("IssueCastToken: %v", err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Cast token issued", token)
}

func (h *Handler) IssueClassToken(w http.ResponseWriter, r *http.Request) {
	var req tokens.ClassTokenRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	req.ShowID = chi.URLParam(r, "showID")

	token, err := h.Tokens.IssueClassToken(r.Context(), req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("IssueClassToken: %v", err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Class token issued", token)
}

func (h *Handler) RegenerateCastTokens(w http.ResponseWriter, r *http.Request) {
	showID := chi.URLParam(r, "showID")
	issued, err := h.Tokens.RegenerateCastTokens(r.Context(), showID, r.URL.Query().Get("session"))
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("RegenerateCastTokens: show=%s: %v", showID, err))
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, fmt.Sprintf("%d cast tokens issued", len(issued)), issued)
}

func (h *Handler) RevokeAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.Tokens.RevokeAllTokensForShow(r.Context(), chi.URLParam(r, "showID"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Tokens revoked", map[string]int{"revoked": n})
}

func (h *Handler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	if err := h.Tokens.RevokeToken(r.Context(), chi.URLParam(r, "tokenID")); err != nil {
		utils.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
