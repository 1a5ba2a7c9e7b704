package tokens

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/models"
	"ms-boxoffice/internal/tokens/db"
	"ms-boxoffice/internal/utils"
)

// ShowReader is the part of the show catalogue token issuance needs.
type ShowReader interface {
	GetShow(ctx context.Context, id string) (*models.Show, error)
	ListCast(ctx context.Context, showID string) ([]models.Participation, error)
}

type CastTokenRequest struct {
	ShowID     string `json:"show_id"`
	MemberID   string `json:"member_id"`
	MemberName string `json:"member_name"`
	Quota      int    `json:"quota"`
	SessionID  string `json:"session_id,omitempty"`
}

type ClassTokenRequest struct {
	ShowID    string `json:"show_id"`
	ClassName string `json:"class_name"`
	SeatCount int    `json:"seat_count"`
	SessionID string `json:"session_id,omitempty"`
}

type TokenService struct {
	Bun   *bun.DB
	DB    *db.DB
	Shows ShowReader
	Log   *logger.Logger

	DefaultCastQuota  int
	DefaultClassSeats int
}

func NewTokenService(bunDB *bun.DB, shows ShowReader, log *logger.Logger) *TokenService {
	return &TokenService{
		Bun:               bunDB,
		DB:                &db.DB{Bun: bunDB},
		Shows:             shows,
		Log:               log,
		DefaultCastQuota:  models.DefaultCastQuota,
		DefaultClassSeats: 30,
	}
}

func (s *TokenService) showAndSession(ctx context.Context, showID, sessionID string) (*models.Show, error) {
	show, err := s.Shows.GetShow(ctx, showID)
	if err != nil {
		return nil, err
	}
	if sessionID != "" {
		if _, ok := show.FindSession(sessionID); !ok {
			return nil, models.ErrSessionNotFound
		}
	}
	return show, nil
}

// newTokenString draws token strings until one is unused, both in storage
// and in the batch being built.
func newTokenString(ctx context.Context, store *db.DB, batch map[string]struct{}) (string, error) {
	for i := 0; i < 5; i++ {
		candidate := utils.GenerateInvitationToken()
		if _, dup := batch[candidate]; dup {
			continue
		}
		exists, err := store.TokenExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: could not generate a unique token", models.ErrStorageUnavailable)
}

func (s *TokenService) IssueCastToken(ctx context.Context, req CastTokenRequest) (*models.InvitationToken, error) {
	show, err := s.showAndSession(ctx, req.ShowID, req.SessionID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.MemberName) == "" {
		return nil, fmt.Errorf("%w: member name is required", models.ErrInvalidInput)
	}
	quota := req.Quota
	if quota == 0 {
		quota = show.CastQuota(s.DefaultCastQuota)
	}
	if quota < 1 {
		return nil, fmt.Errorf("%w: quota must be at least 1", models.ErrInvalidInput)
	}

	token := &models.InvitationToken{
		ID:         utils.NewID(),
		ShowID:     show.ID,
		SessionID:  req.SessionID,
		HolderKind: models.HolderCastMember,
		HolderName: strings.TrimSpace(req.MemberName),
		MemberID:   req.MemberID,
		QuotaMax:   quota,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.insert(ctx, token); err != nil {
		return nil, err
	}
	s.Log.Info("TOKENS", fmt.Sprintf("Issued cast token for %s on show %s (quota %d)", token.HolderName, show.ID, quota))
	return token, nil
}

func (s *TokenService) IssueClassToken(ctx context.Context, req ClassTokenRequest) (*models.InvitationToken, error) {
	show, err := s.showAndSession(ctx, req.ShowID, req.SessionID)
	if err != nil {
		return nil, err
	}
	className := strings.TrimSpace(req.ClassName)
	if className == "" {
		return nil, fmt.Errorf("%w: class name is required", models.ErrInvalidInput)
	}
	seats := req.SeatCount
	if seats == 0 {
		seats = s.DefaultClassSeats
	}
	if seats < 1 {
		return nil, fmt.Errorf("%w: seat count must be at least 1", models.ErrInvalidInput)
	}

	token := &models.InvitationToken{
		ID:         utils.NewID(),
		ShowID:     show.ID,
		SessionID:  req.SessionID,
		HolderKind: models.HolderClass,
		HolderName: className,
		ClassName:  className,
		QuotaMax:   seats,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.insert(ctx, token); err != nil {
		return nil, err
	}
	s.Log.Info("TOKENS", fmt.Sprintf("Issued class token for %s on show %s (%d seats)", className, show.ID, seats))
	return token, nil
}

func (s *TokenService) insert(ctx context.Context, token *models.InvitationToken) error {
	return s.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		store := s.DB.WithTx(tx)
		str, err := newTokenString(ctx, store, nil)
		if err != nil {
			return err
		}
		token.Token = str
		return store.CreateToken(ctx, token)
	})
}

// RegenerateCastTokens replaces every cast token of the show with a fresh
// one per cast member. The revocation is committed before issuing starts.
func (s *TokenService) RegenerateCastTokens(ctx context.Context, showID, sessionID string) ([]models.InvitationToken, error) {
	show, err := s.showAndSession(ctx, showID, sessionID)
	if err != nil {
		return nil, err
	}
	cast, err := s.Shows.ListCast(ctx, showID)
	if err != nil {
		return nil, err
	}

	revoked, err := s.DB.DeleteByShow(ctx, showID, models.HolderCastMember)
	if err != nil {
		return nil, err
	}

	quota := show.CastQuota(s.DefaultCastQuota)
	issued := make([]models.InvitationToken, 0, len(cast))
	err = s.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		store := s.DB.WithTx(tx)
		seen := make(map[string]struct{}, len(cast))
		for _, p := range cast {
			str, err := newTokenString(ctx, store, seen)
			if err != nil {
				return err
			}
			seen[str] = struct{}{}

			name := p.MemberID
			if p.Member != nil {
				name = p.Member.Name
			}
			issued = append(issued, models.InvitationToken{
				ID:         utils.NewID(),
				Token:      str,
				ShowID:     showID,
				SessionID:  sessionID,
				HolderKind: models.HolderCastMember,
				HolderName: name,
				MemberID:   p.MemberID,
				QuotaMax:   quota,
				CreatedAt:  time.Now().UTC(),
			})
		}
		return store.CreateTokens(ctx, issued)
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("TOKENS", fmt.Sprintf("Regenerated cast tokens for show %s: revoked %d, issued %d", showID, revoked, len(issued)))
	return issued, nil
}

// ValidateToken is read-only. Unknown and exhausted tokens come back as
// Valid=false with a reason; only storage failures are errors.
func (s *TokenService) ValidateToken(ctx context.Context, token string) (models.TokenValidation, error) {
	t, err := s.DB.GetByToken(ctx, strings.TrimSpace(token))
	if errors.Is(err, models.ErrNotFound) {
		return models.TokenValidation{Valid: false, Reason: models.ReasonTokenNotFound}, nil
	}
	if err != nil {
		return models.TokenValidation{}, err
	}
	return Describe(t), nil
}

// Describe builds the validation view of a loaded token.
func Describe(t *models.InvitationToken) models.TokenValidation {
	v := models.TokenValidation{
		Valid:              true,
		TokenID:            t.ID,
		ShowID:             t.ShowID,
		RemainingQuota:     t.Remaining(),
		SessionRestriction: t.SessionID,
		HolderName:         t.HolderName,
		IsClass:            t.IsClass(),
	}
	if v.RemainingQuota == 0 {
		v.Valid = false
		v.Reason = models.ReasonQuotaExhausted
	}
	return v
}

func (s *TokenService) ConsumeQuota(ctx context.Context, tokenID string, count int) error {
	if count < 1 {
		return fmt.Errorf("%w: count must be at least 1", models.ErrInvalidInput)
	}
	return s.DB.ConsumeQuota(ctx, tokenID, count)
}

func (s *TokenService) RevokeToken(ctx context.Context, tokenID string) error {
	return s.DB.Delete(ctx, tokenID)
}

func (s *TokenService) RevokeAllTokensForShow(ctx context.Context, showID string) (int, error) {
	n, err := s.DB.DeleteByShow(ctx, showID, "")
	if err != nil {
		return 0, err
	}
	s.Log.Info("TOKENS", fmt.Sprintf("Revoked %d tokens for show %s", n, showID))
	return n, nil
}

func (s *TokenService) ListTokens(ctx context.Context, showID string, kind models.HolderKind) ([]models.InvitationToken, error) {
	return s.DB.ListByShow(ctx, showID, kind)
}
