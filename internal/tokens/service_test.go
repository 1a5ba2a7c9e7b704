package tokens

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-boxoffice/internal/database"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/models"
	"ms-boxoffice/internal/shows"
)

type fixture struct {
	svc   *TokenService
	shows *shows.ShowService
	show  *models.Show
}

func setupTestService(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	bunDB, err := database.OpenSQLite(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { bunDB.Close() })

	log := logger.NewDiscard()
	showSvc := shows.NewShowService(bunDB, log)
	show, err := showSvc.CreateShow(ctx, shows.ShowInput{Title: "La casa de Bernarda Alba"})
	require.NoError(t, err)

	return fixture{
		svc:   NewTokenService(bunDB, showSvc, log),
		shows: showSvc,
		show:  show,
	}
}

func TestIssueClassToken(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()

	tok, err := f.svc.IssueClassToken(ctx, ClassTokenRequest{ShowID: f.show.ID, ClassName: "4ºB", SeatCount: 30})
	require.NoError(t, err)
	assert.Equal(t, models.HolderClass, tok.HolderKind)
	assert.Equal(t, 30, tok.QuotaMax)
	assert.Zero(t, tok.QuotaUsed)
	assert.Regexp(t, `^inv_[0-9a-z]+_[0-9a-z]{10}$`, tok.Token)

	def, err := f.svc.IssueClassToken(ctx, ClassTokenRequest{ShowID: f.show.ID, ClassName: "3ºA"})
	require.NoError(t, err)
	assert.Equal(t, 30, def.QuotaMax)

	_, err = f.svc.IssueClassToken(ctx, ClassTokenRequest{ShowID: f.show.ID, ClassName: "x", SeatCount: -1})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = f.svc.IssueClassToken(ctx, ClassTokenRequest{ShowID: "missing", ClassName: "x"})
	assert.ErrorIs(t, err, models.ErrShowNotFound)
}

func TestIssueCastToken_SessionMustExist(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()

	_, err := f.svc.IssueCastToken(ctx, CastTokenRequest{ShowID: f.show.ID, MemberName: "Pepa", SessionID: "nope"})
	assert.ErrorIs(t, err, models.ErrSessionNotFound)

	sess, err := f.shows.AddSession(ctx, f.show.ID, time.Date(2026, 6, 1, 20, 0, 0, 0, time.UTC), "")
	require.NoError(t, err)

	tok, err := f.svc.IssueCastToken(ctx, CastTokenRequest{ShowID: f.show.ID, MemberName: "Pepa", SessionID: sess.ID})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultCastQuota, tok.QuotaMax)
	assert.Equal(t, sess.ID, tok.SessionID)
}

func TestValidateToken(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()

	v, err := f.svc.ValidateToken(ctx, "inv_unknown")
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, models.ReasonTokenNotFound, v.Reason)

	tok, err := f.svc.IssueCastToken(ctx, CastTokenRequest{ShowID: f.show.ID, MemberName: "Adela", Quota: 2})
	require.NoError(t, err)

	v, err = f.svc.ValidateToken(ctx, tok.Token)
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Equal(t, 2, v.RemainingQuota)
	assert.Equal(t, "Adela", v.HolderName)
	assert.False(t, v.IsClass)

	require.NoError(t, f.svc.ConsumeQuota(ctx, tok.ID, 2))

	v, err = f.svc.ValidateToken(ctx, tok.Token)
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, models.ReasonQuotaExhausted, v.Reason)
	assert.Zero(t, v.RemainingQuota)
}

func TestConsumeQuota_Errors(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.ConsumeQuota(ctx, "missing", 1), models.ErrTokenNotFound)

	tok, err := f.svc.IssueCastToken(ctx, CastTokenRequest{ShowID: f.show.ID, MemberName: "Martirio", Quota: 2})
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.ConsumeQuota(ctx, tok.ID, 3), models.ErrInsufficientQuota)
	assert.ErrorIs(t, f.svc.ConsumeQuota(ctx, tok.ID, 0), models.ErrInvalidInput)

	got, err := f.svc.DB.GetByID(ctx, tok.ID)
	require.NoError(t, err)
	assert.Zero(t, got.QuotaUsed)
}

func TestConsumeQuota_ConcurrentNeverOvershoots(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()

	const quota, callers = 3, 12
	tok, err := f.svc.IssueCastToken(ctx, CastTokenRequest{ShowID: f.show.ID, MemberName: "Angustias", Quota: quota})
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := f.svc.ConsumeQuota(ctx, tok.ID, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, models.ErrInsufficientQuota):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, quota, succeeded)
	assert.Equal(t, callers-quota, rejected)

	got, err := f.svc.DB.GetByID(ctx, tok.ID)
	require.NoError(t, err)
	assert.Equal(t, quota, got.QuotaUsed)
}

func TestRevokeToken_Idempotent(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()
	tok, err := f.svc.IssueCastToken(ctx, CastTokenRequest{ShowID: f.show.ID, MemberName: "Magdalena"})
	require.NoError(t, err)

	require.NoError(t, f.svc.RevokeToken(ctx, tok.ID))
	require.NoError(t, f.svc.RevokeToken(ctx, tok.ID))

	v, err := f.svc.ValidateToken(ctx, tok.Token)
	require.NoError(t, err)
	assert.False(t, v.Valid)
}

func TestRegenerateCastTokens(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()

	for _, name := range []string{"Bernarda", "Poncia"} {
		m, err := f.shows.CreateMember(ctx, name, "actor", "")
		require.NoError(t, err)
		_, err = f.shows.AddParticipation(ctx, f.show.ID, m.ID, name)
		require.NoError(t, err)
	}
	old, err := f.svc.IssueCastToken(ctx, CastTokenRequest{ShowID: f.show.ID, MemberName: "Bernarda"})
	require.NoError(t, err)
	class, err := f.svc.IssueClassToken(ctx, ClassTokenRequest{ShowID: f.show.ID, ClassName: "2ºC", SeatCount: 20})
	require.NoError(t, err)

	issued, err := f.svc.RegenerateCastTokens(ctx, f.show.ID, "")
	require.NoError(t, err)
	require.Len(t, issued, 2)
	assert.NotEqual(t, issued[0].Token, issued[1].Token)

	_, err = f.svc.DB.GetByID(ctx, old.ID)
	assert.ErrorIs(t, err, models.ErrTokenNotFound)
	_, err = f.svc.DB.GetByID(ctx, class.ID)
	assert.NoError(t, err)

	cast, err := f.svc.ListTokens(ctx, f.show.ID, models.HolderCastMember)
	require.NoError(t, err)
	assert.Len(t, cast, 2)
}

func TestRevokeAllTokensForShow(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()
	_, err := f.svc.IssueCastToken(ctx, CastTokenRequest{ShowID: f.show.ID, MemberName: "Amelia"})
	require.NoError(t, err)
	_, err = f.svc.IssueClassToken(ctx, ClassTokenRequest{ShowID: f.show.ID, ClassName: "1ºA"})
	require.NoError(t, err)

	n, err := f.svc.RevokeAllTokensForShow(ctx, f.show.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err := f.svc.ListTokens(ctx, f.show.ID, "")
	require.NoError(t, err)
	assert.Empty(t, all)
}
