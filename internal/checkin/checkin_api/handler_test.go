package checkin_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-boxoffice/internal/checkin"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/models"
)

type MockValidator struct {
	mock.Mock
}

func (m *MockValidator) ValidateEntry(ctx context.Context, code string) (checkin.Outcome, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(checkin.Outcome), args.Error(1)
}

func (m *MockValidator) ValidateEntryOverride(ctx context.Context, code string) (checkin.Outcome, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(checkin.Outcome), args.Error(1)
}

func setupRouter(svc *MockValidator) http.Handler {
	r := chi.NewRouter()
	NewHandler(svc, logger.NewDiscard()).RegisterRoutes(r)
	return r
}

func post(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/entry", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestValidateEntryHandler(t *testing.T) {
	t.Run("Outcomes are 200", func(t *testing.T) {
		svc := new(MockValidator)
		svc.On("ValidateEntry", mock.Anything, "TKT-AAAA2222").
			Return(checkin.Outcome{Kind: checkin.OutcomePaymentPending, Code: "TKT-AAAA2222"}, nil)

		w, resp := post(t, setupRouter(svc), `{"code":"TKT-AAAA2222"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "PAYMENT_PENDING", resp["message"])
		svc.AssertExpectations(t)
	})

	t.Run("Override uses the override path", func(t *testing.T) {
		svc := new(MockValidator)
		svc.On("ValidateEntryOverride", mock.Anything, "TKT-AAAA2222").
			Return(checkin.Outcome{Kind: checkin.OutcomeSuccess, ValidatedCount: 1}, nil)

		w, resp := post(t, setupRouter(svc), `{"code":"TKT-AAAA2222","override":true}`)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "SUCCESS", resp["message"])
		svc.AssertNotCalled(t, "ValidateEntry", mock.Anything, mock.Anything)
	})

	t.Run("Missing code", func(t *testing.T) {
		svc := new(MockValidator)
		w, _ := post(t, setupRouter(svc), `{"code":"  "}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Malformed body", func(t *testing.T) {
		svc := new(MockValidator)
		w, _ := post(t, setupRouter(svc), `{`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Storage failure", func(t *testing.T) {
		svc := new(MockValidator)
		svc.On("ValidateEntry", mock.Anything, "GRP-HJKM2345").
			Return(checkin.Outcome{}, fmt.Errorf("%w: connection reset", models.ErrStorageUnavailable))

		w, resp := post(t, setupRouter(svc), `{"code":"GRP-HJKM2345"}`)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, false, resp["success"])
	})
}
