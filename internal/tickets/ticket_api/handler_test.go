package ticket_api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/models"
	"ms-boxoffice/internal/reservations"
)

type MockLookup struct {
	mock.Mock
}

func (m *MockLookup) GetByTicketCode(ctx context.Context, code string) (*reservations.ReservationView, error) {
	args := m.Called(ctx, code)
	if v := args.Get(0); v != nil {
		return v.(*reservations.ReservationView), args.Error(1)
	}
	return nil, args.Error(1)
}

func serve(lookup *MockLookup, path string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	NewHandler(lookup, logger.NewDiscard()).RegisterRoutes(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestTicketQR(t *testing.T) {
	lookup := new(MockLookup)
	lookup.On("GetByTicketCode", mock.Anything, "TKT-AAAA2222").
		Return(&reservations.ReservationView{Reservation: models.Reservation{TicketCode: "TKT-AAAA2222"}}, nil)
	lookup.On("GetByTicketCode", mock.Anything, "TKT-NOPE2345").Return(nil, models.ErrReservationNotFound)

	w := serve(lookup, "/tickets/TKT-AAAA2222/qr")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "\x89PNG", w.Body.String()[:4])

	w = serve(lookup, "/tickets/TKT-NOPE2345/qr")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(lookup, "/tickets/GRP-HJKM2345/qr")
	assert.Equal(t, http.StatusOK, w.Code)
	lookup.AssertNumberOfCalls(t, "GetByTicketCode", 2)
}
