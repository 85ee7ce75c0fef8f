package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"wallet-ledger-go/internal/models"
	"wallet-ledger-go/internal/settlement"
	"wallet-ledger-go/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

type stubEvents struct {
	outcome   *settlement.Outcome
	err       error
	payload   string
	signature string
}

func (s *stubEvents) HandleEvent(_ context.Context, payload []byte, signature string) (*settlement.Outcome, error) {
	s.payload = string(payload)
	s.signature = signature
	return s.outcome, s.err
}

type stubHealth struct{ err error }

func (s stubHealth) HealthCheck(context.Context) error { return s.err }

func init() {
	gin.SetMode(gin.TestMode)
}

func post(router http.Handler, body string, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/nowpayments", strings.NewReader(body))
	req.Header.Set(settlement.SignatureHeader, signature)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestNowPayments_Success(t *testing.T) {
	events := &stubEvents{outcome: &settlement.Outcome{PaymentId: "P1", Status: models.DepositStatusFinished, Credited: true}}
	router := NewRouter(NewHandler(events, stubHealth{}, Options{}))

	rec := post(router, `{"payment_id":"P1"}`, "abc123")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"credited":true`)
	assert.Equal(t, `{"payment_id":"P1"}`, events.payload)
	assert.Equal(t, "abc123", events.signature)
	assert.NotEmpty(t, rec.Header().Get(headerRequestId))
}

func TestNowPayments_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: mismatch", store.ErrInvalidSignature), http.StatusUnauthorized},
		{fmt.Errorf("%w: P9", store.ErrUnknownPayment), http.StatusNotFound},
		{settlement.ErrMalformedEvent, http.StatusBadRequest},
		{errors.New("database is locked"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			router := NewRouter(NewHandler(&stubEvents{err: tt.err}, stubHealth{}, Options{}))
			rec := post(router, `{}`, "sig")
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestNowPayments_BodyLimit(t *testing.T) {
	events := &stubEvents{outcome: &settlement.Outcome{}}
	router := NewRouter(NewHandler(events, stubHealth{}, Options{MaxBodyBytes: 8}))

	rec := post(router, `{"payment_id":"far too long"}`, "sig")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, events.payload)
}

func TestNowPayments_RateLimit(t *testing.T) {
	events := &stubEvents{outcome: &settlement.Outcome{}}
	router := NewRouter(NewHandler(events, stubHealth{}, Options{Limiter: rate.NewLimiter(0, 1)}))

	assert.Equal(t, http.StatusOK, post(router, `{}`, "sig").Code)
	assert.Equal(t, http.StatusTooManyRequests, post(router, `{}`, "sig").Code)
}

func TestHealthAndMetrics(t *testing.T) {
	router := NewRouter(NewHandler(&stubEvents{}, stubHealth{}, Options{}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	down := NewRouter(NewHandler(&stubEvents{}, stubHealth{err: errors.New("db gone")}, Options{}))
	rec = httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
