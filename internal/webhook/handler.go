/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"wallet-ledger-go/internal/settlement"
	"wallet-ledger-go/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// EventHandler applies one signed payment status callback
type EventHandler interface {
	HandleEvent(ctx context.Context, payload []byte, signature string) (*settlement.Outcome, error)
}

// HealthChecker reports whether the ledger can serve requests
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type Options struct {
	MaxBodyBytes int64
	Limiter      *rate.Limiter
}

type Handler struct {
	events EventHandler
	health HealthChecker
	opts   Options
}

func NewHandler(events EventHandler, health HealthChecker, opts Options) *Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 64 << 10
	}
	return &Handler{events: events, health: health, opts: opts}
}

// NewRouter wires the callback, health and metrics endpoints
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(RequestId(), Recover(), RequestLog())

	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	hooks := r.Group("/webhooks", RateLimit(h.opts.Limiter))
	hooks.POST("/nowpayments", h.NowPayments)
	return r
}

func (h *Handler) NowPayments(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxBodyBytes))
	if err != nil {
		zap.L().Warn("Unable to read callback body",
			zap.String("request_id", requestIdFrom(c)),
			zap.Error(err))
		c.JSON(http.StatusBadRequest, errorBody("unreadable body"))
		return
	}

	outcome, err := h.events.HandleEvent(c.Request.Context(), payload, c.GetHeader(settlement.SignatureHeader))
	if err != nil {
		status, message := statusFor(err)
		if status >= http.StatusInternalServerError {
			zap.L().Error("Payment callback failed",
				zap.String("request_id", requestIdFrom(c)),
				zap.Error(err))
		}
		c.JSON(status, errorBody(message))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payment_id":        outcome.PaymentId,
		"status":            outcome.Status,
		"credited":          outcome.Credited,
		"already_processed": outcome.AlreadyProcessed,
	})
}

func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.health.HealthCheck(ctx); err != nil {
		zap.L().Error("Health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// statusFor maps ledger errors onto the responses the processor acts on.
// Anything 5xx is redelivered.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrInvalidSignature):
		return http.StatusUnauthorized, "invalid signature"
	case errors.Is(err, store.ErrUnknownPayment):
		return http.StatusNotFound, "unknown payment"
	case errors.Is(err, store.ErrInvalidRequest),
		errors.Is(err, store.ErrInvalidAmount),
		errors.Is(err, store.ErrInvalidCurrency):
		return http.StatusBadRequest, "malformed event"
	}
	return http.StatusInternalServerError, "internal error"
}
