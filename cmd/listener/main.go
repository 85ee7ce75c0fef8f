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

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"wallet-ledger-go/internal/common"
	"wallet-ledger-go/internal/config"
	"wallet-ledger-go/internal/listener"
	"wallet-ledger-go/internal/webhook"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting payment webhook listener")

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	var limiter *rate.Limiter
	if cfg.Server.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Server.RateLimit), cfg.Server.RateBurst)
	}

	gin.SetMode(gin.ReleaseMode)
	handler := webhook.NewHandler(services.Reconciler, services.Api, webhook.Options{
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Limiter:      limiter,
	})
	server := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      webhook.NewRouter(handler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		zap.L().Info("Listening for payment callbacks", zap.String("addr", cfg.Server.ListenAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var poller *listener.DepositPoller
	if cfg.Settlement.ApiKey != "" {
		poller = listener.NewDepositPoller(listener.DepositPollerConfig{
			Store:           services.DbService,
			Source:          services.Processor,
			Applier:         services.Reconciler,
			LookbackWindow:  cfg.Listener.LookbackWindow,
			PollingInterval: cfg.Listener.PollingInterval,
			BatchSize:       cfg.Listener.BatchSize,
			Concurrency:     cfg.Listener.Concurrency,
		})
		if err := poller.Start(ctx); err != nil {
			zap.L().Error("Deposit poller not started, relying on callbacks only", zap.Error(err))
			poller = nil
		}
	} else {
		zap.L().Warn("NOWPAYMENTS_API_KEY is not set, deposit status polling disabled")
	}

	zap.L().Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		zap.L().Info("Shutdown signal received, draining in-flight callbacks...")
	case err, ok := <-serverErr:
		if ok {
			zap.L().Error("Listener stopped unexpectedly", zap.Error(err))
		}
	}

	if poller != nil {
		poller.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("Forced shutdown after timeout", zap.Error(err))
		return
	}
	zap.L().Info("Listener stopped gracefully")
}
