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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"wallet-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

func Load() (*models.Config, error) {
	lookbackWindow, err := getEnvDuration("LISTENER_LOOKBACK_WINDOW", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	pollingInterval, err := getEnvDuration("LISTENER_POLLING_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	busyTimeout, err := getEnvDuration("DB_BUSY_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	readTimeout, err := getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	writeTimeout, err := getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	lockTtl, err := getEnvDuration("LOCK_TTL", 10*time.Second)
	if err != nil {
		return nil, err
	}

	lockRetryInterval, err := getEnvDuration("LOCK_RETRY_INTERVAL", 50*time.Millisecond)
	if err != nil {
		return nil, err
	}

	priceCacheTtl, err := getEnvDuration("PRICE_CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, err
	}

	processorTimeout, err := getEnvDuration("NOWPAYMENTS_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}

	swapFeeRate, err := getEnvDecimal("SWAP_FEE_RATE", decimal.RequireFromString("0.001"))
	if err != nil {
		return nil, err
	}

	rateLimit, err := getEnvFloat("WEBHOOK_RATE_LIMIT", 50)
	if err != nil {
		return nil, err
	}

	return &models.Config{
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "ledger.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
			BusyTimeout:     busyTimeout,
		},
		Server: models.ServerConfig{
			ListenAddr:      getEnvString("LISTEN_ADDR", ":8080"),
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
			MaxBodyBytes:    int64(getEnvInt("WEBHOOK_MAX_BODY_BYTES", 1<<20)),
			RateLimit:       rateLimit,
			RateBurst:       getEnvInt("WEBHOOK_RATE_BURST", 100),
		},
		Ledger: models.LedgerConfig{
			CurrenciesFile:       getEnvString("CURRENCIES_FILE", "currencies.yaml"),
			SwapFeeRate:          swapFeeRate,
			AllowAdjustmentClamp: getEnvBool("ADJUSTMENT_ALLOW_CLAMP", false),
			MaxRetries:           getEnvInt("LEDGER_MAX_RETRIES", 3),
		},
		Settlement: models.SettlementConfig{
			IpnSecret:   os.Getenv("NOWPAYMENTS_IPN_SECRET"),
			ApiKey:      os.Getenv("NOWPAYMENTS_API_KEY"),
			ApiUrl:      getEnvString("NOWPAYMENTS_API_URL", "https://api.nowpayments.io"),
			CallbackUrl: os.Getenv("NOWPAYMENTS_CALLBACK_URL"),
			Timeout:     processorTimeout,
		},
		Lock: models.LockConfig{
			RedisAddr:     os.Getenv("REDIS_ADDR"),
			RedisPassword: os.Getenv("REDIS_PASSWORD"),
			RedisDb:       getEnvInt("REDIS_DB", 0),
			Ttl:           lockTtl,
			RetryInterval: lockRetryInterval,
			RetryTimes:    getEnvInt("LOCK_RETRY_TIMES", 100),
		},
		Pricing: models.PricingConfig{
			CacheTtl: priceCacheTtl,
		},
		Listener: models.ListenerConfig{
			LookbackWindow:  lookbackWindow,
			PollingInterval: pollingInterval,
			BatchSize:       getEnvInt("LISTENER_BATCH_SIZE", 200),
			Concurrency:     getEnvInt("LISTENER_CONCURRENCY", 4),
		},
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

// money settings must parse exactly; a typo is an error, not a silent default
func getEnvDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	if value := os.Getenv(key); value != "" {
		d, err := decimal.NewFromString(value)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid decimal for %s: %q (%w)", key, value, err)
		}
		return d, nil
	}
	return defaultValue, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number for %s: %q (%w)", key, value, err)
		}
		return f, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
