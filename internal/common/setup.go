package common

import (
	"context"
	"fmt"
	"log"
	"strings"

	"wallet-ledger-go/internal/api"
	"wallet-ledger-go/internal/currency"
	"wallet-ledger-go/internal/database"
	"wallet-ledger-go/internal/ledger"
	"wallet-ledger-go/internal/locker"
	"wallet-ledger-go/internal/metrics"
	"wallet-ledger-go/internal/models"
	"wallet-ledger-go/internal/pricing"
	"wallet-ledger-go/internal/settlement"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Try to load .env file - if it doesn't exist, that's okay
	// Environment variables can be set via other means (shell export, docker, etc.)
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService  *database.Service
	Currencies *currency.Registry
	Ledger     *ledger.Service
	Reconciler *settlement.Reconciler
	Processor  *settlement.NowPaymentsClient
	Api        *api.LedgerService

	redisClient redis.UniversalClient
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	metrics.MustRegister()

	zap.L().Info("Loading currency table", zap.String("file", cfg.Ledger.CurrenciesFile))
	currencies, err := currency.Load(cfg.Ledger.CurrenciesFile)
	if err != nil {
		return nil, err
	}

	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	services := &Services{DbService: dbService, Currencies: currencies}

	lk, err := services.initializeLocker(ctx, cfg.Lock)
	if err != nil {
		services.Close()
		return nil, err
	}

	oracle := pricing.NewCachedOracle(pricing.NewStaticOracle(currencies.ReferencePrices()), cfg.Pricing.CacheTtl)

	ledgerService, err := ledger.NewService(dbService, lk, currencies, oracle, ledger.Config{
		SwapFeeRate:          cfg.Ledger.SwapFeeRate,
		AllowAdjustmentClamp: cfg.Ledger.AllowAdjustmentClamp,
		MaxRetries:           cfg.Ledger.MaxRetries,
	})
	if err != nil {
		services.Close()
		return nil, err
	}
	services.Ledger = ledgerService

	if cfg.Settlement.IpnSecret == "" {
		zap.L().Warn("NOWPAYMENTS_IPN_SECRET is not set, every payment callback will be rejected")
	}
	services.Processor = settlement.NewNowPaymentsClient(cfg.Settlement.ApiUrl, cfg.Settlement.ApiKey, cfg.Settlement.Timeout)
	services.Reconciler = settlement.NewReconciler(dbService, ledgerService,
		settlement.NewSignatureVerifier(cfg.Settlement.IpnSecret), services.Processor, currencies,
		settlement.Config{CallbackUrl: cfg.Settlement.CallbackUrl})

	services.Api = api.NewLedgerService(dbService)

	zap.L().Info("Services initialized",
		zap.Strings("currencies", currencies.Symbols()),
		zap.String("swap_fee_rate", cfg.Ledger.SwapFeeRate.String()),
		zap.Bool("adjustment_clamp", cfg.Ledger.AllowAdjustmentClamp))
	return services, nil
}

// InitializeDatabaseOnly initializes just the database service
// Useful for read-only operations like querying balances
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

// initializeLocker uses Redis when REDIS_ADDR is set so several processes can
// share one database; otherwise locks stay in-process.
func (cs *Services) initializeLocker(ctx context.Context, cfg models.LockConfig) (locker.Locker, error) {
	if cfg.RedisAddr == "" {
		zap.L().Info("Using in-process user locks")
		return locker.NewKeyedMutex(), nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.RedisAddr},
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDb,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("unable to reach redis at %s: %w", cfg.RedisAddr, err)
	}
	cs.redisClient = client

	zap.L().Info("Using Redis user locks", zap.String("addr", cfg.RedisAddr))
	return locker.NewRedisLocker(client, cfg.Ttl, cfg.RetryInterval, cfg.RetryTimes), nil
}

func (cs *Services) Close() {
	if cs.redisClient != nil {
		if err := cs.redisClient.Close(); err != nil {
			zap.L().Warn("Failed to close redis client", zap.Error(err))
		}
	}
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
