package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"wallet-ledger-go/internal/common"
	"wallet-ledger-go/internal/config"
	"wallet-ledger-go/internal/ledger"
	"wallet-ledger-go/internal/models"
	"wallet-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func parseRequest() (ledger.AdjustmentRequest, error) {
	userFlag := flag.String("user", "", "User id (required)")
	currencyFlag := flag.String("currency", "", "Currency symbol (required)")
	amountFlag := flag.String("amount", "", "Amount to adjust (required)")
	directionFlag := flag.String("direction", "", "credit or debit (required)")
	reasonFlag := flag.String("reason", "", "Why the balance is being adjusted (required)")
	operatorFlag := flag.String("operator", "", "Operator id performing the adjustment (required)")
	flag.Parse()

	if *userFlag == "" || *currencyFlag == "" || *amountFlag == "" || *directionFlag == "" {
		return ledger.AdjustmentRequest{}, fmt.Errorf("--user, --currency, --amount and --direction are required")
	}

	amount, err := decimal.NewFromString(*amountFlag)
	if err != nil {
		return ledger.AdjustmentRequest{}, fmt.Errorf("invalid amount format: %w", err)
	}

	return ledger.AdjustmentRequest{
		UserId:     *userFlag,
		Currency:   *currencyFlag,
		Amount:     amount,
		Direction:  models.AdjustmentDirection(*directionFlag),
		Reason:     *reasonFlag,
		OperatorId: *operatorFlag,
	}, nil
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	req, err := parseRequest()
	if err != nil {
		zap.L().Fatal("Invalid flags", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	before, err := services.Api.GetUserBalance(ctx, req.UserId, req.Currency)
	if err != nil {
		zap.L().Fatal("Failed to read balance", zap.Error(err))
	}

	tx, err := services.Ledger.AdjustBalance(ctx, req)
	if err != nil {
		common.PrintHeader("ADJUSTMENT REJECTED", common.DefaultWidth)
		switch {
		case errors.Is(err, store.ErrInvalidAdjustment):
			fmt.Println("Error: --reason and --operator are mandatory and --direction must be credit or debit")
		case errors.Is(err, store.ErrInsufficientFunds):
			fmt.Printf("Error: debit of %s exceeds available %s %s\n", req.Amount, before.Available, before.Currency)
		default:
			fmt.Printf("Error: %v\n", err)
		}
		common.PrintSeparator("=", common.DefaultWidth)
		zap.L().Fatal("Adjustment failed", zap.Error(err))
	}

	after, err := services.Api.GetUserBalance(ctx, req.UserId, req.Currency)
	if err != nil {
		zap.L().Fatal("Failed to read balance", zap.Error(err))
	}

	common.PrintHeader("BALANCE ADJUSTED", common.DefaultWidth)
	fmt.Printf("Transaction: %s\n", tx.Id)
	fmt.Printf("User:        %s\n", req.UserId)
	fmt.Printf("Direction:   %s\n", req.Direction)
	fmt.Printf("Amount:      %s %s\n", tx.Amount, after.Currency)
	if tx.Metadata["clamped"] == "true" {
		fmt.Printf("Clamped:     requested %s\n", tx.Metadata["requested_amount"])
	}
	fmt.Printf("Available:   %s -> %s\n", before.Available, after.Available)
	fmt.Printf("Reason:      %s (by %s)\n", req.Reason, req.OperatorId)
	common.PrintSeparator("=", common.DefaultWidth)
}
