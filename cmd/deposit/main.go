package main

import (
	"context"
	"flag"
	"fmt"

	"wallet-ledger-go/internal/common"
	"wallet-ledger-go/internal/config"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	userFlag := flag.String("user", "", "User id to credit (required)")
	currencyFlag := flag.String("currency", "", "Ledger currency to credit, e.g. BTC (required)")
	amountFlag := flag.String("amount", "", "Amount to credit once the payment finishes (required)")
	payCurrencyFlag := flag.String("pay-currency", "", "Currency the payer sends, defaults to --currency")
	statusFlag := flag.String("status", "", "Instead of opening a deposit, show the deposit with this payment id")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	if *statusFlag != "" {
		d, err := services.Api.GetDeposit(ctx, *statusFlag)
		if err != nil {
			zap.L().Fatal("Failed to look up deposit", zap.String("payment_id", *statusFlag), zap.Error(err))
		}
		common.PrintHeader("DEPOSIT STATUS", common.DefaultWidth)
		fmt.Printf("Payment:       %s (order %s)\n", d.PaymentId, d.OrderId)
		fmt.Printf("User:          %s\n", d.UserId)
		fmt.Printf("Amount:        %s %s\n", d.Amount, d.Currency)
		fmt.Printf("Actually paid: %s %s\n", d.ActuallyPaid, d.PayCurrency)
		fmt.Printf("Status:        %s\n", d.Status)
		if d.CompletedAt != nil {
			fmt.Printf("Credited at:   %s\n", d.CompletedAt.Format("2006-01-02 15:04:05"))
		}
		common.PrintSeparator("=", common.DefaultWidth)
		return
	}

	if *userFlag == "" || *currencyFlag == "" || *amountFlag == "" {
		zap.L().Fatal("--user, --currency and --amount are required")
	}
	amount, err := decimal.NewFromString(*amountFlag)
	if err != nil {
		zap.L().Fatal("Invalid amount", zap.String("amount", *amountFlag), zap.Error(err))
	}

	deposit, err := services.Reconciler.OpenDeposit(ctx, *userFlag, *currencyFlag, amount, *payCurrencyFlag)
	if err != nil {
		zap.L().Fatal("Failed to open deposit", zap.Error(err))
	}

	common.PrintHeader("DEPOSIT OPENED", common.DefaultWidth)
	fmt.Printf("Payment id:  %s\n", deposit.PaymentId)
	fmt.Printf("Order id:    %s\n", deposit.OrderId)
	fmt.Printf("Credit:      %s %s\n", deposit.Amount, deposit.Currency)
	fmt.Printf("Pay:         %s %s\n", deposit.PayAmount, deposit.PayCurrency)
	fmt.Printf("Pay address: %s\n", deposit.PayAddress)
	fmt.Printf("Status:      %s\n", deposit.Status)
	common.PrintSeparator("=", common.DefaultWidth)
}
