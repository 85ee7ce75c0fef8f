package main

import (
	"context"
	"flag"
	"fmt"

	"wallet-ledger-go/internal/common"
	"wallet-ledger-go/internal/config"
	"wallet-ledger-go/internal/ledger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	actionFlag := flag.String("action", "quote", "One of: quote, swap, transfer")
	userFlag := flag.String("user", "", "User id (swap; sender for transfer)")
	toUserFlag := flag.String("to-user", "", "Recipient user id (transfer)")
	fromFlag := flag.String("from", "", "Currency to sell, or the transfer currency")
	toFlag := flag.String("to", "", "Currency to buy (quote, swap)")
	amountFlag := flag.String("amount", "", "Amount of --from (required)")
	referenceFlag := flag.String("reference", "", "Idempotency reference for transfer (optional)")
	flag.Parse()

	if *fromFlag == "" || *amountFlag == "" {
		zap.L().Fatal("--from and --amount are required")
	}
	amount, err := decimal.NewFromString(*amountFlag)
	if err != nil {
		zap.L().Fatal("Invalid amount", zap.String("amount", *amountFlag), zap.Error(err))
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

	switch *actionFlag {
	case "quote":
		quote, err := services.Ledger.QuoteSwap(ctx, *fromFlag, *toFlag, amount)
		if err != nil {
			zap.L().Fatal("Failed to quote swap", zap.Error(err))
		}
		common.PrintHeader("SWAP QUOTE", common.DefaultWidth)
		fmt.Printf("Sell:     %s %s @ %s\n", quote.FromAmount, quote.FromCurrency, quote.PriceFrom)
		fmt.Printf("Gross:    %s %s @ %s\n", quote.Gross, quote.ToCurrency, quote.PriceTo)
		fmt.Printf("Fee:      %s %s\n", quote.Fee, quote.ToCurrency)
		fmt.Printf("Receive:  %s %s\n", quote.ToAmount, quote.ToCurrency)
		common.PrintSeparator("=", common.DefaultWidth)

	case "swap":
		result, err := services.Ledger.Swap(ctx, ledger.SwapRequest{
			UserId:       *userFlag,
			FromCurrency: *fromFlag,
			ToCurrency:   *toFlag,
			FromAmount:   amount,
		})
		if err != nil {
			zap.L().Fatal("Swap failed", zap.Error(err))
		}
		common.PrintHeader("SWAP EXECUTED", common.DefaultWidth)
		fmt.Printf("Transaction: %s\n", result.Transaction.Id)
		fmt.Printf("Sold:        %s %s\n", result.FromAmount, result.Transaction.FromCurrency)
		fmt.Printf("Received:    %s %s (fee %s)\n", result.ToAmount, result.Transaction.ToCurrency, result.Fee)
		common.PrintSeparator("=", common.DefaultWidth)

	case "transfer":
		result, err := services.Ledger.Transfer(ctx, ledger.TransferRequest{
			FromUserId: *userFlag,
			ToUserId:   *toUserFlag,
			Currency:   *fromFlag,
			Amount:     amount,
			Reference:  *referenceFlag,
		})
		if err != nil {
			zap.L().Fatal("Transfer failed", zap.Error(err))
		}
		common.PrintHeader("TRANSFER COMPLETED", common.DefaultWidth)
		fmt.Printf("Reference: %s\n", result.Reference)
		fmt.Printf("From:      %s (%s)\n", result.Out.UserId, common.ShortId(result.Out.Id))
		fmt.Printf("To:        %s (%s)\n", result.In.UserId, common.ShortId(result.In.Id))
		fmt.Printf("Amount:    %s %s\n", result.Out.Amount, *fromFlag)
		common.PrintSeparator("=", common.DefaultWidth)

	default:
		zap.L().Fatal("Unknown action", zap.String("action", *actionFlag))
	}
}
