package balance

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSheet_MissingCurrencyIsZero(t *testing.T) {
	sheet := NewSheet("user1", nil)

	if !sheet.Available("BTC").IsZero() {
		t.Errorf("Expected available 0, got %s", sheet.Available("BTC"))
	}
	if !sheet.Frozen("BTC").IsZero() {
		t.Errorf("Expected frozen 0, got %s", sheet.Frozen("BTC"))
	}
	if len(sheet.Dirty()) != 0 {
		t.Errorf("Expected no dirty currencies after reads, got %v", sheet.Dirty())
	}
}

func TestSheet_Primitives(t *testing.T) {
	tests := []struct {
		name          string
		start         Balance
		apply         func(s *Sheet) error
		wantErr       error
		wantAvailable string
		wantFrozen    string
	}{
		{
			name:          "credit increases available",
			start:         Balance{Available: dec("1")},
			apply:         func(s *Sheet) error { return s.Credit("BTC", dec("0.5")) },
			wantAvailable: "1.5",
			wantFrozen:    "0",
		},
		{
			name:          "credit rejects zero",
			start:         Balance{Available: dec("1")},
			apply:         func(s *Sheet) error { return s.Credit("BTC", decimal.Zero) },
			wantErr:       ErrInvalidAmount,
			wantAvailable: "1",
			wantFrozen:    "0",
		},
		{
			name:          "debit rejects negative",
			start:         Balance{Available: dec("1")},
			apply:         func(s *Sheet) error { return s.Debit("BTC", dec("-1")) },
			wantErr:       ErrInvalidAmount,
			wantAvailable: "1",
			wantFrozen:    "0",
		},
		{
			name:          "debit exact balance",
			start:         Balance{Available: dec("1")},
			apply:         func(s *Sheet) error { return s.Debit("BTC", dec("1")) },
			wantAvailable: "0",
			wantFrozen:    "0",
		},
		{
			name:          "debit beyond available",
			start:         Balance{Available: dec("1"), Frozen: dec("5")},
			apply:         func(s *Sheet) error { return s.Debit("BTC", dec("1.00000001")) },
			wantErr:       ErrInsufficientFunds,
			wantAvailable: "1",
			wantFrozen:    "5",
		},
		{
			name:          "freeze moves to frozen",
			start:         Balance{Available: dec("20")},
			apply:         func(s *Sheet) error { return s.Freeze("BTC", dec("11")) },
			wantAvailable: "9",
			wantFrozen:    "11",
		},
		{
			name:          "freeze beyond available",
			start:         Balance{Available: dec("10")},
			apply:         func(s *Sheet) error { return s.Freeze("BTC", dec("11")) },
			wantErr:       ErrInsufficientFunds,
			wantAvailable: "10",
			wantFrozen:    "0",
		},
		{
			name:          "unfreeze returns to available",
			start:         Balance{Available: dec("9"), Frozen: dec("11")},
			apply:         func(s *Sheet) error { return s.Unfreeze("BTC", dec("11")) },
			wantAvailable: "20",
			wantFrozen:    "0",
		},
		{
			name:          "unfreeze beyond frozen",
			start:         Balance{Available: dec("9"), Frozen: dec("1")},
			apply:         func(s *Sheet) error { return s.Unfreeze("BTC", dec("2")) },
			wantErr:       ErrInsufficientFrozen,
			wantAvailable: "9",
			wantFrozen:    "1",
		},
		{
			name:          "burn removes frozen",
			start:         Balance{Available: dec("9"), Frozen: dec("11")},
			apply:         func(s *Sheet) error { return s.BurnFrozen("BTC", dec("11")) },
			wantAvailable: "9",
			wantFrozen:    "0",
		},
		{
			name:          "burn beyond frozen",
			start:         Balance{Available: dec("100"), Frozen: dec("1")},
			apply:         func(s *Sheet) error { return s.BurnFrozen("BTC", dec("2")) },
			wantErr:       ErrInsufficientFrozen,
			wantAvailable: "100",
			wantFrozen:    "1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sheet := NewSheet("user1", map[string]Balance{"BTC": tt.start})

			err := tt.apply(sheet)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
				}
				if len(sheet.Dirty()) != 0 {
					t.Errorf("Expected failed mutation to leave sheet clean, got dirty %v", sheet.Dirty())
				}
			} else if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			if !sheet.Available("BTC").Equal(dec(tt.wantAvailable)) {
				t.Errorf("Expected available %s, got %s", tt.wantAvailable, sheet.Available("BTC"))
			}
			if !sheet.Frozen("BTC").Equal(dec(tt.wantFrozen)) {
				t.Errorf("Expected frozen %s, got %s", tt.wantFrozen, sheet.Frozen("BTC"))
			}
		})
	}
}

func TestSheet_LifetimeCounters(t *testing.T) {
	sheet := NewSheet("user1", nil)

	if err := sheet.Credit("ETH", dec("3")); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	if err := sheet.Debit("ETH", dec("1")); err != nil {
		t.Fatalf("Debit failed: %v", err)
	}
	if err := sheet.Freeze("ETH", dec("1")); err != nil {
		t.Fatalf("Freeze failed: %v", err)
	}
	if err := sheet.BurnFrozen("ETH", dec("1")); err != nil {
		t.Fatalf("BurnFrozen failed: %v", err)
	}

	b := sheet.Get("ETH")
	if !b.LifetimeDeposited.Equal(dec("3")) {
		t.Errorf("Expected lifetime deposited 3, got %s", b.LifetimeDeposited)
	}
	if !b.LifetimeWithdrawn.Equal(dec("2")) {
		t.Errorf("Expected lifetime withdrawn 2, got %s", b.LifetimeWithdrawn)
	}
	if !b.Total().Equal(dec("1")) {
		t.Errorf("Expected total 1, got %s", b.Total())
	}
}

func TestSheet_DirtyTracksMutatedCurrencies(t *testing.T) {
	sheet := NewSheet("user1", map[string]Balance{
		"BTC": {Available: dec("1")},
		"ETH": {Available: dec("1")},
	})

	if err := sheet.Debit("ETH", dec("0.5")); err != nil {
		t.Fatalf("Debit failed: %v", err)
	}
	if err := sheet.Credit("USDT", dec("10")); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	dirty := sheet.Dirty()
	if len(dirty) != 2 || dirty[0] != "ETH" || dirty[1] != "USDT" {
		t.Errorf("Expected dirty [ETH USDT], got %v", dirty)
	}
	if got := sheet.Currencies(); len(got) != 3 {
		t.Errorf("Expected 3 currencies, got %v", got)
	}
}

func TestSheet_NewSheetCopiesInput(t *testing.T) {
	input := map[string]Balance{"BTC": {Available: dec("1")}}
	sheet := NewSheet("user1", input)

	if err := sheet.Credit("BTC", dec("1")); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	if !input["BTC"].Available.Equal(dec("1")) {
		t.Errorf("Expected caller map untouched, got %s", input["BTC"].Available)
	}
}
