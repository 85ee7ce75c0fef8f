package models

import "testing"

func TestWithdrawalStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from WithdrawalStatus
		to   WithdrawalStatus
		want bool
	}{
		{WithdrawalStatusPending, WithdrawalStatusProcessing, true},
		{WithdrawalStatusPending, WithdrawalStatusCompleted, true},
		{WithdrawalStatusPending, WithdrawalStatusFailed, true},
		{WithdrawalStatusPending, WithdrawalStatusCancelled, true},
		{WithdrawalStatusProcessing, WithdrawalStatusCompleted, true},
		{WithdrawalStatusProcessing, WithdrawalStatusFailed, true},
		{WithdrawalStatusProcessing, WithdrawalStatusCancelled, false},
		{WithdrawalStatusProcessing, WithdrawalStatusPending, false},
		{WithdrawalStatusPending, WithdrawalStatusPending, false},
		{WithdrawalStatusCompleted, WithdrawalStatusFailed, false},
		{WithdrawalStatusCompleted, WithdrawalStatusCancelled, false},
		{WithdrawalStatusFailed, WithdrawalStatusCompleted, false},
		{WithdrawalStatusCancelled, WithdrawalStatusPending, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.want, got)
		}
	}
}

func TestWithdrawalStatus_IsTerminal(t *testing.T) {
	terminal := []WithdrawalStatus{WithdrawalStatusCompleted, WithdrawalStatusFailed, WithdrawalStatusCancelled}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("Expected %s to be terminal", s)
		}
	}
	for _, s := range []WithdrawalStatus{WithdrawalStatusPending, WithdrawalStatusProcessing} {
		if s.IsTerminal() {
			t.Errorf("Expected %s to be non-terminal", s)
		}
	}
}

func TestParseWithdrawalPriority(t *testing.T) {
	if p, ok := ParseWithdrawalPriority(""); !ok || p != WithdrawalPriorityNormal {
		t.Errorf("Expected empty priority to default to normal, got %q (ok=%v)", p, ok)
	}
	if _, ok := ParseWithdrawalPriority("urgent"); ok {
		t.Errorf("Expected unknown priority to be rejected")
	}
}

func TestDepositStatus_Valid(t *testing.T) {
	if !DepositStatusPartiallyPaid.Valid() {
		t.Errorf("Expected partially_paid to be valid")
	}
	if DepositStatus("settled").Valid() {
		t.Errorf("Expected unknown deposit status to be invalid")
	}
}
