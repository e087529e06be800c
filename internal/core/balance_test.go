package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestComputeBalance(t *testing.T) {
	tests := []struct {
		name          string
		account       *Account
		wantTotal     string
		wantAvailable string
		wantAllocated string
	}{
		{
			name:          "nil account yields zeros",
			account:       nil,
			wantTotal:     "0",
			wantAvailable: "0",
			wantAllocated: "0",
		},
		{
			name:          "no balance fields at all",
			account:       &Account{ID: "a1", Type: Checking},
			wantTotal:     "0",
			wantAvailable: "0",
			wantAllocated: "0",
		},
		{
			name:          "legacy balance only",
			account:       &Account{ID: "a1", Type: Checking, Balance: DecPtr("1000")},
			wantTotal:     "1000",
			wantAvailable: "1000",
			wantAllocated: "0",
		},
		{
			name: "available and allocated, no total",
			account: &Account{ID: "a1", Type: Checking,
				AvailableBalance: DecPtr("300"), AllocatedBalance: DecPtr("200")},
			wantTotal:     "500",
			wantAvailable: "300",
			wantAllocated: "200",
		},
		{
			name: "inconsistent upstream total is corrected",
			account: &Account{ID: "a1", Type: Checking,
				TotalBalance:     DecPtr("999"),
				AvailableBalance: DecPtr("300"),
				AllocatedBalance: DecPtr("200")},
			wantTotal:     "500",
			wantAvailable: "300",
			wantAllocated: "200",
		},
		{
			name: "total and allocated, available derived",
			account: &Account{ID: "a1", Type: Checking,
				TotalBalance: DecPtr("1000"), AllocatedBalance: DecPtr("400")},
			wantTotal:     "1000",
			wantAvailable: "600",
			wantAllocated: "400",
		},
		{
			name: "derived available floors at zero",
			account: &Account{ID: "a1", Type: Checking,
				TotalBalance: DecPtr("100"), AllocatedBalance: DecPtr("400")},
			wantTotal:     "400",
			wantAvailable: "0",
			wantAllocated: "400",
		},
		{
			name: "allocated only",
			account: &Account{ID: "a1", Type: Checking,
				AllocatedBalance: DecPtr("250")},
			wantTotal:     "250",
			wantAvailable: "0",
			wantAllocated: "250",
		},
		{
			name: "present fields beat legacy balance",
			account: &Account{ID: "a1", Type: Checking,
				Balance: DecPtr("9999"), AvailableBalance: DecPtr("10")},
			wantTotal:     "10",
			wantAvailable: "10",
			wantAllocated: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeBalance(tt.account)
			if !got.Total.Equal(Dec(tt.wantTotal)) {
				t.Errorf("Total = %s, want %s", got.Total, tt.wantTotal)
			}
			if !got.Available.Equal(Dec(tt.wantAvailable)) {
				t.Errorf("Available = %s, want %s", got.Available, tt.wantAvailable)
			}
			if !got.Allocated.Equal(Dec(tt.wantAllocated)) {
				t.Errorf("Allocated = %s, want %s", got.Allocated, tt.wantAllocated)
			}
		})
	}
}

func TestComputeBalanceInvariants(t *testing.T) {
	accounts := []*Account{
		nil,
		{ID: "a", Type: Checking},
		{ID: "a", Type: Checking, Balance: DecPtr("123.45")},
		{ID: "a", Type: Savings, TotalBalance: DecPtr("50"), AllocatedBalance: DecPtr("80")},
		{ID: "a", Type: Checking, TotalBalance: DecPtr("-10")},
		{ID: "a", Type: Checking, TotalBalance: DecPtr("7"), AvailableBalance: DecPtr("3"), AllocatedBalance: DecPtr("9")},
	}

	for i, a := range accounts {
		got := ComputeBalance(a)
		if !got.Total.Equal(got.Available.Add(got.Allocated)) {
			t.Errorf("case %d: total %s != available %s + allocated %s", i, got.Total, got.Available, got.Allocated)
		}
		if a != nil && a.AvailableBalance == nil && got.Available.IsNegative() {
			t.Errorf("case %d: derived available is negative: %s", i, got.Available)
		}

		// Idempotence: same input, same output.
		again := ComputeBalance(a)
		if !got.Total.Equal(again.Total) || !got.Available.Equal(again.Available) || !got.Allocated.Equal(again.Allocated) {
			t.Errorf("case %d: repeated call diverged: %+v vs %+v", i, got, again)
		}
	}
}

func TestComputeBalanceDoesNotMutateInput(t *testing.T) {
	total := Dec("999")
	available := Dec("300")
	a := &Account{ID: "a", Type: Checking, TotalBalance: &total, AvailableBalance: &available}

	_ = ComputeBalance(a)

	if !a.TotalBalance.Equal(decimal.NewFromInt(999)) {
		t.Errorf("input total mutated: %s", a.TotalBalance)
	}
	if !a.AvailableBalance.Equal(decimal.NewFromInt(300)) {
		t.Errorf("input available mutated: %s", a.AvailableBalance)
	}
}
