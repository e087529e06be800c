package core

import (
	"errors"
	"testing"
)

func TestValidateCommand(t *testing.T) {
	bank := &Account{
		ID:               "bank",
		Type:             Checking,
		TotalBalance:     DecPtr("1000"),
		AvailableBalance: DecPtr("1000"),
		AllocatedBalance: DecPtr("0"),
	}

	backing := []Transaction{
		alloc("bank", "card", "400"),
		alloc("bank", "other-card", "100"),
	}
	bankWithCollateral := &Account{
		ID:               "bank",
		Type:             Checking,
		TotalBalance:     DecPtr("1000"),
		AvailableBalance: DecPtr("500"),
		AllocatedBalance: DecPtr("500"),
	}

	tests := []struct {
		name         string
		cmd          Command
		bank         *Account
		transactions []Transaction
		wantBound    string
		wantValid    bool
		wantErr      error
	}{
		{
			name:      "allocate within available",
			cmd:       Allocate("bank", "card", Dec("400")),
			bank:      bank,
			wantBound: "1000",
			wantValid: true,
		},
		{
			name:      "allocate exactly the available balance",
			cmd:       Allocate("bank", "card", Dec("1000")),
			bank:      bank,
			wantBound: "1000",
			wantValid: true,
		},
		{
			name:      "allocate over available",
			cmd:       Allocate("bank", "card", Dec("1200")),
			bank:      bank,
			wantBound: "1000",
			wantErr:   ErrInsufficientBalance,
		},
		{
			name:      "zero amount",
			cmd:       Allocate("bank", "card", Dec("0")),
			bank:      bank,
			wantBound: "1000",
			wantErr:   ErrInvalidAmount,
		},
		{
			name:      "negative amount",
			cmd:       Allocate("bank", "card", Dec("-5")),
			bank:      bank,
			wantBound: "1000",
			wantErr:   ErrInvalidAmount,
		},
		{
			name:         "deallocate bounded per card, not account-wide",
			cmd:          Deallocate("bank", "card", Dec("450")),
			bank:         bankWithCollateral,
			transactions: backing,
			wantBound:    "400",
			wantErr:      ErrInsufficientBalance,
		},
		{
			name:         "deallocate within the card's collateral",
			cmd:          Deallocate("bank", "card", Dec("150")),
			bank:         bankWithCollateral,
			transactions: backing,
			wantBound:    "400",
			wantValid:    true,
		},
		{
			name:         "deallocate before choosing a card uses aggregate ceiling",
			cmd:          Deallocate("bank", "", Dec("450")),
			bank:         bankWithCollateral,
			transactions: backing,
			wantBound:    "500",
			wantValid:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateCommand(tt.cmd, tt.bank, tt.transactions)
			if !got.Bound.Equal(Dec(tt.wantBound)) {
				t.Errorf("Bound = %s, want %s", got.Bound, tt.wantBound)
			}
			if got.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v", got.Valid, tt.wantValid)
			}
			if tt.wantErr != nil && !errors.Is(got.Err, tt.wantErr) {
				t.Errorf("Err = %v, want %v", got.Err, tt.wantErr)
			}
			if tt.wantValid && got.Err != nil {
				t.Errorf("valid result carries error: %v", got.Err)
			}
		})
	}
}

func TestValidateCommandRevalidatesOnCardSwitch(t *testing.T) {
	// The bound must follow the currently selected card, re-checked
	// with the same displayed amount.
	bank := &Account{
		ID:               "bank",
		Type:             Checking,
		AvailableBalance: DecPtr("200"),
		AllocatedBalance: DecPtr("800"),
	}
	txs := []Transaction{
		alloc("bank", "card-a", "700"),
		alloc("bank", "card-b", "100"),
	}

	amount := Dec("300")

	onA := ValidateCommand(Deallocate("bank", "card-a", amount), bank, txs)
	if !onA.Valid {
		t.Fatalf("expected valid against card-a (bound %s)", onA.Bound)
	}

	onB := ValidateCommand(Deallocate("bank", "card-b", amount), bank, txs)
	if onB.Valid {
		t.Fatalf("expected invalid against card-b (bound %s)", onB.Bound)
	}
	if !errors.Is(onB.Err, ErrInsufficientBalance) {
		t.Fatalf("Err = %v, want ErrInsufficientBalance", onB.Err)
	}
}

func TestCommandSignedAmount(t *testing.T) {
	if got := Allocate("b", "c", Dec("400")).SignedAmount(); !got.Equal(Dec("400")) {
		t.Errorf("allocate signed amount = %s, want 400", got)
	}
	if got := Deallocate("b", "c", Dec("150")).SignedAmount(); !got.Equal(Dec("-150")) {
		t.Errorf("deallocate signed amount = %s, want -150", got)
	}
}

func TestWorkflowHappyPath(t *testing.T) {
	bank := &Account{ID: "bank", Type: Checking, AvailableBalance: DecPtr("1000")}

	w := NewWorkflow()
	if w.State() != StateIdle {
		t.Fatalf("new workflow state = %s", w.State())
	}

	if err := w.EnterAmount(Allocate("bank", "card", Dec("400"))); err != nil {
		t.Fatalf("EnterAmount: %v", err)
	}
	res, err := w.Validate(bank, nil)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !res.Valid || w.State() != StateValid {
		t.Fatalf("expected valid, state %s", w.State())
	}

	if err := w.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if w.State() != StateSubmitting {
		t.Fatalf("state after submit = %s", w.State())
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if w.State() != StateCommitted {
		t.Fatalf("state after commit = %s", w.State())
	}
}

func TestWorkflowFailurePreservesInput(t *testing.T) {
	bank := &Account{ID: "bank", Type: Checking, AvailableBalance: DecPtr("1000")}

	w := NewWorkflow()
	cmd := Allocate("bank", "card", Dec("400"))
	if err := w.EnterAmount(cmd); err != nil {
		t.Fatalf("EnterAmount: %v", err)
	}
	if _, err := w.Validate(bank, nil); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := w.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	rejection := errors.New("concurrent write, balance changed")
	if err := w.Fail(rejection); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if w.State() != StateFailed {
		t.Fatalf("state after failure = %s", w.State())
	}
	if err := w.Retry(); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if w.State() != StateAmountEntered {
		t.Fatalf("state after retry = %s", w.State())
	}
	if w.Command() != cmd {
		t.Fatalf("command not preserved: %+v", w.Command())
	}
	if !errors.Is(w.LastErr(), rejection) {
		t.Fatalf("LastErr = %v", w.LastErr())
	}
}

func TestWorkflowGuards(t *testing.T) {
	w := NewWorkflow()

	if err := w.Submit(); err == nil {
		t.Error("Submit from idle should fail")
	}
	if err := w.Commit(); err == nil {
		t.Error("Commit from idle should fail")
	}
	if _, err := w.Validate(nil, nil); err == nil {
		t.Error("Validate from idle should fail")
	}

	// An invalid command must not be submittable.
	bank := &Account{ID: "bank", Type: Checking, AvailableBalance: DecPtr("10")}
	if err := w.EnterAmount(Allocate("bank", "card", Dec("400"))); err != nil {
		t.Fatalf("EnterAmount: %v", err)
	}
	if _, err := w.Validate(bank, nil); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if w.State() != StateInvalid {
		t.Fatalf("state = %s, want invalid", w.State())
	}
	if err := w.Submit(); err == nil {
		t.Error("Submit of invalid command should fail")
	}

	// A deallocation needs its card chosen by submit time.
	w2 := NewWorkflow()
	bank2 := &Account{ID: "bank", Type: Checking, AllocatedBalance: DecPtr("500")}
	if err := w2.EnterAmount(Deallocate("bank", "", Dec("100"))); err != nil {
		t.Fatalf("EnterAmount: %v", err)
	}
	if _, err := w2.Validate(bank2, nil); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := w2.Submit(); !errors.Is(err, ErrMissingSelection) {
		t.Errorf("Submit without card = %v, want ErrMissingSelection", err)
	}
}
