package core

import "github.com/shopspring/decimal"

// Limits is a credit card's derived spending ceiling.
type Limits struct {
	Total     decimal.Decimal
	Available decimal.Decimal
}

// ComputeLimits derives a card's usable limit. Collateral allocated to
// the card raises the ceiling above the base credit line:
//
//	total     = creditLimit + allocatedBalance
//	available = total - current debt
//
// Debt is the card's normalized total balance (a credit card owes a
// positive balance, it does not hold negative cash). Available may go
// negative: an over-limit card is a legitimate, reportable state.
func ComputeLimits(card *Account) Limits {
	if card == nil {
		return Limits{}
	}

	total := decimal.Zero
	if card.CreditLimit != nil {
		total = *card.CreditLimit
	}
	if card.AllocatedBalance != nil {
		total = total.Add(*card.AllocatedBalance)
	}

	// On a credit card the allocated field is collateral backing the
	// limit, not part of the amount owed. Strip it before normalizing
	// so the reconciliation step does not fold collateral into debt.
	owed := *card
	owed.AllocatedBalance = nil
	debt := ComputeBalance(&owed).Total

	return Limits{
		Total:     total,
		Available: total.Sub(debt),
	}
}
