package core

import "github.com/shopspring/decimal"

// NetAllocated returns the collateral currently allocated from one bank
// account to one credit card: the sum of all ALLOCATION transactions
// between the pair, positive amounts allocating and negative amounts
// releasing. The result is floored at zero; a negative net means the
// ledger released more than it allocated and is read as "nothing
// currently allocated" rather than negative collateral.
//
// This is the only place the signed ALLOCATION convention is
// interpreted. The account-level Allocated aggregate is the sum of this
// value across all cards and must reconcile with it when a single card
// is in scope.
func NetAllocated(transactions []Transaction, bankAccountID, creditCardID string) decimal.Decimal {
	net := decimal.Zero
	for _, t := range transactions {
		if t.Type != Allocation {
			continue
		}
		if t.AccountID != bankAccountID || t.RelatedEntityID != creditCardID {
			continue
		}
		net = net.Add(t.Amount)
	}
	if net.IsNegative() {
		return decimal.Zero
	}
	return net
}
