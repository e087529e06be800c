// Package core derives balances, credit limits and invoice figures from
// account and transaction snapshots owned by the data layer.
//
// Every function in this package is pure: no caches, no clocks, no
// mutation of its inputs. Calling twice with the same snapshot yields
// the same result.
package core

import "github.com/shopspring/decimal"

// Balance is the normalized balance triad for one account.
// Total == Available + Allocated always holds on values returned by
// ComputeBalance, regardless of what the upstream record claimed.
type Balance struct {
	Total     decimal.Decimal
	Available decimal.Decimal
	Allocated decimal.Decimal
}

// ComputeBalance normalizes an account's balance fields. It never
// fails; a nil account yields an all-zero triad.
//
// Field priority, each step applying only when the better field is nil:
//
//	allocated: AllocatedBalance, else 0
//	total:     TotalBalance, else Available+Allocated if either was
//	           present, else the legacy Balance field
//	available: AvailableBalance, else max(0, total-allocated)
//
// The total is then recomputed as available+allocated so the two
// narrower fields win over a stale upstream total. Inconsistent source
// data is corrected silently, not reported.
func ComputeBalance(a *Account) Balance {
	if a == nil {
		return Balance{}
	}

	allocated := decimal.Zero
	if a.AllocatedBalance != nil {
		allocated = *a.AllocatedBalance
	}

	var total decimal.Decimal
	switch {
	case a.TotalBalance != nil:
		total = *a.TotalBalance
	case a.AvailableBalance != nil || a.AllocatedBalance != nil:
		if a.AvailableBalance != nil {
			total = a.AvailableBalance.Add(allocated)
		} else {
			total = allocated
		}
	case a.Balance != nil:
		total = *a.Balance
	}

	var available decimal.Decimal
	if a.AvailableBalance != nil {
		available = *a.AvailableBalance
	} else {
		available = total.Sub(allocated)
		if available.IsNegative() {
			available = decimal.Zero
		}
	}

	// Reconcile: the narrower fields are authoritative.
	return Balance{
		Total:     available.Add(allocated),
		Available: available,
		Allocated: allocated,
	}
}
