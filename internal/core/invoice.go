package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice is the computed view of one credit card billing cycle. It is
// derived on demand from the card's configuration and transaction list
// and never persisted.
type Invoice struct {
	PeriodStart time.Time
	PeriodEnd   time.Time

	Expenses        decimal.Decimal
	Payments        decimal.Decimal // incomes recorded against the card
	PreviousBalance decimal.Decimal
	Total           decimal.Decimal

	Paid bool

	// PaymentTransactions is the income subset, for display and audit.
	PaymentTransactions []Transaction
}

// CycleWindow returns the billing cycle boundaries for a closing day
// and a reference date, both inclusive. Closing on the 7th means the
// window spans the 7th of the previous month through the 6th of the
// reference month; a reference day before the closing day shifts the
// whole window back one month. Closing days 29-31 clamp to the last
// day of short months.
func CycleWindow(closingDay int, ref time.Time) (start, end time.Time) {
	year, month := ref.Year(), ref.Month()
	if ref.Day() < effectiveClosingDay(closingDay, year, month) {
		month--
	}

	py, pm := normalizeMonth(year, month-1)
	ey, em := normalizeMonth(year, month)

	start = time.Date(py, pm, effectiveClosingDay(closingDay, py, pm), 0, 0, 0, 0, ref.Location())
	closing := time.Date(ey, em, effectiveClosingDay(closingDay, ey, em), 0, 0, 0, 0, ref.Location())
	end = closing.AddDate(0, 0, -1)
	return start, end
}

// effectiveClosingDay clamps the configured closing day to the last
// day of the given month, so closing on the 31st works in April.
func effectiveClosingDay(closingDay, year int, month time.Month) int {
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if closingDay > lastDay {
		return lastDay
	}
	return closingDay
}

func normalizeMonth(year int, month time.Month) (int, time.Month) {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return t.Year(), t.Month()
}

// ResolveInvoice computes the invoice for the billing cycle that the
// reference date selects. Only transactions recorded against the card
// itself participate: expenses are charges, incomes are payments.
//
// The previous balance is the unpaid carry-over at the cycle start:
// charges before the window not yet offset by payments, floored at
// zero. Total = previous + expenses - payments; the invoice is paid
// when the total is zero or negative.
//
// A card with no closing day has no invoice cycle; callers must branch
// on HasInvoiceCycle first, and ErrNoClosingDay is returned if they do
// not.
func ResolveInvoice(card *Account, transactions []Transaction, referenceDate time.Time) (Invoice, error) {
	if !card.HasInvoiceCycle() {
		return Invoice{}, ErrNoClosingDay
	}

	start, end := CycleWindow(card.ClosingDay, referenceDate)

	inv := Invoice{
		PeriodStart:     start,
		PeriodEnd:       end,
		Expenses:        decimal.Zero,
		Payments:        decimal.Zero,
		PreviousBalance: decimal.Zero,
	}

	priorCharges := decimal.Zero
	priorPayments := decimal.Zero

	for _, t := range transactions {
		if t.AccountID != card.ID {
			continue
		}
		switch t.Type {
		case Expense:
			switch {
			case inWindow(t.Date, start, end):
				inv.Expenses = inv.Expenses.Add(t.Amount)
			case dateOnly(t.Date).Before(dateOnly(start)):
				priorCharges = priorCharges.Add(t.Amount)
			}
		case Income:
			switch {
			case inWindow(t.Date, start, end):
				inv.Payments = inv.Payments.Add(t.Amount)
				inv.PaymentTransactions = append(inv.PaymentTransactions, t)
			case dateOnly(t.Date).Before(dateOnly(start)):
				priorPayments = priorPayments.Add(t.Amount)
			}
		}
	}

	carry := priorCharges.Sub(priorPayments)
	if carry.IsPositive() {
		inv.PreviousBalance = carry
	}

	inv.Total = inv.PreviousBalance.Add(inv.Expenses).Sub(inv.Payments)
	inv.Paid = !inv.Total.IsPositive()
	return inv, nil
}

func inWindow(d, start, end time.Time) bool {
	d = dateOnly(d)
	return !d.Before(dateOnly(start)) && !d.After(dateOnly(end))
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
