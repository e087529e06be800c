package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Checking   AccountType = "CHECKING"
	Savings    AccountType = "SAVINGS"
	Credit     AccountType = "CREDIT"
	Cash       AccountType = "CASH"
	Investment AccountType = "INVESTMENT"
)

const (
	Income     TransactionType = "INCOME"
	Expense    TransactionType = "EXPENSE"
	Transfer   TransactionType = "TRANSFER"
	Allocation TransactionType = "ALLOCATION"
)

type (
	AccountType string

	TransactionType string

	// Account is a bank account, cash wallet, investment account or
	// credit card as supplied by the data layer. The balance fields are
	// nullable upstream; nil means the field was absent and the
	// fallback chain in ComputeBalance applies.
	Account struct {
		ID       string
		Name     string
		Type     AccountType
		Currency string

		Balance          *decimal.Decimal // legacy aggregate, lowest priority
		TotalBalance     *decimal.Decimal
		AvailableBalance *decimal.Decimal
		AllocatedBalance *decimal.Decimal

		// Credit card configuration.
		CreditLimit     *decimal.Decimal
		DueDay          int
		ClosingDay      int
		LinkedAccountID string

		// Household sharing.
		IsPersonal     bool
		AccountOwnerID string // empty means jointly owned
	}

	// Transaction is an immutable financial event. For ALLOCATION rows
	// a positive amount moves collateral from AccountID to the credit
	// card in RelatedEntityID; a negative amount releases it.
	Transaction struct {
		ID              string
		Type            TransactionType
		Amount          decimal.Decimal
		AccountID       string
		RelatedEntityID string
		FromAccountID   string
		ToAccountID     string
		Date            time.Time
		Paid            bool
		CategoryName    string
		Description     string
		Notes           string
	}
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrMissingSelection    = errors.New("no credit card selected")
	ErrCommandRejected     = errors.New("command rejected")
	ErrNoClosingDay        = errors.New("account has no closing day configured")
	ErrEmptyAccountID      = errors.New("empty account id")
)

// IsCreditCard reports whether the account is a credit card.
func (a *Account) IsCreditCard() bool {
	return a != nil && a.Type == Credit
}

// HasInvoiceCycle reports whether the card carries enough configuration
// to resolve an invoice. Callers must check this before ResolveInvoice.
func (a *Account) HasInvoiceCycle() bool {
	return a.IsCreditCard() && a.ClosingDay >= 1 && a.ClosingDay <= 31
}

func (a *Account) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return ErrEmptyAccountID
	}
	switch a.Type {
	case Checking, Savings, Credit, Cash, Investment:
	default:
		return errors.New("unknown account type: " + string(a.Type))
	}
	if a.DueDay != 0 && (a.DueDay < 1 || a.DueDay > 31) {
		return errors.New("due day out of range")
	}
	if a.ClosingDay != 0 && (a.ClosingDay < 1 || a.ClosingDay > 31) {
		return errors.New("closing day out of range")
	}
	return nil
}

func (t *Transaction) Validate() error {
	if strings.TrimSpace(t.AccountID) == "" {
		return ErrEmptyAccountID
	}
	switch t.Type {
	case Income, Expense, Transfer, Allocation:
	default:
		return errors.New("unknown transaction type: " + string(t.Type))
	}
	if t.Type == Allocation && strings.TrimSpace(t.RelatedEntityID) == "" {
		return ErrMissingSelection
	}
	if t.Type == Allocation {
		if t.Amount.IsZero() {
			return ErrInvalidAmount
		}
	} else if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if t.Date.IsZero() {
		return errors.New("transaction date cannot be zero")
	}
	return nil
}

// Dec is a shorthand for building decimals from literals.
func Dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic("core: bad decimal literal " + s)
	}
	return d
}

// DecPtr returns a pointer to a decimal built from s, for the nullable
// balance fields on Account.
func DecPtr(s string) *decimal.Decimal {
	d := Dec(s)
	return &d
}
