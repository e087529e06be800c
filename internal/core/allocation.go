package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CommandKind distinguishes the two collateral operations. The sign
// convention on the wire (positive allocates, negative releases) is an
// executor-boundary concern; inside this package a command is always a
// kind plus a positive amount.
type CommandKind string

const (
	KindAllocate   CommandKind = "allocate"
	KindDeallocate CommandKind = "deallocate"
)

// Command is a requested allocation or deallocation of collateral from
// a bank account to a credit card.
type Command struct {
	Kind          CommandKind
	BankAccountID string
	CreditCardID  string // may be empty while the user is still choosing
	Amount        decimal.Decimal
}

// Allocate builds a command that commits collateral to a card.
func Allocate(bankAccountID, creditCardID string, amount decimal.Decimal) Command {
	return Command{Kind: KindAllocate, BankAccountID: bankAccountID, CreditCardID: creditCardID, Amount: amount}
}

// Deallocate builds a command that releases collateral from a card.
func Deallocate(bankAccountID, creditCardID string, amount decimal.Decimal) Command {
	return Command{Kind: KindDeallocate, BankAccountID: bankAccountID, CreditCardID: creditCardID, Amount: amount}
}

// SignedAmount converts the command to the wire convention used by
// ALLOCATION transactions: positive allocates, negative releases.
func (c Command) SignedAmount() decimal.Decimal {
	if c.Kind == KindDeallocate {
		return c.Amount.Neg()
	}
	return c.Amount
}

// ValidationResult carries the permitted maximum for the command and
// whether the requested amount fits within it. Bound is always computed
// so the caller can display it even for invalid commands.
type ValidationResult struct {
	Bound decimal.Decimal
	Valid bool
	Err   error // nil when Valid
}

// ValidateCommand decides whether a command is permitted against the
// most recently fetched snapshot of the bank account and transaction
// list.
//
// The bound depends on the command:
//
//	allocate:              the bank account's available balance
//	deallocate, card set:  net allocated to that card (per card, since
//	                       one account may back several cards)
//	deallocate, no card:   the account-wide allocated balance, as a
//	                       provisional ceiling until a card is chosen
//
// An amount over the bound is rejected with ErrInsufficientBalance,
// never clamped. Callers must re-validate with the displayed amount
// whenever the bound changes, e.g. when the selected card switches.
func ValidateCommand(cmd Command, bank *Account, transactions []Transaction) ValidationResult {
	balance := ComputeBalance(bank)

	var bound decimal.Decimal
	switch {
	case cmd.Kind == KindAllocate:
		bound = balance.Available
	case cmd.CreditCardID != "":
		bound = NetAllocated(transactions, cmd.BankAccountID, cmd.CreditCardID)
	default:
		bound = balance.Allocated
	}

	if !cmd.Amount.IsPositive() {
		return ValidationResult{Bound: bound, Err: ErrInvalidAmount}
	}
	if cmd.Amount.GreaterThan(bound) {
		return ValidationResult{Bound: bound, Err: ErrInsufficientBalance}
	}
	return ValidationResult{Bound: bound, Valid: true}
}

// WorkflowState is the lifecycle of one allocation workflow instance.
type WorkflowState string

const (
	StateIdle          WorkflowState = "idle"
	StateAmountEntered WorkflowState = "amount_entered"
	StateValidating    WorkflowState = "validating"
	StateValid         WorkflowState = "valid"
	StateInvalid       WorkflowState = "invalid"
	StateSubmitting    WorkflowState = "submitting"
	StateCommitted     WorkflowState = "committed"
	StateFailed        WorkflowState = "failed"
)

// Workflow tracks a single allocate/deallocate interaction from amount
// entry through commit. It holds no locks: one workflow belongs to one
// caller. A failed submission returns to AmountEntered with the user's
// input preserved so it can be corrected and resubmitted.
type Workflow struct {
	state   WorkflowState
	command Command
	result  ValidationResult
	lastErr error
}

// NewWorkflow starts an idle workflow.
func NewWorkflow() *Workflow {
	return &Workflow{state: StateIdle}
}

func (w *Workflow) State() WorkflowState     { return w.state }
func (w *Workflow) Command() Command         { return w.command }
func (w *Workflow) Result() ValidationResult { return w.result }
func (w *Workflow) LastErr() error           { return w.lastErr }

func (w *Workflow) invalidTransition(op string) error {
	return fmt.Errorf("cannot %s in state %s", op, w.state)
}

// EnterAmount records the requested command. Permitted from any state
// that is not mid-submission; re-entering an amount discards a previous
// validation verdict.
func (w *Workflow) EnterAmount(cmd Command) error {
	if w.state == StateSubmitting {
		return w.invalidTransition("enter amount")
	}
	w.command = cmd
	w.state = StateAmountEntered
	return nil
}

// Validate runs the command validator against the given snapshot and
// moves to Valid or Invalid.
func (w *Workflow) Validate(bank *Account, transactions []Transaction) (ValidationResult, error) {
	if w.state != StateAmountEntered && w.state != StateValid && w.state != StateInvalid {
		return ValidationResult{}, w.invalidTransition("validate")
	}
	w.state = StateValidating
	w.result = ValidateCommand(w.command, bank, transactions)
	if w.result.Valid {
		w.state = StateValid
	} else {
		w.state = StateInvalid
	}
	return w.result, nil
}

// Submit marks the command as handed to the executor. Only a validated
// command may be submitted, and a deallocation must name its card by
// then.
func (w *Workflow) Submit() error {
	if w.state != StateValid {
		return w.invalidTransition("submit")
	}
	if w.command.Kind == KindDeallocate && w.command.CreditCardID == "" {
		return ErrMissingSelection
	}
	w.state = StateSubmitting
	return nil
}

// Commit records executor confirmation.
func (w *Workflow) Commit() error {
	if w.state != StateSubmitting {
		return w.invalidTransition("commit")
	}
	w.state = StateCommitted
	return nil
}

// Fail records executor rejection. The executor call is atomic from
// this side: it either committed or it did not, so there is no partial
// state to roll back.
func (w *Workflow) Fail(err error) error {
	if w.state != StateSubmitting {
		return w.invalidTransition("fail")
	}
	w.lastErr = err
	w.state = StateFailed
	return nil
}

// Retry returns a failed workflow to AmountEntered with the user's
// input preserved so it can be corrected and resubmitted.
func (w *Workflow) Retry() error {
	if w.state != StateFailed {
		return w.invalidTransition("retry")
	}
	w.state = StateAmountEntered
	return nil
}
