package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"contas/internal/core"
	"contas/internal/ledger"
)

// EventPublisher announces committed allocations to interested
// consumers (statement export, household refresh). Optional: a nil
// publisher disables events without failing commands.
type EventPublisher interface {
	PublishAllocationCommitted(ctx context.Context, t core.Transaction) error
}

// AllocationService runs allocate/deallocate commands end to end:
// snapshot fetch, validation, executor write, then a best-effort event.
// It holds no state between calls; consistency against concurrent
// household writers is the executor's problem, and a rejection there
// surfaces as ErrCommandRejected.
type AllocationService struct {
	accounts     ledger.AccountReader
	transactions ledger.TransactionReader
	executor     ledger.AllocationExecutor
	publisher    EventPublisher
	now          func() time.Time
}

func NewAllocationService(
	accounts ledger.AccountReader,
	transactions ledger.TransactionReader,
	executor ledger.AllocationExecutor,
	publisher EventPublisher,
) *AllocationService {
	return &AllocationService{
		accounts:     accounts,
		transactions: transactions,
		executor:     executor,
		publisher:    publisher,
		now:          time.Now,
	}
}

// Validate computes the permitted bound for a command against the
// freshest snapshot, without executing anything.
func (s *AllocationService) Validate(ctx context.Context, cmd core.Command) (core.ValidationResult, error) {
	bank, err := s.accounts.GetAccount(ctx, cmd.BankAccountID)
	if err != nil {
		return core.ValidationResult{}, fmt.Errorf("get bank account: %w", err)
	}
	txs, err := s.transactions.ListTransactions(ctx, cmd.BankAccountID)
	if err != nil {
		return core.ValidationResult{}, fmt.Errorf("list transactions: %w", err)
	}
	return core.ValidateCommand(cmd, bank, txs), nil
}

// Execute validates the command and, if permitted, writes the signed
// ALLOCATION transaction through the executor. The returned transaction
// is the row handed to the executor. The snapshot used for validation
// can be stale; a concurrent writer may still get the command rejected
// server-side, which is reported, not retried.
func (s *AllocationService) Execute(ctx context.Context, cmd core.Command, description string) (core.Transaction, error) {
	if cmd.Kind == core.KindDeallocate && cmd.CreditCardID == "" {
		return core.Transaction{}, core.ErrMissingSelection
	}

	res, err := s.Validate(ctx, cmd)
	if err != nil {
		return core.Transaction{}, err
	}
	if !res.Valid {
		slog.InfoContext(ctx, "Allocation command rejected by validator",
			"command_kind", string(cmd.Kind),
			"account_id", cmd.BankAccountID,
			"card_id", cmd.CreditCardID,
			"amount", cmd.Amount.String(),
			"bound", res.Bound.String())
		return core.Transaction{}, res.Err
	}

	t := core.Transaction{
		ID:              uuid.NewString(),
		Type:            core.Allocation,
		Amount:          cmd.SignedAmount(),
		AccountID:       cmd.BankAccountID,
		RelatedEntityID: cmd.CreditCardID,
		Date:            s.now(),
		Paid:            true,
		Description:     description,
	}

	ref, err := s.executor.CreateAllocation(ctx, t)
	if err != nil {
		slog.ErrorContext(ctx, "Allocation executor rejected command",
			"error", err,
			"transaction_id", t.ID,
			"account_id", t.AccountID,
			"card_id", t.RelatedEntityID)
		return core.Transaction{}, fmt.Errorf("%w: %v", core.ErrCommandRejected, err)
	}

	slog.InfoContext(ctx, "Allocation committed",
		"transaction_id", t.ID,
		"account_id", t.AccountID,
		"card_id", t.RelatedEntityID,
		"amount", t.Amount.String(),
		"ref", ref)

	// Event publish is best-effort: the allocation is already durable.
	if s.publisher != nil {
		if err := s.publisher.PublishAllocationCommitted(ctx, t); err != nil {
			slog.ErrorContext(ctx, "Failed to publish allocation event",
				"error", err, "transaction_id", t.ID)
		}
	}

	return t, nil
}

// AccountBalance returns the normalized balance triad for one account.
func (s *AllocationService) AccountBalance(ctx context.Context, accountID string) (core.Balance, error) {
	a, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return core.Balance{}, fmt.Errorf("get account: %w", err)
	}
	return core.ComputeBalance(a), nil
}

// CardAllocated returns the net collateral one bank account holds
// against one card.
func (s *AllocationService) CardAllocated(ctx context.Context, bankAccountID, cardID string) (core.Balance, error) {
	txs, err := s.transactions.ListTransactions(ctx, bankAccountID)
	if err != nil {
		return core.Balance{}, fmt.Errorf("list transactions: %w", err)
	}
	allocated := core.NetAllocated(txs, bankAccountID, cardID)
	return core.Balance{Total: allocated, Allocated: allocated}, nil
}

// CardLimits returns a card's derived limits.
func (s *AllocationService) CardLimits(ctx context.Context, cardID string) (core.Limits, error) {
	card, err := s.accounts.GetAccount(ctx, cardID)
	if err != nil {
		return core.Limits{}, fmt.Errorf("get card: %w", err)
	}
	return core.ComputeLimits(card), nil
}

// CardInvoice resolves a card's invoice for the cycle the reference
// date selects.
func (s *AllocationService) CardInvoice(ctx context.Context, cardID string, referenceDate time.Time) (core.Invoice, error) {
	card, err := s.accounts.GetAccount(ctx, cardID)
	if err != nil {
		return core.Invoice{}, fmt.Errorf("get card: %w", err)
	}
	if !card.HasInvoiceCycle() {
		return core.Invoice{}, core.ErrNoClosingDay
	}
	txs, err := s.transactions.ListTransactions(ctx, cardID)
	if err != nil {
		return core.Invoice{}, fmt.Errorf("list transactions: %w", err)
	}
	return core.ResolveInvoice(card, txs, referenceDate)
}

// IsRejection reports whether err is a server-side command rejection as
// opposed to a local validation failure.
func IsRejection(err error) bool {
	return errors.Is(err, core.ErrCommandRejected)
}
