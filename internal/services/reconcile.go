package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"contas/internal/ledger"
)

// ErrReconcileTimeout means the committed transaction did not become
// visible within the attempt budget. Recoverable: callers proceed with
// best-effort data rather than blocking.
var ErrReconcileTimeout = errors.New("transaction not visible after retries")

// ReconcilerConfig bounds the retry-until-visible loop.
type ReconcilerConfig struct {
	// Attempts is the maximum number of reads (default: 5).
	Attempts int

	// Delay is the fixed pause between reads (default: 500ms).
	Delay time.Duration
}

// DefaultReconcilerConfig returns sensible defaults
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		Attempts: 5,
		Delay:    500 * time.Millisecond,
	}
}

// Reconciler waits for a freshly committed transaction to show up in
// the eventually consistent read path. The data source may need several
// refresh cycles before a write is readable; the loop polls a fixed
// number of times with a fixed delay and then reports timeout instead
// of spinning forever.
type Reconciler struct {
	transactions ledger.TransactionReader
	config       ReconcilerConfig
	sleep        func(context.Context, time.Duration) error
}

func NewReconciler(transactions ledger.TransactionReader, config ReconcilerConfig) *Reconciler {
	if config.Attempts < 1 {
		config.Attempts = DefaultReconcilerConfig().Attempts
	}
	if config.Delay <= 0 {
		config.Delay = DefaultReconcilerConfig().Delay
	}
	return &Reconciler{
		transactions: transactions,
		config:       config,
		sleep:        sleepCtx,
	}
}

// WaitVisible polls until the transaction id appears under the account,
// the attempts run out, or the context is cancelled.
func (r *Reconciler) WaitVisible(ctx context.Context, accountID, transactionID string) error {
	for attempt := 1; ; attempt++ {
		txs, err := r.transactions.ListTransactions(ctx, accountID)
		if err != nil {
			slog.WarnContext(ctx, "Reconcile read failed",
				"error", err,
				"account_id", accountID,
				"attempt", attempt)
		} else {
			for _, t := range txs {
				if t.ID == transactionID {
					slog.DebugContext(ctx, "Transaction visible",
						"transaction_id", transactionID,
						"attempt", attempt)
					return nil
				}
			}
		}

		if attempt >= r.config.Attempts {
			slog.WarnContext(ctx, "Transaction still not visible, giving up",
				"transaction_id", transactionID,
				"account_id", accountID,
				"attempt", attempt)
			return ErrReconcileTimeout
		}

		if err := r.sleep(ctx, r.config.Delay); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
