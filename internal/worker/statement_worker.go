package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"contas/internal/amqp"
	"contas/internal/core"
	"contas/internal/ledger"
	"contas/internal/log"
)

// StatementWorker consumes allocation-committed events and appends
// them to the external statement. Export is at-least-once: a failed
// append nacks the delivery back onto the queue, so duplicate rows are
// possible after a crash and the statement is an audit trail, not a
// ledger of record.
type StatementWorker struct {
	client    *amqp.Client
	statement ledger.StatementWriter
	logger    *log.Logger

	mu      sync.Mutex
	running bool

	// Counters for the startup/shutdown log line.
	exported int64
	failed   int64
}

func NewStatementWorker(client *amqp.Client, statement ledger.StatementWriter) *StatementWorker {
	return &StatementWorker{
		client:    client,
		statement: statement,
		logger:    log.New(log.DefaultConfig()).WithComponent(log.ComponentWorker),
	}
}

// Run consumes events until the context ends. Returns an error if the
// worker is already running.
func (w *StatementWorker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("statement worker is already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()

		w.logger.InfoContext(ctx, "Statement worker stopped",
			log.FieldOperation, log.OpShutdown,
			"exported", w.exported,
			"failed", w.failed)
	}()

	w.logger.InfoContext(ctx, "Statement worker started", log.FieldOperation, log.OpStartup)

	return w.client.ConsumeAllocationEvents(ctx, func(msg *amqp.AllocationCommittedMessage) error {
		return w.export(ctx, msg)
	})
}

func (w *StatementWorker) export(ctx context.Context, msg *amqp.AllocationCommittedMessage) error {
	amount, err := decimal.NewFromString(msg.Amount)
	if err != nil {
		// Undecodable amount will never succeed; log and drop.
		w.logger.ErrorContext(ctx, "Allocation event carries bad amount",
			log.FieldTransactionID, msg.TransactionID,
			log.FieldAmount, msg.Amount,
			log.FieldError, err)
		return nil
	}

	t := core.Transaction{
		ID:              msg.TransactionID,
		Type:            core.Allocation,
		Amount:          amount,
		AccountID:       msg.AccountID,
		RelatedEntityID: msg.CreditCardID,
		Date:            msg.Date,
		Paid:            true,
		Description:     msg.Description,
	}

	ref, err := w.statement.AppendAllocation(ctx, t)
	if err != nil {
		w.failed++
		return fmt.Errorf("append to statement: %w", err)
	}

	w.exported++
	w.logger.InfoContext(ctx, "Allocation event exported",
		log.FieldOperation, log.OpExportOp,
		log.FieldTransactionID, msg.TransactionID,
		log.FieldStatementRef, ref,
		"lag", time.Since(msg.Timestamp).String())

	return nil
}

// IsRunning reports whether the worker loop is active.
func (w *StatementWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
