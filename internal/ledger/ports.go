package ledger

import (
	"context"
	"errors"

	"contas/internal/core"
)

// ErrAccountNotFound is returned by any AccountReader when an account
// id is unknown to the data source.
var ErrAccountNotFound = errors.New("account not found")

// Ports for outbound adapters. The core only reads account and
// transaction snapshots and requests the creation of ALLOCATION rows;
// persistence, authentication and household access control live behind
// these interfaces.
type (
	AccountReader interface {
		// GetAccount returns the most recently known record for one account.
		GetAccount(ctx context.Context, id string) (*core.Account, error)

		// ListAccounts returns every account visible to the household.
		ListAccounts(ctx context.Context) ([]core.Account, error)
	}

	TransactionReader interface {
		// ListTransactions returns transactions recorded against the
		// account, ALLOCATION rows included. An empty id lists all.
		ListTransactions(ctx context.Context, accountID string) ([]core.Transaction, error)
	}

	// AllocationExecutor persists one signed ALLOCATION transaction.
	// The call is atomic: the row is either fully written or rejected.
	AllocationExecutor interface {
		CreateAllocation(ctx context.Context, t core.Transaction) (ref string, err error)
	}

	// StatementWriter records a committed allocation on an external
	// statement, for audit.
	StatementWriter interface {
		AppendAllocation(ctx context.Context, t core.Transaction) (ref string, err error)
	}
)
