// Package backend selects and wires the persistence collaborator the
// allocation service talks to.
package backend

import (
	"contas/internal/ledger"
	"contas/internal/services"
)

// Backend bundles the ledger ports one data source provides.
type Backend interface {
	ledger.AccountReader
	ledger.TransactionReader
	ledger.AllocationExecutor
}

// CleanupFunc releases backend resources on shutdown.
type CleanupFunc func() error

// Result contains the backend instance and optional cleanup function.
type Result struct {
	Backend   Backend
	Publisher services.EventPublisher
	Cleanup   CleanupFunc
}

// Type represents the kind of data backend.
type Type string

const (
	SQLiteBackend Type = "sqlite"
	MemoryBackend Type = "memory"
)

// String implements fmt.Stringer
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is known.
func (t Type) IsValid() bool {
	switch t {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
