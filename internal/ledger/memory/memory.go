// Package memory holds an in-process implementation of the ledger
// ports, used as the default backend and as the test double for the
// persistence layer.
package memory

import (
	"context"
	"fmt"
	"sync"

	"contas/internal/core"
	"contas/internal/ledger"
)

var ErrAccountNotFound = ledger.ErrAccountNotFound

type Store struct {
	mu           sync.Mutex
	accounts     map[string]core.Account
	order        []string
	transactions []core.Transaction

	// failNext simulates a server-side rejection of the next write,
	// e.g. another household member racing the same balance.
	failNext error
}

func New(accounts ...core.Account) *Store {
	s := &Store{accounts: make(map[string]core.Account)}
	for _, a := range accounts {
		s.accounts[a.ID] = a
		s.order = append(s.order, a.ID)
	}
	return s
}

// GetAccount implements ledger.AccountReader.
func (s *Store) GetAccount(_ context.Context, id string) (*core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	rec := a
	return &rec, nil
}

// ListAccounts implements ledger.AccountReader.
func (s *Store) ListAccounts(_ context.Context) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Account, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.accounts[id])
	}
	return out, nil
}

// ListTransactions implements ledger.TransactionReader.
func (s *Store) ListTransactions(_ context.Context, accountID string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, t := range s.transactions {
		if accountID == "" || t.AccountID == accountID {
			out = append(out, t)
		}
	}
	return out, nil
}

// CreateAllocation implements ledger.AllocationExecutor. The bank
// account's available/allocated aggregates move together with the new
// row, mirroring what the real persistence layer does server-side.
func (s *Store) CreateAllocation(_ context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return "", err
	}

	a, ok := s.accounts[t.AccountID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrAccountNotFound, t.AccountID)
	}

	balance := core.ComputeBalance(&a)
	available := balance.Available.Sub(t.Amount)
	allocated := balance.Allocated.Add(t.Amount)
	if available.IsNegative() || allocated.IsNegative() {
		return "", core.ErrInsufficientBalance
	}
	a.AvailableBalance = &available
	a.AllocatedBalance = &allocated
	s.accounts[t.AccountID] = a

	s.transactions = append(s.transactions, t)
	return fmt.Sprintf("mem:%d", len(s.transactions)), nil
}

// FailNextWrite makes the next CreateAllocation return err, simulating
// a concurrent-writer rejection.
func (s *Store) FailNextWrite(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

// AddTransaction seeds a raw transaction without touching aggregates.
func (s *Store) AddTransaction(t core.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = append(s.transactions, t)
}

// PutAccount inserts or replaces an account record.
func (s *Store) PutAccount(a core.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.ID]; !ok {
		s.order = append(s.order, a.ID)
	}
	s.accounts[a.ID] = a
}
