package loan

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/loan-engine/engine"
)

// =============================================================================
// MEMORY STORE - in-memory Store for tests and development
// =============================================================================

type MemoryStore struct {
	mu    sync.RWMutex
	loans map[ID]*Loan
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{loans: make(map[ID]*Loan)}
}

func (m *MemoryStore) CreateLoan(_ context.Context, l *Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *l
	m.loans[l.ID] = &cp
	return nil
}

func (m *MemoryStore) Loan(_ context.Context, id ID) (*Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.loans[id]
	if !ok {
		return nil, ErrLoanNotFound
	}
	cp := *l
	cp.Schedule.Installments = append([]engine.Installment(nil), l.Schedule.Installments...)
	cp.Transactions = append([]Transaction(nil), l.Transactions...)
	return &cp, nil
}

func (m *MemoryStore) ListLoans(_ context.Context) ([]*Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Loan, 0, len(m.loans))
	for _, l := range m.loans {
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) UpdateInstallments(_ context.Context, id ID, installments []engine.Installment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.loans[id]
	if !ok {
		return ErrLoanNotFound
	}
	l.Schedule.Installments = append([]engine.Installment(nil), installments...)
	return nil
}

func (m *MemoryStore) AppendTransaction(_ context.Context, id ID, tx Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.loans[id]
	if !ok {
		return ErrLoanNotFound
	}
	l.Transactions = append(l.Transactions, tx)
	return nil
}

func (m *MemoryStore) MarkReversed(_ context.Context, id ID, txID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.loans[id]
	if !ok {
		return ErrLoanNotFound
	}
	for i := range l.Transactions {
		if l.Transactions[i].ID == txID {
			l.Transactions[i].Reversed = true
			return nil
		}
	}
	return ErrTransactionNotFound
}
