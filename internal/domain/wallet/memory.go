package wallet

import (
	"context"
	"sync"
)

// MemoryRepository is an in-memory Repository for tests and local runs.
type MemoryRepository struct {
	mu       sync.RWMutex
	wallets  map[int64]*Wallet
	requests map[int64]*ReimbursementRequest
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		wallets:  make(map[int64]*Wallet),
		requests: make(map[int64]*ReimbursementRequest),
	}
}

func (m *MemoryRepository) AddWallet(w *Wallet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallets[w.ID] = w
}

func (m *MemoryRepository) AddReimbursementRequest(rr *ReimbursementRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[rr.ID] = rr
}

func (m *MemoryRepository) GetWallet(_ context.Context, id int64) (*Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.wallets[id]
	if !ok {
		return nil, ErrWalletNotFound
	}
	return w, nil
}

func (m *MemoryRepository) GetReimbursementRequest(_ context.Context, id int64) (*ReimbursementRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rr, ok := m.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	return rr, nil
}
