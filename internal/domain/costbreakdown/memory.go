package costbreakdown

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository is an in-memory Repository for tests and local runs.
type MemoryRepository struct {
	mu           sync.RWMutex
	items        []*CostBreakdown
	associations map[int64]bool
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{associations: make(map[int64]bool)}
}

func (m *MemoryRepository) Add(cb *CostBreakdown) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, cb)
}

// Associate links a reimbursement request to a procedure cost breakdown.
func (m *MemoryRepository) Associate(reimbursementRequestID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.associations[reimbursementRequestID] = true
}

func (m *MemoryRepository) latest(match func(*CostBreakdown) bool) (*CostBreakdown, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *CostBreakdown
	for _, cb := range m.items {
		if !match(cb) {
			continue
		}
		if best == nil || !cb.CreatedAt.Before(best.CreatedAt) {
			best = cb
		}
	}
	if best == nil {
		return nil, ErrCostBreakdownNotFound
	}
	return best, nil
}

func (m *MemoryRepository) LatestForReimbursementRequest(_ context.Context, reimbursementRequestID int64) (*CostBreakdown, error) {
	return m.latest(func(cb *CostBreakdown) bool {
		return cb.ReimbursementRequestID != nil && *cb.ReimbursementRequestID == reimbursementRequestID
	})
}

func (m *MemoryRepository) LatestForProcedure(_ context.Context, procedureUUID uuid.UUID) (*CostBreakdown, error) {
	return m.latest(func(cb *CostBreakdown) bool {
		return cb.TreatmentProcedureUUID != nil && *cb.TreatmentProcedureUUID == procedureUUID
	})
}

func (m *MemoryRepository) CountForReimbursementRequest(_ context.Context, reimbursementRequestID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, cb := range m.items {
		if cb.ReimbursementRequestID != nil && *cb.ReimbursementRequestID == reimbursementRequestID {
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepository) HasProcedureAssociation(_ context.Context, reimbursementRequestID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.associations[reimbursementRequestID], nil
}
