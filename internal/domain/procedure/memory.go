package procedure

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository is an in-memory Repository for tests and local runs.
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*TreatmentProcedure
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[uuid.UUID]*TreatmentProcedure)}
}

func (m *MemoryRepository) Add(tp *TreatmentProcedure) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[tp.UUID] = tp
}

func (m *MemoryRepository) GetByUUID(_ context.Context, id uuid.UUID) (*TreatmentProcedure, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tp, ok := m.items[id]
	if !ok {
		return nil, ErrProcedureNotFound
	}
	return tp, nil
}
