package payer

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryRepository is an in-memory Repository for tests and local runs.
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[int64]*Payer
}

func NewMemoryRepository(payers ...*Payer) *MemoryRepository {
	m := &MemoryRepository{items: make(map[int64]*Payer)}
	for _, p := range payers {
		m.items[p.ID] = p
	}
	return m
}

func (m *MemoryRepository) GetByID(_ context.Context, id int64) (*Payer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.items[id]
	if !ok {
		return nil, ErrPayerNotFound
	}
	return p, nil
}

func (m *MemoryRepository) find(match func(*Payer) bool) (*Payer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.items {
		if match(p) {
			return p, nil
		}
	}
	return nil, ErrPayerNotFound
}

func (m *MemoryRepository) GetByName(_ context.Context, name string) (*Payer, error) {
	return m.find(func(p *Payer) bool { return strings.EqualFold(p.PayerName, name) })
}

func (m *MemoryRepository) GetByCode(_ context.Context, code string) (*Payer, error) {
	return m.find(func(p *Payer) bool { return p.PayerCode == code })
}

func (m *MemoryRepository) List(_ context.Context) ([]*Payer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]*Payer, 0, len(m.items))
	for _, p := range m.items {
		items = append(items, p)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}
