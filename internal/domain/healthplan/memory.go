package healthplan

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository is an in-memory Repository for tests and local runs.
type MemoryRepository struct {
	mu        sync.RWMutex
	employers map[int64]*EmployerHealthPlan
	members   []*MemberHealthPlan
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{employers: make(map[int64]*EmployerHealthPlan)}
}

func (m *MemoryRepository) AddEmployerHealthPlan(p *EmployerHealthPlan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employers[p.ID] = p
}

func (m *MemoryRepository) AddMemberHealthPlan(p *MemberHealthPlan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members = append(m.members, p)
}

func (m *MemoryRepository) GetEmployerHealthPlan(_ context.Context, id int64) (*EmployerHealthPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.employers[id]
	if !ok {
		return nil, ErrEmployerPlanNotFound
	}
	return p, nil
}

func (m *MemoryRepository) GetMemberHealthPlan(_ context.Context, memberID, walletID int64, effectiveDate time.Time) (*MemberHealthPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *MemberHealthPlan
	for _, mhp := range m.members {
		if mhp.MemberID != memberID || mhp.WalletID != walletID || !mhp.ActiveOn(effectiveDate) {
			continue
		}
		ehp, ok := m.employers[mhp.EmployerHealthPlanID]
		if !ok || !ehp.Covers(effectiveDate) {
			continue
		}
		if best == nil || newerEnrollment(mhp, best) {
			cp := *mhp
			cp.EmployerHealthPlan = ehp
			best = &cp
		}
	}
	if best == nil {
		return nil, ErrMemberPlanNotFound
	}
	return best, nil
}

// newerEnrollment orders enrollments by plan start, then id, both
// descending, matching the Postgres query.
func newerEnrollment(a, b *MemberHealthPlan) bool {
	if !a.PlanStartAt.Equal(b.PlanStartAt) {
		return a.PlanStartAt.After(b.PlanStartAt)
	}
	return a.ID > b.ID
}
