package accumulation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-memory Repository for tests and local runs.
// Returned mappings are copies; mutate through the Repository methods.
type MemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]*Mapping
	now    func() time.Time
	locks  []string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[int64]*Mapping), now: time.Now}
}

// LockSubject records the subject. Callers share one process, so the
// repository mutex already serializes writes.
func (r *MemoryRepository) LockSubject(_ context.Context, subject string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locks = append(r.locks, subject)
	return nil
}

// LockedSubjects returns every subject passed to LockSubject, in call order.
func (r *MemoryRepository) LockedSubjects() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.locks...)
}

func (r *MemoryRepository) Create(_ context.Context, m *Mapping) error {
	if !m.HasSingleSubject() {
		return fmt.Errorf("accumulation mapping needs exactly one subject")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.AccumulationUniqueID != nil {
		for _, existing := range r.items {
			if existing.AccumulationUniqueID != nil && *existing.AccumulationUniqueID == *m.AccumulationUniqueID {
				return fmt.Errorf("duplicate accumulation_unique_id %q", *m.AccumulationUniqueID)
			}
		}
	}
	r.nextID++
	m.ID = r.nextID
	if m.CreatedAt.IsZero() {
		m.CreatedAt = r.now()
	}
	m.ModifiedAt = m.CreatedAt
	cp := *m
	r.items[m.ID] = &cp
	return nil
}

func (r *MemoryRepository) Get(id int64) (*Mapping, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.items[id]
	if !ok {
		return nil, false
	}
	cp := *m
	return &cp, true
}

func (r *MemoryRepository) filter(match func(*Mapping) bool) []*Mapping {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Mapping
	for _, m := range r.items {
		if match(m) {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (r *MemoryRepository) GetByUniqueID(_ context.Context, uniqueID string) (*Mapping, error) {
	found := r.filter(func(m *Mapping) bool {
		return m.AccumulationUniqueID != nil && *m.AccumulationUniqueID == uniqueID
	})
	if len(found) == 0 {
		return nil, ErrMappingNotFound
	}
	return found[0], nil
}

func (r *MemoryRepository) ListForReimbursementRequest(_ context.Context, reimbursementRequestID int64) ([]*Mapping, error) {
	return r.filter(func(m *Mapping) bool {
		return m.ReimbursementRequestID != nil && *m.ReimbursementRequestID == reimbursementRequestID
	}), nil
}

func (r *MemoryRepository) ListForProcedure(_ context.Context, procedureUUID uuid.UUID) ([]*Mapping, error) {
	return r.filter(func(m *Mapping) bool {
		return m.TreatmentProcedureUUID != nil && *m.TreatmentProcedureUUID == procedureUUID
	}), nil
}

func (r *MemoryRepository) ListPending(_ context.Context, payerID int64, status Status) ([]*Mapping, error) {
	return r.filter(func(m *Mapping) bool {
		return m.PayerID == payerID && m.Status == status
	}), nil
}

func (r *MemoryRepository) UpdateResponse(_ context.Context, id int64, status Status, responseCode string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[id]
	if !ok {
		return ErrMappingNotFound
	}
	m.Status = status
	m.ResponseCode = nil
	if responseCode != "" {
		code := responseCode
		m.ResponseCode = &code
	}
	m.ModifiedAt = r.now()
	return nil
}

func (r *MemoryRepository) MarkSubmitted(_ context.Context, s Submission) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[s.MappingID]
	if !ok || m.Status != StatusPaid {
		return false, nil
	}
	uniqueID, txID, fileName := s.UniqueID, s.TransactionID, s.ReportFileName
	m.Status = StatusSubmitted
	m.AccumulationUniqueID = &uniqueID
	m.AccumulationTransactionID = &txID
	m.Deductible = s.Deductible
	m.OOPApplied = s.OOPApplied
	m.HRAApplied = s.HRAApplied
	m.ReportFileName = &fileName
	m.ModifiedAt = r.now()
	return true, nil
}

func (r *MemoryRepository) Search(_ context.Context, f Filter, limit, offset int) ([]*Mapping, int, error) {
	all := r.filter(func(m *Mapping) bool {
		if f.PayerID != nil && m.PayerID != *f.PayerID {
			return false
		}
		return f.Status == nil || m.Status == *f.Status
	})
	// Newest first, matching the PostgreSQL repository.
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}
