package costbreakdown

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMemoryRepository_LatestForReimbursementRequest(t *testing.T) {
	repo := NewMemoryRepository()
	rrID := int64(42)
	now := time.Now()
	repo.Add(&CostBreakdown{ID: 1, ReimbursementRequestID: &rrID, TotalMemberResponsibility: 100, CreatedAt: now.Add(-time.Hour)})
	repo.Add(&CostBreakdown{ID: 2, ReimbursementRequestID: &rrID, TotalMemberResponsibility: 200, CreatedAt: now})

	cb, err := repo.LatestForReimbursementRequest(context.Background(), rrID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cb.ID != 2 {
		t.Errorf("expected latest breakdown 2, got %d", cb.ID)
	}

	n, _ := repo.CountForReimbursementRequest(context.Background(), rrID)
	if n != 2 {
		t.Errorf("expected count 2, got %d", n)
	}

	if _, err := repo.LatestForReimbursementRequest(context.Background(), 7); !errors.Is(err, ErrCostBreakdownNotFound) {
		t.Errorf("expected ErrCostBreakdownNotFound, got %v", err)
	}
}

func TestMemoryRepository_LatestForProcedure(t *testing.T) {
	repo := NewMemoryRepository()
	id := uuid.New()
	repo.Add(&CostBreakdown{ID: 5, TreatmentProcedureUUID: &id, CreatedAt: time.Now()})

	cb, err := repo.LatestForProcedure(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cb.ID != 5 {
		t.Errorf("expected 5, got %d", cb.ID)
	}
	if _, err := repo.LatestForProcedure(context.Background(), uuid.New()); !errors.Is(err, ErrCostBreakdownNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestMemoryRepository_HasProcedureAssociation(t *testing.T) {
	repo := NewMemoryRepository()
	repo.Associate(3)
	ok, _ := repo.HasProcedureAssociation(context.Background(), 3)
	if !ok {
		t.Error("expected association")
	}
	ok, _ = repo.HasProcedureAssociation(context.Background(), 4)
	if ok {
		t.Error("unexpected association")
	}
}
