package healthplan

import (
	"context"
	"errors"
	"time"
)

var (
	ErrEmployerPlanNotFound = errors.New("employer health plan not found")
	ErrMemberPlanNotFound   = errors.New("member health plan not found")
)

type Repository interface {
	GetEmployerHealthPlan(ctx context.Context, id int64) (*EmployerHealthPlan, error)
	// GetMemberHealthPlan returns the enrollment of memberID through walletID
	// whose own window and employer plan year both contain effectiveDate,
	// with EmployerHealthPlan populated.
	GetMemberHealthPlan(ctx context.Context, memberID, walletID int64, effectiveDate time.Time) (*MemberHealthPlan, error)
}

// TemporalPlanLookup resolves the employer plan effective on a date through
// the member's enrollment.
type TemporalPlanLookup struct {
	repo Repository
}

func NewTemporalPlanLookup(repo Repository) *TemporalPlanLookup {
	return &TemporalPlanLookup{repo: repo}
}

func (l *TemporalPlanLookup) EmployerHealthPlan(ctx context.Context, walletID, userID int64, effectiveDate time.Time) (*EmployerHealthPlan, error) {
	mhp, err := l.repo.GetMemberHealthPlan(ctx, userID, walletID, effectiveDate)
	if err != nil {
		return nil, err
	}
	if mhp.EmployerHealthPlan == nil {
		return l.repo.GetEmployerHealthPlan(ctx, mhp.EmployerHealthPlanID)
	}
	return mhp.EmployerHealthPlan, nil
}
