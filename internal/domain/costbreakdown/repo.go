package costbreakdown

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrCostBreakdownNotFound = errors.New("cost breakdown not found")

type Repository interface {
	// LatestForReimbursementRequest returns the most recent breakdown
	// computed for the request.
	LatestForReimbursementRequest(ctx context.Context, reimbursementRequestID int64) (*CostBreakdown, error)
	LatestForProcedure(ctx context.Context, procedureUUID uuid.UUID) (*CostBreakdown, error)
	CountForReimbursementRequest(ctx context.Context, reimbursementRequestID int64) (int, error)
	// HasProcedureAssociation reports whether the request is linked to a
	// treatment procedure cost breakdown through
	// reimbursement_request_to_cost_breakdown.
	HasProcedureAssociation(ctx context.Context, reimbursementRequestID int64) (bool, error)
}
