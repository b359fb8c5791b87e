package costbreakdown

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maven/accumulator/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const cbCols = `id, treatment_procedure_uuid, reimbursement_request_id,
	total_member_responsibility, total_employer_responsibility,
	deductible, oop_applied, hra_applied, created_at`

func scanCostBreakdown(row pgx.Row) (*CostBreakdown, error) {
	var cb CostBreakdown
	err := row.Scan(&cb.ID, &cb.TreatmentProcedureUUID, &cb.ReimbursementRequestID,
		&cb.TotalMemberResponsibility, &cb.TotalEmployerResponsibility,
		&cb.Deductible, &cb.OOPApplied, &cb.HRAApplied, &cb.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCostBreakdownNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cb, nil
}

func (r *repoPG) LatestForReimbursementRequest(ctx context.Context, reimbursementRequestID int64) (*CostBreakdown, error) {
	return scanCostBreakdown(db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+cbCols+` FROM cost_breakdown
		WHERE reimbursement_request_id = $1
		ORDER BY created_at DESC, id DESC LIMIT 1`, reimbursementRequestID))
}

func (r *repoPG) LatestForProcedure(ctx context.Context, procedureUUID uuid.UUID) (*CostBreakdown, error) {
	return scanCostBreakdown(db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+cbCols+` FROM cost_breakdown
		WHERE treatment_procedure_uuid = $1
		ORDER BY created_at DESC, id DESC LIMIT 1`, procedureUUID))
}

func (r *repoPG) CountForReimbursementRequest(ctx context.Context, reimbursementRequestID int64) (int, error) {
	var n int
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM cost_breakdown WHERE reimbursement_request_id = $1`,
		reimbursementRequestID).Scan(&n)
	return n, err
}

func (r *repoPG) HasProcedureAssociation(ctx context.Context, reimbursementRequestID int64) (bool, error) {
	var exists bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM reimbursement_request_to_cost_breakdown
			WHERE reimbursement_request_id = $1
		)`, reimbursementRequestID).Scan(&exists)
	return exists, err
}
