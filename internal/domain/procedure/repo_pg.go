package procedure

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

const procedureCols = `id, uuid, member_id, reimbursement_wallet_id, procedure_type,
	cost_breakdown_id, start_date, end_date, completed_date, created_at`

func scanProcedure(row pgx.Row) (*TreatmentProcedure, error) {
	var tp TreatmentProcedure
	err := row.Scan(&tp.ID, &tp.UUID, &tp.MemberID, &tp.WalletID, &tp.ProcedureType,
		&tp.CostBreakdownID, &tp.StartDate, &tp.EndDate, &tp.CompletedDate, &tp.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProcedureNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tp, nil
}

func (r *repoPG) GetByUUID(ctx context.Context, id uuid.UUID) (*TreatmentProcedure, error) {
	return scanProcedure(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+procedureCols+` FROM treatment_procedure WHERE uuid = $1`, id))
}
