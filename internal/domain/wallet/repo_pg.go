package wallet

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maven/accumulator/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) GetWallet(ctx context.Context, id int64) (*Wallet, error) {
	var w Wallet
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, direct_payment_enabled, deductible_accumulation_enabled
		FROM reimbursement_wallet WHERE id = $1`, id).
		Scan(&w.ID, &w.DirectPaymentEnabled, &w.DeductibleAccumulationEnabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

const requestCols = `id, reimbursement_wallet_id, amount, state, reimbursement_type,
	procedure_type, cost_sharing_category, person_receiving_service_id,
	person_receiving_service_member_status, auto_processed,
	service_start_date, service_end_date, created_at`

func (r *repoPG) GetReimbursementRequest(ctx context.Context, id int64) (*ReimbursementRequest, error) {
	var rr ReimbursementRequest
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+requestCols+` FROM reimbursement_request WHERE id = $1`, id).
		Scan(&rr.ID, &rr.WalletID, &rr.Amount, &rr.State, &rr.ReimbursementType,
			&rr.ProcedureType, &rr.CostSharingCategory, &rr.PersonReceivingServiceID,
			&rr.PersonReceivingServiceMemberStatus, &rr.AutoProcessed,
			&rr.ServiceStartDate, &rr.ServiceEndDate, &rr.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rr, nil
}
