package accumulation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maven/accumulator/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const mappingCols = `id, accumulation_unique_id, accumulation_transaction_id,
	treatment_procedure_uuid, reimbursement_request_id, payer_id,
	deductible, oop_applied, hra_applied, treatment_accumulation_status,
	is_refund, response_code, report_file_name, completed_at, created_at, modified_at`

func scanMapping(row pgx.Row) (*Mapping, error) {
	var m Mapping
	err := row.Scan(&m.ID, &m.AccumulationUniqueID, &m.AccumulationTransactionID,
		&m.TreatmentProcedureUUID, &m.ReimbursementRequestID, &m.PayerID,
		&m.Deductible, &m.OOPApplied, &m.HRAApplied, &m.Status,
		&m.IsRefund, &m.ResponseCode, &m.ReportFileName, &m.CompletedAt, &m.CreatedAt, &m.ModifiedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMappingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func collect(rows pgx.Rows, err error) ([]*Mapping, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Mapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

func (r *repoPG) LockSubject(ctx context.Context, subject string) error {
	_, err := r.conn(ctx).Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, subject)
	return err
}

func (r *repoPG) Create(ctx context.Context, m *Mapping) error {
	if !m.HasSingleSubject() {
		return fmt.Errorf("accumulation mapping needs exactly one subject")
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO accumulation_treatment_mapping (
			accumulation_unique_id, accumulation_transaction_id,
			treatment_procedure_uuid, reimbursement_request_id, payer_id,
			deductible, oop_applied, hra_applied, treatment_accumulation_status,
			is_refund, response_code, report_file_name, completed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING id, created_at, modified_at`,
		m.AccumulationUniqueID, m.AccumulationTransactionID,
		m.TreatmentProcedureUUID, m.ReimbursementRequestID, m.PayerID,
		m.Deductible, m.OOPApplied, m.HRAApplied, m.Status,
		m.IsRefund, m.ResponseCode, m.ReportFileName, m.CompletedAt).
		Scan(&m.ID, &m.CreatedAt, &m.ModifiedAt)
}

func (r *repoPG) GetByUniqueID(ctx context.Context, uniqueID string) (*Mapping, error) {
	return scanMapping(r.conn(ctx).QueryRow(ctx,
		`SELECT `+mappingCols+` FROM accumulation_treatment_mapping WHERE accumulation_unique_id = $1`, uniqueID))
}

func (r *repoPG) ListForReimbursementRequest(ctx context.Context, reimbursementRequestID int64) ([]*Mapping, error) {
	return collect(r.conn(ctx).Query(ctx, `SELECT `+mappingCols+`
		FROM accumulation_treatment_mapping WHERE reimbursement_request_id = $1
		ORDER BY created_at, id`, reimbursementRequestID))
}

func (r *repoPG) ListForProcedure(ctx context.Context, procedureUUID uuid.UUID) ([]*Mapping, error) {
	return collect(r.conn(ctx).Query(ctx, `SELECT `+mappingCols+`
		FROM accumulation_treatment_mapping WHERE treatment_procedure_uuid = $1
		ORDER BY created_at, id`, procedureUUID))
}

func (r *repoPG) ListPending(ctx context.Context, payerID int64, status Status) ([]*Mapping, error) {
	return collect(r.conn(ctx).Query(ctx, `SELECT `+mappingCols+`
		FROM accumulation_treatment_mapping
		WHERE payer_id = $1 AND treatment_accumulation_status = $2
		ORDER BY created_at, id`, payerID, status))
}

func (r *repoPG) UpdateResponse(ctx context.Context, id int64, status Status, responseCode string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE accumulation_treatment_mapping
		SET treatment_accumulation_status = $2, response_code = NULLIF($3, ''), modified_at = NOW()
		WHERE id = $1`, id, status, responseCode)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMappingNotFound
	}
	return nil
}

func (r *repoPG) MarkSubmitted(ctx context.Context, s Submission) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE accumulation_treatment_mapping
		SET treatment_accumulation_status = $2,
			accumulation_unique_id = $3,
			accumulation_transaction_id = $4,
			deductible = $5, oop_applied = $6, hra_applied = $7,
			report_file_name = $8,
			modified_at = NOW()
		WHERE id = $1 AND treatment_accumulation_status = $9`,
		s.MappingID, StatusSubmitted, s.UniqueID, s.TransactionID,
		s.Deductible, s.OOPApplied, s.HRAApplied, s.ReportFileName, StatusPaid)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) Search(ctx context.Context, f Filter, limit, offset int) ([]*Mapping, int, error) {
	var where []string
	var args []interface{}
	if f.PayerID != nil {
		args = append(args, *f.PayerID)
		where = append(where, fmt.Sprintf("payer_id = $%d", len(args)))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		where = append(where, fmt.Sprintf("treatment_accumulation_status = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM accumulation_treatment_mapping`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	items, err := collect(r.conn(ctx).Query(ctx, `SELECT `+mappingCols+` FROM accumulation_treatment_mapping`+clause+
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args...))
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
