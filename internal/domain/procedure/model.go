package procedure

import (
	"time"

	"github.com/google/uuid"
)

// Type is the benefit category a procedure or reimbursement is billed under.
type Type string

const (
	TypeMedical  Type = "MEDICAL"
	TypePharmacy Type = "PHARMACY"
)

// TreatmentProcedure maps to the treatment_procedure table. Read-only.
type TreatmentProcedure struct {
	ID              int64      `db:"id" json:"id"`
	UUID            uuid.UUID  `db:"uuid" json:"uuid"`
	MemberID        int64      `db:"member_id" json:"member_id"`
	WalletID        int64      `db:"reimbursement_wallet_id" json:"reimbursement_wallet_id"`
	ProcedureType   Type       `db:"procedure_type" json:"procedure_type"`
	CostBreakdownID *int64     `db:"cost_breakdown_id" json:"cost_breakdown_id,omitempty"`
	StartDate       time.Time  `db:"start_date" json:"start_date"`
	EndDate         *time.Time `db:"end_date" json:"end_date,omitempty"`
	CompletedDate   *time.Time `db:"completed_date" json:"completed_date,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}
