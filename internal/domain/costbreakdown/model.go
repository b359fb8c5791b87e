package costbreakdown

import (
	"time"

	"github.com/google/uuid"
)

// CostBreakdown maps to the cost_breakdown table: the split of one
// financial event between member and employer. Amounts are in cents.
type CostBreakdown struct {
	ID                          int64      `db:"id" json:"id"`
	TreatmentProcedureUUID      *uuid.UUID `db:"treatment_procedure_uuid" json:"treatment_procedure_uuid,omitempty"`
	ReimbursementRequestID      *int64     `db:"reimbursement_request_id" json:"reimbursement_request_id,omitempty"`
	TotalMemberResponsibility   int64      `db:"total_member_responsibility" json:"total_member_responsibility"`
	TotalEmployerResponsibility int64      `db:"total_employer_responsibility" json:"total_employer_responsibility"`
	Deductible                  *int64     `db:"deductible" json:"deductible,omitempty"`
	OOPApplied                  *int64     `db:"oop_applied" json:"oop_applied,omitempty"`
	HRAApplied                  *int64     `db:"hra_applied" json:"hra_applied,omitempty"`
	CreatedAt                   time.Time  `db:"created_at" json:"created_at"`
}
