package accumulation

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an accumulation mapping.
type Status string

const (
	StatusWaiting   Status = "WAITING"
	StatusPaid      Status = "PAID"
	StatusSubmitted Status = "SUBMITTED"
	StatusAccepted  Status = "ACCEPTED"
	StatusRejected  Status = "REJECTED"
	StatusRefunded  Status = "REFUNDED"
)

var validStatuses = map[Status]bool{
	StatusWaiting: true, StatusPaid: true, StatusSubmitted: true,
	StatusAccepted: true, StatusRejected: true, StatusRefunded: true,
}

// ParseStatus validates s as a mapping status.
func ParseStatus(s string) (Status, bool) {
	st := Status(s)
	return st, validStatuses[st]
}

// Mapping maps to the accumulation_treatment_mapping table. Exactly one of
// TreatmentProcedureUUID and ReimbursementRequestID is set.
type Mapping struct {
	ID                        int64      `db:"id" json:"id"`
	AccumulationUniqueID      *string    `db:"accumulation_unique_id" json:"accumulation_unique_id,omitempty"`
	AccumulationTransactionID *string    `db:"accumulation_transaction_id" json:"accumulation_transaction_id,omitempty"`
	TreatmentProcedureUUID    *uuid.UUID `db:"treatment_procedure_uuid" json:"treatment_procedure_uuid,omitempty"`
	ReimbursementRequestID    *int64     `db:"reimbursement_request_id" json:"reimbursement_request_id,omitempty"`
	PayerID                   int64      `db:"payer_id" json:"payer_id"`
	Deductible                *int64     `db:"deductible" json:"deductible,omitempty"`
	OOPApplied                *int64     `db:"oop_applied" json:"oop_applied,omitempty"`
	HRAApplied                *int64     `db:"hra_applied" json:"hra_applied,omitempty"`
	Status                    Status     `db:"treatment_accumulation_status" json:"treatment_accumulation_status"`
	IsRefund                  bool       `db:"is_refund" json:"is_refund"`
	ResponseCode              *string    `db:"response_code" json:"response_code,omitempty"`
	ReportFileName            *string    `db:"report_file_name" json:"report_file_name,omitempty"`
	CompletedAt               *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt                 time.Time  `db:"created_at" json:"created_at"`
	ModifiedAt                time.Time  `db:"modified_at" json:"modified_at"`
}

// SubjectKey is the natural key of the mapping's subject: the procedure
// UUID or the reimbursement request id.
func (m *Mapping) SubjectKey() string {
	if m.TreatmentProcedureUUID != nil {
		return m.TreatmentProcedureUUID.String()
	}
	if m.ReimbursementRequestID != nil {
		return strconv.FormatInt(*m.ReimbursementRequestID, 10)
	}
	return ""
}

// HasSingleSubject reports whether exactly one subject column is set.
func (m *Mapping) HasSingleSubject() bool {
	return (m.TreatmentProcedureUUID == nil) != (m.ReimbursementRequestID == nil)
}

func allRefunded(ms []*Mapping) bool {
	for _, m := range ms {
		if m.Status != StatusRefunded {
			return false
		}
	}
	return true
}

// OutcomeKind classifies the result of an accumulate call.
type OutcomeKind int

const (
	OutcomeSkipped OutcomeKind = iota
	OutcomeCreated
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeCreated:
		return "created"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// Outcome is the three-way result of an accumulate call: the event was not
// applicable (Reason set), a mapping was persisted (Mapping set), or the
// attempt failed (Err set).
type Outcome struct {
	Kind    OutcomeKind
	Reason  string
	Mapping *Mapping
	Err     error
}

func Skipped(reason string) Outcome { return Outcome{Kind: OutcomeSkipped, Reason: reason} }
func Created(m *Mapping) Outcome    { return Outcome{Kind: OutcomeCreated, Mapping: m} }
func Failed(err error) Outcome      { return Outcome{Kind: OutcomeFailed, Err: err} }

func (o Outcome) IsCreated() bool { return o.Kind == OutcomeCreated }
