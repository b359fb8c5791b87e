package wallet

import (
	"time"

	"github.com/maven/accumulator/internal/domain/procedure"
)

// Wallet maps to the reimbursement_wallet table. Only the flags the
// accumulation pipeline reads are carried.
type Wallet struct {
	ID                            int64 `db:"id" json:"id"`
	DirectPaymentEnabled          bool  `db:"direct_payment_enabled" json:"direct_payment_enabled"`
	DeductibleAccumulationEnabled bool  `db:"deductible_accumulation_enabled" json:"deductible_accumulation_enabled"`
}

type RequestState string

const (
	StateNew        RequestState = "NEW"
	StatePending    RequestState = "PENDING"
	StateApproved   RequestState = "APPROVED"
	StateDenied     RequestState = "DENIED"
	StateReimbursed RequestState = "REIMBURSED"
	StateRefunded   RequestState = "REFUNDED"
)

type ReimbursementType string

const (
	ReimbursementTypeManual        ReimbursementType = "MANUAL"
	ReimbursementTypeDebitCard     ReimbursementType = "DEBIT_CARD"
	ReimbursementTypeDirectBilling ReimbursementType = "DIRECT_BILLING"
)

const (
	AutoProcessedRX    = "RX"
	MemberStatusMember = "MEMBER"
)

// ReimbursementRequest maps to the reimbursement_request table. Read-only.
type ReimbursementRequest struct {
	ID                                 int64             `db:"id" json:"id"`
	WalletID                           int64             `db:"reimbursement_wallet_id" json:"reimbursement_wallet_id"`
	Amount                             int64             `db:"amount" json:"amount"`
	State                              RequestState      `db:"state" json:"state"`
	ReimbursementType                  ReimbursementType `db:"reimbursement_type" json:"reimbursement_type"`
	ProcedureType                      *procedure.Type   `db:"procedure_type" json:"procedure_type,omitempty"`
	CostSharingCategory                *string           `db:"cost_sharing_category" json:"cost_sharing_category,omitempty"`
	PersonReceivingServiceID           *int64            `db:"person_receiving_service_id" json:"person_receiving_service_id,omitempty"`
	PersonReceivingServiceMemberStatus *string           `db:"person_receiving_service_member_status" json:"person_receiving_service_member_status,omitempty"`
	AutoProcessed                      *string           `db:"auto_processed" json:"auto_processed,omitempty"`
	ServiceStartDate                   time.Time         `db:"service_start_date" json:"service_start_date"`
	ServiceEndDate                     *time.Time        `db:"service_end_date" json:"service_end_date,omitempty"`
	CreatedAt                          time.Time         `db:"created_at" json:"created_at"`
}

// IsAutoProcessedRX reports whether the request came from the pharmacy
// auto-processing feed.
func (rr *ReimbursementRequest) IsAutoProcessedRX() bool {
	return rr.AutoProcessed != nil && *rr.AutoProcessed == AutoProcessedRX
}

// ReceivedByMember reports whether the person receiving service is the
// member themselves rather than a dependent proxy.
func (rr *ReimbursementRequest) ReceivedByMember() bool {
	return rr.PersonReceivingServiceID != nil &&
		rr.PersonReceivingServiceMemberStatus != nil &&
		*rr.PersonReceivingServiceMemberStatus == MemberStatusMember
}

// EffectiveProcedureType defaults an unset procedure type to MEDICAL.
func (rr *ReimbursementRequest) EffectiveProcedureType() procedure.Type {
	if rr.ProcedureType == nil {
		return procedure.TypeMedical
	}
	return *rr.ProcedureType
}
