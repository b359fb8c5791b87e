package accumulation

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrMappingNotFound = errors.New("accumulation mapping not found")

// Filter narrows Search. Nil fields match everything.
type Filter struct {
	PayerID *int64
	Status  *Status
}

// Submission is the snapshot recorded when a PAID mapping is included in a
// rendered file.
type Submission struct {
	MappingID      int64
	UniqueID       string
	TransactionID  string
	Deductible     *int64
	OOPApplied     *int64
	HRAApplied     *int64
	ReportFileName string
}

type Repository interface {
	// LockSubject holds a lock on subject until the surrounding transaction
	// ends.
	LockSubject(ctx context.Context, subject string) error
	Create(ctx context.Context, m *Mapping) error
	GetByUniqueID(ctx context.Context, uniqueID string) (*Mapping, error)
	ListForReimbursementRequest(ctx context.Context, reimbursementRequestID int64) ([]*Mapping, error)
	ListForProcedure(ctx context.Context, procedureUUID uuid.UUID) ([]*Mapping, error)
	// ListPending returns the payer's mappings in status, oldest first.
	ListPending(ctx context.Context, payerID int64, status Status) ([]*Mapping, error)
	UpdateResponse(ctx context.Context, id int64, status Status, responseCode string) error
	// MarkSubmitted moves a PAID mapping to SUBMITTED. It reports false when
	// the mapping was no longer PAID.
	MarkSubmitted(ctx context.Context, s Submission) (bool, error)
	Search(ctx context.Context, f Filter, limit, offset int) ([]*Mapping, int, error)
}
