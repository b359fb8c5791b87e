// Package mappingerr holds the failure kinds raised while deciding whether a
// financial event gets an accumulation mapping. It has no dependencies so
// payer resolution and the mapping engine can share it.
package mappingerr

import (
	"fmt"
	"time"
)

// InvalidAccumulationMappingData reports an event or configuration that
// fails a structural precondition for accumulation. It always reaches the
// caller.
type InvalidAccumulationMappingData struct {
	Message         string
	ExpectedPayerID *int64

	// Resolution inputs, filled when payer resolution failed.
	WalletID      *int64
	UserID        *int64
	ProcedureType string
	EffectiveDate *time.Time
}

func (e *InvalidAccumulationMappingData) Error() string {
	msg := e.Message
	if e.ExpectedPayerID != nil {
		msg = fmt.Sprintf("%s (expected_payer_id=%d)", msg, *e.ExpectedPayerID)
	}
	if e.WalletID != nil && e.UserID != nil {
		msg = fmt.Sprintf("%s [wallet_id=%d user_id=%d procedure_type=%s effective_date=%s]",
			msg, *e.WalletID, *e.UserID, e.ProcedureType, e.EffectiveDate.Format("2006-01-02"))
	}
	return msg
}

// Invalid builds an InvalidAccumulationMappingData without a payer id.
func Invalid(format string, args ...interface{}) *InvalidAccumulationMappingData {
	return &InvalidAccumulationMappingData{Message: fmt.Sprintf(format, args...)}
}

// InvalidForPayer builds an InvalidAccumulationMappingData carrying the
// payer id that was expected to resolve.
func InvalidForPayer(payerID int64, format string, args ...interface{}) *InvalidAccumulationMappingData {
	return &InvalidAccumulationMappingData{Message: fmt.Sprintf(format, args...), ExpectedPayerID: &payerID}
}

// WithResolutionInputs records the payer resolution inputs on e and returns it.
func (e *InvalidAccumulationMappingData) WithResolutionInputs(walletID, userID int64, procedureType string, effectiveDate time.Time) *InvalidAccumulationMappingData {
	e.WalletID = &walletID
	e.UserID = &userID
	e.ProcedureType = procedureType
	e.EffectiveDate = &effectiveDate
	return e
}

// AccumulationAdjustmentNeeded reports that prior mappings exist for the
// subject and a new one cannot be created automatically. Remediation is a
// manual adjustment.
type AccumulationAdjustmentNeeded struct {
	Message string
}

func (e *AccumulationAdjustmentNeeded) Error() string { return e.Message }

func AdjustmentNeeded(format string, args ...interface{}) *AccumulationAdjustmentNeeded {
	return &AccumulationAdjustmentNeeded{Message: fmt.Sprintf(format, args...)}
}
