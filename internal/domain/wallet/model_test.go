package wallet

import (
	"testing"

	"github.com/maven/accumulator/internal/domain/procedure"
)

func strPtr(s string) *string { return &s }
func int64Ptr(i int64) *int64 { return &i }

func TestReimbursementRequest_IsAutoProcessedRX(t *testing.T) {
	rr := &ReimbursementRequest{}
	if rr.IsAutoProcessedRX() {
		t.Error("nil auto_processed should not be RX")
	}
	rr.AutoProcessed = strPtr("RX")
	if !rr.IsAutoProcessedRX() {
		t.Error("expected RX")
	}
	rr.AutoProcessed = strPtr("OTHER")
	if rr.IsAutoProcessedRX() {
		t.Error("OTHER should not be RX")
	}
}

func TestReimbursementRequest_ReceivedByMember(t *testing.T) {
	rr := &ReimbursementRequest{PersonReceivingServiceMemberStatus: strPtr(MemberStatusMember)}
	if rr.ReceivedByMember() {
		t.Error("missing person id should not count as member")
	}
	rr.PersonReceivingServiceID = int64Ptr(7)
	if !rr.ReceivedByMember() {
		t.Error("expected member")
	}
	rr.PersonReceivingServiceMemberStatus = strPtr("NON_MEMBER")
	if rr.ReceivedByMember() {
		t.Error("non-member status should not count")
	}
}

func TestReimbursementRequest_EffectiveProcedureType(t *testing.T) {
	rr := &ReimbursementRequest{}
	if got := rr.EffectiveProcedureType(); got != procedure.TypeMedical {
		t.Errorf("expected MEDICAL default, got %s", got)
	}
	pharmacy := procedure.TypePharmacy
	rr.ProcedureType = &pharmacy
	if got := rr.EffectiveProcedureType(); got != procedure.TypePharmacy {
		t.Errorf("expected PHARMACY, got %s", got)
	}
}
