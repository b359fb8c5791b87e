package mappingerr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestInvalidAccumulationMappingData_Error(t *testing.T) {
	e := Invalid("plain")
	if e.Error() != "plain" {
		t.Errorf("unexpected message %q", e.Error())
	}

	e = InvalidForPayer(12, "payer %s missing", "X")
	if !strings.Contains(e.Error(), "expected_payer_id=12") {
		t.Errorf("expected payer id in %q", e.Error())
	}

	e.WithResolutionInputs(1, 2, "PHARMACY", time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC))
	msg := e.Error()
	for _, want := range []string{"wallet_id=1", "user_id=2", "procedure_type=PHARMACY", "effective_date=2024-05-06"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in %q", want, msg)
		}
	}
}

func TestErrorsAs_ThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("create mapping: %w", AdjustmentNeeded("open chain for %d", 5))

	var adj *AccumulationAdjustmentNeeded
	if !errors.As(wrapped, &adj) {
		t.Fatal("expected AccumulationAdjustmentNeeded")
	}
	if adj.Message != "open chain for 5" {
		t.Errorf("unexpected message %q", adj.Message)
	}

	var inv *InvalidAccumulationMappingData
	if errors.As(wrapped, &inv) {
		t.Error("adjustment error must not match invalid data")
	}
}
