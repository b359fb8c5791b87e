package reconcile

import (
	"context"
	"fmt"

	"github.com/maven/accumulator/internal/platform/x12"
)

// Claim status category codes (STC01-1) that settle an accumulation.
var categoryStatus = map[string]Status{
	"A1": StatusAccepted,
	"A2": StatusAccepted,
	"A3": StatusAccepted,
	"A4": StatusRejected,
	"A6": StatusRejected,
	"A7": StatusRejected,
	"A8": StatusRejected,
}

// ResponsesFrom277 converts the settled statuses of a 277 interchange into
// responses keyed by trace number. Pending categories are counted as ignored.
func ResponsesFrom277(raw []byte) ([]Response, int, error) {
	statuses, err := x12.ParseClaimStatusResponse(raw)
	if err != nil {
		return nil, 0, fmt.Errorf("parse 277: %w", err)
	}
	var (
		out     []Response
		ignored int
	)
	for _, st := range statuses {
		status, ok := categoryStatus[st.CategoryCode]
		if !ok {
			ignored++
			continue
		}
		out = append(out, Response{
			UniqueID:       st.TraceNumber,
			Status:         status,
			ResponseStatus: st.CategoryCode,
			ResponseCode:   st.RawStatusValue,
		})
	}
	return out, ignored, nil
}

// Apply277 reconciles every settled claim status in a 277 interchange.
func (r *Reconciler) Apply277(ctx context.Context, raw []byte) (Summary, error) {
	responses, ignored, err := ResponsesFrom277(raw)
	if err != nil {
		return Summary{}, err
	}
	s := r.ApplyAll(ctx, responses)
	s.Ignored = ignored
	return s, nil
}
