package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/maven/accumulator/internal/domain/accumulation"
	"github.com/maven/accumulator/internal/platform/queue"
)

// QueueHandler decodes one Response per message. Undecodable or invalid
// payloads are permanent failures; an unmatched id is acknowledged. Any
// other update failure is returned so the message is requeued.
func (r *Reconciler) QueueHandler() queue.Handler {
	return func(ctx context.Context, body []byte) error {
		var resp Response
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("decode response: %v: %w", err, queue.ErrPermanent)
		}
		if err := r.Validate(&resp); err != nil {
			return fmt.Errorf("%v: %w", err, queue.ErrPermanent)
		}
		err := r.applyQueued(ctx, resp)
		if errors.Is(err, accumulation.ErrMappingNotFound) {
			r.logger.Warn().Str("accumulation_unique_id", resp.UniqueID).Msg("queued response matched no mapping")
			return nil
		}
		if err != nil {
			return fmt.Errorf("apply response %s: %w", resp.UniqueID, err)
		}
		return nil
	}
}
