// Package reconcile applies payer responses to accumulation mappings.
package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/maven/accumulator/internal/domain/accumulation"
)

type Status string

const (
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Response is one payer verdict on a submitted accumulation.
type Response struct {
	UniqueID       string `json:"accumulation_unique_id" validate:"required,max=64"`
	Status         Status `json:"status" validate:"required,oneof=accepted rejected"`
	ResponseStatus string `json:"response_status,omitempty" validate:"max=64"`
	ResponseCode   string `json:"response_code,omitempty" validate:"max=255"`
}

func (r *Response) normalize() {
	r.UniqueID = strings.TrimSpace(r.UniqueID)
	r.Status = Status(strings.ToLower(strings.TrimSpace(string(r.Status))))
}

// StatusUpdater is implemented by accumulation.Service.
type StatusUpdater interface {
	UpdateStatusToAccepted(ctx context.Context, uniqueID, responseStatus, responseCode string) bool
	UpdateStatusToRejected(ctx context.Context, uniqueID, responseStatus, responseCode string) bool
	ApplyResponse(ctx context.Context, uniqueID string, target accumulation.Status, responseStatus, responseCode string) error
}

// Summary counts the outcome of applying a batch of responses.
type Summary struct {
	Applied   int      `json:"applied"`
	Unmatched []string `json:"unmatched"`
	Ignored   int      `json:"ignored"`
}

// Reconciler applies responses idempotently, so redelivery of the same
// response is always safe. Apply reports unknown ids and persistence
// failures as false; the queue handler returns persistence failures so the
// broker redelivers.
type Reconciler struct {
	updater  StatusUpdater
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewReconciler(updater StatusUpdater, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		updater:  updater,
		validate: validator.New(),
		logger:   logger.With().Str("component", "reconciler").Logger(),
	}
}

// Validate normalizes resp in place and checks it.
func (r *Reconciler) Validate(resp *Response) error {
	resp.normalize()
	if err := r.validate.Struct(resp); err != nil {
		return fmt.Errorf("invalid response for %q: %w", resp.UniqueID, err)
	}
	return nil
}

// Apply routes resp to the matching status update and reports whether a
// mapping was updated.
func (r *Reconciler) Apply(ctx context.Context, resp Response) bool {
	resp.normalize()
	switch resp.Status {
	case StatusAccepted:
		return r.updater.UpdateStatusToAccepted(ctx, resp.UniqueID, resp.ResponseStatus, resp.ResponseCode)
	case StatusRejected:
		return r.updater.UpdateStatusToRejected(ctx, resp.UniqueID, resp.ResponseStatus, resp.ResponseCode)
	}
	r.logger.Warn().
		Str("accumulation_unique_id", resp.UniqueID).
		Str("status", string(resp.Status)).
		Msg("unknown response status")
	return false
}

// applyQueued is Apply for queue delivery: it returns the update error so
// the consumer can tell an unknown id from a failure worth retrying.
func (r *Reconciler) applyQueued(ctx context.Context, resp Response) error {
	resp.normalize()
	target := accumulation.StatusAccepted
	if resp.Status == StatusRejected {
		target = accumulation.StatusRejected
	}
	return r.updater.ApplyResponse(ctx, resp.UniqueID, target, resp.ResponseStatus, resp.ResponseCode)
}

// ApplyAll applies responses in order.
func (r *Reconciler) ApplyAll(ctx context.Context, responses []Response) Summary {
	s := Summary{Unmatched: []string{}}
	for _, resp := range responses {
		if r.Apply(ctx, resp) {
			s.Applied++
			continue
		}
		s.Unmatched = append(s.Unmatched, resp.UniqueID)
	}
	r.logger.Info().Int("applied", s.Applied).Int("unmatched", len(s.Unmatched)).Msg("responses reconciled")
	return s
}
