package filegen

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/maven/accumulator/internal/domain/accumulation"
	"github.com/maven/accumulator/internal/platform/blobstore"
	"github.com/maven/accumulator/internal/platform/db"
	"github.com/maven/accumulator/internal/platform/locker"
)

// SubmitResult summarises one Submit call.
type SubmitResult struct {
	PayerName string
	FileName  string
	ObjectKey string
	Rows      int
	Skipped   int
	// Submitted counts mappings moved to SUBMITTED; Stale counts rows that
	// changed status between generation and marking.
	Submitted int
	Stale     int
	Uploaded  bool
	Blob      *blobstore.BlobMetadata
}

// Submitter runs a generator under a per-payer lock, uploads the file and
// then marks its rows submitted. A failed upload leaves every mapping as
// it was.
type Submitter struct {
	mappings accumulation.Repository
	store    blobstore.BlobStore
	locks    locker.Locker
	tx       db.Transactor
	lockTTL  time.Duration
	logger   zerolog.Logger
}

func NewSubmitter(mappings accumulation.Repository, store blobstore.BlobStore, locks locker.Locker, tx db.Transactor, lockTTL time.Duration, logger zerolog.Logger) *Submitter {
	return &Submitter{
		mappings: mappings,
		store:    store,
		locks:    locks,
		tx:       tx,
		lockTTL:  lockTTL,
		logger:   logger.With().Str("component", "submitter").Logger(),
	}
}

// LockKey is the lock guarding generation runs for a payer.
func LockKey(payerName string) string {
	return "accumulation:generate:" + payerName
}

func (s *Submitter) Submit(ctx context.Context, g Generator) (*SubmitResult, error) {
	p := g.Payer()
	out := &SubmitResult{PayerName: p.PayerName, FileName: g.FileName()}

	err := locker.WithLock(ctx, s.locks, LockKey(p.PayerName), s.lockTTL, func(ctx context.Context) error {
		res, err := g.Generate(ctx)
		if err != nil {
			return err
		}
		out.Rows, out.Skipped = len(res.Rows), len(res.Skipped)
		if len(res.Rows) == 0 {
			s.logger.Info().Str("payer_name", p.PayerName).Int("skipped", out.Skipped).Msg("nothing to submit")
			return nil
		}

		out.ObjectKey = blobstore.ObjectKey(p.PayerName, res.FileName)
		meta, err := s.store.Upload(ctx, out.ObjectKey, res.ContentType, res.Content)
		if err != nil {
			return fmt.Errorf("upload %s: %w", out.ObjectKey, err)
		}
		out.Uploaded, out.Blob = true, meta

		if g.SelectStatus() != accumulation.StatusPaid {
			return nil
		}
		return s.tx.InTx(ctx, func(ctx context.Context) error {
			for i := range res.Rows {
				r := &res.Rows[i]
				ok, err := s.mappings.MarkSubmitted(ctx, accumulation.Submission{
					MappingID:      r.Mapping.ID,
					UniqueID:       r.UniqueID,
					TransactionID:  r.TransactionID,
					Deductible:     r.Deductible,
					OOPApplied:     r.OOPApplied,
					HRAApplied:     r.HRAApplied,
					ReportFileName: res.FileName,
				})
				if err != nil {
					return fmt.Errorf("mark mapping %d submitted: %w", r.Mapping.ID, err)
				}
				if !ok {
					out.Stale++
					s.logger.Warn().Int64("mapping_id", r.Mapping.ID).Msg("mapping left PAID before it could be marked submitted")
					continue
				}
				out.Submitted++
			}
			return nil
		})
	})
	if err != nil {
		s.logger.Error().Err(err).Str("payer_name", p.PayerName).Str("file_name", out.FileName).Msg("submission failed")
		return nil, err
	}

	s.logger.Info().
		Str("payer_name", p.PayerName).
		Str("object_key", out.ObjectKey).
		Int("rows", out.Rows).
		Int("submitted", out.Submitted).
		Int("stale", out.Stale).
		Msg("accumulation file submitted")
	return out, nil
}
