package accumulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/maven/accumulator/internal/domain/accumulation/mappingerr"
	"github.com/maven/accumulator/internal/domain/costbreakdown"
	"github.com/maven/accumulator/internal/domain/payer"
	"github.com/maven/accumulator/internal/domain/procedure"
	"github.com/maven/accumulator/internal/domain/wallet"
	"github.com/maven/accumulator/internal/platform/db"
)

// PayerResolver picks the payer an accumulation is reported to.
type PayerResolver interface {
	GetValidPayer(ctx context.Context, walletID, userID int64, procedureType procedure.Type, effectiveDate time.Time) (*payer.Payer, error)
}

type Service struct {
	mappings Repository
	wallets  wallet.Repository
	costs    costbreakdown.Repository
	payers   PayerResolver
	tx       db.Transactor
	logger   zerolog.Logger
}

func NewService(mappings Repository, wallets wallet.Repository, costs costbreakdown.Repository, payers PayerResolver, tx db.Transactor, logger zerolog.Logger) *Service {
	return &Service{
		mappings: mappings,
		wallets:  wallets,
		costs:    costs,
		payers:   payers,
		tx:       tx,
		logger:   logger.With().Str("component", "accumulation").Logger(),
	}
}

// IsValidForAccumulation reports whether rr is eligible for an
// accumulation mapping. Ineligibility is the common case and is not an
// error; the error return carries repository failures only.
func (s *Service) IsValidForAccumulation(ctx context.Context, rr *wallet.ReimbursementRequest) (bool, error) {
	log := s.logger.With().Int64("reimbursement_request_id", rr.ID).Logger()

	if !rr.ReceivedByMember() {
		log.Info().Msg("not valid for accumulation: person receiving service is not a member")
		return false, nil
	}
	if rr.ProcedureType == nil || rr.CostSharingCategory == nil || *rr.CostSharingCategory == "" {
		log.Info().Msg("not valid for accumulation: missing procedure type or cost sharing category")
		return false, nil
	}
	if rr.ReimbursementType != wallet.ReimbursementTypeManual {
		log.Info().Str("reimbursement_type", string(rr.ReimbursementType)).Msg("not valid for accumulation: not a manual reimbursement")
		return false, nil
	}
	w, err := s.wallets.GetWallet(ctx, rr.WalletID)
	if err != nil {
		return false, fmt.Errorf("get wallet %d: %w", rr.WalletID, err)
	}
	if !w.DirectPaymentEnabled {
		log.Info().Int64("wallet_id", w.ID).Msg("not valid for accumulation: wallet is not direct payment enabled")
		return false, nil
	}

	n, err := s.costs.CountForReimbursementRequest(ctx, rr.ID)
	if err != nil {
		return false, fmt.Errorf("count cost breakdowns: %w", err)
	}
	if n == 0 {
		log.Error().Msg("reimbursement request is valid for accumulation but has no cost breakdown")
		return false, nil
	}
	return true, nil
}

// CreateMapping builds the PAID mapping for rr without persisting it.
// Rejections are *InvalidAccumulationMappingData or
// *AccumulationAdjustmentNeeded.
func (s *Service) CreateMapping(ctx context.Context, rr *wallet.ReimbursementRequest) (*Mapping, error) {
	existing, err := s.mappings.ListForReimbursementRequest(ctx, rr.ID)
	if err != nil {
		return nil, fmt.Errorf("list existing mappings: %w", err)
	}
	if len(existing) > 0 {
		if rr.IsAutoProcessedRX() {
			if !allRefunded(existing) {
				return nil, mappingerr.AdjustmentNeeded(
					"Auto-processed RX reimbursement request %d already has accumulation mappings that are not all REFUNDED; RX adjustments require every prior mapping to be refunded.", rr.ID)
			}
		} else if !allRefunded(existing) {
			return nil, mappingerr.AdjustmentNeeded(
				"Reimbursement request %d already has an open accumulation mapping; adjustments must be made manually.", rr.ID)
		}
	}

	linked, err := s.costs.HasProcedureAssociation(ctx, rr.ID)
	if err != nil {
		return nil, fmt.Errorf("check procedure association: %w", err)
	}
	if linked {
		return nil, mappingerr.Invalid(
			"Reimbursement request %d is linked to a treatment procedure cost breakdown and should only be accumulated at the Treatment Procedure level.", rr.ID)
	}
	if rr.PersonReceivingServiceID == nil {
		return nil, mappingerr.Invalid("Reimbursement request %d is missing person_receiving_service_id.", rr.ID)
	}
	if rr.ReimbursementType != wallet.ReimbursementTypeManual {
		return nil, mappingerr.Invalid("Reimbursement request type %s is invalid. Must be MANUAL.", rr.ReimbursementType)
	}
	if rr.State != wallet.StateApproved && rr.State != wallet.StateDenied {
		return nil, mappingerr.Invalid("Reimbursement request state %s is invalid. Must be one of APPROVED or DENIED.", rr.State)
	}

	userID := *rr.PersonReceivingServiceID
	procedureType := rr.EffectiveProcedureType()
	p, err := s.payers.GetValidPayer(ctx, rr.WalletID, userID, procedureType, rr.ServiceStartDate)
	if err != nil {
		var inv *mappingerr.InvalidAccumulationMappingData
		if errors.As(err, &inv) {
			return nil, inv.WithResolutionInputs(rr.WalletID, userID, string(procedureType), rr.ServiceStartDate)
		}
		return nil, fmt.Errorf("resolve payer: %w", err)
	}

	rrID := rr.ID
	completedAt := rr.CreatedAt
	return &Mapping{
		ReimbursementRequestID: &rrID,
		PayerID:                p.ID,
		Status:                 StatusPaid,
		IsRefund:               false,
		CompletedAt:            &completedAt,
	}, nil
}

// CreateProcedureMapping builds the PAID mapping for a completed treatment
// procedure without persisting it.
func (s *Service) CreateProcedureMapping(ctx context.Context, tp *procedure.TreatmentProcedure) (*Mapping, error) {
	existing, err := s.mappings.ListForProcedure(ctx, tp.UUID)
	if err != nil {
		return nil, fmt.Errorf("list existing mappings: %w", err)
	}
	if !allRefunded(existing) {
		return nil, mappingerr.AdjustmentNeeded(
			"Treatment procedure %s already has an open accumulation mapping; adjustments must be made manually.", tp.UUID)
	}

	p, err := s.payers.GetValidPayer(ctx, tp.WalletID, tp.MemberID, tp.ProcedureType, tp.StartDate)
	if err != nil {
		var inv *mappingerr.InvalidAccumulationMappingData
		if errors.As(err, &inv) {
			return nil, inv.WithResolutionInputs(tp.WalletID, tp.MemberID, string(tp.ProcedureType), tp.StartDate)
		}
		return nil, fmt.Errorf("resolve payer: %w", err)
	}

	id := tp.UUID
	return &Mapping{
		TreatmentProcedureUUID: &id,
		PayerID:                p.ID,
		Status:                 StatusPaid,
		CompletedAt:            tp.CompletedDate,
	}, nil
}

// ShouldAccumulatePreApproval reports whether a denied request whose amount
// is exactly the member responsibility must be accumulated for a
// deductible accumulation wallet.
func ShouldAccumulatePreApproval(isDeductibleAccumulation bool, rr *wallet.ReimbursementRequest, cb *costbreakdown.CostBreakdown) bool {
	return isDeductibleAccumulation &&
		rr.Amount == cb.TotalMemberResponsibility &&
		rr.State == wallet.StateDenied
}

// ShouldAccumulatePostApproval reports whether an approved request that
// covers only the employer portion must be accumulated for the member
// portion.
func ShouldAccumulatePostApproval(isDeductibleAccumulation bool, rr *wallet.ReimbursementRequest, cb *costbreakdown.CostBreakdown) bool {
	return isDeductibleAccumulation &&
		rr.Amount == cb.TotalEmployerResponsibility &&
		cb.TotalMemberResponsibility > 0 &&
		rr.State == wallet.StateApproved
}

func (s *Service) AccumulatePreApproval(ctx context.Context, isDeductibleAccumulation bool, rr *wallet.ReimbursementRequest, cb *costbreakdown.CostBreakdown) Outcome {
	if !ShouldAccumulatePreApproval(isDeductibleAccumulation, rr, cb) {
		return Skipped("pre-approval accumulation does not apply")
	}
	return s.persistNew(ctx, requestSubject(rr.ID), func(ctx context.Context) (*Mapping, error) {
		return s.CreateMapping(ctx, rr)
	})
}

func (s *Service) AccumulatePostApproval(ctx context.Context, isDeductibleAccumulation bool, rr *wallet.ReimbursementRequest, cb *costbreakdown.CostBreakdown) Outcome {
	if !ShouldAccumulatePostApproval(isDeductibleAccumulation, rr, cb) {
		return Skipped("post-approval accumulation does not apply")
	}
	return s.persistNew(ctx, requestSubject(rr.ID), func(ctx context.Context) (*Mapping, error) {
		return s.CreateMapping(ctx, rr)
	})
}

// AccumulateOnStateChange runs the pre or post approval check for a request
// that just became DENIED or APPROVED, reading the deductible accumulation
// flag from its wallet and the latest cost breakdown.
func (s *Service) AccumulateOnStateChange(ctx context.Context, rr *wallet.ReimbursementRequest) Outcome {
	if rr.State != wallet.StateApproved && rr.State != wallet.StateDenied {
		return Skipped("reimbursement request is neither approved nor denied")
	}
	w, err := s.wallets.GetWallet(ctx, rr.WalletID)
	if err != nil {
		return Failed(fmt.Errorf("get wallet %d: %w", rr.WalletID, err))
	}
	if !w.DeductibleAccumulationEnabled {
		return Skipped("wallet is not deductible accumulation enabled")
	}
	cb, err := s.costs.LatestForReimbursementRequest(ctx, rr.ID)
	if errors.Is(err, costbreakdown.ErrCostBreakdownNotFound) {
		return Skipped("reimbursement request has no cost breakdown")
	}
	if err != nil {
		return Failed(fmt.Errorf("latest cost breakdown: %w", err))
	}
	if rr.State == wallet.StateDenied {
		return s.AccumulatePreApproval(ctx, true, rr, cb)
	}
	return s.AccumulatePostApproval(ctx, true, rr, cb)
}

// AccumulateReimbursementRequest checks eligibility, then creates and
// persists the mapping.
func (s *Service) AccumulateReimbursementRequest(ctx context.Context, rr *wallet.ReimbursementRequest) Outcome {
	ok, err := s.IsValidForAccumulation(ctx, rr)
	if err != nil {
		return Failed(err)
	}
	if !ok {
		return Skipped("reimbursement request is not valid for accumulation")
	}
	return s.persistNew(ctx, requestSubject(rr.ID), func(ctx context.Context) (*Mapping, error) {
		return s.CreateMapping(ctx, rr)
	})
}

// AccumulateTreatmentProcedure creates and persists the mapping for a
// completed procedure on a direct payment wallet.
func (s *Service) AccumulateTreatmentProcedure(ctx context.Context, tp *procedure.TreatmentProcedure) Outcome {
	if tp.CompletedDate == nil {
		return Skipped("treatment procedure is not completed")
	}
	w, err := s.wallets.GetWallet(ctx, tp.WalletID)
	if err != nil {
		return Failed(fmt.Errorf("get wallet %d: %w", tp.WalletID, err))
	}
	if !w.DirectPaymentEnabled {
		return Skipped("wallet is not direct payment enabled")
	}
	return s.persistNew(ctx, procedureSubject(tp.UUID.String()), func(ctx context.Context) (*Mapping, error) {
		return s.CreateProcedureMapping(ctx, tp)
	})
}

func requestSubject(id int64) string      { return fmt.Sprintf("reimbursement_request:%d", id) }
func procedureSubject(uuid string) string { return "treatment_procedure:" + uuid }

// persistNew serializes creation per subject so the open-mapping check in
// build and the insert cannot interleave with another caller.
func (s *Service) persistNew(ctx context.Context, subject string, build func(ctx context.Context) (*Mapping, error)) Outcome {
	var created *Mapping
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.mappings.LockSubject(ctx, subject); err != nil {
			return fmt.Errorf("lock %s: %w", subject, err)
		}
		m, err := build(ctx)
		if err != nil {
			return err
		}
		if err := s.mappings.Create(ctx, m); err != nil {
			return fmt.Errorf("persist accumulation mapping: %w", err)
		}
		created = m
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Str("subject", subject).Msg("accumulation mapping not created")
		return Failed(err)
	}
	s.logger.Info().
		Int64("mapping_id", created.ID).
		Int64("payer_id", created.PayerID).
		Str("subject", created.SubjectKey()).
		Msg("accumulation mapping created")
	return Created(created)
}

// UpdateStatusToAccepted marks the mapping with uniqueID ACCEPTED. It
// returns false when the mapping is unknown or the update failed; both are
// logged and neither is returned as an error.
func (s *Service) UpdateStatusToAccepted(ctx context.Context, uniqueID, responseStatus, responseCode string) bool {
	return s.updateStatus(ctx, uniqueID, StatusAccepted, responseStatus, responseCode)
}

// UpdateStatusToRejected is the REJECTED counterpart of UpdateStatusToAccepted.
func (s *Service) UpdateStatusToRejected(ctx context.Context, uniqueID, responseStatus, responseCode string) bool {
	return s.updateStatus(ctx, uniqueID, StatusRejected, responseStatus, responseCode)
}

func (s *Service) updateStatus(ctx context.Context, uniqueID string, target Status, responseStatus, responseCode string) bool {
	return s.ApplyResponse(ctx, uniqueID, target, responseStatus, responseCode) == nil
}

// ApplyResponse moves the mapping with uniqueID to ACCEPTED or REJECTED.
// Unlike the UpdateStatusTo* calls it reports why nothing changed: an error
// matching ErrMappingNotFound for an unknown id, any other error for a
// failed update that may succeed on retry.
func (s *Service) ApplyResponse(ctx context.Context, uniqueID string, target Status, responseStatus, responseCode string) error {
	if target != StatusAccepted && target != StatusRejected {
		return fmt.Errorf("response status must be ACCEPTED or REJECTED, got %s", target)
	}
	log := s.logger.With().
		Str("accumulation_unique_id", uniqueID).
		Str("status", string(target)).
		Str("response_status", responseStatus).
		Str("response_code", responseCode).
		Logger()

	var mappingID int64
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		m, err := s.mappings.GetByUniqueID(ctx, uniqueID)
		if err != nil {
			return err
		}
		mappingID = m.ID
		return s.mappings.UpdateResponse(ctx, m.ID, target, responseCode)
	})
	if errors.Is(err, ErrMappingNotFound) {
		log.Error().Msg("accumulation mapping not found for response")
		return err
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to update accumulation mapping; rolled back")
		return fmt.Errorf("update accumulation mapping %s: %w", uniqueID, err)
	}
	log.Info().Int64("mapping_id", mappingID).Msg("accumulation mapping status updated")
	return nil
}

// GetByUniqueID returns the mapping correlated with a payer response.
func (s *Service) GetByUniqueID(ctx context.Context, uniqueID string) (*Mapping, error) {
	return s.mappings.GetByUniqueID(ctx, uniqueID)
}

func (s *Service) Search(ctx context.Context, f Filter, limit, offset int) ([]*Mapping, int, error) {
	return s.mappings.Search(ctx, f, limit, offset)
}
