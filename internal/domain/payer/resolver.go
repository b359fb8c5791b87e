package payer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/maven/accumulator/internal/domain/accumulation/mappingerr"
	"github.com/maven/accumulator/internal/domain/healthplan"
	"github.com/maven/accumulator/internal/domain/procedure"
)

// PlanLookup finds the employer health plan a member is enrolled in through
// a wallet on a given date.
type PlanLookup interface {
	EmployerHealthPlan(ctx context.Context, walletID, userID int64, effectiveDate time.Time) (*healthplan.EmployerHealthPlan, error)
}

// Resolver determines the single payer an accumulation is reported to.
type Resolver struct {
	plans  PlanLookup
	payers *Directory
	logger zerolog.Logger
}

func NewResolver(plans PlanLookup, payers *Directory, logger zerolog.Logger) *Resolver {
	return &Resolver{
		plans:  plans,
		payers: payers,
		logger: logger.With().Str("component", "payer_resolver").Logger(),
	}
}

// GetValidPayer returns the payer for walletID/userID on effectiveDate.
// Pharmacy events on a plan without integrated RX go to the carve-out
// pharmacy payer. Data problems are reported as
// *mappingerr.InvalidAccumulationMappingData; repository failures are
// wrapped and returned as-is.
func (r *Resolver) GetValidPayer(ctx context.Context, walletID, userID int64, procedureType procedure.Type, effectiveDate time.Time) (*Payer, error) {
	plan, err := r.plans.EmployerHealthPlan(ctx, walletID, userID, effectiveDate)
	if errors.Is(err, healthplan.ErrMemberPlanNotFound) || errors.Is(err, healthplan.ErrEmployerPlanNotFound) {
		return nil, mappingerr.Invalid("No Employer Health plan found for this user and this wallet on the given effective date.")
	}
	if err != nil {
		return nil, fmt.Errorf("look up employer health plan: %w", err)
	}

	var p *Payer
	if procedureType == procedure.TypePharmacy && !plan.RxIntegrated {
		p, err = r.payers.ByName(ctx, CarveOutPharmacyPayer)
		if errors.Is(err, ErrPayerNotFound) {
			return nil, mappingerr.Invalid("No associated Payer found for the pharmacy carve-out payer %s.", CarveOutPharmacyPayer)
		}
		if err != nil {
			return nil, fmt.Errorf("look up carve-out payer: %w", err)
		}
	} else {
		if plan.BenefitsPayerID == nil {
			return nil, mappingerr.Invalid("No associated Payer found: employer health plan %d has no benefits payer.", plan.ID)
		}
		payerID := *plan.BenefitsPayerID
		p, err = r.payers.Get(ctx, payerID)
		if errors.Is(err, ErrPayerNotFound) {
			return nil, mappingerr.InvalidForPayer(payerID, "No associated Payer found for the employer health plan %d.", plan.ID)
		}
		if err != nil {
			return nil, fmt.Errorf("look up payer %d: %w", payerID, err)
		}
	}

	if !p.IsAccumulationEnabled() {
		return nil, mappingerr.InvalidForPayer(p.ID, "Payer %q is not accumulation-report enabled.", p.PayerName)
	}

	r.logger.Debug().
		Int64("wallet_id", walletID).
		Int64("user_id", userID).
		Int64("employer_health_plan_id", plan.ID).
		Int64("payer_id", p.ID).
		Msg("resolved payer")
	return p, nil
}
