// Package filegen renders batches of accumulation mappings into the file
// formats payers accept, and submits rendered files.
package filegen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/maven/accumulator/internal/domain/accumulation"
	"github.com/maven/accumulator/internal/domain/costbreakdown"
	"github.com/maven/accumulator/internal/domain/healthplan"
	"github.com/maven/accumulator/internal/domain/payer"
	"github.com/maven/accumulator/internal/domain/procedure"
	"github.com/maven/accumulator/internal/domain/wallet"
)

// Generator renders one file for one payer. Generate only reads; marking
// mappings submitted is the Submitter's job.
type Generator interface {
	Payer() *payer.Payer
	FileName() string
	ContentType() string
	// SelectStatus is the mapping status the generator reads.
	SelectStatus() accumulation.Status
	Generate(ctx context.Context) (*Result, error)
}

// Scope narrows a run to part of a payer's book. An empty scope selects
// every pending mapping.
type Scope struct {
	HealthPlanCode        string
	EmployerHealthPlanIDs []int64
}

func (s Scope) includes(employerPlanID int64) bool {
	if len(s.EmployerHealthPlanIDs) == 0 {
		return true
	}
	for _, id := range s.EmployerHealthPlanIDs {
		if id == employerPlanID {
			return true
		}
	}
	return false
}

// Row is one mapping included in a file, with the amounts as reported.
// Reversal amounts are already negated.
type Row struct {
	Mapping       *accumulation.Mapping
	UniqueID      string
	TransactionID string
	Reversal      bool
	Deductible    *int64
	OOPApplied    *int64
	HRAApplied    *int64
	Member        *healthplan.MemberHealthPlan
	ServiceStart  time.Time
	ServiceEnd    time.Time
	CostBreakdown *costbreakdown.CostBreakdown
}

type SkippedRow struct {
	MappingID int64
	Reason    string
}

// Result is a rendered file. Content is empty when no row qualified.
type Result struct {
	PayerID     int64
	FileName    string
	ContentType string
	Content     *bytes.Buffer
	Rows        []Row
	Skipped     []SkippedRow
	GeneratedAt time.Time
}

// GenerationError aborts a generation run. Nothing has been written or
// mutated when it is returned.
type GenerationError struct {
	PayerName string
	FileName  string
	Err       error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate %s for payer %s: %v", e.FileName, e.PayerName, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ErrNoGenerator is returned for payers without an accumulation file format.
var ErrNoGenerator = errors.New("no accumulation file generator for payer")

// Sources are the repositories a generator reads.
type Sources struct {
	Mappings   accumulation.Repository
	Plans      healthplan.Repository
	Procedures procedure.Repository
	Wallets    wallet.Repository
	Costs      costbreakdown.Repository
}

// Config carries the submitter identity printed in file headers.
type Config struct {
	SubmitterID    string
	SubmitterName  string
	ProviderNPI    string
	ProviderName   string
	UsageIndicator string
}

var uniqueIDNamespace = uuid.MustParse("4d3a8f2e-6b1c-4e7a-9c55-0f2b7d9e1a63")

// UniqueIDFor derives the accumulation_unique_id of a mapping. It is stable
// so re-rendering an unchanged batch yields identical files.
func UniqueIDFor(mappingID int64) string {
	id := uuid.NewSHA1(uniqueIDNamespace, []byte(strconv.FormatInt(mappingID, 10)))
	return strings.ReplaceAll(id.String(), "-", "")
}

// collector selects and enriches the mappings of one payer.
type collector struct {
	src         Sources
	payer       *payer.Payer
	scope       Scope
	status      accumulation.Status
	withAmounts bool
	logger      zerolog.Logger
}

func newCollector(src Sources, p *payer.Payer, scope Scope, status accumulation.Status, withAmounts bool, logger zerolog.Logger, format string) collector {
	return collector{
		src:         src,
		payer:       p,
		scope:       scope,
		status:      status,
		withAmounts: withAmounts,
		logger: logger.With().
			Str("component", "filegen").
			Str("format", format).
			Int64("payer_id", p.ID).
			Str("payer_name", p.PayerName).
			Logger(),
	}
}

func (c *collector) Payer() *payer.Payer               { return c.payer }
func (c *collector) SelectStatus() accumulation.Status { return c.status }

type subject struct {
	memberID     int64
	walletID     int64
	serviceStart time.Time
	serviceEnd   time.Time
	cb           *costbreakdown.CostBreakdown
}

// collect returns the rows to render in created_at order. Rows that cannot
// be rendered are skipped and logged; only repository failures abort.
func (c *collector) collect(ctx context.Context) ([]Row, []SkippedRow, error) {
	mappings, err := c.src.Mappings.ListPending(ctx, c.payer.ID, c.status)
	if err != nil {
		return nil, nil, fmt.Errorf("list %s mappings: %w", c.status, err)
	}

	var rows []Row
	var skipped []SkippedRow
	for _, m := range mappings {
		row, reason, err := c.buildRow(ctx, m)
		if err != nil {
			return nil, nil, err
		}
		if reason != "" {
			skipped = append(skipped, SkippedRow{MappingID: m.ID, Reason: reason})
			continue
		}
		rows = append(rows, *row)
	}
	return rows, skipped, nil
}

func (c *collector) buildRow(ctx context.Context, m *accumulation.Mapping) (*Row, string, error) {
	log := c.logger.With().Int64("mapping_id", m.ID).Str("subject", m.SubjectKey()).Logger()

	subj, reason, err := c.resolveSubject(ctx, m)
	if err != nil || reason != "" {
		if reason != "" {
			log.Error().Str("reason", reason).Msg("skipping accumulation row")
		}
		return nil, reason, err
	}

	mhp, err := c.src.Plans.GetMemberHealthPlan(ctx, subj.memberID, subj.walletID, subj.serviceStart)
	if errors.Is(err, healthplan.ErrMemberPlanNotFound) {
		reason = "no member health plan on the date of service"
		log.Error().Int64("member_id", subj.memberID).Int64("wallet_id", subj.walletID).
			Time("effective_date", subj.serviceStart).Msg("skipping accumulation row: " + reason)
		return nil, reason, nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("member health plan for mapping %d: %w", m.ID, err)
	}
	if !c.scope.includes(mhp.EmployerHealthPlanID) {
		log.Debug().Int64("employer_health_plan_id", mhp.EmployerHealthPlanID).Msg("mapping outside scope")
		return nil, "outside employer health plan scope", nil
	}

	row := &Row{
		Mapping:       m,
		UniqueID:      UniqueIDFor(m.ID),
		TransactionID: m.SubjectKey(),
		Reversal:      m.IsRefund,
		Member:        mhp,
		ServiceStart:  subj.serviceStart,
		ServiceEnd:    subj.serviceEnd,
		CostBreakdown: subj.cb,
	}
	if m.AccumulationUniqueID != nil {
		row.UniqueID = *m.AccumulationUniqueID
	}
	if !c.withAmounts {
		return row, "", nil
	}

	if reason := c.applyAmounts(row, m, subj.cb); reason != "" {
		if reason == reasonNothingToReport {
			log.Info().Msg("skipping accumulation row: " + reason)
		} else {
			log.Error().Msg("skipping accumulation row: " + reason)
		}
		return nil, reason, nil
	}
	return row, "", nil
}

const reasonNothingToReport = "zero deductible and out-of-pocket"

// applyAmounts fills the reported amounts. New rows read the live cost
// breakdown; reversals read the mapping snapshot and fall back to the cost
// breakdown, then negate.
func (c *collector) applyAmounts(row *Row, m *accumulation.Mapping, cb *costbreakdown.CostBreakdown) string {
	if m.IsRefund {
		ded, oop, hra := m.Deductible, m.OOPApplied, m.HRAApplied
		if ded == nil && oop == nil {
			if cb == nil {
				return "reversal has neither an amount snapshot nor a cost breakdown"
			}
			ded, oop, hra = cb.Deductible, cb.OOPApplied, cb.HRAApplied
		}
		row.Deductible, row.OOPApplied, row.HRAApplied = negate(ded), negate(oop), negate(hra)
		return ""
	}

	if cb == nil {
		return "no cost breakdown"
	}
	if isZero(cb.Deductible) && isZero(cb.OOPApplied) {
		return reasonNothingToReport
	}
	row.Deductible, row.OOPApplied, row.HRAApplied = cb.Deductible, cb.OOPApplied, cb.HRAApplied
	return ""
}

func (c *collector) resolveSubject(ctx context.Context, m *accumulation.Mapping) (*subject, string, error) {
	switch {
	case m.TreatmentProcedureUUID != nil:
		tp, err := c.src.Procedures.GetByUUID(ctx, *m.TreatmentProcedureUUID)
		if errors.Is(err, procedure.ErrProcedureNotFound) {
			return nil, "treatment procedure not found", nil
		}
		if err != nil {
			return nil, "", fmt.Errorf("treatment procedure for mapping %d: %w", m.ID, err)
		}
		s := &subject{memberID: tp.MemberID, walletID: tp.WalletID, serviceStart: tp.StartDate, serviceEnd: tp.StartDate}
		if tp.EndDate != nil {
			s.serviceEnd = *tp.EndDate
		}
		s.cb, err = optionalCostBreakdown(c.src.Costs.LatestForProcedure(ctx, tp.UUID))
		if err != nil {
			return nil, "", fmt.Errorf("cost breakdown for mapping %d: %w", m.ID, err)
		}
		return s, "", nil

	case m.ReimbursementRequestID != nil:
		rr, err := c.src.Wallets.GetReimbursementRequest(ctx, *m.ReimbursementRequestID)
		if errors.Is(err, wallet.ErrRequestNotFound) {
			return nil, "reimbursement request not found", nil
		}
		if err != nil {
			return nil, "", fmt.Errorf("reimbursement request for mapping %d: %w", m.ID, err)
		}
		if rr.PersonReceivingServiceID == nil {
			return nil, "reimbursement request has no person receiving service", nil
		}
		s := &subject{memberID: *rr.PersonReceivingServiceID, walletID: rr.WalletID, serviceStart: rr.ServiceStartDate, serviceEnd: rr.ServiceStartDate}
		if rr.ServiceEndDate != nil {
			s.serviceEnd = *rr.ServiceEndDate
		}
		s.cb, err = optionalCostBreakdown(c.src.Costs.LatestForReimbursementRequest(ctx, rr.ID))
		if err != nil {
			return nil, "", fmt.Errorf("cost breakdown for mapping %d: %w", m.ID, err)
		}
		return s, "", nil
	}
	return nil, "mapping has no subject", nil
}

func optionalCostBreakdown(cb *costbreakdown.CostBreakdown, err error) (*costbreakdown.CostBreakdown, error) {
	if errors.Is(err, costbreakdown.ErrCostBreakdownNotFound) {
		return nil, nil
	}
	return cb, err
}

func negate(v *int64) *int64 {
	if v == nil {
		return nil
	}
	n := -*v
	return &n
}

func isZero(v *int64) bool { return v == nil || *v == 0 }

// money renders cents as a fixed two-decimal string; nil renders empty.
func money(cents *int64) string {
	if cents == nil {
		return ""
	}
	return decimal.New(*cents, -2).StringFixed(2)
}

func sum(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

func dateOrEmpty(t *time.Time, layout string) string {
	if t == nil {
		return ""
	}
	return t.Format(layout)
}

// genderCode maps a stored sex value to M, F or U.
func genderCode(sex *string) string {
	if sex == nil {
		return "U"
	}
	switch strings.ToUpper(strings.TrimSpace(*sex)) {
	case "M", "MALE":
		return "M"
	case "F", "FEMALE":
		return "F"
	}
	return "U"
}

// ForPayer returns the accumulation file generator for p's report format.
func ForPayer(p *payer.Payer, src Sources, scope Scope, cfg Config, now time.Time, logger zerolog.Logger) (Generator, error) {
	name, ok := p.Name()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoGenerator, p.PayerName)
	}
	format, ok := payer.ReportFormatFor(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoGenerator, name)
	}
	switch format {
	case payer.ReportFormatCSV:
		return NewBCBSMAGenerator(p, src, scope, now, logger), nil
	case payer.ReportFormatFixedWidth:
		return NewESIGenerator(p, src, scope, cfg, now, logger), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoGenerator, name)
}
