package filegen

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/maven/accumulator/internal/domain/accumulation"
	"github.com/maven/accumulator/internal/domain/payer"
	"github.com/maven/accumulator/internal/platform/blobstore"
)

// BCBSMAHeader is written verbatim; the quoted column is part of the
// payer's published layout.
const BCBSMAHeader = `MemberID,Member First Name,Member Last Name,Member Date of Birth,Date of Service,Transaction ID,"Transaction Type (""New"" or ""Reversal"")",Deductible Amount,Out of Pocket Amount,Health Plan Code`

const csvDateLayout = "20060102"

// BCBSMAGenerator renders the BCBS of Massachusetts accumulation CSV.
type BCBSMAGenerator struct {
	collector
	fileName string
	now      time.Time
}

func NewBCBSMAGenerator(p *payer.Payer, src Sources, scope Scope, now time.Time, logger zerolog.Logger) *BCBSMAGenerator {
	now = now.UTC()
	return &BCBSMAGenerator{
		collector: newCollector(src, p, scope, accumulation.StatusPaid, true, logger, "bcbs_ma_csv"),
		fileName:  fmt.Sprintf("Maven_%s%s.csv", scope.HealthPlanCode, now.Format("20060102150405")),
		now:       now,
	}
}

func (g *BCBSMAGenerator) FileName() string    { return g.fileName }
func (g *BCBSMAGenerator) ContentType() string { return blobstore.ContentTypeCSV }

func (g *BCBSMAGenerator) Generate(ctx context.Context) (*Result, error) {
	rows, skipped, err := g.collect(ctx)
	if err != nil {
		return nil, &GenerationError{PayerName: g.payer.PayerName, FileName: g.fileName, Err: err}
	}

	res := &Result{
		PayerID:     g.payer.ID,
		FileName:    g.fileName,
		ContentType: g.ContentType(),
		Content:     &bytes.Buffer{},
		Rows:        rows,
		Skipped:     skipped,
		GeneratedAt: g.now,
	}
	if len(rows) == 0 {
		return res, nil
	}

	res.Content.WriteString(BCBSMAHeader + "\r\n")
	w := csv.NewWriter(res.Content)
	w.UseCRLF = true
	for i := range rows {
		if err := w.Write(g.record(&rows[i])); err != nil {
			return nil, &GenerationError{PayerName: g.payer.PayerName, FileName: g.fileName, Err: err}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, &GenerationError{PayerName: g.payer.PayerName, FileName: g.fileName, Err: err}
	}

	g.logger.Info().
		Str("file_name", g.fileName).
		Int("rows", len(rows)).
		Int("skipped", len(skipped)).
		Msg("accumulation file generated")
	return res, nil
}

func (g *BCBSMAGenerator) record(r *Row) []string {
	first, last := r.Member.PatientName()
	txType := "New"
	if r.Reversal {
		txType = "Reversal"
	}
	planCode := g.scope.HealthPlanCode
	if planCode == "" && r.Member.EmployerHealthPlan != nil {
		planCode = r.Member.EmployerHealthPlan.Name
	}
	return []string{
		r.Member.SubscriberInsuranceID,
		first,
		last,
		dateOrEmpty(r.Member.PatientDateOfBirth, csvDateLayout),
		r.ServiceStart.Format(csvDateLayout),
		r.UniqueID,
		txType,
		money(r.Deductible),
		money(r.OOPApplied),
		planCode,
	}
}
