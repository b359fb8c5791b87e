package filegen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/maven/accumulator/internal/domain/accumulation"
	"github.com/maven/accumulator/internal/domain/healthplan"
	"github.com/maven/accumulator/internal/domain/payer"
	"github.com/maven/accumulator/internal/platform/blobstore"
	"github.com/maven/accumulator/internal/platform/x12"
)

// ClaimStatusGenerator renders an X12 276 claim status request covering
// every SUBMITTED mapping of a payer. Each claim's trace number is the
// mapping's unique id so 277 responses can be matched back.
type ClaimStatusGenerator struct {
	collector
	cfg      Config
	fileName string
	now      time.Time
}

func NewClaimStatusGenerator(p *payer.Payer, src Sources, scope Scope, cfg Config, now time.Time, logger zerolog.Logger) *ClaimStatusGenerator {
	now = now.UTC()
	return &ClaimStatusGenerator{
		collector: newCollector(src, p, scope, accumulation.StatusSubmitted, false, logger, "x12_276"),
		cfg:       cfg,
		fileName:  fmt.Sprintf("Maven_%s_276_status_request_%s.edi", p.PayerName, now.Format("20060102_150405")),
		now:       now,
	}
}

func (g *ClaimStatusGenerator) FileName() string    { return g.fileName }
func (g *ClaimStatusGenerator) ContentType() string { return blobstore.ContentTypeX12 }

func (g *ClaimStatusGenerator) Generate(ctx context.Context) (*Result, error) {
	rows, skipped, err := g.collect(ctx)
	if err != nil {
		return nil, &GenerationError{PayerName: g.payer.PayerName, FileName: g.fileName, Err: err}
	}

	res := &Result{
		PayerID:     g.payer.ID,
		FileName:    g.fileName,
		ContentType: g.ContentType(),
		Content:     &bytes.Buffer{},
		Skipped:     skipped,
		GeneratedAt: g.now,
	}

	claims := make([]x12.ClaimInquiry, 0, len(rows))
	for i := range rows {
		claim, reason := g.inquiry(&rows[i])
		if reason != "" {
			g.logger.Error().Int64("mapping_id", rows[i].Mapping.ID).Msg("skipping claim status inquiry: " + reason)
			res.Skipped = append(res.Skipped, SkippedRow{MappingID: rows[i].Mapping.ID, Reason: reason})
			continue
		}
		claims = append(claims, claim)
		res.Rows = append(res.Rows, rows[i])
	}
	if len(claims) == 0 {
		return res, nil
	}

	doc := x12.NewClaimStatusRequest(g.envelope(),
		x12.Party{Name: g.payer.PayerName, ID: g.payer.PayerCode},
		x12.Party{Name: g.cfg.SubmitterName, ID: g.cfg.SubmitterID},
		x12.Party{Name: g.cfg.ProviderName, ID: g.cfg.ProviderNPI},
		claims,
	)
	out, err := x12.Encode(doc, x12.DefaultDelimiters)
	if err != nil {
		ev := g.logger.Error().Err(err).Str("file_name", g.fileName).Time("run_time", g.now)
		if errors.Is(err, x12.ErrSchemaValidation) {
			ev.Msg("claim status request failed schema validation")
		} else {
			ev.Msg("claim status request encoding failed")
		}
		return nil, &GenerationError{PayerName: g.payer.PayerName, FileName: g.fileName, Err: err}
	}
	res.Content.Write(out)

	g.logger.Info().
		Str("file_name", g.fileName).
		Int("claims", len(claims)).
		Int("segments", doc.TransactionSetTrailer.SegmentCount).
		Msg("claim status request generated")
	return res, nil
}

func (g *ClaimStatusGenerator) envelope() x12.Envelope {
	return x12.Envelope{
		SenderID:       g.cfg.SubmitterID,
		ReceiverID:     g.payer.PayerCode,
		ControlNumber:  int(g.now.Unix()%999_999_999) + 1,
		UsageIndicator: usage(g.cfg.UsageIndicator),
		CreatedAt:      g.now,
		ReferenceID:    "MAVEN" + g.now.Format("20060102150405"),
	}
}

func (g *ClaimStatusGenerator) inquiry(r *Row) (x12.ClaimInquiry, string) {
	m := r.Member
	first, last := m.SubscriberName()
	c := x12.ClaimInquiry{
		Subscriber: x12.Person{
			FirstName: first,
			LastName:  last,
			MemberID:  m.SubscriberInsuranceID,
			Gender:    subscriberGender(m),
		},
		TraceNumber: r.UniqueID,
		ServiceFrom: r.ServiceStart,
		ServiceTo:   r.ServiceEnd,
	}
	if m.SubscriberDateOfBirth != nil {
		c.Subscriber.DateOfBirth = *m.SubscriberDateOfBirth
	}

	// Only the patient's demographics go on the wire: the subscriber's
	// when they are the patient, the dependent's otherwise.
	if m.PatientDateOfBirth == nil {
		return x12.ClaimInquiry{}, "patient date of birth unknown"
	}
	if m.IsSubscriber {
		c.Subscriber.DateOfBirth = *m.PatientDateOfBirth
	} else {
		pf, pl := m.PatientName()
		c.Patient = &x12.Person{
			FirstName:   pf,
			LastName:    pl,
			DateOfBirth: *m.PatientDateOfBirth,
			Gender:      genderCode(m.PatientSex),
		}
	}
	if cb := r.CostBreakdown; cb != nil {
		total := cb.TotalMemberResponsibility + cb.TotalEmployerResponsibility
		c.ChargeAmount = decimal.New(total, -2).StringFixed(2)
	}
	return c, ""
}

func subscriberGender(m *healthplan.MemberHealthPlan) string {
	if m.IsSubscriber {
		return genderCode(m.PatientSex)
	}
	return "U"
}
