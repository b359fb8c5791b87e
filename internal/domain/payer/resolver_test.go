package payer

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maven/accumulator/internal/domain/accumulation/mappingerr"
	"github.com/maven/accumulator/internal/domain/healthplan"
	"github.com/maven/accumulator/internal/domain/procedure"
)

const (
	testWallet = int64(900)
	testUser   = int64(77)

	payerIDUHC    = int64(1)
	payerIDAetna  = int64(2)
	payerIDESI    = int64(3)
	payerIDLegacy = int64(4)
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func int64Ptr(i int64) *int64 { return &i }

func testPayers() *MemoryRepository {
	return NewMemoryRepository(
		&Payer{ID: payerIDUHC, PayerName: "UHC", PayerCode: "01"},
		&Payer{ID: payerIDAetna, PayerName: "AETNA", PayerCode: "02"},
		&Payer{ID: payerIDESI, PayerName: "ESI", PayerCode: "03"},
		&Payer{ID: payerIDLegacy, PayerName: "LEGACY_HEALTH", PayerCode: "99"},
	)
}

type fixture struct {
	plans    *healthplan.MemoryRepository
	resolver *Resolver
}

func newFixture(payers Repository) *fixture {
	plans := healthplan.NewMemoryRepository()
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	return &fixture{
		plans:    plans,
		resolver: NewResolver(healthplan.NewTemporalPlanLookup(plans), NewDirectory(payers), logger),
	}
}

func (f *fixture) enroll(planID int64, payerID *int64, rxIntegrated bool, start, end string) {
	f.plans.AddEmployerHealthPlan(&healthplan.EmployerHealthPlan{
		ID:              planID,
		Name:            "plan",
		BenefitsPayerID: payerID,
		RxIntegrated:    rxIntegrated,
		StartDate:       day(start),
		EndDate:         day(end),
	})
	f.plans.AddMemberHealthPlan(&healthplan.MemberHealthPlan{
		ID:                    planID * 10,
		MemberID:              testUser,
		WalletID:              testWallet,
		EmployerHealthPlanID:  planID,
		SubscriberInsuranceID: "U1234",
		IsSubscriber:          true,
		PlanStartAt:           day(start),
	})
}

func invalidData(t *testing.T, err error) *mappingerr.InvalidAccumulationMappingData {
	t.Helper()
	var inv *mappingerr.InvalidAccumulationMappingData
	require.True(t, errors.As(err, &inv), "expected InvalidAccumulationMappingData, got %v", err)
	return inv
}

func TestGetValidPayer_Idempotent(t *testing.T) {
	f := newFixture(testPayers())
	f.enroll(10, int64Ptr(payerIDUHC), true, "2024-01-01", "2024-12-31")
	ctx := context.Background()

	first, err := f.resolver.GetValidPayer(ctx, testWallet, testUser, procedure.TypeMedical, day("2024-05-01"))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := f.resolver.GetValidPayer(ctx, testWallet, testUser, procedure.TypeMedical, day("2024-05-01"))
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)
	}
	assert.Equal(t, payerIDUHC, first.ID)
}

func TestGetValidPayer_TemporalPrecedence(t *testing.T) {
	f := newFixture(testPayers())
	f.enroll(10, int64Ptr(payerIDUHC), true, "2023-01-01", "2023-12-31")
	f.enroll(11, int64Ptr(payerIDAetna), true, "2024-01-01", "2024-12-31")
	ctx := context.Background()

	a, err := f.resolver.GetValidPayer(ctx, testWallet, testUser, procedure.TypeMedical, day("2023-07-04"))
	require.NoError(t, err)
	assert.Equal(t, payerIDUHC, a.ID)

	b, err := f.resolver.GetValidPayer(ctx, testWallet, testUser, procedure.TypeMedical, day("2024-07-04"))
	require.NoError(t, err)
	assert.Equal(t, payerIDAetna, b.ID)

	// Boundaries are inclusive.
	edge, err := f.resolver.GetValidPayer(ctx, testWallet, testUser, procedure.TypeMedical, day("2023-12-31"))
	require.NoError(t, err)
	assert.Equal(t, payerIDUHC, edge.ID)

	_, err = f.resolver.GetValidPayer(ctx, testWallet, testUser, procedure.TypeMedical, day("2025-02-01"))
	inv := invalidData(t, err)
	assert.Equal(t, "No Employer Health plan found for this user and this wallet on the given effective date.", inv.Message)
	assert.Nil(t, inv.ExpectedPayerID)
}

func TestGetValidPayer_RxCarveOut(t *testing.T) {
	tests := []struct {
		name          string
		rxIntegrated  bool
		procedureType procedure.Type
		wantPayer     int64
	}{
		{"pharmacy not integrated goes to carve-out", false, procedure.TypePharmacy, payerIDESI},
		{"pharmacy integrated stays on plan payer", true, procedure.TypePharmacy, payerIDUHC},
		{"medical not integrated stays on plan payer", false, procedure.TypeMedical, payerIDUHC},
		{"medical integrated stays on plan payer", true, procedure.TypeMedical, payerIDUHC},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(testPayers())
			f.enroll(10, int64Ptr(payerIDUHC), tt.rxIntegrated, "2024-01-01", "2024-12-31")

			p, err := f.resolver.GetValidPayer(context.Background(), testWallet, testUser, tt.procedureType, day("2024-03-03"))
			require.NoError(t, err)
			assert.Equal(t, tt.wantPayer, p.ID)
		})
	}
}

func TestGetValidPayer_CarveOutIgnoresBenefitsPayer(t *testing.T) {
	f := newFixture(testPayers())
	// The plan's own payer is not even accumulation enabled; the carve-out
	// path never looks at it.
	f.enroll(10, int64Ptr(payerIDLegacy), false, "2024-01-01", "2024-12-31")

	p, err := f.resolver.GetValidPayer(context.Background(), testWallet, testUser, procedure.TypePharmacy, day("2024-03-03"))
	require.NoError(t, err)
	assert.Equal(t, ESI, mustName(t, p))
}

func mustName(t *testing.T, p *Payer) PayerName {
	t.Helper()
	n, ok := p.Name()
	require.True(t, ok)
	return n
}

func TestGetValidPayer_UnknownPayerID(t *testing.T) {
	f := newFixture(testPayers())
	f.enroll(10, int64Ptr(555), true, "2024-01-01", "2024-12-31")

	_, err := f.resolver.GetValidPayer(context.Background(), testWallet, testUser, procedure.TypeMedical, day("2024-03-03"))
	inv := invalidData(t, err)
	assert.True(t, strings.HasPrefix(inv.Message, "No associated Payer found"))
	require.NotNil(t, inv.ExpectedPayerID)
	assert.Equal(t, int64(555), *inv.ExpectedPayerID)
}

func TestGetValidPayer_NotAccumulationEnabled(t *testing.T) {
	f := newFixture(testPayers())
	f.enroll(10, int64Ptr(payerIDLegacy), true, "2024-01-01", "2024-12-31")

	_, err := f.resolver.GetValidPayer(context.Background(), testWallet, testUser, procedure.TypeMedical, day("2024-03-03"))
	inv := invalidData(t, err)
	assert.Contains(t, inv.Message, "not accumulation-report enabled")
	require.NotNil(t, inv.ExpectedPayerID)
	assert.Equal(t, payerIDLegacy, *inv.ExpectedPayerID)
}

func TestGetValidPayer_MissingCarveOutPayer(t *testing.T) {
	f := newFixture(NewMemoryRepository(&Payer{ID: payerIDUHC, PayerName: "UHC"}))
	f.enroll(10, int64Ptr(payerIDUHC), false, "2024-01-01", "2024-12-31")

	_, err := f.resolver.GetValidPayer(context.Background(), testWallet, testUser, procedure.TypePharmacy, day("2024-03-03"))
	inv := invalidData(t, err)
	assert.Contains(t, inv.Message, "No associated Payer found")
}

type failingPlans struct{ err error }

func (f failingPlans) EmployerHealthPlan(context.Context, int64, int64, time.Time) (*healthplan.EmployerHealthPlan, error) {
	return nil, f.err
}

func TestGetValidPayer_RepositoryFailureIsNotInvalidData(t *testing.T) {
	boom := errors.New("connection reset")
	r := NewResolver(failingPlans{err: boom}, NewDirectory(testPayers()), zerolog.Nop())

	_, err := r.GetValidPayer(context.Background(), testWallet, testUser, procedure.TypeMedical, day("2024-03-03"))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	var inv *mappingerr.InvalidAccumulationMappingData
	assert.False(t, errors.As(err, &inv))
}
