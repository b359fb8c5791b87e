package filegen

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/maven/accumulator/internal/domain/accumulation"
	"github.com/maven/accumulator/internal/domain/costbreakdown"
	"github.com/maven/accumulator/internal/domain/healthplan"
	"github.com/maven/accumulator/internal/domain/payer"
	"github.com/maven/accumulator/internal/domain/procedure"
	"github.com/maven/accumulator/internal/domain/wallet"
)

const (
	testWalletID       = int64(500)
	testMemberID       = int64(42)
	testEmployerPlanID = int64(3)
)

var (
	bcbsPayer = &payer.Payer{ID: 5, PayerName: "BCBS_MA", PayerCode: "BCBSMA01"}
	esiPayer  = &payer.Payer{ID: 6, PayerName: "ESI", PayerCode: "ESI01"}

	payerFixtureUHC = payer.Payer{ID: 7, PayerName: "UHC", PayerCode: "87726"}

	runTime  = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	baseTime = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func ptr[T any](v T) *T { return &v }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	mappings *accumulation.MemoryRepository
	costs    *costbreakdown.MemoryRepository
	plans    *healthplan.MemoryRepository
	procs    *procedure.MemoryRepository
	wallets  *wallet.MemoryRepository
	created  int
}

func newFixture() *fixture {
	f := &fixture{
		mappings: accumulation.NewMemoryRepository(),
		costs:    costbreakdown.NewMemoryRepository(),
		plans:    healthplan.NewMemoryRepository(),
		procs:    procedure.NewMemoryRepository(),
		wallets:  wallet.NewMemoryRepository(),
	}
	f.plans.AddEmployerHealthPlan(&healthplan.EmployerHealthPlan{
		ID:              testEmployerPlanID,
		Name:            "ACME PPO",
		BenefitsPayerID: ptr(bcbsPayer.ID),
		StartDate:       day(2024, 1, 1),
		EndDate:         day(2024, 12, 31),
	})
	f.plans.AddMemberHealthPlan(&healthplan.MemberHealthPlan{
		ID:                    10,
		MemberID:              testMemberID,
		WalletID:              testWalletID,
		EmployerHealthPlanID:  testEmployerPlanID,
		SubscriberInsuranceID: "XYZ123456",
		PatientFirstName:      ptr("Jane"),
		PatientLastName:       ptr("Doe"),
		PatientDateOfBirth:    ptr(day(1990, 2, 14)),
		PatientSex:            ptr("F"),
		IsSubscriber:          true,
		PlanStartAt:           day(2024, 1, 1),
	})
	return f
}

func (f *fixture) sources() Sources {
	return Sources{
		Mappings:   f.mappings,
		Plans:      f.plans,
		Procedures: f.procs,
		Wallets:    f.wallets,
		Costs:      f.costs,
	}
}

func (f *fixture) addRequest(id int64, service time.Time) {
	f.addRequestFor(id, testMemberID, service)
}

func (f *fixture) addRequestFor(id, memberID int64, service time.Time) {
	f.wallets.AddReimbursementRequest(&wallet.ReimbursementRequest{
		ID:                       id,
		WalletID:                 testWalletID,
		Amount:                   25000,
		State:                    wallet.StateApproved,
		ReimbursementType:        wallet.ReimbursementTypeManual,
		PersonReceivingServiceID: ptr(memberID),
		ServiceStartDate:         service,
	})
}

func (f *fixture) addCost(rrID int64, deductible, oop int64) {
	f.costs.Add(&costbreakdown.CostBreakdown{
		ID:                          rrID * 10,
		ReimbursementRequestID:      ptr(rrID),
		TotalMemberResponsibility:   deductible + oop,
		TotalEmployerResponsibility: 1000,
		Deductible:                  ptr(deductible),
		OOPApplied:                  ptr(oop),
		CreatedAt:                   baseTime,
	})
}

func (f *fixture) addMapping(t *testing.T, p *payer.Payer, rrID int64, status accumulation.Status, refund bool) *accumulation.Mapping {
	t.Helper()
	m := &accumulation.Mapping{
		ReimbursementRequestID: ptr(rrID),
		PayerID:                p.ID,
		Status:                 status,
		IsRefund:               refund,
		CreatedAt:              baseTime.Add(time.Duration(f.created) * time.Hour),
	}
	f.created++
	require.NoError(t, f.mappings.Create(context.Background(), m))
	return m
}

func (f *fixture) status(t *testing.T, id int64) accumulation.Status {
	t.Helper()
	m, ok := f.mappings.Get(id)
	require.True(t, ok)
	return m.Status
}
