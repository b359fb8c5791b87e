package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maven/accumulator/internal/domain/healthplan"
	"github.com/maven/accumulator/internal/domain/payer"
	"github.com/maven/accumulator/internal/platform/db"
	"github.com/maven/accumulator/migrations"
)

func TestPayerRepo(t *testing.T) {
	pool := requireDB(t)
	ctx := context.Background()
	id := seedPayer(t, ctx, pool, "CIGNA", "CIG01")
	repo := payer.NewRepoPG(pool)

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "CIGNA", got.PayerName)

	byName, err := repo.GetByName(ctx, "cigna")
	require.NoError(t, err)
	assert.Equal(t, id, byName.ID)

	byCode, err := repo.GetByCode(ctx, "CIG01")
	require.NoError(t, err)
	assert.Equal(t, id, byCode.ID)

	_, err = repo.GetByName(ctx, "NOPE")
	assert.True(t, errors.Is(err, payer.ErrPayerNotFound))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, all)
}

func TestMemberHealthPlanRepo(t *testing.T) {
	pool := requireDB(t)
	ctx := context.Background()
	truncate(t, ctx, pool, "member_health_plan", "employer_health_plan", "reimbursement_wallet")
	payerID := seedPayer(t, ctx, pool, "AETNA", "AET01")

	_, err := pool.Exec(ctx, `INSERT INTO reimbursement_wallet (id, deductible_accumulation_enabled) VALUES (500, TRUE)`)
	require.NoError(t, err)

	var plan2023, plan2024 int64
	require.NoError(t, pool.QueryRow(ctx, `
		INSERT INTO employer_health_plan (name, benefits_payer_id, rx_integrated, start_date, end_date)
		VALUES ('ACME 2023', $1, TRUE, '2023-01-01', '2023-12-31') RETURNING id`, payerID).Scan(&plan2023))
	require.NoError(t, pool.QueryRow(ctx, `
		INSERT INTO employer_health_plan (name, benefits_payer_id, rx_integrated, start_date, end_date)
		VALUES ('ACME 2024', $1, FALSE, '2024-01-01', '2024-12-31') RETURNING id`, payerID).Scan(&plan2024))

	for _, p := range []struct {
		plan  int64
		start string
	}{{plan2023, "2023-01-01"}, {plan2024, "2024-01-01"}} {
		_, err := pool.Exec(ctx, `
			INSERT INTO member_health_plan (member_id, reimbursement_wallet_id, employer_health_plan_id,
				subscriber_insurance_id, patient_first_name, patient_last_name, is_subscriber, plan_start_at)
			VALUES (42, 500, $1, 'XYZ123456', 'Jane', 'Doe', TRUE, $2::timestamptz)`, p.plan, p.start)
		require.NoError(t, err)
	}

	repo := healthplan.NewRepoPG(pool)
	lookup := healthplan.NewTemporalPlanLookup(repo)

	t.Run("PicksPlanForServiceDate", func(t *testing.T) {
		ehp, err := lookup.EmployerHealthPlan(ctx, 500, 42, day(2023, 6, 1))
		require.NoError(t, err)
		assert.Equal(t, plan2023, ehp.ID)

		ehp, err = lookup.EmployerHealthPlan(ctx, 500, 42, day(2024, 12, 31))
		require.NoError(t, err)
		assert.Equal(t, plan2024, ehp.ID)
		assert.False(t, ehp.RxIntegrated)
	})

	t.Run("NoPlanOnDate", func(t *testing.T) {
		_, err := repo.GetMemberHealthPlan(ctx, 42, 500, day(2022, 6, 1))
		assert.True(t, errors.Is(err, healthplan.ErrMemberPlanNotFound))
	})

	t.Run("EmployerPlanMissing", func(t *testing.T) {
		_, err := repo.GetEmployerHealthPlan(ctx, 424242)
		assert.True(t, errors.Is(err, healthplan.ErrEmployerPlanNotFound))
	})
}

func TestMigrationStatus(t *testing.T) {
	pool := requireDB(t)
	ctx := context.Background()
	m := db.NewMigrator(pool, migrations.FS)

	n, err := m.Up(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "migrations already applied in TestMain")

	statuses, err := m.Status(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, statuses)
	for _, s := range statuses {
		assert.True(t, s.Applied, "migration %d", s.Version)
	}
}
