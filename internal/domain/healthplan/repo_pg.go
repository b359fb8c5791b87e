package healthplan

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maven/accumulator/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const ehpCols = `id, name, benefits_payer_id, rx_integrated, start_date, end_date`

func (r *repoPG) GetEmployerHealthPlan(ctx context.Context, id int64) (*EmployerHealthPlan, error) {
	var p EmployerHealthPlan
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+ehpCols+` FROM employer_health_plan WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.BenefitsPayerID, &p.RxIntegrated, &p.StartDate, &p.EndDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEmployerPlanNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) GetMemberHealthPlan(ctx context.Context, memberID, walletID int64, effectiveDate time.Time) (*MemberHealthPlan, error) {
	var m MemberHealthPlan
	var p EmployerHealthPlan
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT mhp.id, mhp.member_id, mhp.reimbursement_wallet_id, mhp.employer_health_plan_id,
			mhp.subscriber_insurance_id, mhp.subscriber_first_name, mhp.subscriber_last_name,
			mhp.subscriber_date_of_birth, mhp.patient_first_name, mhp.patient_last_name,
			mhp.patient_date_of_birth, mhp.patient_sex, mhp.is_subscriber,
			mhp.plan_start_at, mhp.plan_end_at,
			ehp.id, ehp.name, ehp.benefits_payer_id, ehp.rx_integrated, ehp.start_date, ehp.end_date
		FROM member_health_plan mhp
		JOIN employer_health_plan ehp ON ehp.id = mhp.employer_health_plan_id
		WHERE mhp.member_id = $1
		  AND mhp.reimbursement_wallet_id = $2
		  AND ehp.start_date <= $3::date AND ehp.end_date >= $3::date
		  AND mhp.plan_start_at::date <= $3::date
		  AND (mhp.plan_end_at IS NULL OR mhp.plan_end_at::date >= $3::date)
		ORDER BY mhp.plan_start_at DESC, mhp.id DESC
		LIMIT 1`, memberID, walletID, effectiveDate).
		Scan(&m.ID, &m.MemberID, &m.WalletID, &m.EmployerHealthPlanID,
			&m.SubscriberInsuranceID, &m.SubscriberFirstName, &m.SubscriberLastName,
			&m.SubscriberDateOfBirth, &m.PatientFirstName, &m.PatientLastName,
			&m.PatientDateOfBirth, &m.PatientSex, &m.IsSubscriber,
			&m.PlanStartAt, &m.PlanEndAt,
			&p.ID, &p.Name, &p.BenefitsPayerID, &p.RxIntegrated, &p.StartDate, &p.EndDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMemberPlanNotFound
	}
	if err != nil {
		return nil, err
	}
	m.EmployerHealthPlan = &p
	return &m, nil
}
