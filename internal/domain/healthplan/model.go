package healthplan

import "time"

// EmployerHealthPlan maps to the employer_health_plan table. Start and end
// dates are inclusive calendar days.
type EmployerHealthPlan struct {
	ID              int64     `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	BenefitsPayerID *int64    `db:"benefits_payer_id" json:"benefits_payer_id,omitempty"`
	RxIntegrated    bool      `db:"rx_integrated" json:"rx_integrated"`
	StartDate       time.Time `db:"start_date" json:"start_date"`
	EndDate         time.Time `db:"end_date" json:"end_date"`
}

// Covers reports whether day falls inside [StartDate, EndDate].
func (p *EmployerHealthPlan) Covers(day time.Time) bool {
	d := truncateDay(day)
	return !d.Before(truncateDay(p.StartDate)) && !d.After(truncateDay(p.EndDate))
}

// MemberHealthPlan maps to the member_health_plan table: a member's
// enrollment in an employer plan through a wallet.
type MemberHealthPlan struct {
	ID                    int64      `db:"id" json:"id"`
	MemberID              int64      `db:"member_id" json:"member_id"`
	WalletID              int64      `db:"reimbursement_wallet_id" json:"reimbursement_wallet_id"`
	EmployerHealthPlanID  int64      `db:"employer_health_plan_id" json:"employer_health_plan_id"`
	SubscriberInsuranceID string     `db:"subscriber_insurance_id" json:"subscriber_insurance_id"`
	SubscriberFirstName   *string    `db:"subscriber_first_name" json:"subscriber_first_name,omitempty"`
	SubscriberLastName    *string    `db:"subscriber_last_name" json:"subscriber_last_name,omitempty"`
	SubscriberDateOfBirth *time.Time `db:"subscriber_date_of_birth" json:"subscriber_date_of_birth,omitempty"`
	PatientFirstName      *string    `db:"patient_first_name" json:"patient_first_name,omitempty"`
	PatientLastName       *string    `db:"patient_last_name" json:"patient_last_name,omitempty"`
	PatientDateOfBirth    *time.Time `db:"patient_date_of_birth" json:"patient_date_of_birth,omitempty"`
	PatientSex            *string    `db:"patient_sex" json:"patient_sex,omitempty"`
	IsSubscriber          bool       `db:"is_subscriber" json:"is_subscriber"`
	PlanStartAt           time.Time  `db:"plan_start_at" json:"plan_start_at"`
	PlanEndAt             *time.Time `db:"plan_end_at" json:"plan_end_at,omitempty"`

	EmployerHealthPlan *EmployerHealthPlan `db:"-" json:"employer_health_plan,omitempty"`
}

// ActiveOn reports whether the enrollment is open on day. A nil end means
// the enrollment has no scheduled end.
func (m *MemberHealthPlan) ActiveOn(day time.Time) bool {
	d := truncateDay(day)
	if d.Before(truncateDay(m.PlanStartAt)) {
		return false
	}
	return m.PlanEndAt == nil || !d.After(truncateDay(*m.PlanEndAt))
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// PatientName returns the first and last name of the person who received
// service.
func (m *MemberHealthPlan) PatientName() (first, last string) {
	return deref(m.PatientFirstName), deref(m.PatientLastName)
}

// SubscriberName returns the policy holder's first and last name. For a
// subscriber enrollment the patient fields are used when the subscriber
// fields are empty.
func (m *MemberHealthPlan) SubscriberName() (first, last string) {
	first, last = deref(m.SubscriberFirstName), deref(m.SubscriberLastName)
	if first == "" && last == "" && m.IsSubscriber {
		return m.PatientName()
	}
	return first, last
}
