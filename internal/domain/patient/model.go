package patient

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Patient maps to the patients table.
type Patient struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PatientNumber string     `db:"patient_number" json:"patient_number"`
	FirstName     string     `db:"first_name" json:"first_name"`
	LastName      string     `db:"last_name" json:"last_name"`
	DateOfBirth   *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Gender        *string    `db:"gender" json:"gender,omitempty"`
	Phone         *string    `db:"phone" json:"phone,omitempty"`
	Address       *string    `db:"address" json:"address,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// Insurance links a patient to an insurer policy. One active record per
// patient decides the payment method for every charge.
type Insurance struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	PatientID      uuid.UUID       `db:"patient_id" json:"patient_id"`
	CompanyID      uuid.UUID       `db:"company_id" json:"company_id"`
	PolicyNumber   string          `db:"policy_number" json:"policy_number"`
	CoverageAmount decimal.Decimal `db:"coverage_amount" json:"coverage_amount"`
	IsActive       bool            `db:"is_active" json:"is_active"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// PaymentMethod is how a patient settles charges. It is resolved once per
// charge operation from the presence of an active Insurance record.
type PaymentMethod int

const (
	PaymentMethodCash PaymentMethod = iota
	PaymentMethodInsurance
)

func (m PaymentMethod) String() string {
	switch m {
	case PaymentMethodInsurance:
		return "insurance"
	default:
		return "cash"
	}
}

// FormatPatientNumber builds the human-facing patient number: the visit date
// as ddmmyy followed by a zero-padded daily sequence.
func FormatPatientNumber(day time.Time, seq int) string {
	return fmt.Sprintf("%s%03d", day.Format("020106"), seq)
}
