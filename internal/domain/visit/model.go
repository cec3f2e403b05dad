package visit

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// Charge statuses shared by tests and prescriptions. An ordered item starts
// pending, moves to pending_payment when a cash charge was raised, or to
// insurance when the insurer's invoice absorbed it.
const (
	ChargeStatusPending        = "pending"
	ChargeStatusPendingPayment = "pending_payment"
	ChargeStatusInsurance      = "insurance"
)

const (
	TestStatusCompleted = "completed"

	TestTypeLaboratory = "laboratory"
	TestTypeRadiology  = "radiology"
)

const PrescriptionStatusDispensed = "dispensed"

// Visit is a single patient encounter with a department.
type Visit struct {
	ID          uuid.UUID `db:"id" json:"id"`
	VisitNumber string    `db:"visit_number" json:"visit_number"`
	PatientID   uuid.UUID `db:"patient_id" json:"patient_id"`
	Department  string    `db:"department" json:"department"`
	Status      string    `db:"status" json:"status"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Test is a lab or radiology order placed during a visit.
type Test struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	VisitID   uuid.UUID       `db:"visit_id" json:"visit_id"`
	ItemID    *uuid.UUID      `db:"item_id" json:"item_id,omitempty"`
	Name      string          `db:"name" json:"name"`
	TestType  string          `db:"test_type" json:"test_type"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Status    string          `db:"status" json:"status"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// Prescription is a medicine order placed during a visit. Price is the full
// line price (unit price times quantity) fixed at ordering time.
type Prescription struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	VisitID      uuid.UUID       `db:"visit_id" json:"visit_id"`
	ItemID       *uuid.UUID      `db:"item_id" json:"item_id,omitempty"`
	MedicineName string          `db:"medicine_name" json:"medicine_name"`
	Dosage       *string         `db:"dosage" json:"dosage,omitempty"`
	Quantity     int             `db:"quantity" json:"quantity"`
	Frequency    *string         `db:"frequency" json:"frequency,omitempty"`
	Price        decimal.Decimal `db:"price" json:"price"`
	Status       string          `db:"status" json:"status"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// FormatVisitNumber builds the visit number: V + ddmmyy + daily sequence.
func FormatVisitNumber(day time.Time, seq int) string {
	return fmt.Sprintf("V%s%03d", day.Format("020106"), seq)
}
