package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
)

const (
	ItemKindConsultation = "consultation"
	ItemKindTest         = "test"
	ItemKindPrescription = "prescription"
)

// Payment is the cash-track billing aggregate for a visit. A visit may carry
// several payments over its lifetime. Amount always equals the sum of the
// owned item prices; both are only mutated inside the same transaction.
type Payment struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	VisitID   uuid.UUID       `db:"visit_id" json:"visit_id"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	Status    string          `db:"status" json:"status"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`

	Items []*PaymentItem `db:"-" json:"items,omitempty"`
}

type PaymentItem struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	PaymentID   uuid.UUID       `db:"payment_id" json:"payment_id"`
	ItemID      *uuid.UUID      `db:"item_id" json:"item_id,omitempty"`
	Description string          `db:"description" json:"description"`
	ItemKind    string          `db:"item_kind" json:"item_kind"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Status      string          `db:"status" json:"status"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// Invoice is the insurance-track billing aggregate. At most one insurance
// invoice exists per visit; it is created lazily on the first covered charge.
type Invoice struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	VisitID     uuid.UUID       `db:"visit_id" json:"visit_id"`
	TotalAmount decimal.Decimal `db:"total_amount" json:"total_amount"`
	IsPaid      bool            `db:"is_paid" json:"is_paid"`
	IsInsurance bool            `db:"is_insurance" json:"is_insurance"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`

	Items []*InvoiceItem `db:"-" json:"items,omitempty"`
}

// InvoiceItem has no status of its own; settlement is tracked on the invoice.
type InvoiceItem struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	InvoiceID   uuid.UUID       `db:"invoice_id" json:"invoice_id"`
	ItemID      *uuid.UUID      `db:"item_id" json:"item_id,omitempty"`
	Description string          `db:"description" json:"description"`
	ItemKind    string          `db:"item_kind" json:"item_kind"`
	Price       decimal.Decimal `db:"price" json:"price"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}
