package billing

import (
	"context"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/domain/catalog"
	"github.com/hms/hms/internal/domain/patient"
	"github.com/hms/hms/internal/domain/visit"
)

type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	// GetByIDForUpdate locks the payment row for the duration of the
	// surrounding transaction.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Payment, error)
	// GetPendingByVisitForUpdate returns the visit's open pending payment,
	// locked, or ErrNotFound when the visit has none.
	GetPendingByVisitForUpdate(ctx context.Context, visitID uuid.UUID) (*Payment, error)
	ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*Payment, error)
	Update(ctx context.Context, p *Payment) error
	AddItem(ctx context.Context, item *PaymentItem) error
	GetItems(ctx context.Context, paymentID uuid.UUID) ([]*PaymentItem, error)
	HasItemForCatalogItem(ctx context.Context, paymentID, catalogItemID uuid.UUID) (bool, error)
	// MarkItemsCompleted completes the pending items of the payment whose ids
	// appear in ids, ignoring ids that are unknown or belong elsewhere, and
	// reports how many rows changed.
	MarkItemsCompleted(ctx context.Context, paymentID uuid.UUID, ids []uuid.UUID) (int, error)
	CountPendingItems(ctx context.Context, paymentID uuid.UUID) (int, error)
}

type InvoiceRepository interface {
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	// GetInsuranceByVisitForUpdate returns the visit's insurance invoice,
	// locked, or ErrNotFound.
	GetInsuranceByVisitForUpdate(ctx context.Context, visitID uuid.UUID) (*Invoice, error)
	ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*Invoice, error)
	// ListUnpaidInsuranceByVisit locks and returns the visit's unpaid
	// insurance invoices.
	ListUnpaidInsuranceByVisit(ctx context.Context, visitID uuid.UUID) ([]*Invoice, error)
	Update(ctx context.Context, inv *Invoice) error
	AddItem(ctx context.Context, item *InvoiceItem) error
	GetItems(ctx context.Context, invoiceID uuid.UUID) ([]*InvoiceItem, error)
	HasItemForCatalogItem(ctx context.Context, invoiceID, catalogItemID uuid.UUID) (bool, error)
}

// Collaborator surfaces consumed from the visit, catalog, and patient
// packages. Declared here so the billing service depends on behaviour, not on
// the concrete services, and so tests can stand in cheaply.

type VisitSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*visit.Visit, error)
	Update(ctx context.Context, v *visit.Visit) error
}

type TestSource interface {
	ListByVisitAndStatus(ctx context.Context, visitID uuid.UUID, status string) ([]*visit.Test, error)
	UpdateStatus(ctx context.Context, ids []uuid.UUID, status string) error
}

type PrescriptionSource interface {
	ListByVisitAndStatus(ctx context.Context, visitID uuid.UUID, status string) ([]*visit.Prescription, error)
	UpdateStatus(ctx context.Context, ids []uuid.UUID, status string) error
}

type FeeSource interface {
	ConsultationFee(ctx context.Context) (*catalog.Item, error)
}

type InsuranceSource interface {
	ResolvePaymentMethod(ctx context.Context, patientID uuid.UUID) (patient.PaymentMethod, *patient.Insurance, error)
}

// TxRunner runs fn inside one database transaction; every repo call made with
// the derived context joins it.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TxRunnerFunc adapts a function to TxRunner.
type TxRunnerFunc func(ctx context.Context, fn func(ctx context.Context) error) error

func (f TxRunnerFunc) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return f(ctx, fn)
}
