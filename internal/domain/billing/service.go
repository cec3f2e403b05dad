package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hms/hms/internal/domain/patient"
	"github.com/hms/hms/internal/domain/visit"
)

// Service owns the charge ledger, settlement, and insurance submission. Every
// mutating operation runs in exactly one transaction and locks the affected
// aggregate row before reading or writing its item set.
type Service struct {
	payments      PaymentRepository
	invoices      InvoiceRepository
	visits        VisitSource
	tests         TestSource
	prescriptions PrescriptionSource
	fees          FeeSource
	insurance     InsuranceSource
	tx            TxRunner
}

func NewService(payments PaymentRepository, invoices InvoiceRepository,
	visits VisitSource, tests TestSource, prescriptions PrescriptionSource,
	fees FeeSource, insurance InsuranceSource, tx TxRunner) *Service {
	return &Service{
		payments:      payments,
		invoices:      invoices,
		visits:        visits,
		tests:         tests,
		prescriptions: prescriptions,
		fees:          fees,
		insurance:     insurance,
		tx:            tx,
	}
}

// ChargeResult summarises what a charge operation produced. Either the
// payment or the invoice fields are set for cash and insurance respectively;
// a split insurance charge sets both.
type ChargeResult struct {
	PaymentMethod string           `json:"payment_method"`
	PaymentID     *uuid.UUID       `json:"payment_id,omitempty"`
	PaymentAmount *decimal.Decimal `json:"payment_amount,omitempty"`
	InvoiceID     *uuid.UUID       `json:"invoice_id,omitempty"`
	InvoiceTotal  *decimal.Decimal `json:"invoice_total,omitempty"`
	ChargedItems  int              `json:"charged_items"`
	CoveredItems  int              `json:"covered_items"`
}

// ChargeConsultation bills the visit for the consultation fee catalog item.
// The fee lands on the visit's open pending payment for cash patients, or on
// the visit's insurance invoice, creating either lazily. Charging the same
// fee twice on one aggregate yields a DuplicateChargeError.
func (s *Service) ChargeConsultation(ctx context.Context, visitID uuid.UUID) (*ChargeResult, error) {
	var result *ChargeResult
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		v, err := s.visits.GetByID(ctx, visitID)
		if err != nil {
			return err
		}
		fee, err := s.fees.ConsultationFee(ctx)
		if err != nil {
			return fmt.Errorf("consultation fee item is not configured: %w", ErrInvalidRequest)
		}
		method, _, err := s.insurance.ResolvePaymentMethod(ctx, v.PatientID)
		if err != nil {
			return err
		}

		if method == patient.PaymentMethodInsurance {
			inv, err := s.getOrCreateInvoice(ctx, v.ID)
			if err != nil {
				return err
			}
			dup, err := s.invoices.HasItemForCatalogItem(ctx, inv.ID, fee.ID)
			if err != nil {
				return err
			}
			if dup {
				return &DuplicateChargeError{Aggregate: "invoice", AggregateID: inv.ID, CatalogItemID: fee.ID}
			}
			if err := s.invoices.AddItem(ctx, &InvoiceItem{
				InvoiceID:   inv.ID,
				ItemID:      &fee.ID,
				Description: fee.Name,
				ItemKind:    ItemKindConsultation,
				Price:       fee.Price,
			}); err != nil {
				return err
			}
			inv.TotalAmount = inv.TotalAmount.Add(fee.Price)
			if err := s.invoices.Update(ctx, inv); err != nil {
				return err
			}
			result = &ChargeResult{
				PaymentMethod: method.String(),
				InvoiceID:     &inv.ID,
				InvoiceTotal:  &inv.TotalAmount,
				ChargedItems:  1,
				CoveredItems:  1,
			}
			return nil
		}

		p, err := s.getOrCreatePendingPayment(ctx, v.ID)
		if err != nil {
			return err
		}
		dup, err := s.payments.HasItemForCatalogItem(ctx, p.ID, fee.ID)
		if err != nil {
			return err
		}
		if dup {
			return &DuplicateChargeError{Aggregate: "payment", AggregateID: p.ID, CatalogItemID: fee.ID}
		}
		if err := s.payments.AddItem(ctx, &PaymentItem{
			PaymentID:   p.ID,
			ItemID:      &fee.ID,
			Description: fee.Name,
			ItemKind:    ItemKindConsultation,
			Price:       fee.Price,
			Status:      PaymentStatusPending,
		}); err != nil {
			return err
		}
		p.Amount = p.Amount.Add(fee.Price)
		if err := s.payments.Update(ctx, p); err != nil {
			return err
		}
		result = &ChargeResult{
			PaymentMethod: method.String(),
			PaymentID:     &p.ID,
			PaymentAmount: &p.Amount,
			ChargedItems:  1,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ChargeTests bills every pending test on the visit. Cash visits get one new
// payment holding all tests. Insured visits split the tests against the
// available coverage: covered tests join the insurance invoice, the rest go
// onto a new payment. Coverage defaults to the policy's coverage amount and
// may be overridden per call.
func (s *Service) ChargeTests(ctx context.Context, visitID uuid.UUID, coverage *decimal.Decimal) (*ChargeResult, error) {
	var result *ChargeResult
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		v, err := s.visits.GetByID(ctx, visitID)
		if err != nil {
			return err
		}
		tests, err := s.tests.ListByVisitAndStatus(ctx, v.ID, visit.ChargeStatusPending)
		if err != nil {
			return err
		}
		if len(tests) == 0 {
			return fmt.Errorf("visit has no pending tests to charge: %w", ErrInvalidRequest)
		}
		charges := make([]Charge, 0, len(tests))
		for _, t := range tests {
			charges = append(charges, Charge{ID: t.ID, ItemID: t.ItemID, Description: t.Name, Price: t.Price})
		}
		result, err = s.chargeBatch(ctx, v, charges, ItemKindTest, coverage, s.tests.UpdateStatus)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ChargePrescriptions bills every pending prescription on the visit, with the
// same cash/insurance split as ChargeTests.
func (s *Service) ChargePrescriptions(ctx context.Context, visitID uuid.UUID, coverage *decimal.Decimal) (*ChargeResult, error) {
	var result *ChargeResult
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		v, err := s.visits.GetByID(ctx, visitID)
		if err != nil {
			return err
		}
		prescriptions, err := s.prescriptions.ListByVisitAndStatus(ctx, v.ID, visit.ChargeStatusPending)
		if err != nil {
			return err
		}
		if len(prescriptions) == 0 {
			return fmt.Errorf("visit has no pending prescriptions to charge: %w", ErrInvalidRequest)
		}
		charges := make([]Charge, 0, len(prescriptions))
		for _, p := range prescriptions {
			charges = append(charges, Charge{ID: p.ID, ItemID: p.ItemID, Description: p.MedicineName, Price: p.Price})
		}
		result, err = s.chargeBatch(ctx, v, charges, ItemKindPrescription, coverage, s.prescriptions.UpdateStatus)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// chargeBatch runs inside the caller's transaction. setStatus flips the
// source records (tests or prescriptions) to their post-charge status.
func (s *Service) chargeBatch(ctx context.Context, v *visit.Visit, charges []Charge, kind string,
	coverage *decimal.Decimal, setStatus func(ctx context.Context, ids []uuid.UUID, status string) error) (*ChargeResult, error) {

	method, ins, err := s.insurance.ResolvePaymentMethod(ctx, v.PatientID)
	if err != nil {
		return nil, err
	}

	covered, uncovered := []Charge(nil), charges
	if method == patient.PaymentMethodInsurance {
		remaining := ins.CoverageAmount
		if coverage != nil {
			remaining = *coverage
		}
		covered, uncovered = SplitByCoverage(remaining, charges)
	}

	result := &ChargeResult{
		PaymentMethod: method.String(),
		ChargedItems:  len(charges),
		CoveredItems:  len(covered),
	}

	if len(covered) > 0 {
		inv, err := s.getOrCreateInvoice(ctx, v.ID)
		if err != nil {
			return nil, err
		}
		for _, c := range covered {
			if err := s.invoices.AddItem(ctx, &InvoiceItem{
				InvoiceID:   inv.ID,
				ItemID:      c.ItemID,
				Description: c.Description,
				ItemKind:    kind,
				Price:       c.Price,
			}); err != nil {
				return nil, err
			}
		}
		inv.TotalAmount = inv.TotalAmount.Add(SumCharges(covered))
		if err := s.invoices.Update(ctx, inv); err != nil {
			return nil, err
		}
		if err := setStatus(ctx, chargeIDs(covered), visit.ChargeStatusInsurance); err != nil {
			return nil, err
		}
		result.InvoiceID = &inv.ID
		result.InvoiceTotal = &inv.TotalAmount
	}

	if len(uncovered) > 0 {
		p := &Payment{
			VisitID: v.ID,
			Amount:  SumCharges(uncovered),
			Status:  PaymentStatusPending,
		}
		if err := s.payments.Create(ctx, p); err != nil {
			return nil, err
		}
		for _, c := range uncovered {
			if err := s.payments.AddItem(ctx, &PaymentItem{
				PaymentID:   p.ID,
				ItemID:      c.ItemID,
				Description: c.Description,
				ItemKind:    kind,
				Price:       c.Price,
				Status:      PaymentStatusPending,
			}); err != nil {
				return nil, err
			}
		}
		if err := setStatus(ctx, chargeIDs(uncovered), visit.ChargeStatusPendingPayment); err != nil {
			return nil, err
		}
		result.PaymentID = &p.ID
		result.PaymentAmount = &p.Amount
	}

	return result, nil
}

func chargeIDs(charges []Charge) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(charges))
	for _, c := range charges {
		ids = append(ids, c.ID)
	}
	return ids
}

func (s *Service) getOrCreateInvoice(ctx context.Context, visitID uuid.UUID) (*Invoice, error) {
	inv, err := s.invoices.GetInsuranceByVisitForUpdate(ctx, visitID)
	if err == nil {
		return inv, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	inv = &Invoice{VisitID: visitID, TotalAmount: decimal.Zero, IsInsurance: true}
	if err := s.invoices.Create(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *Service) getOrCreatePendingPayment(ctx context.Context, visitID uuid.UUID) (*Payment, error) {
	p, err := s.payments.GetPendingByVisitForUpdate(ctx, visitID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	p = &Payment{VisitID: visitID, Amount: decimal.Zero, Status: PaymentStatusPending}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// CompletePaymentResult reports an itemized settlement outcome.
type CompletePaymentResult struct {
	UpdatedItems  int    `json:"updated_items"`
	PaymentStatus string `json:"payment_status"`
}

// CompletePayment marks the given items of the payment completed. Ids that
// are unknown or belong to another payment are ignored. The payment itself
// becomes completed once no pending items remain.
func (s *Service) CompletePayment(ctx context.Context, paymentID uuid.UUID, itemIDs []uuid.UUID) (*CompletePaymentResult, error) {
	var result *CompletePaymentResult
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		p, err := s.payments.GetByIDForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.Status == PaymentStatusCompleted {
			return fmt.Errorf("payment %s is already completed: %w", p.ID, ErrInvalidRequest)
		}
		updated, err := s.payments.MarkItemsCompleted(ctx, p.ID, itemIDs)
		if err != nil {
			return err
		}
		pending, err := s.payments.CountPendingItems(ctx, p.ID)
		if err != nil {
			return err
		}
		if pending == 0 {
			p.Status = PaymentStatusCompleted
			if err := s.payments.Update(ctx, p); err != nil {
				return err
			}
		}
		result = &CompletePaymentResult{UpdatedItems: updated, PaymentStatus: p.Status}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// PayInvoice marks the invoice paid. Paying an already-paid invoice is a
// no-op, not an error.
func (s *Service) PayInvoice(ctx context.Context, invoiceID uuid.UUID) (*Invoice, error) {
	var result *Invoice
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		inv, err := s.invoices.GetByID(ctx, invoiceID)
		if err != nil {
			return err
		}
		if !inv.IsPaid {
			inv.IsPaid = true
			if err := s.invoices.Update(ctx, inv); err != nil {
				return err
			}
		}
		result = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SubmitResult reports a batch insurance submission.
type SubmitResult struct {
	SubmittedInvoices int         `json:"submitted_invoices"`
	InvoiceIDs        []uuid.UUID `json:"invoice_ids"`
}

// SubmitToInsurance marks every outstanding insurance invoice of the visit
// paid, simulating synchronous acceptance by the insurer.
func (s *Service) SubmitToInsurance(ctx context.Context, visitID uuid.UUID) (*SubmitResult, error) {
	var result *SubmitResult
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.visits.GetByID(ctx, visitID); err != nil {
			return err
		}
		outstanding, err := s.invoices.ListUnpaidInsuranceByVisit(ctx, visitID)
		if err != nil {
			return err
		}
		if len(outstanding) == 0 {
			return fmt.Errorf("visit has no unpaid insurance invoices: %w", ErrInvalidRequest)
		}
		ids := make([]uuid.UUID, 0, len(outstanding))
		for _, inv := range outstanding {
			inv.IsPaid = true
			if err := s.invoices.Update(ctx, inv); err != nil {
				return err
			}
			ids = append(ids, inv.ID)
		}
		result = &SubmitResult{SubmittedInvoices: len(ids), InvoiceIDs: ids}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CompleteVisit closes the visit. Any unpaid invoice blocks completion;
// payment completion is deliberately not checked, cash is settled at the
// point of service.
func (s *Service) CompleteVisit(ctx context.Context, visitID uuid.UUID) (*visit.Visit, error) {
	var result *visit.Visit
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		v, err := s.visits.GetByID(ctx, visitID)
		if err != nil {
			return err
		}
		invoices, err := s.invoices.ListByVisit(ctx, v.ID)
		if err != nil {
			return err
		}
		for _, inv := range invoices {
			if !inv.IsPaid {
				return fmt.Errorf("invoice %s is unpaid: %w", inv.ID, ErrInvalidRequest)
			}
		}
		v.Status = visit.StatusCompleted
		v.IsActive = false
		if err := s.visits.Update(ctx, v); err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// VisitPayments returns the visit's payments with their items attached.
func (s *Service) VisitPayments(ctx context.Context, visitID uuid.UUID) ([]*Payment, error) {
	if _, err := s.visits.GetByID(ctx, visitID); err != nil {
		return nil, err
	}
	payments, err := s.payments.ListByVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	for _, p := range payments {
		items, err := s.payments.GetItems(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		p.Items = items
	}
	return payments, nil
}

// VisitInvoices returns the visit's invoices with their items attached.
func (s *Service) VisitInvoices(ctx context.Context, visitID uuid.UUID) ([]*Invoice, error) {
	if _, err := s.visits.GetByID(ctx, visitID); err != nil {
		return nil, err
	}
	invoices, err := s.invoices.ListByVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	for _, inv := range invoices {
		items, err := s.invoices.GetItems(ctx, inv.ID)
		if err != nil {
			return nil, err
		}
		inv.Items = items
	}
	return invoices, nil
}
