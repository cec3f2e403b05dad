package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hms/hms/internal/domain/catalog"
	"github.com/hms/hms/internal/domain/patient"
	"github.com/hms/hms/internal/domain/visit"
)

type mockPaymentRepo struct {
	payments map[uuid.UUID]*Payment
	items    []*PaymentItem
}

func newMockPaymentRepo() *mockPaymentRepo {
	return &mockPaymentRepo{payments: make(map[uuid.UUID]*Payment)}
}

func (m *mockPaymentRepo) Create(_ context.Context, p *Payment) error {
	p.ID = uuid.New()
	m.payments[p.ID] = p
	return nil
}

func (m *mockPaymentRepo) GetByID(_ context.Context, id uuid.UUID) (*Payment, error) {
	p, ok := m.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *mockPaymentRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return m.GetByID(ctx, id)
}

func (m *mockPaymentRepo) GetPendingByVisitForUpdate(_ context.Context, visitID uuid.UUID) (*Payment, error) {
	for _, p := range m.payments {
		if p.VisitID == visitID && p.Status == PaymentStatusPending {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockPaymentRepo) ListByVisit(_ context.Context, visitID uuid.UUID) ([]*Payment, error) {
	var out []*Payment
	for _, p := range m.payments {
		if p.VisitID == visitID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockPaymentRepo) Update(_ context.Context, p *Payment) error {
	if _, ok := m.payments[p.ID]; !ok {
		return ErrNotFound
	}
	m.payments[p.ID] = p
	return nil
}

func (m *mockPaymentRepo) AddItem(_ context.Context, item *PaymentItem) error {
	item.ID = uuid.New()
	m.items = append(m.items, item)
	return nil
}

func (m *mockPaymentRepo) GetItems(_ context.Context, paymentID uuid.UUID) ([]*PaymentItem, error) {
	var out []*PaymentItem
	for _, it := range m.items {
		if it.PaymentID == paymentID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *mockPaymentRepo) HasItemForCatalogItem(_ context.Context, paymentID, catalogItemID uuid.UUID) (bool, error) {
	for _, it := range m.items {
		if it.PaymentID == paymentID && it.ItemID != nil && *it.ItemID == catalogItemID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockPaymentRepo) MarkItemsCompleted(_ context.Context, paymentID uuid.UUID, ids []uuid.UUID) (int, error) {
	lookup := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		lookup[id] = true
	}
	count := 0
	for _, it := range m.items {
		if it.PaymentID == paymentID && lookup[it.ID] && it.Status == PaymentStatusPending {
			it.Status = PaymentStatusCompleted
			count++
		}
	}
	return count, nil
}

func (m *mockPaymentRepo) CountPendingItems(_ context.Context, paymentID uuid.UUID) (int, error) {
	count := 0
	for _, it := range m.items {
		if it.PaymentID == paymentID && it.Status == PaymentStatusPending {
			count++
		}
	}
	return count, nil
}

type mockInvoiceRepo struct {
	invoices map[uuid.UUID]*Invoice
	items    []*InvoiceItem
}

func newMockInvoiceRepo() *mockInvoiceRepo {
	return &mockInvoiceRepo{invoices: make(map[uuid.UUID]*Invoice)}
}

func (m *mockInvoiceRepo) Create(_ context.Context, inv *Invoice) error {
	inv.ID = uuid.New()
	m.invoices[inv.ID] = inv
	return nil
}

func (m *mockInvoiceRepo) GetByID(_ context.Context, id uuid.UUID) (*Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, ErrNotFound
	}
	return inv, nil
}

func (m *mockInvoiceRepo) GetInsuranceByVisitForUpdate(_ context.Context, visitID uuid.UUID) (*Invoice, error) {
	for _, inv := range m.invoices {
		if inv.VisitID == visitID && inv.IsInsurance {
			return inv, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockInvoiceRepo) ListByVisit(_ context.Context, visitID uuid.UUID) ([]*Invoice, error) {
	var out []*Invoice
	for _, inv := range m.invoices {
		if inv.VisitID == visitID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (m *mockInvoiceRepo) ListUnpaidInsuranceByVisit(_ context.Context, visitID uuid.UUID) ([]*Invoice, error) {
	var out []*Invoice
	for _, inv := range m.invoices {
		if inv.VisitID == visitID && inv.IsInsurance && !inv.IsPaid {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (m *mockInvoiceRepo) Update(_ context.Context, inv *Invoice) error {
	if _, ok := m.invoices[inv.ID]; !ok {
		return ErrNotFound
	}
	m.invoices[inv.ID] = inv
	return nil
}

func (m *mockInvoiceRepo) AddItem(_ context.Context, item *InvoiceItem) error {
	item.ID = uuid.New()
	m.items = append(m.items, item)
	return nil
}

func (m *mockInvoiceRepo) GetItems(_ context.Context, invoiceID uuid.UUID) ([]*InvoiceItem, error) {
	var out []*InvoiceItem
	for _, it := range m.items {
		if it.InvoiceID == invoiceID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *mockInvoiceRepo) HasItemForCatalogItem(_ context.Context, invoiceID, catalogItemID uuid.UUID) (bool, error) {
	for _, it := range m.items {
		if it.InvoiceID == invoiceID && it.ItemID != nil && *it.ItemID == catalogItemID {
			return true, nil
		}
	}
	return false, nil
}

type mockVisitSource struct {
	visits map[uuid.UUID]*visit.Visit
}

func (m *mockVisitSource) GetByID(_ context.Context, id uuid.UUID) (*visit.Visit, error) {
	v, ok := m.visits[id]
	if !ok {
		return nil, visit.ErrNotFound
	}
	return v, nil
}

func (m *mockVisitSource) Update(_ context.Context, v *visit.Visit) error {
	m.visits[v.ID] = v
	return nil
}

type mockTestSource struct {
	tests []*visit.Test
}

func (m *mockTestSource) ListByVisitAndStatus(_ context.Context, visitID uuid.UUID, status string) ([]*visit.Test, error) {
	var out []*visit.Test
	for _, t := range m.tests {
		if t.VisitID == visitID && t.Status == status {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockTestSource) UpdateStatus(_ context.Context, ids []uuid.UUID, status string) error {
	lookup := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		lookup[id] = true
	}
	for _, t := range m.tests {
		if lookup[t.ID] {
			t.Status = status
		}
	}
	return nil
}

type mockPrescriptionSource struct {
	prescriptions []*visit.Prescription
}

func (m *mockPrescriptionSource) ListByVisitAndStatus(_ context.Context, visitID uuid.UUID, status string) ([]*visit.Prescription, error) {
	var out []*visit.Prescription
	for _, p := range m.prescriptions {
		if p.VisitID == visitID && p.Status == status {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockPrescriptionSource) UpdateStatus(_ context.Context, ids []uuid.UUID, status string) error {
	lookup := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		lookup[id] = true
	}
	for _, p := range m.prescriptions {
		if lookup[p.ID] {
			p.Status = status
		}
	}
	return nil
}

type mockFeeSource struct {
	fee *catalog.Item
}

func (m *mockFeeSource) ConsultationFee(_ context.Context) (*catalog.Item, error) {
	if m.fee == nil {
		return nil, catalog.ErrNotFound
	}
	return m.fee, nil
}

type mockInsuranceSource struct {
	policies map[uuid.UUID]*patient.Insurance
}

func (m *mockInsuranceSource) ResolvePaymentMethod(_ context.Context, patientID uuid.UUID) (patient.PaymentMethod, *patient.Insurance, error) {
	if ins, ok := m.policies[patientID]; ok {
		return patient.PaymentMethodInsurance, ins, nil
	}
	return patient.PaymentMethodCash, nil, nil
}

type fixture struct {
	svc           *Service
	payments      *mockPaymentRepo
	invoices      *mockInvoiceRepo
	visits        *mockVisitSource
	tests         *mockTestSource
	prescriptions *mockPrescriptionSource
	fees          *mockFeeSource
	insurance     *mockInsuranceSource
}

func newFixture() *fixture {
	f := &fixture{
		payments:      newMockPaymentRepo(),
		invoices:      newMockInvoiceRepo(),
		visits:        &mockVisitSource{visits: make(map[uuid.UUID]*visit.Visit)},
		tests:         &mockTestSource{},
		prescriptions: &mockPrescriptionSource{},
		fees: &mockFeeSource{fee: &catalog.Item{
			ID:       uuid.New(),
			Name:     catalog.ConsultationFeeName,
			ItemType: catalog.ItemTypeService,
			Price:    decimal.NewFromInt(40),
			IsActive: true,
		}},
		insurance: &mockInsuranceSource{policies: make(map[uuid.UUID]*patient.Insurance)},
	}
	passthrough := TxRunnerFunc(func(ctx context.Context, fn func(ctx context.Context) error) error {
		return fn(ctx)
	})
	f.svc = NewService(f.payments, f.invoices, f.visits, f.tests, f.prescriptions,
		f.fees, f.insurance, passthrough)
	return f
}

func (f *fixture) addVisit() *visit.Visit {
	v := &visit.Visit{
		ID:        uuid.New(),
		PatientID: uuid.New(),
		Status:    visit.StatusPending,
		IsActive:  true,
	}
	f.visits.visits[v.ID] = v
	return v
}

func (f *fixture) insure(patientID uuid.UUID, coverage int64) {
	f.insurance.policies[patientID] = &patient.Insurance{
		ID:             uuid.New(),
		PatientID:      patientID,
		CoverageAmount: decimal.NewFromInt(coverage),
		IsActive:       true,
	}
}

func (f *fixture) addPendingTest(visitID uuid.UUID, name string, price int64) *visit.Test {
	t := &visit.Test{
		ID:      uuid.New(),
		VisitID: visitID,
		Name:    name,
		Price:   decimal.NewFromInt(price),
		Status:  visit.ChargeStatusPending,
	}
	f.tests.tests = append(f.tests.tests, t)
	return t
}

func (f *fixture) addPendingPrescription(visitID uuid.UUID, name string, price int64) *visit.Prescription {
	p := &visit.Prescription{
		ID:           uuid.New(),
		VisitID:      visitID,
		MedicineName: name,
		Quantity:     1,
		Price:        decimal.NewFromInt(price),
		Status:       visit.ChargeStatusPending,
	}
	f.prescriptions.prescriptions = append(f.prescriptions.prescriptions, p)
	return p
}

func TestChargeConsultationCash(t *testing.T) {
	f := newFixture()
	v := f.addVisit()

	result, err := f.svc.ChargeConsultation(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("ChargeConsultation: %v", err)
	}
	if result.PaymentMethod != "cash" {
		t.Errorf("method = %q, want cash", result.PaymentMethod)
	}
	if result.PaymentID == nil {
		t.Fatal("expected a payment")
	}
	if !result.PaymentAmount.Equal(decimal.NewFromInt(40)) {
		t.Errorf("amount = %s, want 40", result.PaymentAmount)
	}
	items, _ := f.payments.GetItems(context.Background(), *result.PaymentID)
	if len(items) != 1 || items[0].ItemKind != ItemKindConsultation {
		t.Fatalf("items = %v, want one consultation item", items)
	}
}

func TestChargeConsultationDuplicate(t *testing.T) {
	f := newFixture()
	v := f.addVisit()
	f.insure(v.PatientID, 100)

	first, err := f.svc.ChargeConsultation(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("first charge: %v", err)
	}
	if first.InvoiceID == nil || !first.InvoiceTotal.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("first charge result = %+v, want invoice total 40", first)
	}

	_, err = f.svc.ChargeConsultation(context.Background(), v.ID)
	var dup *DuplicateChargeError
	if !errors.As(err, &dup) {
		t.Fatalf("second charge err = %v, want DuplicateChargeError", err)
	}
	if !errors.Is(err, ErrInvalidRequest) {
		t.Error("DuplicateChargeError should unwrap to ErrInvalidRequest")
	}
	if dup.Aggregate != "invoice" || dup.AggregateID != *first.InvoiceID {
		t.Errorf("duplicate ids = %+v, want invoice %s", dup, first.InvoiceID)
	}
	items, _ := f.invoices.GetItems(context.Background(), *first.InvoiceID)
	if len(items) != 1 {
		t.Errorf("invoice items = %d, want exactly 1 after duplicate attempt", len(items))
	}
}

func TestChargeConsultationMissingFeeItem(t *testing.T) {
	f := newFixture()
	f.fees.fee = nil
	v := f.addVisit()

	_, err := f.svc.ChargeConsultation(context.Background(), v.ID)
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("err = %v, want ErrInvalidRequest", err)
	}
}

func TestChargeConsultationUnknownVisit(t *testing.T) {
	f := newFixture()
	_, err := f.svc.ChargeConsultation(context.Background(), uuid.New())
	if !errors.Is(err, visit.ErrNotFound) {
		t.Fatalf("err = %v, want visit.ErrNotFound", err)
	}
}

func TestChargeTestsCash(t *testing.T) {
	f := newFixture()
	v := f.addVisit()
	f.addPendingTest(v.ID, "FBC", 10)
	f.addPendingTest(v.ID, "LFT", 20)
	f.addPendingTest(v.ID, "X-Ray", 30)

	result, err := f.svc.ChargeTests(context.Background(), v.ID, nil)
	if err != nil {
		t.Fatalf("ChargeTests: %v", err)
	}
	if result.PaymentID == nil || result.InvoiceID != nil {
		t.Fatalf("result = %+v, want payment only", result)
	}
	if !result.PaymentAmount.Equal(decimal.NewFromInt(60)) {
		t.Errorf("amount = %s, want 60", result.PaymentAmount)
	}
	items, _ := f.payments.GetItems(context.Background(), *result.PaymentID)
	if len(items) != 3 {
		t.Fatalf("payment items = %d, want 3", len(items))
	}
	for _, tt := range f.tests.tests {
		if tt.Status != visit.ChargeStatusPendingPayment {
			t.Errorf("test %s status = %q, want pending_payment", tt.Name, tt.Status)
		}
	}
}

func TestChargeTestsInsuredSplit(t *testing.T) {
	f := newFixture()
	v := f.addVisit()
	f.insure(v.PatientID, 25)
	covered := f.addPendingTest(v.ID, "FBC", 10)
	f.addPendingTest(v.ID, "LFT", 20)
	f.addPendingTest(v.ID, "X-Ray", 30)

	result, err := f.svc.ChargeTests(context.Background(), v.ID, nil)
	if err != nil {
		t.Fatalf("ChargeTests: %v", err)
	}
	if result.InvoiceID == nil || result.PaymentID == nil {
		t.Fatalf("result = %+v, want both invoice and payment", result)
	}
	if !result.InvoiceTotal.Equal(decimal.NewFromInt(10)) {
		t.Errorf("invoice total = %s, want 10", result.InvoiceTotal)
	}
	if !result.PaymentAmount.Equal(decimal.NewFromInt(50)) {
		t.Errorf("payment amount = %s, want 50", result.PaymentAmount)
	}
	if result.CoveredItems != 1 || result.ChargedItems != 3 {
		t.Errorf("covered/charged = %d/%d, want 1/3", result.CoveredItems, result.ChargedItems)
	}
	if covered.Status != visit.ChargeStatusInsurance {
		t.Errorf("covered test status = %q, want insurance", covered.Status)
	}
	payItems, _ := f.payments.GetItems(context.Background(), *result.PaymentID)
	if len(payItems) != 2 {
		t.Fatalf("payment items = %d, want 2", len(payItems))
	}
	if !payItems[0].Price.Equal(decimal.NewFromInt(20)) || !payItems[1].Price.Equal(decimal.NewFromInt(30)) {
		t.Errorf("payment item order = [%s %s], want [20 30]", payItems[0].Price, payItems[1].Price)
	}
}

func TestChargeTestsFullCoverageCreatesNoPayment(t *testing.T) {
	f := newFixture()
	v := f.addVisit()
	f.insure(v.PatientID, 5)
	f.addPendingTest(v.ID, "FBC", 10)
	f.addPendingTest(v.ID, "LFT", 20)

	override := decimal.NewFromInt(60)
	result, err := f.svc.ChargeTests(context.Background(), v.ID, &override)
	if err != nil {
		t.Fatalf("ChargeTests: %v", err)
	}
	if result.PaymentID != nil {
		t.Error("full coverage should not open a payment")
	}
	if len(f.payments.payments) != 0 {
		t.Errorf("payments created = %d, want 0", len(f.payments.payments))
	}
	if !result.InvoiceTotal.Equal(decimal.NewFromInt(30)) {
		t.Errorf("invoice total = %s, want 30", result.InvoiceTotal)
	}
}

func TestChargeTestsNoPending(t *testing.T) {
	f := newFixture()
	v := f.addVisit()
	tt := f.addPendingTest(v.ID, "FBC", 10)
	tt.Status = visit.ChargeStatusPendingPayment

	_, err := f.svc.ChargeTests(context.Background(), v.ID, nil)
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("err = %v, want ErrInvalidRequest", err)
	}
}

func TestChargePrescriptionsSkipsAlreadyCharged(t *testing.T) {
	f := newFixture()
	v := f.addVisit()
	fresh := f.addPendingPrescription(v.ID, "Amoxicillin", 15)
	stale := f.addPendingPrescription(v.ID, "Paracetamol", 5)
	stale.Status = visit.ChargeStatusPendingPayment

	result, err := f.svc.ChargePrescriptions(context.Background(), v.ID, nil)
	if err != nil {
		t.Fatalf("ChargePrescriptions: %v", err)
	}
	if result.ChargedItems != 1 {
		t.Errorf("charged = %d, want 1", result.ChargedItems)
	}
	if !result.PaymentAmount.Equal(decimal.NewFromInt(15)) {
		t.Errorf("amount = %s, want 15", result.PaymentAmount)
	}
	if fresh.Status != visit.ChargeStatusPendingPayment {
		t.Errorf("fresh prescription status = %q, want pending_payment", fresh.Status)
	}

	// Everything is charged now; a repeat call must refuse.
	if _, err := f.svc.ChargePrescriptions(context.Background(), v.ID, nil); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("repeat charge err = %v, want ErrInvalidRequest", err)
	}
}

func TestCompletePaymentPartialThenFull(t *testing.T) {
	f := newFixture()
	v := f.addVisit()
	f.addPendingTest(v.ID, "FBC", 10)
	f.addPendingTest(v.ID, "LFT", 20)
	result, err := f.svc.ChargeTests(context.Background(), v.ID, nil)
	if err != nil {
		t.Fatalf("ChargeTests: %v", err)
	}
	items, _ := f.payments.GetItems(context.Background(), *result.PaymentID)

	partial, err := f.svc.CompletePayment(context.Background(), *result.PaymentID, []uuid.UUID{items[0].ID})
	if err != nil {
		t.Fatalf("partial CompletePayment: %v", err)
	}
	if partial.UpdatedItems != 1 || partial.PaymentStatus != PaymentStatusPending {
		t.Fatalf("partial = %+v, want 1 updated, still pending", partial)
	}

	full, err := f.svc.CompletePayment(context.Background(), *result.PaymentID, []uuid.UUID{items[1].ID})
	if err != nil {
		t.Fatalf("full CompletePayment: %v", err)
	}
	if full.UpdatedItems != 1 || full.PaymentStatus != PaymentStatusCompleted {
		t.Fatalf("full = %+v, want 1 updated, completed", full)
	}

	if _, err := f.svc.CompletePayment(context.Background(), *result.PaymentID, nil); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("completed payment err = %v, want ErrInvalidRequest", err)
	}
}

func TestCompletePaymentIgnoresForeignIDs(t *testing.T) {
	f := newFixture()
	v := f.addVisit()
	f.addPendingTest(v.ID, "FBC", 10)
	result, _ := f.svc.ChargeTests(context.Background(), v.ID, nil)

	other := f.addVisit()
	f.addPendingTest(other.ID, "LFT", 20)
	otherResult, _ := f.svc.ChargeTests(context.Background(), other.ID, nil)
	otherItems, _ := f.payments.GetItems(context.Background(), *otherResult.PaymentID)

	done, err := f.svc.CompletePayment(context.Background(), *result.PaymentID,
		[]uuid.UUID{uuid.New(), otherItems[0].ID})
	if err != nil {
		t.Fatalf("CompletePayment: %v", err)
	}
	if done.UpdatedItems != 0 {
		t.Errorf("updated = %d, want 0 for unknown and foreign ids", done.UpdatedItems)
	}
	if otherItems[0].Status != PaymentStatusPending {
		t.Error("foreign item must stay pending")
	}
}

func TestCompletePaymentUnknown(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.CompletePayment(context.Background(), uuid.New(), nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPayInvoiceIdempotent(t *testing.T) {
	f := newFixture()
	v := f.addVisit()
	f.insure(v.PatientID, 100)
	result, err := f.svc.ChargeConsultation(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("ChargeConsultation: %v", err)
	}

	inv, err := f.svc.PayInvoice(context.Background(), *result.InvoiceID)
	if err != nil || !inv.IsPaid {
		t.Fatalf("PayInvoice = %+v, %v, want paid", inv, err)
	}
	inv, err = f.svc.PayInvoice(context.Background(), *result.InvoiceID)
	if err != nil || !inv.IsPaid {
		t.Fatalf("second PayInvoice = %+v, %v, want still paid, no error", inv, err)
	}
}

func TestSubmitToInsurance(t *testing.T) {
	f := newFixture()
	v := f.addVisit()
	// Two outstanding insurance invoices on the visit.
	for i := 0; i < 2; i++ {
		inv := &Invoice{VisitID: v.ID, TotalAmount: decimal.NewFromInt(30), IsInsurance: true}
		if err := f.invoices.Create(context.Background(), inv); err != nil {
			t.Fatalf("create invoice: %v", err)
		}
	}

	result, err := f.svc.SubmitToInsurance(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("SubmitToInsurance: %v", err)
	}
	if result.SubmittedInvoices != 2 || len(result.InvoiceIDs) != 2 {
		t.Fatalf("result = %+v, want 2 submitted", result)
	}
	for _, inv := range f.invoices.invoices {
		if !inv.IsPaid {
			t.Error("every submitted invoice should be paid")
		}
	}

	if _, err := f.svc.SubmitToInsurance(context.Background(), v.ID); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("repeat submission err = %v, want ErrInvalidRequest", err)
	}
}

func TestCompleteVisitGatedOnInvoices(t *testing.T) {
	f := newFixture()
	v := f.addVisit()
	f.insure(v.PatientID, 100)
	result, err := f.svc.ChargeConsultation(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("ChargeConsultation: %v", err)
	}

	if _, err := f.svc.CompleteVisit(context.Background(), v.ID); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("err = %v, want ErrInvalidRequest while invoice unpaid", err)
	}

	if _, err := f.svc.PayInvoice(context.Background(), *result.InvoiceID); err != nil {
		t.Fatalf("PayInvoice: %v", err)
	}
	done, err := f.svc.CompleteVisit(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("CompleteVisit: %v", err)
	}
	if done.Status != visit.StatusCompleted || done.IsActive {
		t.Errorf("visit = %+v, want completed and inactive", done)
	}
}

func TestCompleteVisitIgnoresUnpaidPayments(t *testing.T) {
	f := newFixture()
	v := f.addVisit()
	f.addPendingTest(v.ID, "FBC", 10)
	if _, err := f.svc.ChargeTests(context.Background(), v.ID, nil); err != nil {
		t.Fatalf("ChargeTests: %v", err)
	}

	// Cash payments do not gate completion, only invoices do.
	done, err := f.svc.CompleteVisit(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("CompleteVisit: %v", err)
	}
	if done.Status != visit.StatusCompleted {
		t.Errorf("status = %q, want completed", done.Status)
	}
}

func TestAggregateTotalsMatchItems(t *testing.T) {
	f := newFixture()
	v := f.addVisit()
	f.insure(v.PatientID, 25)
	if _, err := f.svc.ChargeConsultation(context.Background(), v.ID); err != nil {
		t.Fatalf("ChargeConsultation: %v", err)
	}
	f.addPendingTest(v.ID, "FBC", 10)
	f.addPendingTest(v.ID, "LFT", 20)
	f.addPendingPrescription(v.ID, "Amoxicillin", 15)
	override := decimal.NewFromInt(25)
	if _, err := f.svc.ChargeTests(context.Background(), v.ID, &override); err != nil {
		t.Fatalf("ChargeTests: %v", err)
	}
	if _, err := f.svc.ChargePrescriptions(context.Background(), v.ID, nil); err != nil {
		t.Fatalf("ChargePrescriptions: %v", err)
	}

	for id, p := range f.payments.payments {
		items, _ := f.payments.GetItems(context.Background(), id)
		sum := decimal.Zero
		for _, it := range items {
			sum = sum.Add(it.Price)
		}
		if !p.Amount.Equal(sum) {
			t.Errorf("payment %s amount = %s, items sum = %s", id, p.Amount, sum)
		}
	}
	for id, inv := range f.invoices.invoices {
		items, _ := f.invoices.GetItems(context.Background(), id)
		sum := decimal.Zero
		for _, it := range items {
			sum = sum.Add(it.Price)
		}
		if !inv.TotalAmount.Equal(sum) {
			t.Errorf("invoice %s total = %s, items sum = %s", id, inv.TotalAmount, sum)
		}
	}
}
