package visit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hms/hms/internal/domain/catalog"
	"github.com/hms/hms/internal/domain/patient"
)

// Service coordinates visit lifecycle and order placement for tests and
// prescriptions. Completing a visit is owned by the billing service because
// it must consult outstanding invoices.
type Service struct {
	visits        Repository
	tests         TestRepository
	prescriptions PrescriptionRepository
	patients      patient.Repository
	catalog       *catalog.Service
}

func NewService(visits Repository, tests TestRepository, prescriptions PrescriptionRepository,
	patients patient.Repository, cat *catalog.Service) *Service {
	return &Service{
		visits:        visits,
		tests:         tests,
		prescriptions: prescriptions,
		patients:      patients,
		catalog:       cat,
	}
}

type CreateVisitRequest struct {
	PatientID  uuid.UUID `json:"patient_id"`
	Department string    `json:"department"`
}

func (s *Service) CreateVisit(ctx context.Context, req CreateVisitRequest) (*Visit, error) {
	req.Department = strings.TrimSpace(req.Department)
	if req.PatientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if req.Department == "" {
		return nil, fmt.Errorf("department is required")
	}
	if _, err := s.patients.GetByID(ctx, req.PatientID); err != nil {
		return nil, err
	}

	active, err := s.visits.HasActiveSameDay(ctx, req.PatientID, req.Department)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, fmt.Errorf("patient already has an active %s visit today", req.Department)
	}

	seq, err := s.visits.CountCreatedToday(ctx)
	if err != nil {
		return nil, err
	}

	v := &Visit{
		VisitNumber: FormatVisitNumber(time.Now(), seq+1),
		PatientID:   req.PatientID,
		Department:  req.Department,
		Status:      StatusPending,
		IsActive:    true,
	}
	if err := s.visits.Create(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Service) GetVisit(ctx context.Context, id uuid.UUID) (*Visit, error) {
	return s.visits.GetByID(ctx, id)
}

func (s *Service) ListVisits(ctx context.Context, patientID uuid.UUID, activeOnly bool, limit, offset int) ([]*Visit, int, error) {
	return s.visits.List(ctx, patientID, activeOnly, limit, offset)
}

type OrderTestRequest struct {
	ItemID   *uuid.UUID       `json:"item_id,omitempty"`
	Name     string           `json:"name"`
	TestType string           `json:"test_type"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

// OrderTest records a test order against the visit. When the order references
// a catalog item its name and price come from the catalog; otherwise both must
// be supplied in the request.
func (s *Service) OrderTest(ctx context.Context, visitID uuid.UUID, req OrderTestRequest) (*Test, error) {
	v, err := s.visits.GetByID(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if !v.IsActive {
		return nil, fmt.Errorf("visit %s is not active", v.VisitNumber)
	}

	t := &Test{
		VisitID:  v.ID,
		ItemID:   req.ItemID,
		Name:     strings.TrimSpace(req.Name),
		TestType: req.TestType,
		Status:   ChargeStatusPending,
	}
	if req.ItemID != nil {
		item, err := s.catalog.GetItem(ctx, *req.ItemID)
		if err != nil {
			return nil, err
		}
		t.Name = item.Name
		t.Price = item.Price
	} else {
		if t.Name == "" {
			return nil, fmt.Errorf("name is required")
		}
		if req.Price == nil || req.Price.IsNegative() {
			return nil, fmt.Errorf("price is required and must not be negative")
		}
		t.Price = *req.Price
	}
	if t.TestType == "" {
		t.TestType = TestTypeLaboratory
	}
	if t.TestType != TestTypeLaboratory && t.TestType != TestTypeRadiology {
		return nil, fmt.Errorf("invalid test type %q", t.TestType)
	}

	if err := s.tests.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) ListTests(ctx context.Context, visitID uuid.UUID) ([]*Test, error) {
	if _, err := s.visits.GetByID(ctx, visitID); err != nil {
		return nil, err
	}
	return s.tests.ListByVisit(ctx, visitID)
}

type OrderPrescriptionRequest struct {
	ItemID       *uuid.UUID       `json:"item_id,omitempty"`
	MedicineName string           `json:"medicine_name"`
	Dosage       *string          `json:"dosage,omitempty"`
	Quantity     int              `json:"quantity"`
	Frequency    *string          `json:"frequency,omitempty"`
	UnitPrice    *decimal.Decimal `json:"unit_price,omitempty"`
}

// OrderPrescription records a prescription against the visit. The stored price
// is the full line price, unit price times quantity, fixed at ordering time.
func (s *Service) OrderPrescription(ctx context.Context, visitID uuid.UUID, req OrderPrescriptionRequest) (*Prescription, error) {
	v, err := s.visits.GetByID(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if !v.IsActive {
		return nil, fmt.Errorf("visit %s is not active", v.VisitNumber)
	}
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive")
	}

	p := &Prescription{
		VisitID:      v.ID,
		ItemID:       req.ItemID,
		MedicineName: strings.TrimSpace(req.MedicineName),
		Dosage:       req.Dosage,
		Quantity:     req.Quantity,
		Frequency:    req.Frequency,
		Status:       ChargeStatusPending,
	}
	var unit decimal.Decimal
	if req.ItemID != nil {
		item, err := s.catalog.GetItem(ctx, *req.ItemID)
		if err != nil {
			return nil, err
		}
		p.MedicineName = item.Name
		unit = item.Price
	} else {
		if p.MedicineName == "" {
			return nil, fmt.Errorf("medicine_name is required")
		}
		if req.UnitPrice == nil || req.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("unit_price is required and must not be negative")
		}
		unit = *req.UnitPrice
	}
	p.Price = unit.Mul(decimal.NewFromInt(int64(req.Quantity)))

	if err := s.prescriptions.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) ListPrescriptions(ctx context.Context, visitID uuid.UUID) ([]*Prescription, error) {
	if _, err := s.visits.GetByID(ctx, visitID); err != nil {
		return nil, err
	}
	return s.prescriptions.ListByVisit(ctx, visitID)
}

// CompleteTest records that a test has been performed. The test must have
// been charged first; its status moves to completed.
func (s *Service) CompleteTest(ctx context.Context, visitID, testID uuid.UUID) (*Test, error) {
	t, err := s.tests.GetByID(ctx, testID)
	if err != nil {
		return nil, err
	}
	if t.VisitID != visitID {
		return nil, ErrNotFound
	}
	switch t.Status {
	case ChargeStatusPending:
		return nil, fmt.Errorf("test %s has not been charged yet", t.ID)
	case TestStatusCompleted:
		return nil, fmt.Errorf("test %s is already completed", t.ID)
	}
	if err := s.tests.UpdateStatus(ctx, []uuid.UUID{t.ID}, TestStatusCompleted); err != nil {
		return nil, err
	}
	t.Status = TestStatusCompleted
	return t, nil
}

// DispensePrescription records that the pharmacy handed out the medicine.
// The prescription must have been charged first.
func (s *Service) DispensePrescription(ctx context.Context, visitID, prescriptionID uuid.UUID) (*Prescription, error) {
	p, err := s.prescriptions.GetByID(ctx, prescriptionID)
	if err != nil {
		return nil, err
	}
	if p.VisitID != visitID {
		return nil, ErrNotFound
	}
	switch p.Status {
	case ChargeStatusPending:
		return nil, fmt.Errorf("prescription %s has not been charged yet", p.ID)
	case PrescriptionStatusDispensed:
		return nil, fmt.Errorf("prescription %s is already dispensed", p.ID)
	}
	if err := s.prescriptions.UpdateStatus(ctx, []uuid.UUID{p.ID}, PrescriptionStatusDispensed); err != nil {
		return nil, err
	}
	p.Status = PrescriptionStatusDispensed
	return p, nil
}
