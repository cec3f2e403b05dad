package patient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	patients  Repository
	insurance InsuranceRepository
}

func NewService(patients Repository, insurance InsuranceRepository) *Service {
	return &Service{patients: patients, insurance: insurance}
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	if p.FirstName == "" || p.LastName == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	seq, err := s.patients.CountCreatedToday(ctx)
	if err != nil {
		return fmt.Errorf("count patients for number generation: %w", err)
	}
	p.PatientNumber = FormatPatientNumber(time.Now(), seq+1)
	return s.patients.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) GetByNumber(ctx context.Context, number string) (*Patient, error) {
	return s.patients.GetByNumber(ctx, number)
}

func (s *Service) Search(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	return s.patients.Search(ctx, query, limit, offset)
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	existing, err := s.patients.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	if p.FirstName == "" {
		p.FirstName = existing.FirstName
	}
	if p.LastName == "" {
		p.LastName = existing.LastName
	}
	p.PatientNumber = existing.PatientNumber
	return s.patients.Update(ctx, p)
}

// -- Insurance --

func (s *Service) AttachInsurance(ctx context.Context, ins *Insurance) error {
	if ins.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if ins.CompanyID == uuid.Nil {
		return fmt.Errorf("company_id is required")
	}
	if ins.PolicyNumber == "" {
		return fmt.Errorf("policy_number is required")
	}
	if ins.CoverageAmount.IsNegative() {
		return fmt.Errorf("coverage_amount must not be negative")
	}
	if _, err := s.patients.GetByID(ctx, ins.PatientID); err != nil {
		return err
	}
	ins.IsActive = true
	return s.insurance.Create(ctx, ins)
}

func (s *Service) GetInsurance(ctx context.Context, patientID uuid.UUID) (*Insurance, error) {
	return s.insurance.GetActiveByPatient(ctx, patientID)
}

func (s *Service) UpdateInsurance(ctx context.Context, ins *Insurance) error {
	if ins.CoverageAmount.IsNegative() {
		return fmt.Errorf("coverage_amount must not be negative")
	}
	return s.insurance.Update(ctx, ins)
}

// ResolvePaymentMethod decides, once, how a patient's charges are settled:
// insurance when an active policy exists, cash otherwise.
func (s *Service) ResolvePaymentMethod(ctx context.Context, patientID uuid.UUID) (PaymentMethod, *Insurance, error) {
	ins, err := s.insurance.GetActiveByPatient(ctx, patientID)
	if errors.Is(err, ErrNotFound) {
		return PaymentMethodCash, nil, nil
	}
	if err != nil {
		return PaymentMethodCash, nil, err
	}
	return PaymentMethodInsurance, ins, nil
}
