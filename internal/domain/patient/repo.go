package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a patient or insurance record does not exist.
var ErrNotFound = errors.New("patient: not found")

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByNumber(ctx context.Context, number string) (*Patient, error)
	// Search matches against names and patient number; empty query lists all.
	Search(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error)
	Update(ctx context.Context, p *Patient) error
	// CountCreatedToday feeds daily patient number generation.
	CountCreatedToday(ctx context.Context) (int, error)
}

type InsuranceRepository interface {
	Create(ctx context.Context, ins *Insurance) error
	// GetActiveByPatient returns ErrNotFound when the patient has no active
	// policy, which resolves the payment method to cash.
	GetActiveByPatient(ctx context.Context, patientID uuid.UUID) (*Insurance, error)
	Update(ctx context.Context, ins *Insurance) error
}
