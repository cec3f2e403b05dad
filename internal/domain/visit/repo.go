package visit

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a visit, test, or prescription does not exist.
var ErrNotFound = errors.New("visit: not found")

type Repository interface {
	Create(ctx context.Context, v *Visit) error
	GetByID(ctx context.Context, id uuid.UUID) (*Visit, error)
	List(ctx context.Context, patientID uuid.UUID, activeOnly bool, limit, offset int) ([]*Visit, int, error)
	Update(ctx context.Context, v *Visit) error
	// HasActiveSameDay reports whether the patient already has an active visit
	// with the department today.
	HasActiveSameDay(ctx context.Context, patientID uuid.UUID, department string) (bool, error)
	CountCreatedToday(ctx context.Context) (int, error)
}

type TestRepository interface {
	Create(ctx context.Context, t *Test) error
	GetByID(ctx context.Context, id uuid.UUID) (*Test, error)
	ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*Test, error)
	ListByVisitAndStatus(ctx context.Context, visitID uuid.UUID, status string) ([]*Test, error)
	UpdateStatus(ctx context.Context, ids []uuid.UUID, status string) error
}

type PrescriptionRepository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*Prescription, error)
	ListByVisitAndStatus(ctx context.Context, visitID uuid.UUID, status string) ([]*Prescription, error)
	UpdateStatus(ctx context.Context, ids []uuid.UUID, status string) error
}
