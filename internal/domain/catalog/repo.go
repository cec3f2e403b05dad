package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a catalog item or insurer does not exist.
var ErrNotFound = errors.New("catalog: not found")

type ItemRepository interface {
	Create(ctx context.Context, item *Item) error
	GetByID(ctx context.Context, id uuid.UUID) (*Item, error)
	// GetByName matches the item name case-insensitively.
	GetByName(ctx context.Context, name string) (*Item, error)
	List(ctx context.Context, itemType string, activeOnly bool, limit, offset int) ([]*Item, int, error)
	Update(ctx context.Context, item *Item) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type CompanyRepository interface {
	Create(ctx context.Context, co *InsuranceCompany) error
	GetByID(ctx context.Context, id uuid.UUID) (*InsuranceCompany, error)
	List(ctx context.Context, limit, offset int) ([]*InsuranceCompany, int, error)
	Update(ctx context.Context, co *InsuranceCompany) error
	AttachItem(ctx context.Context, companyID, itemID uuid.UUID) error
	DetachItem(ctx context.Context, companyID, itemID uuid.UUID) error
	ListItems(ctx context.Context, companyID uuid.UUID) ([]*Item, error)
}
