package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Service struct {
	items     ItemRepository
	companies CompanyRepository
}

func NewService(items ItemRepository, companies CompanyRepository) *Service {
	return &Service{items: items, companies: companies}
}

var validItemTypes = map[string]bool{
	ItemTypeTest: true, ItemTypeMedicine: true, ItemTypeService: true, ItemTypeOther: true,
}

func (s *Service) CreateItem(ctx context.Context, item *Item) error {
	if item.Name == "" {
		return fmt.Errorf("name is required")
	}
	if item.ItemType == "" {
		item.ItemType = ItemTypeOther
	}
	if !validItemTypes[item.ItemType] {
		return fmt.Errorf("invalid item type: %s", item.ItemType)
	}
	if item.Price.IsNegative() {
		return fmt.Errorf("price must not be negative")
	}
	item.IsActive = true
	return s.items.Create(ctx, item)
}

func (s *Service) GetItem(ctx context.Context, id uuid.UUID) (*Item, error) {
	return s.items.GetByID(ctx, id)
}

func (s *Service) GetItemByName(ctx context.Context, name string) (*Item, error) {
	return s.items.GetByName(ctx, name)
}

// ConsultationFee returns the catalog item every consultation is billed from.
func (s *Service) ConsultationFee(ctx context.Context) (*Item, error) {
	return s.items.GetByName(ctx, ConsultationFeeName)
}

func (s *Service) ListItems(ctx context.Context, itemType string, activeOnly bool, limit, offset int) ([]*Item, int, error) {
	if itemType != "" && !validItemTypes[itemType] {
		return nil, 0, fmt.Errorf("invalid item type: %s", itemType)
	}
	return s.items.List(ctx, itemType, activeOnly, limit, offset)
}

func (s *Service) UpdateItem(ctx context.Context, item *Item) error {
	existing, err := s.items.GetByID(ctx, item.ID)
	if err != nil {
		return err
	}
	if item.Name == "" {
		item.Name = existing.Name
	}
	if item.ItemType == "" {
		item.ItemType = existing.ItemType
	}
	if !validItemTypes[item.ItemType] {
		return fmt.Errorf("invalid item type: %s", item.ItemType)
	}
	if item.Price.IsNegative() {
		return fmt.Errorf("price must not be negative")
	}
	if item.Price.Equal(decimal.Zero) && !existing.Price.Equal(decimal.Zero) {
		item.Price = existing.Price
	}
	return s.items.Update(ctx, item)
}

func (s *Service) DeactivateItem(ctx context.Context, id uuid.UUID) error {
	return s.items.Deactivate(ctx, id)
}

// -- Insurance companies --

func (s *Service) CreateCompany(ctx context.Context, co *InsuranceCompany) error {
	if co.Name == "" {
		return fmt.Errorf("name is required")
	}
	co.IsActive = true
	return s.companies.Create(ctx, co)
}

func (s *Service) GetCompany(ctx context.Context, id uuid.UUID) (*InsuranceCompany, error) {
	return s.companies.GetByID(ctx, id)
}

func (s *Service) ListCompanies(ctx context.Context, limit, offset int) ([]*InsuranceCompany, int, error) {
	return s.companies.List(ctx, limit, offset)
}

func (s *Service) UpdateCompany(ctx context.Context, co *InsuranceCompany) error {
	if co.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.companies.Update(ctx, co)
}

// AttachItem adds a catalog item to an insurer's covered-services list.
func (s *Service) AttachItem(ctx context.Context, companyID, itemID uuid.UUID) error {
	if _, err := s.companies.GetByID(ctx, companyID); err != nil {
		return err
	}
	if _, err := s.items.GetByID(ctx, itemID); err != nil {
		return err
	}
	return s.companies.AttachItem(ctx, companyID, itemID)
}

func (s *Service) DetachItem(ctx context.Context, companyID, itemID uuid.UUID) error {
	return s.companies.DetachItem(ctx, companyID, itemID)
}

func (s *Service) ListCompanyItems(ctx context.Context, companyID uuid.UUID) ([]*Item, error) {
	if _, err := s.companies.GetByID(ctx, companyID); err != nil {
		return nil, err
	}
	return s.companies.ListItems(ctx, companyID)
}
