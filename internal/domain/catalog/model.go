package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	ItemTypeTest     = "test"
	ItemTypeMedicine = "medicine"
	ItemTypeService  = "service"
	ItemTypeOther    = "other"
)

// ConsultationFeeName is the reserved catalog item every consultation charge
// is priced from. Lookup is case-insensitive.
const ConsultationFeeName = "Consultation Fee"

// Item is a chargeable hospital service, test, or medicine.
type Item struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Description *string         `db:"description" json:"description,omitempty"`
	ItemType    string          `db:"item_type" json:"item_type"`
	Price       decimal.Decimal `db:"price" json:"price"`
	IsActive    bool            `db:"is_active" json:"is_active"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// InsuranceCompany is a payer organization whose plans cover catalog items.
type InsuranceCompany struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	ContactEmail *string   `db:"contact_email" json:"contact_email,omitempty"`
	ContactPhone *string   `db:"contact_phone" json:"contact_phone,omitempty"`
	Address      *string   `db:"address" json:"address,omitempty"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
