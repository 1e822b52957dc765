package models

import "time"

// ProductCategory is the catalog family of a product.
type ProductCategory string

const (
	CategoryDiagnosticImaging   ProductCategory = "Diagnostic Imaging"
	CategoryPatientMonitoring   ProductCategory = "Patient Monitoring"
	CategorySurgicalInstruments ProductCategory = "Surgical Instruments"
	CategoryLaboratoryEquipment ProductCategory = "Laboratory Equipment"
	CategoryConsumables         ProductCategory = "Consumables"
)

// ProductCategories lists every ProductCategory.
var ProductCategories = []ProductCategory{
	CategoryDiagnosticImaging,
	CategoryPatientMonitoring,
	CategorySurgicalInstruments,
	CategoryLaboratoryEquipment,
	CategoryConsumables,
}

func (c ProductCategory) Valid() bool {
	for _, pc := range ProductCategories {
		if pc == c {
			return true
		}
	}
	return false
}

// PriceTier is a bulk unit price applying from MinQuantity units upward.
type PriceTier struct {
	ID          uint   `gorm:"primaryKey" json:"-"`
	ProductID   string `gorm:"size:36;index;not null" json:"-"`
	MinQuantity int    `gorm:"not null" json:"min_quantity" validate:"gt=0"`
	UnitPrice   Money  `gorm:"type:decimal(15,2);not null" json:"unit_price" validate:"gte=0"`
}

// Product is a catalog item.
type Product struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SKU         string          `gorm:"size:40;uniqueIndex;not null" json:"sku" validate:"required"`
	Name        string          `gorm:"size:255;not null" json:"name" validate:"required"`
	Category    ProductCategory `gorm:"size:40;not null;index" json:"category" validate:"enum"`
	Description string          `gorm:"type:text" json:"description,omitempty"`

	// Pricing
	BasePrice Money       `gorm:"type:decimal(15,2);not null" json:"base_price" validate:"gte=0"`
	BulkTiers []PriceTier `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"bulk_tiers,omitempty" validate:"dive"`

	// Inventory, display only: nothing reorders automatically.
	InStock      int `gorm:"not null;default:0" json:"in_stock" validate:"gte=0"`
	ReorderPoint int `gorm:"not null;default:0" json:"reorder_point" validate:"gte=0"`
}

// NewProduct assigns an ID when missing and validates p.
func NewProduct(p Product) (Product, error) {
	ensureID(&p.ID)
	for i := range p.BulkTiers {
		p.BulkTiers[i].ProductID = p.ID
	}
	if err := ValidateProduct(p); err != nil {
		return Product{}, err
	}
	return p, nil
}

// ValidateProduct checks every product invariant. Tiers must have distinct
// minimum quantities.
func ValidateProduct(p Product) error {
	if err := check("product", p.ID, p); err != nil {
		return err
	}
	seen := make(map[int]bool, len(p.BulkTiers))
	for _, t := range p.BulkTiers {
		if seen[t.MinQuantity] {
			return &InvalidEntityError{Entity: "product", ID: p.ID, Field: "bulk_tiers", Rule: "unique"}
		}
		seen[t.MinQuantity] = true
	}
	return nil
}
