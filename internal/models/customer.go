package models

import "time"

// CustomerType is the kind of healthcare organisation.
type CustomerType string

const (
	CustomerTypeHospital   CustomerType = "Hospital"
	CustomerTypeClinic     CustomerType = "Clinic"
	CustomerTypeLaboratory CustomerType = "Laboratory"
)

// CustomerTypes lists every CustomerType.
var CustomerTypes = []CustomerType{CustomerTypeHospital, CustomerTypeClinic, CustomerTypeLaboratory}

func (t CustomerType) Valid() bool {
	switch t {
	case CustomerTypeHospital, CustomerTypeClinic, CustomerTypeLaboratory:
		return true
	}
	return false
}

// Segment is the commercial size band of a customer.
type Segment string

const (
	SegmentEnterprise    Segment = "Enterprise"
	SegmentMidMarket     Segment = "Mid-Market"
	SegmentSmallBusiness Segment = "Small Business"
)

// Segments lists every Segment.
var Segments = []Segment{SegmentEnterprise, SegmentMidMarket, SegmentSmallBusiness}

func (s Segment) Valid() bool {
	switch s {
	case SegmentEnterprise, SegmentMidMarket, SegmentSmallBusiness:
		return true
	}
	return false
}

// Customer is a hospital, clinic or laboratory the distributor sells to.
type Customer struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name    string       `gorm:"size:255;not null;index" json:"name" validate:"required"`
	Type    CustomerType `gorm:"size:20;not null" json:"type" validate:"enum"`
	Segment Segment      `gorm:"size:20;not null" json:"segment" validate:"enum"`

	// Contact
	Email string `gorm:"size:255" json:"email,omitempty" validate:"omitempty,email"`
	Phone string `gorm:"size:50" json:"phone,omitempty"`
	City  string `gorm:"size:100" json:"city,omitempty"`

	HealthScore  int       `gorm:"not null;default:0" json:"health_score" validate:"gte=0,lte=100"`
	TotalRevenue Money     `gorm:"type:decimal(15,2);not null;default:0" json:"total_revenue" validate:"gte=0"`
	ActiveDeals  int       `gorm:"not null;default:0" json:"active_deals" validate:"gte=0"`
	LastContact  time.Time `json:"last_contact"`
}

// NewCustomer assigns an ID when missing and validates c.
func NewCustomer(c Customer) (Customer, error) {
	ensureID(&c.ID)
	if err := ValidateCustomer(c); err != nil {
		return Customer{}, err
	}
	return c, nil
}

// ValidateCustomer checks every customer invariant.
func ValidateCustomer(c Customer) error {
	return check("customer", c.ID, c)
}
