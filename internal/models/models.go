package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// User roles. Role is enforced server-side by middleware.RequireRole.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Consignment statuses.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// Stock movement kinds.
const (
	MovementConsignmentOut    = "consignment_out"
	MovementConsignmentReturn = "consignment_return"
	MovementManualAdjustment  = "manual_adjustment"
)

// User - a system operator (store staff or admin)
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;size:120;not null" json:"email"`
	FullName     string    `gorm:"size:120" json:"full_name"`
	PasswordHash string    `json:"-"` // Never return this in JSON
	Role         string    `gorm:"size:20;not null;default:user" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Product - the catalog entry; stock lives on its variants
type Product struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	Title       string           `gorm:"size:200;not null;index" json:"title"`
	Description *string          `json:"description"`
	Category    string           `gorm:"size:80;index" json:"category"`
	BasePrice   decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"base_price"`
	CostPrice   decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"cost_price"`
	Active      bool             `gorm:"not null;default:true" json:"active"`
	Variants    []ProductVariant `gorm:"foreignKey:ProductID" json:"variants,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// ProductVariant - a size/color SKU, the stock-tracked and scanned unit
type ProductVariant struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ProductID     uint      `gorm:"not null;index" json:"product_id"`
	Product       *Product  `json:"product,omitempty"`
	Size          string    `gorm:"size:40" json:"size"`
	Color         string    `gorm:"size:40" json:"color"`
	Barcode       string    `gorm:"uniqueIndex;size:64;not null" json:"barcode"`
	StockQuantity int       `gorm:"not null;default:0" json:"stock_quantity"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Reseller - receives bags and keeps a commission on what sells
type Reseller struct {
	ID                       uint            `gorm:"primaryKey" json:"id"`
	Name                     string          `gorm:"size:160;not null;index" json:"name"`
	CPF                      *string         `gorm:"column:cpf;size:20" json:"cpf"`
	Phone                    string          `gorm:"size:40" json:"phone"`
	Email                    string          `gorm:"size:120" json:"email"`
	Address                  string          `json:"address"`
	DefaultCommissionPercent decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"default_commission_percent"`
	CreditLimit              decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"credit_limit"`
	Active                   bool            `gorm:"not null;default:true" json:"active"`
	CreatedAt                time.Time       `json:"created_at"`
	DeletedAt                gorm.DeletedAt  `gorm:"index" json:"-"`
}

// Client - end customer served by a reseller
type Client struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	ResellerID          *uint     `gorm:"index" json:"reseller_id"`
	Name                string    `gorm:"size:160;not null;index" json:"name"`
	Phone               string    `gorm:"size:40" json:"phone"`
	CPF                 string    `gorm:"column:cpf;size:20" json:"cpf"`
	AddressStreet       string    `json:"address_street"`
	AddressNumber       string    `gorm:"size:20" json:"address_number"`
	AddressNeighborhood string    `json:"address_neighborhood"`
	AddressCity         string    `json:"address_city"`
	AddressState        string    `gorm:"size:2" json:"address_state"`
	CreatedAt           time.Time `json:"created_at"`
}

// Consignment - the "bag" shipped to a reseller and settled later.
// The settlement fields are a snapshot written once, when the bag closes.
type Consignment struct {
	ID                uint              `gorm:"primaryKey" json:"id"`
	ResellerID        uint              `gorm:"not null;index" json:"reseller_id"`
	Reseller          *Reseller         `json:"reseller,omitempty"`
	ClientID          *uint             `gorm:"index" json:"client_id"`
	Client            *Client           `json:"client,omitempty"`
	TotalItems        int               `gorm:"not null" json:"total_items"`
	TotalValue        decimal.Decimal   `gorm:"type:decimal(12,2);not null" json:"total_value"`
	Status            string            `gorm:"size:10;not null;index" json:"status"`
	CreatedBy         *uint             `json:"created_by"`
	CreatedAt         time.Time         `json:"created_at"`
	ClosedAt          *time.Time        `json:"closed_at"`
	ClosedBy          *uint             `json:"closed_by"`
	CommissionPercent decimal.Decimal   `gorm:"type:decimal(5,2)" json:"commission_percent"`
	TotalSold         decimal.Decimal   `gorm:"type:decimal(12,2)" json:"total_sold"`
	Commission        decimal.Decimal   `gorm:"type:decimal(12,2)" json:"commission"`
	NetToStore        decimal.Decimal   `gorm:"type:decimal(12,2)" json:"net_to_store"`
	Items             []ConsignmentItem `gorm:"foreignKey:ConsignmentID" json:"items,omitempty"`
}

// ConsignmentItem - one shipped line; Quantity is what left the store
type ConsignmentItem struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	ConsignmentID    uint            `gorm:"not null;index" json:"consignment_id"`
	ProductVariantID uint            `gorm:"not null;index" json:"product_variant_id"`
	ProductVariant   *ProductVariant `json:"product_variant,omitempty"`
	Quantity         int             `gorm:"not null" json:"quantity"`
	UnitPrice        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	ReturnedQuantity int             `gorm:"not null;default:0" json:"returned_quantity"`
	SoldQuantity     int             `gorm:"not null;default:0" json:"sold_quantity"`
}

// StockMovement - audit row for every stock change made by the service
type StockMovement struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	ProductVariantID uint            `gorm:"not null;index" json:"product_variant_id"`
	ProductVariant   *ProductVariant `json:"product_variant,omitempty"`
	Kind             string          `gorm:"size:30;not null;index" json:"kind"`
	Quantity         int             `gorm:"not null" json:"quantity"` // positive = in, negative = out
	StockBefore      int             `gorm:"not null" json:"stock_before"`
	StockAfter       int             `gorm:"not null" json:"stock_after"`
	ConsignmentID    *uint           `gorm:"index" json:"consignment_id"`
	Reason           string          `json:"reason"`
	CreatedAt        time.Time       `json:"created_at"`
}

// WithDeleted is a preload scope that also finds soft-deleted rows, so bags
// keep showing resellers that were removed later.
func WithDeleted(db *gorm.DB) *gorm.DB {
	return db.Unscoped()
}
