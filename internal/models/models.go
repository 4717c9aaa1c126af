package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultMinStockThreshold applies when a product is created without a threshold.
const DefaultMinStockThreshold = 10

// Product represents a stocked item in the catalogue
type Product struct {
	ID                int64           `db:"id" json:"id"`
	SKU               string          `db:"sku" json:"sku"`
	Name              string          `db:"product_name" json:"productName"`
	Category          string          `db:"category" json:"category"`
	Supplier          string          `db:"supplier" json:"supplier"`
	UnitPrice         decimal.Decimal `db:"unit_price" json:"unitPrice"`
	Quantity          int             `db:"quantity" json:"quantity"`
	MinStockThreshold int             `db:"min_stock_threshold" json:"minStockThreshold"`
	CreatedBy         *int64          `db:"created_by" json:"createdBy,omitempty"`
	LastUpdatedBy     *int64          `db:"last_updated_by" json:"lastUpdatedBy,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updatedAt"`
	SoftDelete
}

// EntityID implements SoftDeletable
func (p Product) EntityID() int64 { return p.ID }

// TotalValue is unitPrice × quantity, computed on read
func (p Product) TotalValue() decimal.Decimal {
	return p.UnitPrice.Mul(decimal.NewFromInt(int64(p.Quantity)))
}

// LowStock reports quantity < minStockThreshold
func (p Product) LowStock() bool {
	return p.Quantity < p.MinStockThreshold
}

// MarshalJSON adds the derived fields to the stored ones.
func (p Product) MarshalJSON() ([]byte, error) {
	type product Product
	return json.Marshal(struct {
		product
		TotalValue decimal.Decimal `json:"totalValue"`
		LowStock   bool            `json:"lowStock"`
	}{product(p), p.TotalValue(), p.LowStock()})
}

// StockTransaction is one immutable ledger row
type StockTransaction struct {
	ID               int64           `db:"id" json:"id"`
	SKU              string          `db:"sku" json:"sku"`
	ProductName      string          `db:"product_name" json:"productName"`
	Type             TransactionType `db:"transaction_type" json:"transactionType"`
	Quantity         int             `db:"quantity" json:"quantity"`
	PreviousQuantity int             `db:"previous_quantity" json:"previousQuantity"`
	NewQuantity      int             `db:"new_quantity" json:"newQuantity"`
	Notes            string          `db:"notes" json:"notes,omitempty"`
	PerformedBy      *int64          `db:"performed_by" json:"performedBy,omitempty"`
	Timestamp        time.Time       `db:"transaction_date" json:"timestamp"`
}

// LowStockAlert records a downward threshold crossing
type LowStockAlert struct {
	ID              int64      `db:"id" json:"id"`
	SKU             string     `db:"sku" json:"sku"`
	ProductName     string     `db:"product_name" json:"productName"`
	CurrentQuantity int        `db:"current_quantity" json:"currentQuantity"`
	Threshold       int        `db:"threshold" json:"threshold"`
	AlertSentAt     time.Time  `db:"alert_sent_at" json:"alertSentAt"`
	Resolved        bool       `db:"is_resolved" json:"resolved"`
	ResolvedAt      *time.Time `db:"resolved_at" json:"resolvedAt"`
	ResolvedBy      *int64     `db:"resolved_by" json:"resolvedBy,omitempty"`
}

// User is an account known to the inventory core. Credentials live with the
// auth collaborator.
type User struct {
	ID        int64      `db:"id" json:"id"`
	Email     string     `db:"email" json:"email"`
	FirstName string     `db:"first_name" json:"firstName"`
	LastName  string     `db:"last_name" json:"lastName"`
	Role      Role       `db:"role" json:"role"`
	Status    UserStatus `db:"status" json:"status"`
	LastLogin *time.Time `db:"last_login" json:"lastLogin"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	SoftDelete
}

// EntityID implements SoftDeletable
func (u User) EntityID() int64 { return u.ID }

// Role of a user
type Role string

const (
	RoleMasterAdmin Role = "MASTER_ADMIN"
	RoleAdmin       Role = "ADMIN"
	RoleEmployee    Role = "EMPLOYEE"
)

// ParseRole accepts any letter case.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleMasterAdmin, RoleAdmin, RoleEmployee:
		return r, true
	}
	return "", false
}

// IsAdmin is true for ADMIN and MASTER_ADMIN
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleMasterAdmin
}

// UserStatus of an account
type UserStatus string

const (
	UserStatusActive   UserStatus = "ACTIVE"
	UserStatusInactive UserStatus = "INACTIVE"
)

// TransactionType is the direction of a stock movement
type TransactionType string

const (
	StockIn  TransactionType = "STOCK_IN"
	StockOut TransactionType = "STOCK_OUT"
)

// ParseTransactionType accepts any letter case.
func ParseTransactionType(s string) (TransactionType, bool) {
	switch t := TransactionType(strings.ToUpper(strings.TrimSpace(s))); t {
	case StockIn, StockOut:
		return t, true
	}
	return "", false
}

// Categories is the fixed product category list
var Categories = []string{
	"Electronics",
	"Furniture",
	"Stationery",
	"Food & Beverages",
	"Clothing & Apparel",
	"Hardware & Tools",
	"Office Supplies",
	"Medical & Healthcare",
	"Automotive",
	"Books & Media",
	"Toys & Games",
	"Sports & Fitness",
	"Home & Garden",
	"Beauty & Personal Care",
	"Industrial Equipment",
	"Other",
}

// ValidCategory reports whether c is one of Categories.
func ValidCategory(c string) bool {
	for _, known := range Categories {
		if known == c {
			return true
		}
	}
	return false
}
