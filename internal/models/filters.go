package models

import "time"

// Movement is a validated request to move stock for one sku.
type Movement struct {
	SKU         string
	Type        TransactionType
	Quantity    int
	Notes       string
	PerformedBy *int64
	// At is the clock reading when the attempt started. Stores record
	// Stamp(latest) so a sku's ledger never goes back in time.
	At time.Time
}

// Stamp returns the timestamp to record for m given the latest ledger
// timestamp of its sku. It must be called with the sku locked.
func (m Movement) Stamp(latest time.Time) time.Time {
	if latest.After(m.At) {
		return latest
	}
	return m.At
}

// ProductFilter selects products by lifecycle state and free text.
type ProductFilter struct {
	Deleted  bool
	Search   string
	LowStock bool
}

// TransactionFilter narrows a ledger query. Zero values mean "any".
type TransactionFilter struct {
	SKU         string
	ProductName string
	Type        TransactionType
	From        *time.Time
	To          *time.Time
	Ascending   bool
	Limit       int
}

// UserFilter selects users by lifecycle state and role.
type UserFilter struct {
	Deleted bool
	Role    Role
}

// AlertOutcome is what an alert evaluation did for one product.
type AlertOutcome struct {
	Action  AlertAction
	Alert   *LowStockAlert
	Product *Product
}
