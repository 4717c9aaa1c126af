package models

import "inventory-service/internal/apperr"

// ApplyMovement computes the quantity that results from moving qty units in
// direction t out of current. It never clamps: any movement that is not
// representable fails.
func ApplyMovement(current int, t TransactionType, qty int) (int, error) {
	if qty <= 0 {
		return 0, apperr.InvalidInput("quantity must be greater than zero, got %d", qty)
	}

	switch t {
	case StockIn:
		return current + qty, nil
	case StockOut:
		if qty > current {
			return 0, apperr.New(apperr.KindInsufficientStock,
				"insufficient stock: available=%d, requested=%d", current, qty)
		}
		return current - qty, nil
	default:
		return 0, apperr.InvalidInput("unknown transaction type %q", t)
	}
}

// NewTransaction builds the ledger row for a movement on p that has already
// been validated by ApplyMovement.
func NewTransaction(p *Product, t TransactionType, qty, newQty int, notes string, performedBy *int64) *StockTransaction {
	return &StockTransaction{
		SKU:              p.SKU,
		ProductName:      p.Name,
		Type:             t,
		Quantity:         qty,
		PreviousQuantity: p.Quantity,
		NewQuantity:      newQty,
		Notes:            notes,
		PerformedBy:      performedBy,
	}
}
