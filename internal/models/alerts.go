package models

// AlertAction is the outcome of evaluating a product against its threshold.
type AlertAction int

const (
	AlertNone AlertAction = iota
	// AlertCreate opens a new alert.
	AlertCreate
	// AlertRefresh updates the snapshot of the open alert.
	AlertRefresh
	// AlertResolve closes the open alert after recovery.
	AlertResolve
)

func (a AlertAction) String() string {
	switch a {
	case AlertCreate:
		return "create"
	case AlertRefresh:
		return "refresh"
	case AlertResolve:
		return "resolve"
	}
	return "none"
}

// DecideAlert is the per-product alert state machine. open is the unresolved
// alert for the product, if any.
func DecideAlert(quantity, threshold int, open *LowStockAlert, autoResolve bool) AlertAction {
	low := quantity < threshold

	switch {
	case low && open == nil:
		return AlertCreate
	case low && (open.CurrentQuantity != quantity || open.Threshold != threshold):
		return AlertRefresh
	case !low && open != nil && autoResolve:
		return AlertResolve
	}
	return AlertNone
}
