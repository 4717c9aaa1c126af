package models

import "time"

// Event types
const (
	EventTypeStockMoved       = "STOCK_MOVED"
	EventTypeAlertCreated     = "ALERT_CREATED"
	EventTypeAlertResolved    = "ALERT_RESOLVED"
	EventTypeThresholdUpdated = "THRESHOLD_UPDATED"
	EventTypeEntityDeleted    = "ENTITY_DELETED"
	EventTypeEntityRestored   = "ENTITY_RESTORED"
	EventTypeEntityPurged     = "ENTITY_PURGED"
)

// Entity kinds carried by recycle-bin events
const (
	EntityProduct = "PRODUCT"
	EntityUser    = "USER"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// StockMovedEvent published after a ledger append commits
type StockMovedEvent struct {
	BaseEvent
	TransactionID    int64           `json:"transaction_id"`
	SKU              string          `json:"sku"`
	TransactionType  TransactionType `json:"transaction_type"`
	Quantity         int             `json:"quantity"`
	PreviousQuantity int             `json:"previous_quantity"`
	NewQuantity      int             `json:"new_quantity"`
	PerformedBy      *int64          `json:"performed_by,omitempty"`
}

// AlertCreatedEvent published when a product crosses below its threshold
type AlertCreatedEvent struct {
	BaseEvent
	AlertID         int64  `json:"alert_id"`
	SKU             string `json:"sku"`
	ProductName     string `json:"product_name"`
	CurrentQuantity int    `json:"current_quantity"`
	Threshold       int    `json:"threshold"`
}

// AlertResolvedEvent published when an alert is resolved, manually or by recovery
type AlertResolvedEvent struct {
	BaseEvent
	AlertID    int64  `json:"alert_id"`
	SKU        string `json:"sku"`
	Automatic  bool   `json:"automatic"`
	ResolvedBy *int64 `json:"resolved_by,omitempty"`
}

// ThresholdUpdatedEvent published when a product's minimum stock threshold changes
type ThresholdUpdatedEvent struct {
	BaseEvent
	SKU          string `json:"sku"`
	ProductName  string `json:"product_name"`
	OldThreshold int    `json:"old_threshold"`
	NewThreshold int    `json:"new_threshold"`
	UpdatedBy    *int64 `json:"updated_by,omitempty"`
}

// RecycleEvent published for recycle-bin transitions of products and users
type RecycleEvent struct {
	BaseEvent
	Entity   string `json:"entity"`
	EntityID int64  `json:"entity_id"`
	ActorID  *int64 `json:"actor_id,omitempty"`
}
