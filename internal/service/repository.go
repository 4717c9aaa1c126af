package service

import (
	"context"
	"time"

	"inventory-service/internal/models"
)

// ProductRepository owns product rows.
type ProductRepository interface {
	// CreateProduct inserts p and, when initial is non-nil, its opening ledger
	// row in the same atomic unit.
	CreateProduct(ctx context.Context, p *models.Product, initial *models.StockTransaction) error
	GetProductBySKU(ctx context.Context, sku string) (*models.Product, error)
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	// FindActiveProductByName matches case-insensitively; nil when absent.
	FindActiveProductByName(ctx context.Context, name string) (*models.Product, error)
	ListProducts(ctx context.Context, f models.ProductFilter) ([]models.Product, error)
	// UpdateProductDetails writes name, category, supplier, unit price and
	// lastUpdatedBy of an active product. Quantity and sku are never written.
	UpdateProductDetails(ctx context.Context, p *models.Product) (*models.Product, error)
	UpdateThreshold(ctx context.Context, sku string, threshold int, by *int64, at time.Time) (int, *models.Product, error)
	LastSKU(ctx context.Context, prefix string) (string, error)
}

// LedgerRepository owns stock transactions and is the only writer of
// product quantity.
type LedgerRepository interface {
	// ApplyMovement locks the product, validates the movement, updates the
	// quantity and appends the ledger row atomically.
	ApplyMovement(ctx context.Context, m models.Movement) (*models.StockTransaction, *models.Product, error)
	GetTransaction(ctx context.Context, id int64) (*models.StockTransaction, error)
	QueryTransactions(ctx context.Context, f models.TransactionFilter) ([]models.StockTransaction, error)
}

// AlertRepository owns low-stock alerts.
type AlertRepository interface {
	// EvaluateAlert applies models.DecideAlert to the committed state of sku
	// under the product lock. Deleted or unknown products yield AlertNone.
	EvaluateAlert(ctx context.Context, sku string, autoResolve bool, at time.Time) (*models.AlertOutcome, error)
	GetAlert(ctx context.Context, id int64) (*models.LowStockAlert, error)
	// ResolveAlert reports whether the alert changed state.
	ResolveAlert(ctx context.Context, id int64, by *int64, at time.Time) (*models.LowStockAlert, bool, error)
	ListAlerts(ctx context.Context, activeOnly bool) ([]models.LowStockAlert, error)
}

// UserRepository owns user rows.
type UserRepository interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	ListUsers(ctx context.Context, f models.UserFilter) ([]models.User, error)
}

// SoftDeleteStore performs the recycle-bin transitions of one entity type.
// Every method is atomic per entity.
type SoftDeleteStore[T models.SoftDeletable] interface {
	Get(ctx context.Context, id int64) (*T, error)
	// SoftDelete fails with AlreadyDeleted if the entity is deleted.
	SoftDelete(ctx context.Context, id int64, at time.Time) (*T, error)
	// Restore fails with NotDeleted for active entities and with Conflict
	// when deletedAt is at or before expiredAt.
	Restore(ctx context.Context, id int64, expiredAt time.Time) (*T, error)
	// Purge removes a deleted entity. With a non-nil expiredAt it only
	// removes entities whose deletedAt is at or before it (Conflict otherwise).
	Purge(ctx context.Context, id int64, expiredAt *time.Time) error
	ListDeleted(ctx context.Context) ([]T, error)
}

// Repository is everything the core needs from a store.
type Repository interface {
	ProductRepository
	LedgerRepository
	AlertRepository
	UserRepository
	ProductBin() SoftDeleteStore[models.Product]
	UserBin() SoftDeleteStore[models.User]
	Ping(ctx context.Context) error
}

// EventPublisher hands domain events to the notification collaborator.
type EventPublisher interface {
	PublishStockMoved(ctx context.Context, event *models.StockMovedEvent) error
	PublishAlertCreated(ctx context.Context, event *models.AlertCreatedEvent) error
	PublishAlertResolved(ctx context.Context, event *models.AlertResolvedEvent) error
	PublishThresholdUpdated(ctx context.Context, event *models.ThresholdUpdatedEvent) error
	PublishRecycleEvent(ctx context.Context, event *models.RecycleEvent) error
}

// Cache is the optional read cache and idempotency-key store.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// Incr bumps the counter at key, starting from zero.
	Incr(ctx context.Context, key string) (int64, error)
	// ClaimIdempotencyKey reserves key; false means it was already claimed.
	ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error)
	GetIdempotencyKey(ctx context.Context, key string) (string, bool, error)
	SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	ReleaseIdempotencyKey(ctx context.Context, key string) error
}
