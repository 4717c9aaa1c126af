package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"inventory-service/internal/apperr"
	"inventory-service/internal/models"
	"inventory-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const idempotencyPending = "pending"

// LedgerService owns the product catalogue and the stock ledger. It is the
// only path through which product quantity changes.
type LedgerService struct {
	repo   Repository
	alerts *AlertService
	events EventPublisher
	cache  Cache
	opts   Options
	logger *zap.Logger
}

// NewLedgerService creates a new ledger service. cache may be nil.
func NewLedgerService(repo Repository, alerts *AlertService, events EventPublisher, cache Cache, opts Options) *LedgerService {
	return &LedgerService{
		repo:   repo,
		alerts: alerts,
		events: events,
		cache:  cache,
		opts:   opts,
		logger: util.GetLogger(),
	}
}

// CreateProductInput is the payload of a product creation.
type CreateProductInput struct {
	SKU               string          `json:"sku" validate:"omitempty,max=64"`
	ProductName       string          `json:"productName" validate:"required,max=255"`
	Category          string          `json:"category" validate:"required,category"`
	Supplier          string          `json:"supplier" validate:"required,max=255"`
	UnitPrice         decimal.Decimal `json:"unitPrice"`
	Quantity          int             `json:"quantity" validate:"gte=0"`
	MinStockThreshold *int            `json:"minStockThreshold" validate:"omitempty,gte=0"`
}

// UpdateProductInput carries the editable catalogue fields.
type UpdateProductInput struct {
	ProductName string          `json:"productName" validate:"required,max=255"`
	Category    string          `json:"category" validate:"required,category"`
	Supplier    string          `json:"supplier" validate:"required,max=255"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

// RecordTransactionInput is one stock movement request.
type RecordTransactionInput struct {
	SKU            string                 `json:"sku" validate:"required"`
	Type           models.TransactionType `json:"transactionType"`
	Quantity       int                    `json:"quantity"`
	Notes          string                 `json:"notes" validate:"max=500"`
	IdempotencyKey string                 `json:"-"`
}

// CreateProduct adds a product to the catalogue. An opening quantity is
// recorded as a STOCK_IN so the ledger accounts for every unit.
func (s *LedgerService) CreateProduct(ctx context.Context, actor Actor, in *CreateProductInput) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.CreateProduct")
	defer span.End()

	if err := Authorize(actor, PermProductCreate); err != nil {
		return nil, err
	}

	in.SKU = strings.TrimSpace(in.SKU)
	in.ProductName = strings.TrimSpace(in.ProductName)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if in.UnitPrice.IsNegative() {
		return nil, apperr.InvalidInput("unitPrice must not be negative")
	}

	existing, err := s.repo.FindActiveProductByName(ctx, in.ProductName)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Conflict("product named %q already exists", in.ProductName)
	}

	threshold := s.opts.DefaultThreshold
	if in.MinStockThreshold != nil {
		threshold = *in.MinStockThreshold
	}

	generated := in.SKU == ""
	attempts := 1
	if generated {
		attempts = 3
	}

	var product *models.Product
	for i := 0; i < attempts; i++ {
		sku := in.SKU
		if generated {
			if sku, err = s.nextSKU(ctx); err != nil {
				return nil, err
			}
		}

		product, err = s.insertProduct(ctx, actor, in, sku, threshold)
		if err == nil || !generated || apperr.KindOf(err) != apperr.KindConflict {
			break
		}
		s.logger.Warn("Generated SKU collided, retrying", zap.String("sku", sku))
	}
	if err != nil {
		return nil, err
	}

	util.ProductsCreatedTotal.Inc()
	s.logger.Info("Product created",
		zap.String("sku", product.SKU),
		zap.Int("quantity", product.Quantity))

	s.afterProductChange(ctx, product.SKU)
	return product, nil
}

func (s *LedgerService) insertProduct(ctx context.Context, actor Actor, in *CreateProductInput, sku string, threshold int) (*models.Product, error) {
	now := s.opts.now()
	product := &models.Product{
		SKU:               sku,
		Name:              in.ProductName,
		Category:          in.Category,
		Supplier:          in.Supplier,
		UnitPrice:         in.UnitPrice,
		Quantity:          in.Quantity,
		MinStockThreshold: threshold,
		CreatedBy:         actor.IDRef(),
		LastUpdatedBy:     actor.IDRef(),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	var initial *models.StockTransaction
	if in.Quantity > 0 {
		opening := &models.Product{SKU: sku, Name: in.ProductName}
		initial = models.NewTransaction(opening, models.StockIn, in.Quantity, in.Quantity, "Initial stock", actor.IDRef())
		initial.Timestamp = now
	}

	if err := s.repo.CreateProduct(ctx, product, initial); err != nil {
		return nil, err
	}
	if initial != nil {
		s.publishStockMoved(ctx, initial)
	}
	return product, nil
}

// nextSKU continues the highest generated sku, e.g. SKU-000041 → SKU-000042.
func (s *LedgerService) nextSKU(ctx context.Context) (string, error) {
	last, err := s.repo.LastSKU(ctx, s.opts.SKUPrefix)
	if err != nil {
		return "", err
	}

	n := 0
	if last != "" {
		n, err = strconv.Atoi(strings.TrimPrefix(last, s.opts.SKUPrefix))
		if err != nil {
			return "", fmt.Errorf("failed to parse last sku %q: %w", last, err)
		}
	}
	return fmt.Sprintf("%s%0*d", s.opts.SKUPrefix, s.opts.SKUDigits, n+1), nil
}

// GetProduct returns an active product by sku.
func (s *LedgerService) GetProduct(ctx context.Context, actor Actor, sku string) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.GetProduct")
	defer span.End()

	if err := Authorize(actor, PermProductView); err != nil {
		return nil, err
	}

	p, err := s.repo.GetProductBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	if p.Deleted {
		return nil, apperr.NotFound("product %s not found", sku)
	}
	return p, nil
}

// ListProducts returns active or deleted products ordered by id.
func (s *LedgerService) ListProducts(ctx context.Context, actor Actor, deleted bool) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.ListProducts")
	defer span.End()

	if err := Authorize(actor, PermProductView); err != nil {
		return nil, err
	}
	return s.repo.ListProducts(ctx, models.ProductFilter{Deleted: deleted})
}

// SearchProducts matches term against sku, name, category and supplier.
func (s *LedgerService) SearchProducts(ctx context.Context, actor Actor, term string) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.SearchProducts")
	defer span.End()

	if err := Authorize(actor, PermProductView); err != nil {
		return nil, err
	}
	if strings.TrimSpace(term) == "" {
		return nil, apperr.InvalidInput("search term is required")
	}
	return s.repo.ListProducts(ctx, models.ProductFilter{Search: term})
}

// ListLowStock returns active low-stock products, emptiest first.
func (s *LedgerService) ListLowStock(ctx context.Context, actor Actor) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.ListLowStock")
	defer span.End()

	if err := Authorize(actor, PermProductView); err != nil {
		return nil, err
	}

	products, err := s.repo.ListProducts(ctx, models.ProductFilter{LowStock: true})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(products, func(i, j int) bool {
		return products[i].Quantity < products[j].Quantity
	})
	return products, nil
}

// UpdateProduct edits catalogue fields. Quantity and sku never change here.
func (s *LedgerService) UpdateProduct(ctx context.Context, actor Actor, id int64, in *UpdateProductInput) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.UpdateProduct")
	defer span.End()

	if err := Authorize(actor, PermProductUpdate); err != nil {
		return nil, err
	}

	in.ProductName = strings.TrimSpace(in.ProductName)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if in.UnitPrice.IsNegative() {
		return nil, apperr.InvalidInput("unitPrice must not be negative")
	}

	current, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Deleted {
		return nil, apperr.NotFound("product %d not found", id)
	}

	current.Name = in.ProductName
	current.Category = in.Category
	current.Supplier = in.Supplier
	current.UnitPrice = in.UnitPrice
	current.LastUpdatedBy = actor.IDRef()
	current.UpdatedAt = s.opts.now()

	updated, err := withRetry(ctx, s.opts, "update_product", func() (*models.Product, error) {
		return s.repo.UpdateProductDetails(ctx, current)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Product updated", zap.String("sku", updated.SKU))
	invalidateSummary(ctx, s.cache, s.logger)
	return updated, nil
}

// UpdateThreshold changes the minimum stock threshold and re-evaluates the
// product's alert.
func (s *LedgerService) UpdateThreshold(ctx context.Context, actor Actor, sku string, threshold int) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.UpdateThreshold")
	defer span.End()

	if err := Authorize(actor, PermProductThreshold); err != nil {
		return nil, err
	}
	if threshold < 0 {
		return nil, apperr.InvalidInput("minStockThreshold must not be negative, got %d", threshold)
	}

	type result struct {
		old     int
		product *models.Product
	}
	res, err := withRetry(ctx, s.opts, "update_threshold", func() (result, error) {
		old, p, err := s.repo.UpdateThreshold(ctx, sku, threshold, actor.IDRef(), s.opts.now())
		return result{old: old, product: p}, err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Threshold updated",
		zap.String("sku", sku),
		zap.Int("old_threshold", res.old),
		zap.Int("new_threshold", threshold))

	if res.old != threshold {
		event := &models.ThresholdUpdatedEvent{
			BaseEvent:    newBaseEvent(models.EventTypeThresholdUpdated, s.opts.now()),
			SKU:          sku,
			ProductName:  res.product.Name,
			OldThreshold: res.old,
			NewThreshold: threshold,
			UpdatedBy:    actor.IDRef(),
		}
		if err := s.events.PublishThresholdUpdated(ctx, event); err != nil {
			util.EventsPublishFailed.WithLabelValues(models.EventTypeThresholdUpdated).Inc()
			s.logger.Error("Failed to publish ThresholdUpdated event", zap.Error(err))
		}
	}

	s.afterProductChange(ctx, sku)
	return res.product, nil
}

// StockIn records a STOCK_IN movement.
func (s *LedgerService) StockIn(ctx context.Context, actor Actor, in *RecordTransactionInput) (*models.StockTransaction, error) {
	in.Type = models.StockIn
	return s.RecordTransaction(ctx, actor, in)
}

// StockOut records a STOCK_OUT movement.
func (s *LedgerService) StockOut(ctx context.Context, actor Actor, in *RecordTransactionInput) (*models.StockTransaction, error) {
	in.Type = models.StockOut
	return s.RecordTransaction(ctx, actor, in)
}

// RecordTransaction applies one stock movement. On any error nothing has
// changed.
func (s *LedgerService) RecordTransaction(ctx context.Context, actor Actor, in *RecordTransactionInput) (*models.StockTransaction, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.RecordTransaction")
	defer span.End()

	start := time.Now()
	defer func() {
		util.StockMovementLatency.Observe(time.Since(start).Seconds())
	}()

	if err := Authorize(actor, PermStockRecord); err != nil {
		return nil, err
	}

	in.SKU = strings.TrimSpace(in.SKU)
	if err := validateStruct(in); err != nil {
		util.StockMovementsRejected.WithLabelValues("invalid_input").Inc()
		return nil, err
	}
	if in.Quantity <= 0 {
		util.StockMovementsRejected.WithLabelValues("invalid_input").Inc()
		return nil, apperr.InvalidInput("quantity must be greater than zero, got %d", in.Quantity)
	}
	t, ok := models.ParseTransactionType(string(in.Type))
	if !ok {
		util.StockMovementsRejected.WithLabelValues("invalid_input").Inc()
		return nil, apperr.InvalidInput("unknown transaction type %q", in.Type)
	}
	in.Type = t

	idemKey := s.idempotencyKey(actor, in.IdempotencyKey)
	if idemKey != "" {
		claimed, err := s.cache.ClaimIdempotencyKey(ctx, idemKey, s.opts.IdempotencyTTL)
		if err != nil {
			s.logger.Warn("Idempotency check failed, applying without it", zap.Error(err))
			idemKey = ""
		} else if !claimed {
			return s.replay(ctx, idemKey)
		}
	}

	movement := models.Movement{
		SKU:         in.SKU,
		Type:        in.Type,
		Quantity:    in.Quantity,
		Notes:       in.Notes,
		PerformedBy: actor.IDRef(),
	}

	type result struct {
		txn     *models.StockTransaction
		product *models.Product
	}
	res, err := withRetry(ctx, s.opts, "apply_movement", func() (result, error) {
		movement.At = s.opts.now()
		txn, p, err := s.repo.ApplyMovement(ctx, movement)
		return result{txn: txn, product: p}, err
	})
	if err != nil {
		util.StockMovementsRejected.WithLabelValues(strings.ToLower(string(apperr.KindOf(err)))).Inc()
		if idemKey != "" {
			if rerr := s.cache.ReleaseIdempotencyKey(ctx, idemKey); rerr != nil {
				s.logger.Warn("Failed to release idempotency key", zap.Error(rerr))
			}
		}
		return nil, err
	}

	txn := res.txn
	util.StockMovementsTotal.WithLabelValues(string(txn.Type)).Inc()
	s.logger.Info("Stock movement recorded",
		zap.Int64("transaction_id", txn.ID),
		zap.String("sku", txn.SKU),
		zap.String("type", string(txn.Type)),
		zap.Int("quantity", txn.Quantity),
		zap.Int("new_quantity", txn.NewQuantity))

	if idemKey != "" {
		if err := s.cache.SetIdempotencyKey(ctx, idemKey, txn.ID, s.opts.IdempotencyTTL); err != nil {
			s.logger.Warn("Failed to store idempotency key", zap.Error(err))
		}
	}

	s.publishStockMoved(ctx, txn)
	s.afterProductChange(ctx, txn.SKU)
	return txn, nil
}

func (s *LedgerService) idempotencyKey(actor Actor, key string) string {
	key = strings.TrimSpace(key)
	if key == "" || s.cache == nil {
		return ""
	}
	return fmt.Sprintf("stock:%d:%s", actor.ID, key)
}

// replay returns the transaction recorded under an already used key.
func (s *LedgerService) replay(ctx context.Context, key string) (*models.StockTransaction, error) {
	value, ok, err := s.cache.GetIdempotencyKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read idempotency key: %w", err)
	}
	if !ok || value == idempotencyPending {
		return nil, apperr.Conflict("a request with this idempotency key is in progress")
	}

	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse idempotency value %q: %w", value, err)
	}

	s.logger.Info("Duplicate stock request detected", zap.Int64("transaction_id", id))
	return s.repo.GetTransaction(ctx, id)
}

// GetTransaction returns one ledger row.
func (s *LedgerService) GetTransaction(ctx context.Context, actor Actor, id int64) (*models.StockTransaction, error) {
	if err := Authorize(actor, PermReportView); err != nil {
		return nil, err
	}
	return s.repo.GetTransaction(ctx, id)
}

func (s *LedgerService) publishStockMoved(ctx context.Context, txn *models.StockTransaction) {
	event := &models.StockMovedEvent{
		BaseEvent:        newBaseEvent(models.EventTypeStockMoved, txn.Timestamp),
		TransactionID:    txn.ID,
		SKU:              txn.SKU,
		TransactionType:  txn.Type,
		Quantity:         txn.Quantity,
		PreviousQuantity: txn.PreviousQuantity,
		NewQuantity:      txn.NewQuantity,
		PerformedBy:      txn.PerformedBy,
	}
	if err := s.events.PublishStockMoved(ctx, event); err != nil {
		util.EventsPublishFailed.WithLabelValues(models.EventTypeStockMoved).Inc()
		s.logger.Error("Failed to publish StockMoved event", zap.Error(err))
	}
}

// afterProductChange runs the post-commit steps. Failures are logged only:
// the change is committed and the low-stock scanner repairs missed alerts.
func (s *LedgerService) afterProductChange(ctx context.Context, sku string) {
	if _, err := s.alerts.Evaluate(ctx, sku); err != nil {
		s.logger.Error("Alert evaluation failed",
			zap.String("sku", sku),
			zap.Error(err))
	}
	invalidateSummary(ctx, s.cache, s.logger)
}
