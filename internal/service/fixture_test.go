package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"inventory-service/internal/memstore"
	"inventory-service/internal/models"
	"inventory-service/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	master   = service.Actor{ID: 1, Role: models.RoleMasterAdmin}
	admin    = service.Actor{ID: 2, Role: models.RoleAdmin}
	employee = service.Actor{ID: 3, Role: models.RoleEmployee}
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recorder captures published events in order.
type recorder struct {
	mu     sync.Mutex
	types  []string
	alerts []*models.AlertCreatedEvent
}

func (r *recorder) add(t string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, t)
}

func (r *recorder) PublishStockMoved(ctx context.Context, e *models.StockMovedEvent) error {
	r.add(e.EventType)
	return nil
}

func (r *recorder) PublishAlertCreated(ctx context.Context, e *models.AlertCreatedEvent) error {
	r.add(e.EventType)
	r.mu.Lock()
	r.alerts = append(r.alerts, e)
	r.mu.Unlock()
	return nil
}

func (r *recorder) PublishAlertResolved(ctx context.Context, e *models.AlertResolvedEvent) error {
	r.add(e.EventType)
	return nil
}

func (r *recorder) PublishThresholdUpdated(ctx context.Context, e *models.ThresholdUpdatedEvent) error {
	r.add(e.EventType)
	return nil
}

func (r *recorder) PublishRecycleEvent(ctx context.Context, e *models.RecycleEvent) error {
	r.add(e.EventType)
	return nil
}

func (r *recorder) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.types {
		if t == eventType {
			n++
		}
	}
	return n
}

// mapCache is an in-memory service.Cache without expiry.
type mapCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string]string)}
}

func (c *mapCache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal([]byte(raw), dest)
}

func (c *mapCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = string(raw)
	return nil
}

func (c *mapCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *mapCache) Incr(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, _ := strconv.ParseInt(c.data[key], 10, 64)
	n++
	c.data[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func (c *mapCache) ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data["idem:"+key]; ok {
		return false, nil
	}
	c.data["idem:"+key] = "pending"
	return true, nil
}

func (c *mapCache) GetIdempotencyKey(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data["idem:"+key]
	return v, ok, nil
}

func (c *mapCache) SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data["idem:"+key] = fmt.Sprint(value)
	return nil
}

func (c *mapCache) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	return c.Delete(ctx, "idem:"+key)
}

type fixture struct {
	store    *memstore.Store
	repo     service.Repository
	events   *recorder
	cache    *mapCache
	clock    *clock
	opts     service.Options
	ledger   *service.LedgerService
	alerts   *service.AlertService
	reports  *service.ReportService
	users    *service.UserService
	products *service.RecycleBin[models.Product]
	userBin  *service.RecycleBin[models.User]
}

type fixtureOption func(*fixture)

func withRepo(wrap func(*memstore.Store) service.Repository) fixtureOption {
	return func(f *fixture) { f.repo = wrap(f.store) }
}

func withOptions(mutate func(*service.Options)) fixtureOption {
	return func(f *fixture) { mutate(&f.opts) }
}

func newFixture(t *testing.T, options ...fixtureOption) *fixture {
	t.Helper()

	f := &fixture{
		store:  memstore.New(time.Second),
		events: &recorder{},
		cache:  newMapCache(),
		clock:  &clock{now: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)},
	}
	f.repo = f.store

	f.opts = service.DefaultOptions()
	f.opts.RetryBackoff = time.Millisecond
	f.opts.Clock = f.clock.Now

	for _, o := range options {
		o(f)
	}

	f.alerts = service.NewAlertService(f.repo, f.events, f.opts)
	f.ledger = service.NewLedgerService(f.repo, f.alerts, f.events, f.cache, f.opts)
	f.reports = service.NewReportService(f.repo, f.cache, f.opts)
	f.users = service.NewUserService(f.repo, f.opts)
	f.products = service.NewProductBin(f.repo.ProductBin(), f.alerts, f.events, f.cache, f.opts)
	f.userBin = service.NewUserBin(f.repo.UserBin(), f.events, f.opts)
	return f
}

func (f *fixture) createProduct(t *testing.T, sku string, qty, threshold int) *models.Product {
	t.Helper()
	p, err := f.ledger.CreateProduct(context.Background(), admin, &service.CreateProductInput{
		SKU:               sku,
		ProductName:       "Widget " + sku,
		Category:          "Hardware & Tools",
		Supplier:          "Acme",
		UnitPrice:         decimal.RequireFromString("2.50"),
		Quantity:          qty,
		MinStockThreshold: &threshold,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) move(t *testing.T, sku string, typ models.TransactionType, qty int) (*models.StockTransaction, error) {
	t.Helper()
	return f.ledger.RecordTransaction(context.Background(), employee, &service.RecordTransactionInput{
		SKU:      sku,
		Type:     typ,
		Quantity: qty,
	})
}

func (f *fixture) quantity(t *testing.T, sku string) int {
	t.Helper()
	p, err := f.repo.GetProductBySKU(context.Background(), sku)
	require.NoError(t, err)
	return p.Quantity
}

func (f *fixture) activeAlerts(t *testing.T) []models.LowStockAlert {
	t.Helper()
	alerts, err := f.alerts.ActiveAlerts(context.Background(), admin)
	require.NoError(t, err)
	return alerts
}

// assertReplay rebuilds sku's quantity from its ledger, oldest first, and
// checks each row continues the previous one.
func (f *fixture) assertReplay(t *testing.T, sku string) {
	t.Helper()
	txns, err := f.reports.QueryTransactions(context.Background(), admin, service.TransactionQuery{SKU: sku, Ascending: true})
	require.NoError(t, err)

	qty := 0
	var last time.Time
	for _, txn := range txns {
		require.False(t, txn.Timestamp.Before(last), "transaction %d goes back in time", txn.ID)
		last = txn.Timestamp
		require.Equal(t, qty, txn.PreviousQuantity, "transaction %d", txn.ID)
		qty, err = models.ApplyMovement(qty, txn.Type, txn.Quantity)
		require.NoError(t, err)
		require.Equal(t, qty, txn.NewQuantity, "transaction %d", txn.ID)
	}
	require.Equal(t, f.quantity(t, sku), qty)
}
