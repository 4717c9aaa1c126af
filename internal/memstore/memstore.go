// Package memstore is an in-process implementation of the inventory
// repositories. It backs STORE_DRIVER=memory and the service tests, and
// follows the same per-sku locking discipline as the Postgres store.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"inventory-service/internal/apperr"
	"inventory-service/internal/keylock"
	"inventory-service/internal/models"
	"inventory-service/internal/service"
)

// Store holds every entity in maps guarded by mu. Composite operations on one
// product additionally hold that product's key lock.
type Store struct {
	mu    sync.RWMutex
	locks *keylock.Locker

	products   map[string]*models.Product
	productIDs map[int64]string
	ledger     []models.StockTransaction
	alerts     map[int64]*models.LowStockAlert
	users      map[int64]*models.User

	// latest is the newest ledger timestamp per sku.
	latest map[string]time.Time
	// retired holds the skus of purged products. They are never reissued.
	retired map[string]struct{}

	nextProductID int64
	nextTxnID     int64
	nextAlertID   int64
	nextUserID    int64
}

var _ service.Repository = (*Store)(nil)

// New creates an empty store. lockWait bounds how long an operation waits for
// a busy product before failing with Busy.
func New(lockWait time.Duration) *Store {
	return &Store{
		locks:      keylock.New(lockWait),
		products:   make(map[string]*models.Product),
		productIDs: make(map[int64]string),
		alerts:     make(map[int64]*models.LowStockAlert),
		users:      make(map[int64]*models.User),
		latest:     make(map[string]time.Time),
		retired:    make(map[string]struct{}),
	}
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

func productKey(sku string) string { return "product:" + sku }

func userKey(id int64) string { return fmt.Sprintf("user:%d", id) }

func (s *Store) lock(ctx context.Context, key string) (func(), error) {
	unlock, err := s.locks.Lock(ctx, key)
	if err != nil {
		if errors.Is(err, keylock.ErrTimeout) {
			return nil, apperr.Busy("%s is locked by another operation", key)
		}
		return nil, err
	}
	return unlock, nil
}

// ---- products ----

func (s *Store) CreateProduct(ctx context.Context, p *models.Product, initial *models.StockTransaction) error {
	unlock, err := s.lock(ctx, productKey(p.SKU))
	if err != nil {
		return err
	}
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[p.SKU]; exists {
		return apperr.Conflict("product with sku %s already exists", p.SKU)
	}
	if _, gone := s.retired[p.SKU]; gone {
		return apperr.Conflict("sku %s belonged to a permanently deleted product", p.SKU)
	}
	if s.activeNameTaken(p.Name, 0) {
		return apperr.Conflict("product named %q already exists", p.Name)
	}

	s.nextProductID++
	p.ID = s.nextProductID
	stored := *p
	s.products[p.SKU] = &stored
	s.productIDs[p.ID] = p.SKU

	if initial != nil {
		s.nextTxnID++
		initial.ID = s.nextTxnID
		initial.SKU = p.SKU
		initial.ProductName = p.Name
		if initial.Timestamp.IsZero() {
			initial.Timestamp = p.CreatedAt
		}
		s.ledger = append(s.ledger, *initial)
		s.latest[p.SKU] = initial.Timestamp
	}
	return nil
}

// activeNameTaken must be called with mu held.
func (s *Store) activeNameTaken(name string, exceptID int64) bool {
	for _, p := range s.products {
		if !p.Deleted && p.ID != exceptID && strings.EqualFold(p.Name, name) {
			return true
		}
	}
	return false
}

func (s *Store) GetProductBySKU(ctx context.Context, sku string) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[sku]
	if !ok {
		return nil, apperr.NotFound("product %s not found", sku)
	}
	out := *p
	return &out, nil
}

func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sku, ok := s.productIDs[id]
	if !ok {
		return nil, apperr.NotFound("product %d not found", id)
	}
	out := *s.products[sku]
	return &out, nil
}

func (s *Store) FindActiveProductByName(ctx context.Context, name string) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products {
		if !p.Deleted && strings.EqualFold(p.Name, name) {
			out := *p
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) ListProducts(ctx context.Context, f models.ProductFilter) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		if p.Deleted != f.Deleted {
			continue
		}
		if f.LowStock && !p.LowStock() {
			continue
		}
		if search != "" && !matchesSearch(p, search) {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func matchesSearch(p *models.Product, search string) bool {
	for _, field := range []string{p.SKU, p.Name, p.Category, p.Supplier} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

func (s *Store) UpdateProductDetails(ctx context.Context, p *models.Product) (*models.Product, error) {
	unlock, err := s.lock(ctx, productKey(p.SKU))
	if err != nil {
		return nil, err
	}
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.products[p.SKU]
	if !ok || cur.Deleted {
		return nil, apperr.NotFound("product %s not found", p.SKU)
	}
	if s.activeNameTaken(p.Name, cur.ID) {
		return nil, apperr.Conflict("product named %q already exists", p.Name)
	}

	cur.Name = p.Name
	cur.Category = p.Category
	cur.Supplier = p.Supplier
	cur.UnitPrice = p.UnitPrice
	cur.LastUpdatedBy = p.LastUpdatedBy
	cur.UpdatedAt = p.UpdatedAt

	out := *cur
	return &out, nil
}

func (s *Store) UpdateThreshold(ctx context.Context, sku string, threshold int, by *int64, at time.Time) (int, *models.Product, error) {
	unlock, err := s.lock(ctx, productKey(sku))
	if err != nil {
		return 0, nil, err
	}
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.products[sku]
	if !ok || cur.Deleted {
		return 0, nil, apperr.NotFound("product %s not found", sku)
	}

	old := cur.MinStockThreshold
	cur.MinStockThreshold = threshold
	cur.LastUpdatedBy = by
	cur.UpdatedAt = at

	out := *cur
	return old, &out, nil
}

// LastSKU returns the greatest generated sku (prefix followed by digits),
// deleted and purged products included.
func (s *Store) LastSKU(ctx context.Context, prefix string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	last := ""
	consider := func(sku string) {
		if !generatedSKU(sku, prefix) {
			return
		}
		if len(sku) > len(last) || (len(sku) == len(last) && sku > last) {
			last = sku
		}
	}
	for sku := range s.products {
		consider(sku)
	}
	for sku := range s.retired {
		consider(sku)
	}
	return last, nil
}

func generatedSKU(sku, prefix string) bool {
	digits := strings.TrimPrefix(sku, prefix)
	if digits == sku || digits == "" {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ---- ledger ----

func (s *Store) ApplyMovement(ctx context.Context, m models.Movement) (*models.StockTransaction, *models.Product, error) {
	unlock, err := s.lock(ctx, productKey(m.SKU))
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[m.SKU]
	if !ok || p.Deleted {
		return nil, nil, apperr.NotFound("product %s not found", m.SKU)
	}

	newQty, err := models.ApplyMovement(p.Quantity, m.Type, m.Quantity)
	if err != nil {
		return nil, nil, err
	}

	at := m.Stamp(s.latest[m.SKU])
	txn := models.NewTransaction(p, m.Type, m.Quantity, newQty, m.Notes, m.PerformedBy)
	s.nextTxnID++
	txn.ID = s.nextTxnID
	txn.Timestamp = at
	s.ledger = append(s.ledger, *txn)
	s.latest[m.SKU] = at

	p.Quantity = newQty
	p.LastUpdatedBy = m.PerformedBy
	p.UpdatedAt = at

	out := *p
	return txn, &out, nil
}

func (s *Store) GetTransaction(ctx context.Context, id int64) (*models.StockTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.ledger {
		if s.ledger[i].ID == id {
			out := s.ledger[i]
			return &out, nil
		}
	}
	return nil, apperr.NotFound("transaction %d not found", id)
}

func (s *Store) QueryTransactions(ctx context.Context, f models.TransactionFilter) ([]models.StockTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	name := strings.ToLower(strings.TrimSpace(f.ProductName))
	out := make([]models.StockTransaction, 0)
	for _, t := range s.ledger {
		if f.SKU != "" && t.SKU != f.SKU {
			continue
		}
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		if f.From != nil && t.Timestamp.Before(*f.From) {
			continue
		}
		if f.To != nil && t.Timestamp.After(*f.To) {
			continue
		}
		if name != "" && !s.transactionMatchesName(t, name) {
			continue
		}
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if f.Ascending {
			a, b = b, a
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		return a.ID > b.ID
	})

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// transactionMatchesName checks the name recorded on the row and the
// product's current name.
func (s *Store) transactionMatchesName(t models.StockTransaction, name string) bool {
	if strings.Contains(strings.ToLower(t.ProductName), name) {
		return true
	}
	if p, ok := s.products[t.SKU]; ok {
		return strings.Contains(strings.ToLower(p.Name), name)
	}
	return false
}

// ---- alerts ----

func (s *Store) EvaluateAlert(ctx context.Context, sku string, autoResolve bool, at time.Time) (*models.AlertOutcome, error) {
	unlock, err := s.lock(ctx, productKey(sku))
	if err != nil {
		return nil, err
	}
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[sku]
	if !ok || p.Deleted {
		return &models.AlertOutcome{Action: models.AlertNone}, nil
	}

	open := s.openAlert(sku)
	action := models.DecideAlert(p.Quantity, p.MinStockThreshold, open, autoResolve)

	switch action {
	case models.AlertCreate:
		s.nextAlertID++
		open = &models.LowStockAlert{
			ID:              s.nextAlertID,
			SKU:             sku,
			ProductName:     p.Name,
			CurrentQuantity: p.Quantity,
			Threshold:       p.MinStockThreshold,
			AlertSentAt:     at,
		}
		s.alerts[open.ID] = open
	case models.AlertRefresh:
		open.ProductName = p.Name
		open.CurrentQuantity = p.Quantity
		open.Threshold = p.MinStockThreshold
	case models.AlertResolve:
		open.Resolved = true
		open.ResolvedAt = &at
		open.ResolvedBy = nil
	}

	product := *p
	outcome := &models.AlertOutcome{Action: action, Product: &product}
	if open != nil {
		alert := *open
		outcome.Alert = &alert
	}
	return outcome, nil
}

// closeAlert resolves the open alert of sku without an actor. It must be
// called with mu held.
func (s *Store) closeAlert(sku string, at time.Time) {
	if open := s.openAlert(sku); open != nil {
		open.Resolved = true
		open.ResolvedAt = &at
		open.ResolvedBy = nil
	}
}

// openAlert must be called with mu held.
func (s *Store) openAlert(sku string) *models.LowStockAlert {
	for _, a := range s.alerts {
		if a.SKU == sku && !a.Resolved {
			return a
		}
	}
	return nil
}

func (s *Store) GetAlert(ctx context.Context, id int64) (*models.LowStockAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.alerts[id]
	if !ok {
		return nil, apperr.NotFound("alert %d not found", id)
	}
	out := *a
	return &out, nil
}

func (s *Store) ResolveAlert(ctx context.Context, id int64, by *int64, at time.Time) (*models.LowStockAlert, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok {
		return nil, false, apperr.NotFound("alert %d not found", id)
	}
	if a.Resolved {
		out := *a
		return &out, false, nil
	}

	a.Resolved = true
	a.ResolvedAt = &at
	a.ResolvedBy = by

	out := *a
	return &out, true, nil
}

func (s *Store) ListAlerts(ctx context.Context, activeOnly bool) ([]models.LowStockAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.LowStockAlert, 0, len(s.alerts))
	for _, a := range s.alerts {
		if activeOnly && a.Resolved {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AlertSentAt.Equal(out[j].AlertSentAt) {
			return out[i].AlertSentAt.After(out[j].AlertSentAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// ---- users ----

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeEmailTaken(u.Email, 0) {
		return apperr.Conflict("user with email %s already exists", u.Email)
	}

	s.nextUserID++
	u.ID = s.nextUserID
	stored := *u
	s.users[u.ID] = &stored
	return nil
}

// activeEmailTaken must be called with mu held.
func (s *Store) activeEmailTaken(email string, exceptID int64) bool {
	for _, u := range s.users {
		if !u.Deleted && u.ID != exceptID && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, apperr.NotFound("user %d not found", id)
	}
	out := *u
	return &out, nil
}

func (s *Store) ListUsers(ctx context.Context, f models.UserFilter) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		if u.Deleted != f.Deleted {
			continue
		}
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
