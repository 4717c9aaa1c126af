package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"inventory-service/internal/apperr"
	"inventory-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateProduct inserts the product and its opening ledger row in one transaction
func (s *Store) CreateProduct(ctx context.Context, p *models.Product, initial *models.StockTransaction) error {
	return s.inTx(ctx, "create product", func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO products (sku, product_name, category, supplier, unit_price, quantity,
				min_stock_threshold, created_by, last_updated_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id`

		err := tx.GetContext(ctx, &p.ID, query,
			p.SKU, p.Name, p.Category, p.Supplier, p.UnitPrice, p.Quantity,
			p.MinStockThreshold, p.CreatedBy, p.LastUpdatedBy, p.CreatedAt, p.UpdatedAt)
		if err != nil {
			return err
		}

		// Checked after the insert: a concurrent purge of the same sku has
		// committed by the time the unique index lets the insert through.
		var retired bool
		err = tx.GetContext(ctx, &retired,
			"SELECT EXISTS (SELECT 1 FROM retired_skus WHERE sku = $1)", p.SKU)
		if err != nil {
			return err
		}
		if retired {
			return apperr.Conflict("sku %s belonged to a permanently deleted product", p.SKU)
		}

		if initial == nil {
			return nil
		}
		initial.SKU = p.SKU
		initial.ProductName = p.Name
		if initial.Timestamp.IsZero() {
			initial.Timestamp = p.CreatedAt
		}
		return insertTransaction(ctx, tx, initial)
	})
}

// GetProductBySKU retrieves a product by SKU, deleted ones included
func (s *Store) GetProductBySKU(ctx context.Context, sku string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE sku = $1", sku)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("product %s not found", sku)
	}
	if err != nil {
		return nil, classify(err, "get product")
	}
	return &product, nil
}

// GetProductByID retrieves a product by ID, deleted ones included
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("product %d not found", id)
	}
	if err != nil {
		return nil, classify(err, "get product")
	}
	return &product, nil
}

func (s *Store) FindActiveProductByName(ctx context.Context, name string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product,
		"SELECT * FROM products WHERE lower(product_name) = lower($1) AND NOT is_deleted LIMIT 1", name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "find product")
	}
	return &product, nil
}

// ListProducts returns products in id order
func (s *Store) ListProducts(ctx context.Context, f models.ProductFilter) ([]models.Product, error) {
	conds := []string{"is_deleted = $1"}
	args := []interface{}{f.Deleted}

	if f.LowStock {
		conds = append(conds, "quantity < min_stock_threshold")
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		args = append(args, "%"+escapeLike(search)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(sku ILIKE $%d OR product_name ILIKE $%d OR category ILIKE $%d OR supplier ILIKE $%d)", n, n, n, n))
	}

	query := "SELECT * FROM products WHERE " + strings.Join(conds, " AND ") + " ORDER BY id"

	products := []models.Product{}
	if err := s.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, classify(err, "list products")
	}
	return products, nil
}

func (s *Store) UpdateProductDetails(ctx context.Context, p *models.Product) (*models.Product, error) {
	var updated models.Product
	err := s.inTx(ctx, "update product", func(tx *sqlx.Tx) error {
		if _, err := lockActiveProduct(ctx, tx, p.SKU); err != nil {
			return err
		}

		query := `
			UPDATE products
			SET product_name = $1, category = $2, supplier = $3, unit_price = $4,
				last_updated_by = $5, updated_at = $6
			WHERE sku = $7
			RETURNING *`
		return tx.GetContext(ctx, &updated, query,
			p.Name, p.Category, p.Supplier, p.UnitPrice, p.LastUpdatedBy, p.UpdatedAt, p.SKU)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// UpdateThreshold returns the previous threshold alongside the updated product
func (s *Store) UpdateThreshold(ctx context.Context, sku string, threshold int, by *int64, at time.Time) (int, *models.Product, error) {
	var (
		old     int
		updated models.Product
	)
	err := s.inTx(ctx, "update threshold", func(tx *sqlx.Tx) error {
		cur, err := lockActiveProduct(ctx, tx, sku)
		if err != nil {
			return err
		}
		old = cur.MinStockThreshold

		return tx.GetContext(ctx, &updated, `
			UPDATE products
			SET min_stock_threshold = $1, last_updated_by = $2, updated_at = $3
			WHERE sku = $4
			RETURNING *`, threshold, by, at, sku)
	})
	if err != nil {
		return 0, nil, err
	}
	return old, &updated, nil
}

// LastSKU returns the greatest generated sku (prefix followed by digits),
// deleted and purged products included.
func (s *Store) LastSKU(ctx context.Context, prefix string) (string, error) {
	var sku string
	err := s.db.GetContext(ctx, &sku, `
		SELECT sku FROM (
			SELECT sku FROM products
			UNION ALL
			SELECT sku FROM retired_skus
		) issued
		WHERE sku LIKE $1 AND substr(sku, $2) ~ '^[0-9]+$'
		ORDER BY length(sku) DESC, sku DESC
		LIMIT 1`, escapeLike(prefix)+"%", len(prefix)+1)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", classify(err, "read last sku")
	}
	return sku, nil
}

// lockActiveProduct takes the row lock for sku. Deleted products are NotFound.
func lockActiveProduct(ctx context.Context, tx *sqlx.Tx, sku string) (*models.Product, error) {
	var p models.Product
	err := tx.GetContext(ctx, &p, "SELECT * FROM products WHERE sku = $1 FOR UPDATE", sku)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("product %s not found", sku)
	}
	if err != nil {
		return nil, err
	}
	if p.Deleted {
		return nil, apperr.NotFound("product %s not found", sku)
	}
	return &p, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
