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

// ApplyMovement locks the product row, appends the ledger row and writes the
// new quantity in one transaction.
func (s *Store) ApplyMovement(ctx context.Context, m models.Movement) (*models.StockTransaction, *models.Product, error) {
	var (
		txn     *models.StockTransaction
		product models.Product
	)
	err := s.inTx(ctx, "apply stock movement", func(tx *sqlx.Tx) error {
		p, err := lockActiveProduct(ctx, tx, m.SKU)
		if err != nil {
			return err
		}

		newQty, err := models.ApplyMovement(p.Quantity, m.Type, m.Quantity)
		if err != nil {
			return err
		}

		at, err := stampMovement(ctx, tx, m)
		if err != nil {
			return err
		}

		txn = models.NewTransaction(p, m.Type, m.Quantity, newQty, m.Notes, m.PerformedBy)
		txn.Timestamp = at
		if err := insertTransaction(ctx, tx, txn); err != nil {
			return err
		}

		return tx.GetContext(ctx, &product, `
			UPDATE products
			SET quantity = $1, last_updated_by = $2, updated_at = $3
			WHERE sku = $4
			RETURNING *`, newQty, m.PerformedBy, at, m.SKU)
	})
	if err != nil {
		return nil, nil, err
	}
	return txn, &product, nil
}

// stampMovement picks the ledger timestamp for m. The caller holds the
// product row lock, so no other movement of the sku can commit in between.
func stampMovement(ctx context.Context, tx *sqlx.Tx, m models.Movement) (time.Time, error) {
	var latest sql.NullTime
	err := tx.GetContext(ctx, &latest,
		"SELECT max(transaction_date) FROM stock_transactions WHERE sku = $1", m.SKU)
	if err != nil {
		return time.Time{}, err
	}
	return m.Stamp(latest.Time), nil
}

func insertTransaction(ctx context.Context, tx *sqlx.Tx, t *models.StockTransaction) error {
	query := `
		INSERT INTO stock_transactions (sku, product_name, transaction_type, quantity,
			previous_quantity, new_quantity, notes, performed_by, transaction_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	return tx.GetContext(ctx, &t.ID, query,
		t.SKU, t.ProductName, t.Type, t.Quantity, t.PreviousQuantity, t.NewQuantity,
		t.Notes, t.PerformedBy, t.Timestamp)
}

func (s *Store) GetTransaction(ctx context.Context, id int64) (*models.StockTransaction, error) {
	var t models.StockTransaction
	err := s.db.GetContext(ctx, &t, "SELECT * FROM stock_transactions WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("transaction %d not found", id)
	}
	if err != nil {
		return nil, classify(err, "get transaction")
	}
	return &t, nil
}

// QueryTransactions filters the ledger. The product name matches either the
// name recorded on the row or the product's current name.
func (s *Store) QueryTransactions(ctx context.Context, f models.TransactionFilter) ([]models.StockTransaction, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.SKU != "" {
		conds = append(conds, "t.sku = "+arg(f.SKU))
	}
	if f.Type != "" {
		conds = append(conds, "t.transaction_type = "+arg(string(f.Type)))
	}
	if f.From != nil {
		conds = append(conds, "t.transaction_date >= "+arg(*f.From))
	}
	if f.To != nil {
		conds = append(conds, "t.transaction_date <= "+arg(*f.To))
	}
	if name := strings.TrimSpace(f.ProductName); name != "" {
		p := arg("%" + escapeLike(name) + "%")
		conds = append(conds, fmt.Sprintf("(t.product_name ILIKE %s OR p.product_name ILIKE %s)", p, p))
	}

	query := "SELECT t.* FROM stock_transactions t LEFT JOIN products p ON p.sku = t.sku"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if f.Ascending {
		query += " ORDER BY t.transaction_date ASC, t.id ASC"
	} else {
		query += " ORDER BY t.transaction_date DESC, t.id DESC"
	}
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
	}

	txns := []models.StockTransaction{}
	if err := s.db.SelectContext(ctx, &txns, query, args...); err != nil {
		return nil, classify(err, "query transactions")
	}
	return txns, nil
}
