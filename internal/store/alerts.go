package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"inventory-service/internal/apperr"
	"inventory-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// EvaluateAlert decides and applies the alert transition for sku while
// holding the product row lock.
func (s *Store) EvaluateAlert(ctx context.Context, sku string, autoResolve bool, at time.Time) (*models.AlertOutcome, error) {
	outcome := &models.AlertOutcome{Action: models.AlertNone}

	err := s.inTx(ctx, "evaluate alert", func(tx *sqlx.Tx) error {
		p, err := lockActiveProduct(ctx, tx, sku)
		if errors.Is(err, apperr.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		outcome.Product = p

		var open *models.LowStockAlert
		var current models.LowStockAlert
		err = tx.GetContext(ctx, &current,
			"SELECT * FROM low_stock_alerts WHERE sku = $1 AND NOT is_resolved FOR UPDATE", sku)
		switch {
		case err == nil:
			open = &current
		case !errors.Is(err, sql.ErrNoRows):
			return err
		}

		outcome.Action = models.DecideAlert(p.Quantity, p.MinStockThreshold, open, autoResolve)

		var alert models.LowStockAlert
		switch outcome.Action {
		case models.AlertCreate:
			err = tx.GetContext(ctx, &alert, `
				INSERT INTO low_stock_alerts (sku, product_name, current_quantity, threshold, alert_sent_at)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING *`, sku, p.Name, p.Quantity, p.MinStockThreshold, at)
		case models.AlertRefresh:
			err = tx.GetContext(ctx, &alert, `
				UPDATE low_stock_alerts
				SET product_name = $1, current_quantity = $2, threshold = $3
				WHERE id = $4
				RETURNING *`, p.Name, p.Quantity, p.MinStockThreshold, open.ID)
		case models.AlertResolve:
			err = tx.GetContext(ctx, &alert, `
				UPDATE low_stock_alerts
				SET is_resolved = TRUE, resolved_at = $1, resolved_by = NULL
				WHERE id = $2
				RETURNING *`, at, open.ID)
		default:
			outcome.Alert = open
			return nil
		}
		if err != nil {
			return err
		}
		outcome.Alert = &alert
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func (s *Store) GetAlert(ctx context.Context, id int64) (*models.LowStockAlert, error) {
	var a models.LowStockAlert
	err := s.db.GetContext(ctx, &a, "SELECT * FROM low_stock_alerts WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("alert %d not found", id)
	}
	if err != nil {
		return nil, classify(err, "get alert")
	}
	return &a, nil
}

// ResolveAlert marks the alert resolved. Resolving a resolved alert is a
// no-op reported with changed=false.
func (s *Store) ResolveAlert(ctx context.Context, id int64, by *int64, at time.Time) (*models.LowStockAlert, bool, error) {
	var (
		alert   models.LowStockAlert
		changed bool
	)
	err := s.inTx(ctx, "resolve alert", func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &alert, "SELECT * FROM low_stock_alerts WHERE id = $1 FOR UPDATE", id)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("alert %d not found", id)
		}
		if err != nil {
			return err
		}
		if alert.Resolved {
			return nil
		}

		changed = true
		return tx.GetContext(ctx, &alert, `
			UPDATE low_stock_alerts
			SET is_resolved = TRUE, resolved_at = $1, resolved_by = $2
			WHERE id = $3
			RETURNING *`, at, by, id)
	})
	if err != nil {
		return nil, false, err
	}
	return &alert, changed, nil
}

// ListAlerts returns alerts newest first
func (s *Store) ListAlerts(ctx context.Context, activeOnly bool) ([]models.LowStockAlert, error) {
	query := "SELECT * FROM low_stock_alerts"
	if activeOnly {
		query += " WHERE NOT is_resolved"
	}
	query += " ORDER BY alert_sent_at DESC, id DESC"

	alerts := []models.LowStockAlert{}
	if err := s.db.SelectContext(ctx, &alerts, query); err != nil {
		return nil, classify(err, "list alerts")
	}
	return alerts, nil
}
