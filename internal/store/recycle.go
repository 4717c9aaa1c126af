package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"inventory-service/internal/apperr"
	"inventory-service/internal/models"
	"inventory-service/internal/service"

	"github.com/jmoiron/sqlx"
)

// softDeleteTable implements service.SoftDeleteStore over a table with
// is_deleted/deleted_at columns. Each transition runs under the row lock.
type softDeleteTable[T models.SoftDeletable] struct {
	s      *Store
	entity string
	table  string

	// Optional statements run in the transition's transaction with the row
	// id as $1 and, for afterDelete, the deletion time as $2.
	afterDelete string
	beforePurge []string
}

func (s *Store) ProductBin() service.SoftDeleteStore[models.Product] {
	return &softDeleteTable[models.Product]{
		s:      s,
		entity: "product",
		table:  "products",
		afterDelete: `
			UPDATE low_stock_alerts
			SET is_resolved = TRUE, resolved_at = $2, resolved_by = NULL
			WHERE sku = (SELECT sku FROM products WHERE id = $1) AND NOT is_resolved`,
		beforePurge: []string{`
			UPDATE low_stock_alerts
			SET is_resolved = TRUE, resolved_at = NOW(), resolved_by = NULL
			WHERE sku = (SELECT sku FROM products WHERE id = $1) AND NOT is_resolved`, `
			INSERT INTO retired_skus (sku)
			SELECT sku FROM products WHERE id = $1
			ON CONFLICT (sku) DO NOTHING`,
		},
	}
}

func (s *Store) UserBin() service.SoftDeleteStore[models.User] {
	return &softDeleteTable[models.User]{s: s, entity: "user", table: "users"}
}

func (b *softDeleteTable[T]) Get(ctx context.Context, id int64) (*T, error) {
	var v T
	err := b.s.db.GetContext(ctx, &v, fmt.Sprintf("SELECT * FROM %s WHERE id = $1", b.table), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("%s %d not found", b.entity, id)
	}
	if err != nil {
		return nil, classify(err, "get "+b.entity)
	}
	return &v, nil
}

func (b *softDeleteTable[T]) lockRow(ctx context.Context, tx *sqlx.Tx, id int64) (*T, error) {
	var v T
	err := tx.GetContext(ctx, &v, fmt.Sprintf("SELECT * FROM %s WHERE id = $1 FOR UPDATE", b.table), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("%s %d not found", b.entity, id)
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (b *softDeleteTable[T]) SoftDelete(ctx context.Context, id int64, at time.Time) (*T, error) {
	var updated T
	err := b.s.inTx(ctx, "delete "+b.entity, func(tx *sqlx.Tx) error {
		cur, err := b.lockRow(ctx, tx, id)
		if err != nil {
			return err
		}
		if (*cur).IsDeleted() {
			return apperr.New(apperr.KindAlreadyDeleted, "%s %d is already deleted", b.entity, id)
		}

		err = tx.GetContext(ctx, &updated, fmt.Sprintf(
			"UPDATE %s SET is_deleted = TRUE, deleted_at = $1 WHERE id = $2 RETURNING *", b.table), at, id)
		if err != nil || b.afterDelete == "" {
			return err
		}
		_, err = tx.ExecContext(ctx, b.afterDelete, id, at)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Restore clears the deleted flag. The partial unique indexes reject a
// restore that would duplicate an active name or email.
func (b *softDeleteTable[T]) Restore(ctx context.Context, id int64, expiredAt time.Time) (*T, error) {
	var updated T
	err := b.s.inTx(ctx, "restore "+b.entity, func(tx *sqlx.Tx) error {
		cur, err := b.lockRow(ctx, tx, id)
		if err != nil {
			return err
		}
		if !(*cur).IsDeleted() {
			return apperr.New(apperr.KindNotDeleted, "%s %d is not deleted", b.entity, id)
		}
		if at := (*cur).DeletedTime(); at != nil && !at.After(expiredAt) {
			return apperr.Conflict("%s %d is past its retention window", b.entity, id)
		}

		return tx.GetContext(ctx, &updated, fmt.Sprintf(
			"UPDATE %s SET is_deleted = FALSE, deleted_at = NULL WHERE id = $1 RETURNING *", b.table), id)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (b *softDeleteTable[T]) Purge(ctx context.Context, id int64, expiredAt *time.Time) error {
	return b.s.inTx(ctx, "purge "+b.entity, func(tx *sqlx.Tx) error {
		cur, err := b.lockRow(ctx, tx, id)
		if err != nil {
			return err
		}
		if !(*cur).IsDeleted() {
			return apperr.New(apperr.KindNotDeleted, "%s %d is not deleted", b.entity, id)
		}
		if expiredAt != nil {
			at := (*cur).DeletedTime()
			if at == nil || at.After(*expiredAt) {
				return apperr.Conflict("%s %d is still within its retention window", b.entity, id)
			}
		}

		for _, stmt := range b.beforePurge {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return err
			}
		}
		_, err = tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", b.table), id)
		return err
	})
}

// ListDeleted returns deleted records, most recently deleted first
func (b *softDeleteTable[T]) ListDeleted(ctx context.Context) ([]T, error) {
	out := []T{}
	query := fmt.Sprintf(
		"SELECT * FROM %s WHERE is_deleted ORDER BY deleted_at DESC NULLS LAST, id DESC", b.table)
	if err := b.s.db.SelectContext(ctx, &out, query); err != nil {
		return nil, classify(err, "list deleted "+b.entity+"s")
	}
	return out, nil
}
