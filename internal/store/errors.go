package store

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"inventory-service/internal/apperr"

	"github.com/lib/pq"
)

const (
	codeUniqueViolation      pq.ErrorCode = "23505"
	codeSerializationFailure pq.ErrorCode = "40001"
	codeDeadlockDetected     pq.ErrorCode = "40P01"
	codeLockNotAvailable     pq.ErrorCode = "55P03"
)

// classify maps driver errors onto apperr kinds. Errors that already carry a
// kind pass through unchanged.
func classify(err error, what string) error {
	if err == nil {
		return nil
	}

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeLockNotAvailable, codeSerializationFailure, codeDeadlockDetected:
			return apperr.Wrap(apperr.KindBusy, err, "%s: row is locked by another operation", what)
		case codeUniqueViolation:
			return apperr.Wrap(apperr.KindConflict, err, "%s: %s", what, conflictMessage(pqErr))
		}
		if pqErr.Code.Class() == "08" {
			return apperr.Wrap(apperr.KindUnavailable, err, "%s: database unavailable", what)
		}
		return fmt.Errorf("failed to %s: %w", what, err)
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.As(err, &netErr) {
		return apperr.Wrap(apperr.KindUnavailable, err, "%s: database unavailable", what)
	}

	return fmt.Errorf("failed to %s: %w", what, err)
}

func conflictMessage(e *pq.Error) string {
	switch e.Constraint {
	case "products_sku_key":
		return "a product with this sku already exists"
	case "products_active_name_idx":
		return "an active product with this name already exists"
	case "users_active_email_idx":
		return "an active user with this email already exists"
	case "low_stock_alerts_open_idx":
		return "an open alert already exists for this product"
	}
	return "duplicate record"
}
