package models

import (
	"encoding/json"
	"testing"
	"time"

	"inventory-service/internal/apperr"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyMovement(t *testing.T) {
	qty, err := ApplyMovement(20, StockOut, 15)
	require.NoError(t, err)
	assert.Equal(t, 5, qty)

	qty, err = ApplyMovement(5, StockIn, 10)
	require.NoError(t, err)
	assert.Equal(t, 15, qty)

	qty, err = ApplyMovement(15, StockOut, 15)
	require.NoError(t, err)
	assert.Equal(t, 0, qty)
}

func TestApplyMovementRejects(t *testing.T) {
	_, err := ApplyMovement(15, StockOut, 25)
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)

	_, err = ApplyMovement(15, StockIn, 0)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = ApplyMovement(15, StockOut, -3)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = ApplyMovement(15, TransactionType("ADJUSTMENT"), 1)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestMovementStampNeverPrecedesLatest(t *testing.T) {
	base := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	m := Movement{At: base}

	assert.Equal(t, base, m.Stamp(time.Time{}))
	assert.Equal(t, base, m.Stamp(base.Add(-time.Second)))
	assert.Equal(t, base.Add(time.Second), m.Stamp(base.Add(time.Second)))
}

func TestDecideAlert(t *testing.T) {
	open := &LowStockAlert{CurrentQuantity: 5, Threshold: 10}

	assert.Equal(t, AlertCreate, DecideAlert(9, 10, nil, true))
	assert.Equal(t, AlertNone, DecideAlert(10, 10, nil, true))
	assert.Equal(t, AlertNone, DecideAlert(5, 10, open, true))
	assert.Equal(t, AlertRefresh, DecideAlert(3, 10, open, true))
	assert.Equal(t, AlertResolve, DecideAlert(15, 10, open, true))
	assert.Equal(t, AlertNone, DecideAlert(15, 10, open, false))
}

func TestDaysRemaining(t *testing.T) {
	deletedAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	days, ok := DaysRemaining(&deletedAt, RetentionWindow, deletedAt)
	assert.True(t, ok)
	assert.Equal(t, 30, days)

	days, _ = DaysRemaining(&deletedAt, RetentionWindow, deletedAt.Add(time.Hour))
	assert.Equal(t, 30, days)

	days, _ = DaysRemaining(&deletedAt, RetentionWindow, deletedAt.Add(29*24*time.Hour))
	assert.Equal(t, 1, days)

	days, _ = DaysRemaining(&deletedAt, RetentionWindow, deletedAt.Add(45*24*time.Hour))
	assert.Equal(t, 0, days)

	_, ok = DaysRemaining(nil, RetentionWindow, deletedAt)
	assert.False(t, ok)
}

func TestExpired(t *testing.T) {
	deletedAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, Expired(&deletedAt, RetentionWindow, deletedAt.Add(29*24*time.Hour)))
	assert.True(t, Expired(&deletedAt, RetentionWindow, deletedAt.Add(RetentionWindow+time.Second)))
	assert.True(t, Expired(&deletedAt, RetentionWindow, deletedAt.Add(RetentionWindow)))
	assert.False(t, Expired(nil, RetentionWindow, deletedAt.Add(365*24*time.Hour)))
}

func TestProductJSONIncludesDerivedFields(t *testing.T) {
	p := Product{
		SKU:               "SKU-000001",
		Name:              "Desk Lamp",
		UnitPrice:         decimal.RequireFromString("12.50"),
		Quantity:          4,
		MinStockThreshold: 5,
	}

	raw, err := json.Marshal(p)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "SKU-000001", out["sku"])
	assert.Equal(t, "Desk Lamp", out["productName"])
	assert.Equal(t, true, out["lowStock"])
	assert.Equal(t, false, out["deleted"])
	assert.Contains(t, out, "totalValue")
	assert.True(t, p.TotalValue().Equal(decimal.RequireFromString("50")))
}

func TestParseHelpers(t *testing.T) {
	r, ok := ParseRole("admin")
	assert.True(t, ok)
	assert.Equal(t, RoleAdmin, r)
	assert.True(t, r.IsAdmin())
	assert.False(t, RoleEmployee.IsAdmin())

	_, ok = ParseRole("owner")
	assert.False(t, ok)

	tt, ok := ParseTransactionType("stock_out")
	assert.True(t, ok)
	assert.Equal(t, StockOut, tt)

	assert.True(t, ValidCategory("Electronics"))
	assert.False(t, ValidCategory("electronics"))
}
