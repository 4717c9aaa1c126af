package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"inventory-service/internal/apperr"
	"inventory-service/internal/models"
	"inventory-service/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductDeleteRestoreRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createProduct(t, "SKU-1", 12, 3)

	before, err := f.repo.GetProductByID(ctx, p.ID)
	require.NoError(t, err)

	deleted, err := f.products.Delete(ctx, admin, p.ID)
	require.NoError(t, err)
	assert.True(t, deleted.Deleted)
	require.NotNil(t, deleted.DeletedAt)

	_, err = f.products.Delete(ctx, admin, p.ID)
	assert.ErrorIs(t, err, apperr.ErrAlreadyDeleted)

	f.clock.Advance(3 * 24 * time.Hour)
	restored, err := f.products.Restore(ctx, admin, p.ID)
	require.NoError(t, err)
	assert.Equal(t, *before, *restored)

	_, err = f.products.Restore(ctx, admin, p.ID)
	assert.ErrorIs(t, err, apperr.ErrNotDeleted)
}

func TestUserDeleteRestoreRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.users.CreateUser(ctx, admin, &service.CreateUserInput{
		Email: "emp@example.com", FirstName: "Ana", LastName: "Silva", Role: "EMPLOYEE",
	})
	require.NoError(t, err)

	_, err = f.userBin.Delete(ctx, admin, u.ID)
	require.NoError(t, err)

	restored, err := f.userBin.Restore(ctx, admin, u.ID)
	require.NoError(t, err)
	assert.Equal(t, *u, *restored)
}

func TestPermanentDeleteRequiresDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createProduct(t, "SKU-1", 12, 3)

	err := f.products.PermanentDelete(ctx, admin, p.ID)
	assert.ErrorIs(t, err, apperr.ErrNotDeleted)

	_, err = f.products.Delete(ctx, admin, p.ID)
	require.NoError(t, err)
	require.NoError(t, f.products.PermanentDelete(ctx, admin, p.ID))

	_, err = f.repo.GetProductByID(ctx, p.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	txns, err := f.reports.QueryTransactions(ctx, admin, service.TransactionQuery{SKU: "SKU-1"})
	require.NoError(t, err)
	assert.Len(t, txns, 1, "ledger history outlives the product")
}

func TestSweepRespectsRetentionWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createProduct(t, "SKU-1", 12, 3)

	_, err := f.products.Delete(ctx, admin, p.ID)
	require.NoError(t, err)

	f.clock.Advance(29 * 24 * time.Hour)
	purged, err := f.products.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, purged)

	entries, err := f.products.ListDeleted(ctx, admin)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].DaysRemaining)
	assert.Equal(t, 1, *entries[0].DaysRemaining)

	f.clock.Advance(24*time.Hour + time.Second)
	purged, err = f.products.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	_, err = f.repo.GetProductByID(ctx, p.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	purged, err = f.products.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, purged)
}

func TestRestoreAfterRetentionConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createProduct(t, "SKU-1", 12, 3)

	_, err := f.products.Delete(ctx, admin, p.ID)
	require.NoError(t, err)

	f.clock.Advance(models.RetentionWindow + time.Second)
	_, err = f.products.Restore(ctx, admin, p.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestMasterAdminIsProtected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := &models.User{Email: "root2@example.com", Role: models.RoleMasterAdmin, Status: models.UserStatusActive}
	require.NoError(t, f.store.CreateUser(ctx, other))

	_, err := f.userBin.Delete(ctx, master, other.ID)
	assert.ErrorIs(t, err, apperr.ErrProtectedEntity)

	_, err = f.userBin.Delete(ctx, admin, other.ID)
	assert.ErrorIs(t, err, apperr.ErrProtectedEntity)

	got, err := f.store.GetUserByID(ctx, other.ID)
	require.NoError(t, err)
	assert.False(t, got.Deleted)
	assert.Nil(t, got.DeletedAt)
}

func TestAdminManagesOnlyEmployees(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	peer, err := f.users.CreateUser(ctx, master, &service.CreateUserInput{
		Email: "peer@example.com", FirstName: "P", LastName: "Q", Role: "ADMIN",
	})
	require.NoError(t, err)

	_, err = f.userBin.Delete(ctx, admin, peer.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.userBin.Delete(ctx, employee, peer.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.userBin.Delete(ctx, master, peer.ID)
	require.NoError(t, err)

	entries, err := f.userBin.ListDeleted(ctx, admin)
	require.NoError(t, err)
	assert.Empty(t, entries, "admins only see employee accounts")

	entries, err = f.userBin.ListDeleted(ctx, master)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestUnknownDeletedAtIsRetained(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := &models.User{Email: "legacy@example.com", Role: models.RoleEmployee}
	u.Deleted = true
	require.NoError(t, f.store.CreateUser(ctx, u))

	f.clock.Advance(365 * 24 * time.Hour)
	purged, err := f.userBin.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, purged)

	entries, err := f.userBin.ListDeleted(ctx, master)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].DaysRemaining)

	_, ok := f.userBin.DaysRemaining(entries[0].Record)
	assert.False(t, ok)
}

func TestRecycleEventsPublished(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createProduct(t, "SKU-1", 1, 0)

	_, err := f.products.Delete(ctx, admin, p.ID)
	require.NoError(t, err)
	_, err = f.products.Restore(ctx, admin, p.ID)
	require.NoError(t, err)
	_, err = f.products.Delete(ctx, admin, p.ID)
	require.NoError(t, err)
	require.NoError(t, f.products.PermanentDelete(ctx, master, p.ID))

	assert.Equal(t, 2, f.events.count(models.EventTypeEntityDeleted))
	assert.Equal(t, 1, f.events.count(models.EventTypeEntityRestored))
	assert.Equal(t, 1, f.events.count(models.EventTypeEntityPurged))
}

func TestEmployeeCannotDeleteProducts(t *testing.T) {
	f := newFixture(t)
	p := f.createProduct(t, "SKU-1", 1, 0)

	_, err := f.products.Delete(context.Background(), employee, p.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestSweepAndRestoreRaceAtRetentionBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 20
	products := make([]*models.Product, n)
	for i := range products {
		products[i] = f.createProduct(t, fmt.Sprintf("SKU-%d", i), 12, 3)
	}
	// even products reach the end of their window exactly at the sweep,
	// odd ones one second later
	for i := 0; i < n; i += 2 {
		_, err := f.products.Delete(ctx, admin, products[i].ID)
		require.NoError(t, err)
	}
	f.clock.Advance(time.Second)
	for i := 1; i < n; i += 2 {
		_, err := f.products.Delete(ctx, admin, products[i].ID)
		require.NoError(t, err)
	}
	f.clock.Advance(f.opts.Retention - time.Second)

	var (
		wg       sync.WaitGroup
		start    = make(chan struct{})
		restored = make([]error, n)
	)
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.products.SweepExpired(ctx)
			assert.NoError(t, err)
		}()
	}
	for i := range products {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, restored[i] = f.products.Restore(ctx, admin, products[i].ID)
		}(i)
	}
	close(start)
	wg.Wait()

	for i, p := range products {
		got, err := f.repo.GetProductByID(ctx, p.ID)
		if restored[i] == nil {
			require.NoError(t, err, "product %d restored but gone", p.ID)
			assert.False(t, got.Deleted)
			assert.Equal(t, 1, i%2, "product %d restored after its window", p.ID)
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrNotFound, "product %d failed to restore but survived", p.ID)
		assert.Contains(t, []apperr.Kind{apperr.KindConflict, apperr.KindNotFound}, apperr.KindOf(restored[i]))
	}
}

func TestDeletingProductClosesItsAlert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createProduct(t, "SKU-1", 2, 5)
	require.Len(t, f.activeAlerts(t), 1)

	_, err := f.products.Delete(ctx, admin, p.ID)
	require.NoError(t, err)
	assert.Empty(t, f.activeAlerts(t))

	_, err = f.products.Restore(ctx, admin, p.ID)
	require.NoError(t, err)
	alerts := f.activeAlerts(t)
	require.Len(t, alerts, 1)
	assert.Equal(t, "SKU-1", alerts[0].SKU)

	_, err = f.products.Delete(ctx, admin, p.ID)
	require.NoError(t, err)
	require.NoError(t, f.products.PermanentDelete(ctx, admin, p.ID))
	assert.Empty(t, f.activeAlerts(t))
}
