package service

import (
	"context"
	"time"

	"inventory-service/internal/apperr"
	"inventory-service/internal/models"
	"inventory-service/internal/util"

	"go.uber.org/zap"
)

// RecycleEntry is a deleted record with its remaining retention.
// DaysRemaining is nil when the deletion time is unknown.
type RecycleEntry[T models.SoftDeletable] struct {
	Record        T    `json:"record"`
	DaysRemaining *int `json:"daysRemaining"`
}

// BinPermissions names the permission each transition requires.
type BinPermissions struct {
	View    Permission
	Delete  Permission
	Restore Permission
	Purge   Permission
}

// RecycleBin is the one soft-delete lifecycle shared by every deletable
// entity: Active → Deleted → (Restored | Purged).
type RecycleBin[T models.SoftDeletable] struct {
	entity string
	store  SoftDeleteStore[T]
	events EventPublisher
	cache  Cache
	perms  BinPermissions
	opts   Options
	logger *zap.Logger

	// protect rejects records that may never leave the active state.
	protect func(record *T) error
	// scope limits which records an actor may manage.
	scope func(actor Actor, record *T) error
	// restored runs after a successful restore.
	restored func(ctx context.Context, record *T)
}

// NewProductBin creates the recycle bin for products. Deleting a product
// closes its open alert, so a restored product is evaluated again.
func NewProductBin(store SoftDeleteStore[models.Product], alerts *AlertService, events EventPublisher, cache Cache, opts Options) *RecycleBin[models.Product] {
	b := &RecycleBin[models.Product]{
		entity: models.EntityProduct,
		store:  store,
		events: events,
		cache:  cache,
		perms: BinPermissions{
			View:    PermProductView,
			Delete:  PermProductDelete,
			Restore: PermProductRestore,
			Purge:   PermProductPurge,
		},
		opts:   opts,
		logger: util.GetLogger(),
	}
	if alerts != nil {
		b.restored = func(ctx context.Context, p *models.Product) {
			if _, err := alerts.Evaluate(ctx, p.SKU); err != nil {
				b.logger.Warn("Failed to evaluate restored product",
					zap.String("sku", p.SKU), zap.Error(err))
			}
		}
	}
	return b
}

// NewUserBin creates the recycle bin for user accounts. MASTER_ADMIN
// accounts are protected and ADMIN actors only manage EMPLOYEE accounts.
func NewUserBin(store SoftDeleteStore[models.User], events EventPublisher, opts Options) *RecycleBin[models.User] {
	return &RecycleBin[models.User]{
		entity: models.EntityUser,
		store:  store,
		events: events,
		perms: BinPermissions{
			View:    PermUserView,
			Delete:  PermUserDelete,
			Restore: PermUserRestore,
			Purge:   PermUserPurge,
		},
		opts:   opts,
		logger: util.GetLogger(),
		protect: func(u *models.User) error {
			if u.Role == models.RoleMasterAdmin {
				return apperr.New(apperr.KindProtectedEntity, "MASTER_ADMIN accounts cannot be deleted")
			}
			return nil
		},
		scope: func(actor Actor, u *models.User) error {
			return authorizeUserTarget(actor, u.Role)
		},
	}
}

// Entity names the record kind, e.g. "PRODUCT".
func (b *RecycleBin[T]) Entity() string { return b.entity }

func (b *RecycleBin[T]) checkProtected(record *T) error {
	if b.protect == nil {
		return nil
	}
	return b.protect(record)
}

// load fetches the record and runs the per-record guards for actor.
func (b *RecycleBin[T]) load(ctx context.Context, actor Actor, id int64) (*T, error) {
	record, err := b.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := b.checkProtected(record); err != nil {
		return nil, err
	}
	if b.scope != nil {
		if err := b.scope(actor, record); err != nil {
			return nil, err
		}
	}
	return record, nil
}

// Delete moves an active record into the recycle bin.
func (b *RecycleBin[T]) Delete(ctx context.Context, actor Actor, id int64) (*T, error) {
	ctx, span := util.StartSpan(ctx, "RecycleBin.Delete")
	defer span.End()

	if err := Authorize(actor, b.perms.Delete); err != nil {
		return nil, err
	}
	if _, err := b.load(ctx, actor, id); err != nil {
		return nil, err
	}

	record, err := withRetry(ctx, b.opts, "soft_delete", func() (*T, error) {
		return b.store.SoftDelete(ctx, id, b.opts.now())
	})
	if err != nil {
		return nil, err
	}

	b.record(ctx, actor, id, "delete", models.EventTypeEntityDeleted)
	return record, nil
}

// Restore returns a deleted record to the active state while it is still
// inside the retention window.
func (b *RecycleBin[T]) Restore(ctx context.Context, actor Actor, id int64) (*T, error) {
	ctx, span := util.StartSpan(ctx, "RecycleBin.Restore")
	defer span.End()

	if err := Authorize(actor, b.perms.Restore); err != nil {
		return nil, err
	}
	if _, err := b.load(ctx, actor, id); err != nil {
		return nil, err
	}

	record, err := withRetry(ctx, b.opts, "restore", func() (*T, error) {
		return b.store.Restore(ctx, id, b.opts.now().Add(-b.opts.Retention))
	})
	if err != nil {
		return nil, err
	}

	b.record(ctx, actor, id, "restore", models.EventTypeEntityRestored)
	if b.restored != nil {
		b.restored(ctx, record)
	}
	return record, nil
}

// PermanentDelete purges a deleted record immediately.
func (b *RecycleBin[T]) PermanentDelete(ctx context.Context, actor Actor, id int64) error {
	ctx, span := util.StartSpan(ctx, "RecycleBin.PermanentDelete")
	defer span.End()

	if err := Authorize(actor, b.perms.Purge); err != nil {
		return err
	}
	if _, err := b.load(ctx, actor, id); err != nil {
		return err
	}

	_, err := withRetry(ctx, b.opts, "purge", func() (struct{}, error) {
		return struct{}{}, b.store.Purge(ctx, id, nil)
	})
	if err != nil {
		return err
	}

	b.record(ctx, actor, id, "purge", models.EventTypeEntityPurged)
	return nil
}

// SweepExpired purges every record deleted at least one retention window
// before now. Records restored or purged concurrently are skipped, so the
// sweep is safe to repeat.
func (b *RecycleBin[T]) SweepExpired(ctx context.Context) (int, error) {
	ctx, span := util.StartSpan(ctx, "RecycleBin.SweepExpired")
	defer span.End()

	start := time.Now()
	defer func() {
		util.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	deleted, err := b.store.ListDeleted(ctx)
	if err != nil {
		return 0, err
	}

	now := b.opts.now()
	cutoff := now.Add(-b.opts.Retention)
	purged := 0

	for i := range deleted {
		record := &deleted[i]
		if !models.Expired((*record).DeletedTime(), b.opts.Retention, now) {
			continue
		}
		if b.checkProtected(record) != nil {
			continue
		}

		id := (*record).EntityID()
		_, err := withRetry(ctx, b.opts, "sweep_purge", func() (struct{}, error) {
			return struct{}{}, b.store.Purge(ctx, id, &cutoff)
		})
		switch apperr.KindOf(err) {
		case "":
			purged++
			b.record(ctx, Actor{}, id, "sweep", models.EventTypeEntityPurged)
		case apperr.KindNotFound, apperr.KindNotDeleted, apperr.KindConflict:
			// lost a race with restore or another sweeper
		default:
			if ctx.Err() != nil {
				return purged, ctx.Err()
			}
			b.logger.Error("Failed to purge expired record",
				zap.String("entity", b.entity),
				zap.Int64("id", id),
				zap.Error(err))
		}
	}

	if purged > 0 {
		b.logger.Info("Recycle bin swept",
			zap.String("entity", b.entity),
			zap.Int("purged", purged))
	}
	return purged, nil
}

// ListDeleted returns the bin's content, most recently deleted first.
func (b *RecycleBin[T]) ListDeleted(ctx context.Context, actor Actor) ([]RecycleEntry[T], error) {
	ctx, span := util.StartSpan(ctx, "RecycleBin.ListDeleted")
	defer span.End()

	if err := Authorize(actor, b.perms.View); err != nil {
		return nil, err
	}

	deleted, err := b.store.ListDeleted(ctx)
	if err != nil {
		return nil, err
	}

	now := b.opts.now()
	entries := make([]RecycleEntry[T], 0, len(deleted))
	for _, record := range deleted {
		if b.scope != nil && b.scope(actor, &record) != nil {
			continue
		}
		entry := RecycleEntry[T]{Record: record}
		if days, ok := models.DaysRemaining(record.DeletedTime(), b.opts.Retention, now); ok {
			entry.DaysRemaining = &days
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// DaysRemaining reports the whole days left before record is purged.
func (b *RecycleBin[T]) DaysRemaining(record T) (int, bool) {
	return models.DaysRemaining(record.DeletedTime(), b.opts.Retention, b.opts.now())
}

func (b *RecycleBin[T]) record(ctx context.Context, actor Actor, id int64, op, eventType string) {
	util.RecycleOperationsTotal.WithLabelValues(b.entity, op).Inc()
	b.logger.Info("Recycle bin transition",
		zap.String("entity", b.entity),
		zap.String("op", op),
		zap.Int64("id", id),
		zap.Int64("actor_id", actor.ID))

	if b.entity == models.EntityProduct {
		invalidateSummary(ctx, b.cache, b.logger)
	}

	event := &models.RecycleEvent{
		BaseEvent: newBaseEvent(eventType, b.opts.now()),
		Entity:    b.entity,
		EntityID:  id,
		ActorID:   actor.IDRef(),
	}
	if err := b.events.PublishRecycleEvent(ctx, event); err != nil {
		util.EventsPublishFailed.WithLabelValues(eventType).Inc()
		b.logger.Error("Failed to publish recycle event", zap.Error(err))
	}
}
