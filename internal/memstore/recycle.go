package memstore

import (
	"context"
	"sort"
	"time"

	"inventory-service/internal/apperr"
	"inventory-service/internal/models"
	"inventory-service/internal/service"
)

// bin implements service.SoftDeleteStore over one of the Store's maps. The
// accessor funcs are called with Store.mu held.
type bin[T models.SoftDeletable] struct {
	s      *Store
	entity string

	// lockKey resolves the key lock guarding id.
	lockKey func(id int64) (string, bool)
	state   func(id int64) (*models.SoftDelete, bool)
	value   func(id int64) T
	all     func() []T
	remove  func(id int64)
	// deleted runs after a soft delete, optional.
	deleted func(id int64, at time.Time)
	// restorable rejects a restore that would break a uniqueness rule.
	restorable func(id int64) error
}

func (s *Store) ProductBin() service.SoftDeleteStore[models.Product] {
	return &bin[models.Product]{
		s:      s,
		entity: "product",
		lockKey: func(id int64) (string, bool) {
			sku, ok := s.productIDs[id]
			return productKey(sku), ok
		},
		state: func(id int64) (*models.SoftDelete, bool) {
			sku, ok := s.productIDs[id]
			if !ok {
				return nil, false
			}
			return &s.products[sku].SoftDelete, true
		},
		value: func(id int64) models.Product {
			return *s.products[s.productIDs[id]]
		},
		all: func() []models.Product {
			out := make([]models.Product, 0, len(s.products))
			for _, p := range s.products {
				out = append(out, *p)
			}
			return out
		},
		remove: func(id int64) {
			// ledger rows and alerts stay as history, so the sku is retired
			sku := s.productIDs[id]
			s.closeAlert(sku, time.Now())
			s.retired[sku] = struct{}{}
			delete(s.products, sku)
			delete(s.productIDs, id)
		},
		deleted: func(id int64, at time.Time) {
			s.closeAlert(s.productIDs[id], at)
		},
		restorable: func(id int64) error {
			p := s.products[s.productIDs[id]]
			if s.activeNameTaken(p.Name, id) {
				return apperr.Conflict("an active product named %q already exists", p.Name)
			}
			return nil
		},
	}
}

func (s *Store) UserBin() service.SoftDeleteStore[models.User] {
	return &bin[models.User]{
		s:      s,
		entity: "user",
		lockKey: func(id int64) (string, bool) {
			_, ok := s.users[id]
			return userKey(id), ok
		},
		state: func(id int64) (*models.SoftDelete, bool) {
			u, ok := s.users[id]
			if !ok {
				return nil, false
			}
			return &u.SoftDelete, true
		},
		value: func(id int64) models.User {
			return *s.users[id]
		},
		all: func() []models.User {
			out := make([]models.User, 0, len(s.users))
			for _, u := range s.users {
				out = append(out, *u)
			}
			return out
		},
		remove: func(id int64) {
			delete(s.users, id)
		},
		restorable: func(id int64) error {
			u := s.users[id]
			if s.activeEmailTaken(u.Email, id) {
				return apperr.Conflict("an active user with email %s already exists", u.Email)
			}
			return nil
		},
	}
}

func (b *bin[T]) lock(ctx context.Context, id int64) (func(), error) {
	b.s.mu.RLock()
	key, ok := b.lockKey(id)
	b.s.mu.RUnlock()
	if !ok {
		return nil, apperr.NotFound("%s %d not found", b.entity, id)
	}
	return b.s.lock(ctx, key)
}

func (b *bin[T]) Get(ctx context.Context, id int64) (*T, error) {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()

	if _, ok := b.state(id); !ok {
		return nil, apperr.NotFound("%s %d not found", b.entity, id)
	}
	v := b.value(id)
	return &v, nil
}

func (b *bin[T]) SoftDelete(ctx context.Context, id int64, at time.Time) (*T, error) {
	unlock, err := b.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	sd, ok := b.state(id)
	if !ok {
		return nil, apperr.NotFound("%s %d not found", b.entity, id)
	}
	if sd.Deleted {
		return nil, apperr.New(apperr.KindAlreadyDeleted, "%s %d is already deleted", b.entity, id)
	}

	sd.MarkDeleted(at)
	if b.deleted != nil {
		b.deleted(id, at)
	}
	v := b.value(id)
	return &v, nil
}

func (b *bin[T]) Restore(ctx context.Context, id int64, expiredAt time.Time) (*T, error) {
	unlock, err := b.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	sd, ok := b.state(id)
	if !ok {
		return nil, apperr.NotFound("%s %d not found", b.entity, id)
	}
	if !sd.Deleted {
		return nil, apperr.New(apperr.KindNotDeleted, "%s %d is not deleted", b.entity, id)
	}
	if sd.DeletedAt != nil && !sd.DeletedAt.After(expiredAt) {
		return nil, apperr.Conflict("%s %d is past its retention window", b.entity, id)
	}
	if err := b.restorable(id); err != nil {
		return nil, err
	}

	sd.Clear()
	v := b.value(id)
	return &v, nil
}

func (b *bin[T]) Purge(ctx context.Context, id int64, expiredAt *time.Time) error {
	unlock, err := b.lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	sd, ok := b.state(id)
	if !ok {
		return apperr.NotFound("%s %d not found", b.entity, id)
	}
	if !sd.Deleted {
		return apperr.New(apperr.KindNotDeleted, "%s %d is not deleted", b.entity, id)
	}
	if expiredAt != nil && (sd.DeletedAt == nil || sd.DeletedAt.After(*expiredAt)) {
		return apperr.Conflict("%s %d is still within its retention window", b.entity, id)
	}

	b.remove(id)
	return nil
}

func (b *bin[T]) ListDeleted(ctx context.Context) ([]T, error) {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()

	out := make([]T, 0)
	for _, v := range b.all() {
		if v.IsDeleted() {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := out[i].DeletedTime(), out[j].DeletedTime()
		switch {
		case di == nil:
			return false
		case dj == nil:
			return true
		case !di.Equal(*dj):
			return di.After(*dj)
		}
		return out[i].EntityID() > out[j].EntityID()
	})
	return out, nil
}
