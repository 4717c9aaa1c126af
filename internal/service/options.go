package service

import (
	"context"
	"time"

	"inventory-service/internal/apperr"
	"inventory-service/internal/models"
	"inventory-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options tunes the core's policies.
type Options struct {
	// AutoResolveAlerts resolves the open alert once quantity recovers to
	// the threshold. When false alerts wait for an admin.
	AutoResolveAlerts bool
	Retention         time.Duration
	LockRetries       int
	RetryBackoff      time.Duration
	SKUPrefix         string
	SKUDigits         int
	DefaultThreshold  int
	IdempotencyTTL    time.Duration
	SummaryTTL        time.Duration
	Clock             func() time.Time
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		AutoResolveAlerts: true,
		Retention:         models.RetentionWindow,
		LockRetries:       3,
		RetryBackoff:      50 * time.Millisecond,
		SKUPrefix:         "SKU-",
		SKUDigits:         6,
		DefaultThreshold:  models.DefaultMinStockThreshold,
		IdempotencyTTL:    24 * time.Hour,
		SummaryTTL:        30 * time.Second,
		Clock:             time.Now,
	}
}

func (o Options) now() time.Time {
	if o.Clock == nil {
		return time.Now()
	}
	return o.Clock()
}

// withRetry runs fn until it succeeds, fails with a non-retryable error, or
// the attempts are exhausted. Backoff grows linearly.
func withRetry[T any](ctx context.Context, o Options, op string, fn func() (T, error)) (T, error) {
	attempts := o.LockRetries
	if attempts < 1 {
		attempts = 1
	}

	var (
		result T
		err    error
	)
	for i := 1; i <= attempts; i++ {
		result, err = fn()
		if err == nil || !apperr.Retryable(err) {
			return result, err
		}

		util.LockRetriesTotal.WithLabelValues(op).Inc()
		if i == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(time.Duration(i) * o.RetryBackoff):
		}
	}

	util.GetLogger().Warn("Giving up after retries",
		zap.String("op", op),
		zap.Int("attempts", attempts),
		zap.Error(err))
	return result, err
}

func newBaseEvent(eventType string, at time.Time) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: at,
	}
}
