package worker

import (
	"context"
	"sync"
	"time"

	"inventory-service/internal/service"
	"inventory-service/internal/util"

	"go.uber.org/zap"
)

// JobLocker is a cross-replica mutex for periodic jobs.
type JobLocker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, key, token string) (bool, error)
	ExtendLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
}

// Sweepable is a recycle bin the sweeper can purge.
type Sweepable interface {
	Entity() string
	SweepExpired(ctx context.Context) (int, error)
}

// Scanner re-evaluates low-stock alerts for the whole catalogue.
type Scanner interface {
	ScanAll(ctx context.Context) (*service.ScanResult, error)
}

// PeriodicJob runs fn every interval until stopped. With a locker, only one
// replica runs a given job at a time.
type PeriodicJob struct {
	name     string
	interval time.Duration
	lockTTL  time.Duration
	locker   JobLocker
	fn       func(ctx context.Context) error
	logger   *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPeriodicJob creates a job. locker may be nil.
func NewPeriodicJob(name string, interval time.Duration, locker JobLocker, fn func(ctx context.Context) error) *PeriodicJob {
	lockTTL := interval
	if lockTTL > 10*time.Minute {
		lockTTL = 10 * time.Minute
	}
	if lockTTL < time.Second {
		lockTTL = time.Second
	}
	return &PeriodicJob{
		name:     name,
		interval: interval,
		lockTTL:  lockTTL,
		locker:   locker,
		fn:       fn,
		logger:   util.GetLogger(),
	}
}

// NewSweeper purges expired records from every bin.
func NewSweeper(interval time.Duration, locker JobLocker, bins ...Sweepable) *PeriodicJob {
	return NewPeriodicJob("recycle-sweep", interval, locker, func(ctx context.Context) error {
		_, err := SweepAll(ctx, bins...)
		return err
	})
}

// NewLowStockScanner re-evaluates every active product.
func NewLowStockScanner(interval time.Duration, locker JobLocker, scanner Scanner) *PeriodicJob {
	return NewPeriodicJob("low-stock-scan", interval, locker, func(ctx context.Context) error {
		_, err := scanner.ScanAll(ctx)
		return err
	})
}

// SweepAll sweeps each bin and reports purged counts by entity. A failing
// bin does not stop the others; the first error is returned.
func SweepAll(ctx context.Context, bins ...Sweepable) (map[string]int, error) {
	purged := make(map[string]int, len(bins))
	var firstErr error
	for _, b := range bins {
		n, err := b.SweepExpired(ctx)
		purged[b.Entity()] = n
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return purged, firstErr
}

// Start runs the job in the background, once immediately and then on
// every tick.
func (j *PeriodicJob) Start(ctx context.Context) {
	ctx, j.cancel = context.WithCancel(ctx)
	j.logger.Info("Starting periodic job",
		zap.String("job", j.name),
		zap.Duration("interval", j.interval))

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()

		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			if _, err := j.RunOnce(ctx); err != nil && ctx.Err() == nil {
				j.logger.Error("Periodic job failed",
					zap.String("job", j.name),
					zap.Error(err))
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop cancels the job and waits for a running iteration to finish.
func (j *PeriodicJob) Stop() {
	j.logger.Info("Stopping periodic job", zap.String("job", j.name))
	if j.cancel != nil {
		j.cancel()
	}
	j.wg.Wait()
}

// RunOnce runs one iteration. It reports false when another replica holds
// the job lock.
func (j *PeriodicJob) RunOnce(ctx context.Context) (bool, error) {
	if j.locker == nil {
		return true, j.fn(ctx)
	}

	key := "job:" + j.name
	token, ok, err := j.locker.AcquireLock(ctx, key, j.lockTTL)
	if err != nil {
		j.logger.Warn("Job lock unavailable, running unlocked",
			zap.String("job", j.name),
			zap.Error(err))
		return true, j.fn(ctx)
	}
	if !ok {
		j.logger.Debug("Job already running elsewhere", zap.String("job", j.name))
		return false, nil
	}

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go j.keepAlive(runCtx, key, token, done)

	defer func() {
		stop()
		<-done
		if _, err := j.locker.ReleaseLock(context.Background(), key, token); err != nil {
			j.logger.Warn("Failed to release job lock",
				zap.String("job", j.name),
				zap.Error(err))
		}
	}()

	return true, j.fn(ctx)
}

// keepAlive extends the job lock at half its TTL until ctx ends.
func (j *PeriodicJob) keepAlive(ctx context.Context, key, token string, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(j.lockTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := j.locker.ExtendLock(ctx, key, token, j.lockTTL)
			if err != nil || !ok {
				j.logger.Warn("Lost job lock",
					zap.String("job", j.name),
					zap.Error(err))
				return
			}
		}
	}
}
