package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"inventory-service/internal/broker"
	"inventory-service/internal/models"
	"inventory-service/internal/service"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]string
	released int
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]string)}
}

func (l *fakeLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return "", false, nil
	}
	l.held[key] = "token-" + key
	return l.held[key], true, nil
}

func (l *fakeLocker) ReleaseLock(ctx context.Context, key, token string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] != token {
		return false, nil
	}
	delete(l.held, key)
	l.released++
	return true, nil
}

func (l *fakeLocker) ExtendLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held[key] == token, nil
}

type fakeBin struct {
	entity string
	purged int
	err    error
	calls  int32
}

func (b *fakeBin) Entity() string { return b.entity }

func (b *fakeBin) SweepExpired(ctx context.Context) (int, error) {
	atomic.AddInt32(&b.calls, 1)
	return b.purged, b.err
}

func TestSweepAllContinuesPastFailures(t *testing.T) {
	products := &fakeBin{entity: models.EntityProduct, err: errors.New("db down")}
	users := &fakeBin{entity: models.EntityUser, purged: 2}

	purged, err := SweepAll(context.Background(), products, users)
	assert.EqualError(t, err, "db down")
	assert.Equal(t, 2, purged[models.EntityUser])
	assert.Equal(t, int32(1), atomic.LoadInt32(&users.calls))
}

func TestRunOnceSkipsWhenLocked(t *testing.T) {
	locker := newFakeLocker()
	bin := &fakeBin{entity: models.EntityProduct}
	job := NewSweeper(time.Hour, locker, bin)

	ran, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 1, locker.released)

	_, _, _ = locker.AcquireLock(context.Background(), "job:recycle-sweep", time.Minute)
	ran, err = job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Equal(t, int32(1), atomic.LoadInt32(&bin.calls))
}

func TestRunOnceWithoutLocker(t *testing.T) {
	bin := &fakeBin{entity: models.EntityUser}
	job := NewSweeper(time.Hour, nil, bin)

	ran, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, int32(1), atomic.LoadInt32(&bin.calls))
}

type fakeScanner struct {
	calls int32
}

func (s *fakeScanner) ScanAll(ctx context.Context) (*service.ScanResult, error) {
	atomic.AddInt32(&s.calls, 1)
	return &service.ScanResult{}, nil
}

func TestPeriodicJobRunsUntilStopped(t *testing.T) {
	scanner := &fakeScanner{}
	job := NewLowStockScanner(10*time.Millisecond, nil, scanner)

	job.Start(context.Background())
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&scanner.calls) >= 3
	}, time.Second, 5*time.Millisecond)
	job.Stop()

	after := atomic.LoadInt32(&scanner.calls)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&scanner.calls))
}

type recordingNotifier struct {
	lowStock   []*models.AlertCreatedEvent
	recipients []string
	thresholds int
}

func (n *recordingNotifier) NotifyLowStock(ctx context.Context, e *models.AlertCreatedEvent, recipients []string) error {
	n.lowStock = append(n.lowStock, e)
	n.recipients = recipients
	return nil
}

func (n *recordingNotifier) NotifyThresholdUpdated(ctx context.Context, e *models.ThresholdUpdatedEvent, recipients []string) error {
	n.thresholds++
	return nil
}

type staticRecipients []string

func (r staticRecipients) AdminEmails(ctx context.Context) ([]string, error) {
	return r, nil
}

// replayConsumer hands a fixed set of messages to the handler.
type replayConsumer struct {
	messages []kafka.Message
	failed   int
}

func (c *replayConsumer) StartConsuming(ctx context.Context, handler broker.MessageHandler) error {
	for _, m := range c.messages {
		if err := handler(ctx, m); err != nil {
			c.failed++
		}
	}
	return nil
}

func (c *replayConsumer) Close() error { return nil }

func encode(t *testing.T, v interface{}) kafka.Message {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return kafka.Message{Value: raw}
}

func TestNotificationWorkerForwardsAlerts(t *testing.T) {
	consumer := &replayConsumer{messages: []kafka.Message{
		encode(t, &models.AlertCreatedEvent{
			BaseEvent: models.BaseEvent{EventType: models.EventTypeAlertCreated},
			SKU:       "SKU-1",
		}),
		encode(t, &models.StockMovedEvent{
			BaseEvent: models.BaseEvent{EventType: models.EventTypeStockMoved},
		}),
		encode(t, &models.ThresholdUpdatedEvent{
			BaseEvent: models.BaseEvent{EventType: models.EventTypeThresholdUpdated},
		}),
	}}
	notifier := &recordingNotifier{}

	w := NewNotificationWorker(consumer, notifier, staticRecipients{"admin@example.com"})
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Stop())

	assert.Zero(t, consumer.failed)
	require.Len(t, notifier.lowStock, 1)
	assert.Equal(t, "SKU-1", notifier.lowStock[0].SKU)
	assert.Equal(t, []string{"admin@example.com"}, notifier.recipients)
	assert.Equal(t, 1, notifier.thresholds)
}

func TestNotificationWorkerWithoutRecipients(t *testing.T) {
	consumer := &replayConsumer{messages: []kafka.Message{
		encode(t, &models.AlertCreatedEvent{BaseEvent: models.BaseEvent{EventType: models.EventTypeAlertCreated}}),
	}}
	notifier := &recordingNotifier{}

	w := NewNotificationWorker(consumer, notifier, staticRecipients{})
	require.NoError(t, w.Start(context.Background()))
	assert.Empty(t, notifier.lowStock)
}
