package broker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"inventory-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	key   string
	event interface{}
}

type fakeWriter struct {
	out []captured
}

func (w *fakeWriter) PublishEvent(ctx context.Context, key string, event interface{}) error {
	w.out = append(w.out, captured{key: key, event: event})
	return nil
}

func TestEventPublisherKeys(t *testing.T) {
	w := &fakeWriter{}
	ep := NewEventPublisher(w)
	ctx := context.Background()

	require.NoError(t, ep.PublishStockMoved(ctx, &models.StockMovedEvent{SKU: "SKU-1"}))
	require.NoError(t, ep.PublishAlertCreated(ctx, &models.AlertCreatedEvent{SKU: "SKU-1"}))
	require.NoError(t, ep.PublishRecycleEvent(ctx, &models.RecycleEvent{Entity: models.EntityUser, EntityID: 9}))

	require.Len(t, w.out, 3)
	assert.Equal(t, "sku-SKU-1", w.out[0].key)
	assert.Equal(t, "sku-SKU-1", w.out[1].key)
	assert.Equal(t, "USER-9", w.out[2].key)
}

func message(t *testing.T, event interface{}) kafka.Message {
	t.Helper()
	raw, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Value: raw}
}

func TestEventHandlerRoutes(t *testing.T) {
	eh := NewEventHandler()
	ctx := context.Background()

	var gotAlert *models.AlertCreatedEvent
	var gotThreshold *models.ThresholdUpdatedEvent
	eh.OnAlertCreated(func(ctx context.Context, e *models.AlertCreatedEvent) error {
		gotAlert = e
		return nil
	})
	eh.OnThresholdUpdated(func(ctx context.Context, e *models.ThresholdUpdatedEvent) error {
		gotThreshold = e
		return nil
	})

	alert := &models.AlertCreatedEvent{
		BaseEvent:       models.BaseEvent{EventID: "e1", EventType: models.EventTypeAlertCreated, Timestamp: time.Now()},
		AlertID:         4,
		SKU:             "SKU-1",
		CurrentQuantity: 3,
		Threshold:       10,
	}
	require.NoError(t, eh.HandleMessage(ctx, message(t, alert)))
	require.NotNil(t, gotAlert)
	assert.Equal(t, int64(4), gotAlert.AlertID)
	assert.Equal(t, 3, gotAlert.CurrentQuantity)

	threshold := &models.ThresholdUpdatedEvent{
		BaseEvent:    models.BaseEvent{EventID: "e2", EventType: models.EventTypeThresholdUpdated},
		SKU:          "SKU-1",
		OldThreshold: 5,
		NewThreshold: 8,
	}
	require.NoError(t, eh.HandleMessage(ctx, message(t, threshold)))
	require.NotNil(t, gotThreshold)
	assert.Equal(t, 8, gotThreshold.NewThreshold)

	moved := &models.StockMovedEvent{BaseEvent: models.BaseEvent{EventType: models.EventTypeStockMoved}}
	assert.NoError(t, eh.HandleMessage(ctx, message(t, moved)))

	assert.Error(t, eh.HandleMessage(ctx, kafka.Message{Value: []byte("not json")}))
}

func TestLogPublisherAcceptsEvents(t *testing.T) {
	lp := NewLogPublisher()
	assert.NoError(t, lp.PublishThresholdUpdated(context.Background(), &models.ThresholdUpdatedEvent{SKU: "SKU-1"}))
}
