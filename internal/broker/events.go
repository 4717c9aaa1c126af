package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"inventory-service/internal/models"
	"inventory-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventWriter is what EventPublisher needs from a producer.
type EventWriter interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer EventWriter
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer EventWriter) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func skuKey(sku string) string {
	return fmt.Sprintf("sku-%s", sku)
}

// PublishStockMoved publishes StockMoved event
func (ep *EventPublisher) PublishStockMoved(ctx context.Context, event *models.StockMovedEvent) error {
	return ep.producer.PublishEvent(ctx, skuKey(event.SKU), event)
}

// PublishAlertCreated publishes AlertCreated event
func (ep *EventPublisher) PublishAlertCreated(ctx context.Context, event *models.AlertCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, skuKey(event.SKU), event)
}

// PublishAlertResolved publishes AlertResolved event
func (ep *EventPublisher) PublishAlertResolved(ctx context.Context, event *models.AlertResolvedEvent) error {
	return ep.producer.PublishEvent(ctx, skuKey(event.SKU), event)
}

// PublishThresholdUpdated publishes ThresholdUpdated event
func (ep *EventPublisher) PublishThresholdUpdated(ctx context.Context, event *models.ThresholdUpdatedEvent) error {
	return ep.producer.PublishEvent(ctx, skuKey(event.SKU), event)
}

// PublishRecycleEvent publishes a recycle bin transition
func (ep *EventPublisher) PublishRecycleEvent(ctx context.Context, event *models.RecycleEvent) error {
	key := fmt.Sprintf("%s-%d", event.Entity, event.EntityID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// LogPublisher writes events to the log. It stands in for Kafka when the
// broker is disabled.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a new log publisher
func NewLogPublisher() *LogPublisher {
	return &LogPublisher{logger: util.GetLogger()}
}

func (lp *LogPublisher) log(key string, event interface{}) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	lp.logger.Info("Domain event",
		zap.String("key", key),
		zap.ByteString("event", raw))
	return nil
}

func (lp *LogPublisher) PublishStockMoved(ctx context.Context, event *models.StockMovedEvent) error {
	return lp.log(skuKey(event.SKU), event)
}

func (lp *LogPublisher) PublishAlertCreated(ctx context.Context, event *models.AlertCreatedEvent) error {
	return lp.log(skuKey(event.SKU), event)
}

func (lp *LogPublisher) PublishAlertResolved(ctx context.Context, event *models.AlertResolvedEvent) error {
	return lp.log(skuKey(event.SKU), event)
}

func (lp *LogPublisher) PublishThresholdUpdated(ctx context.Context, event *models.ThresholdUpdatedEvent) error {
	return lp.log(skuKey(event.SKU), event)
}

func (lp *LogPublisher) PublishRecycleEvent(ctx context.Context, event *models.RecycleEvent) error {
	return lp.log(fmt.Sprintf("%s-%d", event.Entity, event.EntityID), event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onAlertCreated     func(context.Context, *models.AlertCreatedEvent) error
	onThresholdUpdated func(context.Context, *models.ThresholdUpdatedEvent) error
	logger             *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnAlertCreated registers a handler for AlertCreated events
func (eh *EventHandler) OnAlertCreated(handler func(context.Context, *models.AlertCreatedEvent) error) {
	eh.onAlertCreated = handler
}

// OnThresholdUpdated registers a handler for ThresholdUpdated events
func (eh *EventHandler) OnThresholdUpdated(handler func(context.Context, *models.ThresholdUpdatedEvent) error) {
	eh.onThresholdUpdated = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeAlertCreated:
		if eh.onAlertCreated != nil {
			var event models.AlertCreatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal AlertCreated event: %w", err)
			}
			return eh.onAlertCreated(ctx, &event)
		}

	case models.EventTypeThresholdUpdated:
		if eh.onThresholdUpdated != nil {
			var event models.ThresholdUpdatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ThresholdUpdated event: %w", err)
			}
			return eh.onThresholdUpdated(ctx, &event)
		}

	default:
		eh.logger.Debug("Ignoring event", zap.String("type", baseEvent.EventType))
	}

	return nil
}
