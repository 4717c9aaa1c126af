package worker

import (
	"context"

	"inventory-service/internal/models"
	"inventory-service/internal/util"

	"go.uber.org/zap"
)

// Notifier delivers alert notifications. E-mail delivery lives outside
// this service.
type Notifier interface {
	NotifyLowStock(ctx context.Context, event *models.AlertCreatedEvent, recipients []string) error
	NotifyThresholdUpdated(ctx context.Context, event *models.ThresholdUpdatedEvent, recipients []string) error
}

// LogNotifier records notifications in the log
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: util.GetLogger()}
}

func (n *LogNotifier) NotifyLowStock(ctx context.Context, event *models.AlertCreatedEvent, recipients []string) error {
	n.logger.Warn("Low stock notification",
		zap.String("sku", event.SKU),
		zap.String("product", event.ProductName),
		zap.Int("quantity", event.CurrentQuantity),
		zap.Int("threshold", event.Threshold),
		zap.Strings("recipients", recipients))
	return nil
}

func (n *LogNotifier) NotifyThresholdUpdated(ctx context.Context, event *models.ThresholdUpdatedEvent, recipients []string) error {
	n.logger.Info("Threshold change notification",
		zap.String("sku", event.SKU),
		zap.Int("old_threshold", event.OldThreshold),
		zap.Int("new_threshold", event.NewThreshold),
		zap.Strings("recipients", recipients))
	return nil
}
