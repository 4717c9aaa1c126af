package worker

import (
	"context"
	"fmt"

	"inventory-service/internal/broker"
	"inventory-service/internal/models"
	"inventory-service/internal/util"

	"go.uber.org/zap"
)

// MessageConsumer is the part of broker.Consumer the worker uses.
type MessageConsumer interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// RecipientSource lists who is told about alerts.
type RecipientSource interface {
	AdminEmails(ctx context.Context) ([]string, error)
}

// NotificationWorker forwards alert and threshold events to a Notifier.
type NotificationWorker struct {
	consumer     MessageConsumer
	eventHandler *broker.EventHandler
	notifier     Notifier
	recipients   RecipientSource
	logger       *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer MessageConsumer, notifier Notifier, recipients RecipientSource) *NotificationWorker {
	w := &NotificationWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		notifier:     notifier,
		recipients:   recipients,
		logger:       util.GetLogger(),
	}

	w.eventHandler.OnAlertCreated(w.handleAlertCreated)
	w.eventHandler.OnThresholdUpdated(w.handleThresholdUpdated)
	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	return w.consumer.Close()
}

func (w *NotificationWorker) admins(ctx context.Context) ([]string, error) {
	emails, err := w.recipients.AdminEmails(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipients: %w", err)
	}
	return emails, nil
}

func (w *NotificationWorker) handleAlertCreated(ctx context.Context, event *models.AlertCreatedEvent) error {
	emails, err := w.admins(ctx)
	if err != nil {
		return err
	}
	if len(emails) == 0 {
		w.logger.Warn("No recipients for low stock alert", zap.String("sku", event.SKU))
		return nil
	}
	return w.notifier.NotifyLowStock(ctx, event, emails)
}

func (w *NotificationWorker) handleThresholdUpdated(ctx context.Context, event *models.ThresholdUpdatedEvent) error {
	emails, err := w.admins(ctx)
	if err != nil {
		return err
	}
	if len(emails) == 0 {
		return nil
	}
	return w.notifier.NotifyThresholdUpdated(ctx, event, emails)
}
