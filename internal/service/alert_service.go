package service

import (
	"context"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/util"

	"go.uber.org/zap"
)

const recentAlertsLimit = 5

// AlertService raises and resolves low-stock alerts.
type AlertService struct {
	repo   Repository
	events EventPublisher
	opts   Options
	logger *zap.Logger
}

// NewAlertService creates a new alert service
func NewAlertService(repo Repository, events EventPublisher, opts Options) *AlertService {
	return &AlertService{
		repo:   repo,
		events: events,
		opts:   opts,
		logger: util.GetLogger(),
	}
}

// AlertSummary is the alert dashboard view.
type AlertSummary struct {
	TotalActiveAlerts int                    `json:"totalActiveAlerts"`
	TodayAlerts       int                    `json:"todayAlerts"`
	RecentAlerts      []models.LowStockAlert `json:"recentAlerts"`
}

// ScanResult counts what a full scan changed.
type ScanResult struct {
	Checked   int `json:"checked"`
	Created   int `json:"created"`
	Refreshed int `json:"refreshed"`
	Resolved  int `json:"resolved"`
	Failed    int `json:"failed"`
}

// Evaluate applies the alert state machine to the committed state of sku.
func (s *AlertService) Evaluate(ctx context.Context, sku string) (*models.AlertOutcome, error) {
	ctx, span := util.StartSpan(ctx, "AlertService.Evaluate")
	defer span.End()

	outcome, err := withRetry(ctx, s.opts, "evaluate_alert", func() (*models.AlertOutcome, error) {
		return s.repo.EvaluateAlert(ctx, sku, s.opts.AutoResolveAlerts, s.opts.now())
	})
	if err != nil {
		return nil, err
	}

	switch outcome.Action {
	case models.AlertCreate:
		util.AlertsCreatedTotal.Inc()
		s.logger.Warn("Low stock alert raised",
			zap.String("sku", sku),
			zap.Int("quantity", outcome.Alert.CurrentQuantity),
			zap.Int("threshold", outcome.Alert.Threshold))

		event := &models.AlertCreatedEvent{
			BaseEvent:       newBaseEvent(models.EventTypeAlertCreated, outcome.Alert.AlertSentAt),
			AlertID:         outcome.Alert.ID,
			SKU:             sku,
			ProductName:     outcome.Alert.ProductName,
			CurrentQuantity: outcome.Alert.CurrentQuantity,
			Threshold:       outcome.Alert.Threshold,
		}
		if err := s.events.PublishAlertCreated(ctx, event); err != nil {
			util.EventsPublishFailed.WithLabelValues(models.EventTypeAlertCreated).Inc()
			s.logger.Error("Failed to publish AlertCreated event", zap.Error(err))
		}

	case models.AlertResolve:
		util.AlertsResolvedTotal.WithLabelValues("auto").Inc()
		s.logger.Info("Low stock alert auto-resolved",
			zap.String("sku", sku),
			zap.Int64("alert_id", outcome.Alert.ID))
		s.publishResolved(ctx, outcome.Alert, true)

	case models.AlertRefresh:
		s.logger.Debug("Low stock alert refreshed",
			zap.String("sku", sku),
			zap.Int64("alert_id", outcome.Alert.ID))
	}

	return outcome, nil
}

// Resolve closes an alert by hand. Resolving an already resolved alert
// returns it unchanged.
func (s *AlertService) Resolve(ctx context.Context, actor Actor, id int64) (*models.LowStockAlert, error) {
	ctx, span := util.StartSpan(ctx, "AlertService.Resolve")
	defer span.End()

	if err := Authorize(actor, PermAlertResolve); err != nil {
		return nil, err
	}

	type result struct {
		alert   *models.LowStockAlert
		changed bool
	}
	res, err := withRetry(ctx, s.opts, "resolve_alert", func() (result, error) {
		a, changed, err := s.repo.ResolveAlert(ctx, id, actor.IDRef(), s.opts.now())
		return result{alert: a, changed: changed}, err
	})
	if err != nil {
		return nil, err
	}

	if res.changed {
		util.AlertsResolvedTotal.WithLabelValues("manual").Inc()
		s.logger.Info("Low stock alert resolved",
			zap.Int64("alert_id", id),
			zap.Int64("resolved_by", actor.ID))
		s.publishResolved(ctx, res.alert, false)
	}
	return res.alert, nil
}

func (s *AlertService) publishResolved(ctx context.Context, a *models.LowStockAlert, automatic bool) {
	at := s.opts.now()
	if a.ResolvedAt != nil {
		at = *a.ResolvedAt
	}
	event := &models.AlertResolvedEvent{
		BaseEvent:  newBaseEvent(models.EventTypeAlertResolved, at),
		AlertID:    a.ID,
		SKU:        a.SKU,
		Automatic:  automatic,
		ResolvedBy: a.ResolvedBy,
	}
	if err := s.events.PublishAlertResolved(ctx, event); err != nil {
		util.EventsPublishFailed.WithLabelValues(models.EventTypeAlertResolved).Inc()
		s.logger.Error("Failed to publish AlertResolved event", zap.Error(err))
	}
}

// ActiveAlerts lists unresolved alerts, newest first.
func (s *AlertService) ActiveAlerts(ctx context.Context, actor Actor) ([]models.LowStockAlert, error) {
	ctx, span := util.StartSpan(ctx, "AlertService.ActiveAlerts")
	defer span.End()

	if err := Authorize(actor, PermAlertView); err != nil {
		return nil, err
	}
	return s.repo.ListAlerts(ctx, true)
}

// Summary counts active alerts and those raised since local midnight.
func (s *AlertService) Summary(ctx context.Context, actor Actor) (*AlertSummary, error) {
	ctx, span := util.StartSpan(ctx, "AlertService.Summary")
	defer span.End()

	if err := Authorize(actor, PermAlertView); err != nil {
		return nil, err
	}

	active, err := s.repo.ListAlerts(ctx, true)
	if err != nil {
		return nil, err
	}

	now := s.opts.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	summary := &AlertSummary{
		TotalActiveAlerts: len(active),
		RecentAlerts:      active,
	}
	for _, a := range active {
		if !a.AlertSentAt.Before(midnight) {
			summary.TodayAlerts++
		}
	}
	if len(summary.RecentAlerts) > recentAlertsLimit {
		summary.RecentAlerts = summary.RecentAlerts[:recentAlertsLimit]
	}
	return summary, nil
}

// ScanAll re-evaluates every active product. Per-product failures are
// counted and logged, the scan continues.
func (s *AlertService) ScanAll(ctx context.Context) (*ScanResult, error) {
	ctx, span := util.StartSpan(ctx, "AlertService.ScanAll")
	defer span.End()

	products, err := s.repo.ListProducts(ctx, models.ProductFilter{})
	if err != nil {
		return nil, err
	}

	res := &ScanResult{}
	for _, p := range products {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}

		res.Checked++
		outcome, err := s.Evaluate(ctx, p.SKU)
		if err != nil {
			res.Failed++
			s.logger.Error("Low stock scan failed for product",
				zap.String("sku", p.SKU),
				zap.Error(err))
			continue
		}

		switch outcome.Action {
		case models.AlertCreate:
			res.Created++
		case models.AlertRefresh:
			res.Refreshed++
		case models.AlertResolve:
			res.Resolved++
		}
	}

	s.logger.Info("Low stock scan completed",
		zap.Int("checked", res.Checked),
		zap.Int("created", res.Created),
		zap.Int("resolved", res.Resolved),
		zap.Int("failed", res.Failed))
	return res, nil
}
