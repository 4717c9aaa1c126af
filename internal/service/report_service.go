package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"inventory-service/internal/apperr"
	"inventory-service/internal/models"
	"inventory-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReportService computes read-only projections over products and the ledger.
type ReportService struct {
	repo   Repository
	cache  Cache
	opts   Options
	logger *zap.Logger
}

// NewReportService creates a new report service. cache may be nil.
func NewReportService(repo Repository, cache Cache, opts Options) *ReportService {
	return &ReportService{
		repo:   repo,
		cache:  cache,
		opts:   opts,
		logger: util.GetLogger(),
	}
}

// InventorySummary aggregates the active catalogue.
type InventorySummary struct {
	TotalProducts int             `json:"totalProducts"`
	TotalQuantity int             `json:"totalQuantity"`
	TotalValue    decimal.Decimal `json:"totalValue"`
	LowStockItems int             `json:"lowStockItems"`
	GeneratedAt   time.Time       `json:"generatedAt"`
}

// CategoryReport aggregates one category.
type CategoryReport struct {
	Category      string          `json:"category"`
	ProductCount  int             `json:"productCount"`
	TotalQuantity int             `json:"totalQuantity"`
	TotalValue    decimal.Decimal `json:"totalValue"`
}

// TransactionQuery filters the ledger. Dates are calendar days: StartDate
// counts from its midnight, EndDate through its last instant.
type TransactionQuery struct {
	SKU             string
	ProductName     string
	TransactionType string
	StartDate       *time.Time
	EndDate         *time.Time
	Ascending       bool
	Limit           int
}

// InventorySummary totals active products. Results are cached briefly when a
// cache is configured.
func (s *ReportService) InventorySummary(ctx context.Context, actor Actor) (*InventorySummary, error) {
	ctx, span := util.StartSpan(ctx, "ReportService.InventorySummary")
	defer span.End()

	if err := Authorize(actor, PermReportView); err != nil {
		return nil, err
	}

	// Read the generation before the products so a concurrent mutation
	// retires whatever this call writes back.
	var cacheKey string
	if s.cache != nil {
		key, err := summaryCacheKey(ctx, s.cache)
		if err != nil {
			s.logger.Warn("Failed to read summary generation", zap.Error(err))
		} else {
			cacheKey = key
		}
	}

	if cacheKey != "" {
		var cached InventorySummary
		hit, err := s.cache.GetJSON(ctx, cacheKey, &cached)
		if err != nil {
			s.logger.Warn("Failed to read summary cache", zap.Error(err))
		} else if hit {
			return &cached, nil
		}
	}

	products, err := s.repo.ListProducts(ctx, models.ProductFilter{})
	if err != nil {
		return nil, err
	}

	summary := &InventorySummary{
		TotalValue:  decimal.Zero,
		GeneratedAt: s.opts.now(),
	}
	for _, p := range products {
		summary.TotalProducts++
		summary.TotalQuantity += p.Quantity
		summary.TotalValue = summary.TotalValue.Add(p.TotalValue())
		if p.LowStock() {
			summary.LowStockItems++
		}
	}

	if cacheKey != "" {
		if err := s.cache.SetJSON(ctx, cacheKey, summary, s.opts.SummaryTTL); err != nil {
			s.logger.Warn("Failed to write summary cache", zap.Error(err))
		}
	}
	return summary, nil
}

// CategoryReport aggregates active products per category, ordered by name.
func (s *ReportService) CategoryReport(ctx context.Context, actor Actor) ([]CategoryReport, error) {
	ctx, span := util.StartSpan(ctx, "ReportService.CategoryReport")
	defer span.End()

	if err := Authorize(actor, PermReportView); err != nil {
		return nil, err
	}

	products, err := s.repo.ListProducts(ctx, models.ProductFilter{})
	if err != nil {
		return nil, err
	}

	byCategory := make(map[string]*CategoryReport)
	for _, p := range products {
		r, ok := byCategory[p.Category]
		if !ok {
			r = &CategoryReport{Category: p.Category, TotalValue: decimal.Zero}
			byCategory[p.Category] = r
		}
		r.ProductCount++
		r.TotalQuantity += p.Quantity
		r.TotalValue = r.TotalValue.Add(p.TotalValue())
	}

	reports := make([]CategoryReport, 0, len(byCategory))
	for _, r := range byCategory {
		reports = append(reports, *r)
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Category < reports[j].Category
	})
	return reports, nil
}

// QueryTransactions filters the ledger, newest first unless q.Ascending.
func (s *ReportService) QueryTransactions(ctx context.Context, actor Actor, q TransactionQuery) ([]models.StockTransaction, error) {
	ctx, span := util.StartSpan(ctx, "ReportService.QueryTransactions")
	defer span.End()

	if err := Authorize(actor, PermReportView); err != nil {
		return nil, err
	}

	filter := models.TransactionFilter{
		SKU:         strings.TrimSpace(q.SKU),
		ProductName: strings.TrimSpace(q.ProductName),
		Ascending:   q.Ascending,
		Limit:       q.Limit,
	}

	if q.TransactionType != "" {
		t, ok := models.ParseTransactionType(q.TransactionType)
		if !ok {
			return nil, apperr.InvalidInput("unknown transaction type %q", q.TransactionType)
		}
		filter.Type = t
	}
	if q.Limit < 0 {
		return nil, apperr.InvalidInput("limit must not be negative")
	}

	if q.StartDate != nil {
		from := startOfDay(*q.StartDate)
		filter.From = &from
	}
	if q.EndDate != nil {
		to := startOfDay(*q.EndDate).AddDate(0, 0, 1).Add(-time.Nanosecond)
		filter.To = &to
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, apperr.InvalidInput("startDate must not be after endDate")
	}

	return s.repo.QueryTransactions(ctx, filter)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
