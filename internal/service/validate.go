package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"inventory-service/internal/apperr"
	"inventory-service/internal/models"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// The cached summary lives under inventorySummaryKey:<generation>. Every
// mutation bumps the generation, so a summary computed before a commit can
// only land under a key no reader asks for again.
const (
	inventorySummaryKey    = "report:inventory-summary"
	inventorySummaryGenKey = "report:inventory-summary:gen"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return models.ValidCategory(fl.Field().String())
	})
	return v
}

// validateStruct turns validator failures into InvalidInput.
func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Wrap(apperr.KindInvalidInput, err, "invalid request")
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return apperr.InvalidInput("%s", strings.Join(msgs, "; "))
}

// invalidateSummary retires the cached inventory summary after a mutation.
func invalidateSummary(ctx context.Context, cache Cache, logger *zap.Logger) {
	if cache == nil {
		return
	}
	if _, err := cache.Incr(ctx, inventorySummaryGenKey); err != nil {
		logger.Warn("Failed to invalidate summary cache", zap.Error(err))
	}
}

// summaryCacheKey returns the key of the current summary generation.
func summaryCacheKey(ctx context.Context, cache Cache) (string, error) {
	var gen int64
	if _, err := cache.GetJSON(ctx, inventorySummaryGenKey, &gen); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", inventorySummaryKey, gen), nil
}
