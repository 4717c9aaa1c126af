package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"inventory-service/internal/service"
	"inventory-service/internal/util"
	"inventory-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// queryTransactions filters the ledger by sku, productName, transactionType
// and a startDate/endDate day range (YYYY-MM-DD). ?order=asc reverses the
// default newest-first order.
func (h *Handler) queryTransactions(c *gin.Context) {
	q := service.TransactionQuery{
		SKU:             c.Query("sku"),
		ProductName:     c.Query("productName"),
		TransactionType: c.Query("transactionType"),
		Ascending:       strings.EqualFold(c.Query("order"), "asc"),
	}

	var err error
	if q.StartDate, err = parseDate(c.Query("startDate")); err != nil {
		badQuery(c, "startDate must be YYYY-MM-DD")
		return
	}
	if q.EndDate, err = parseDate(c.Query("endDate")); err != nil {
		badQuery(c, "endDate must be YYYY-MM-DD")
		return
	}
	if limit := c.Query("limit"); limit != "" {
		if q.Limit, err = strconv.Atoi(limit); err != nil {
			badQuery(c, "limit must be a number")
			return
		}
	}

	txns, err := h.reports.QueryTransactions(c.Request.Context(), actorFrom(c), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, txns)
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, s, time.Local)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func badQuery(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "INVALID_INPUT",
		"message": msg,
	})
}

func (h *Handler) getTransaction(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	txn, err := h.ledger.GetTransaction(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, txn)
}

func (h *Handler) activeAlerts(c *gin.Context) {
	alerts, err := h.alerts.ActiveAlerts(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, alerts)
}

func (h *Handler) alertSummary(c *gin.Context) {
	summary, err := h.alerts.Summary(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) resolveAlert(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	alert, err := h.alerts.Resolve(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *Handler) inventorySummary(c *gin.Context) {
	summary, err := h.reports.InventorySummary(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) categoryReport(c *gin.Context) {
	report, err := h.reports.CategoryReport(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// sweep purges expired recycle-bin entries on demand
func (h *Handler) sweep(c *gin.Context) {
	if err := service.Authorize(actorFrom(c), service.PermRecycleSweep); err != nil {
		respondError(c, err)
		return
	}

	purged, err := worker.SweepAll(c.Request.Context(), h.productBin, h.userBin)
	if err != nil {
		util.GetLogger().Warn("Manual sweep incomplete", zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purged": purged})
}
