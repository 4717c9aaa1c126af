package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/service"
	"inventory-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services groups everything the HTTP layer calls into
type Services struct {
	Ledger     *service.LedgerService
	Alerts     *service.AlertService
	Reports    *service.ReportService
	Users      *service.UserService
	ProductBin *service.RecycleBin[models.Product]
	UserBin    *service.RecycleBin[models.User]
	Store      Pinger
}

// Handler contains HTTP handlers
type Handler struct {
	ledger     *service.LedgerService
	alerts     *service.AlertService
	reports    *service.ReportService
	users      *service.UserService
	productBin *service.RecycleBin[models.Product]
	userBin    *service.RecycleBin[models.User]
	store      Pinger
}

// NewHandler creates a new HTTP handler
func NewHandler(s Services) *Handler {
	return &Handler{
		ledger:     s.Ledger,
		alerts:     s.Alerts,
		reports:    s.Reports,
		users:      s.Users,
		productBin: s.ProductBin,
		userBin:    s.UserBin,
		store:      s.Store,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(actorMiddleware())
	{
		v1.POST("/products", h.createProduct)
		v1.GET("/products", h.listProducts)
		v1.GET("/products/search", h.searchProducts)
		v1.GET("/products/low-stock", h.lowStockProducts)
		v1.GET("/products/:sku", h.getProduct)
		// PUT routes share one wildcard name: ":ref" is the id for details
		// and the sku for the threshold.
		v1.PUT("/products/:ref", h.updateProduct)
		v1.PUT("/products/:ref/threshold", h.updateThreshold)
		v1.DELETE("/products/:id", h.deleteProduct)
		v1.POST("/products/:id/restore", h.restoreProduct)
		v1.DELETE("/products/:id/permanent", h.purgeProduct)
		v1.GET("/recycle-bin/products", h.deletedProducts)

		v1.POST("/stock/in", h.stockIn)
		v1.POST("/stock/out", h.stockOut)

		v1.GET("/transactions", h.queryTransactions)
		v1.GET("/transactions/:id", h.getTransaction)

		v1.GET("/alerts", h.activeAlerts)
		v1.GET("/alerts/summary", h.alertSummary)
		v1.POST("/alerts/:id/resolve", h.resolveAlert)

		v1.POST("/users", h.createUser)
		v1.GET("/users", h.listUsers)
		v1.GET("/users/summary", h.userSummary)
		v1.GET("/users/:id", h.getUser)
		v1.DELETE("/users/:id", h.deleteUser)
		v1.POST("/users/:id/restore", h.restoreUser)
		v1.DELETE("/users/:id/permanent", h.purgeUser)
		v1.GET("/recycle-bin/users", h.deletedUsers)

		v1.GET("/reports/inventory-summary", h.inventorySummary)
		v1.GET("/reports/category-wise", h.categoryReport)

		v1.POST("/admin/sweep", h.sweep)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready once the store answers
func (h *Handler) readinessCheck(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unavailable",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "INVALID_INPUT",
			"message": "invalid " + name + ": " + c.Param(name),
		})
		return 0, false
	}
	return id, true
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "INVALID_INPUT",
			"message": "invalid request body: " + err.Error(),
		})
		return false
	}
	return true
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
