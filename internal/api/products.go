package api

import (
	"context"
	"net/http"

	"inventory-service/internal/models"
	"inventory-service/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) createProduct(c *gin.Context) {
	var req service.CreateProductInput
	if !bindJSON(c, &req) {
		return
	}

	product, err := h.ledger.CreateProduct(c.Request.Context(), actorFrom(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

// listProducts returns active products, or the deleted ones with ?deleted=true
func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.ledger.ListProducts(c.Request.Context(), actorFrom(c), c.Query("deleted") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) searchProducts(c *gin.Context) {
	products, err := h.ledger.SearchProducts(c.Request.Context(), actorFrom(c), c.Query("query"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) lowStockProducts(c *gin.Context) {
	products, err := h.ledger.ListLowStock(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.ledger.GetProduct(c.Request.Context(), actorFrom(c), c.Param("sku"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) updateProduct(c *gin.Context) {
	id, ok := paramID(c, "ref")
	if !ok {
		return
	}

	var req service.UpdateProductInput
	if !bindJSON(c, &req) {
		return
	}

	product, err := h.ledger.UpdateProduct(c.Request.Context(), actorFrom(c), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

type thresholdRequest struct {
	MinStockThreshold *int `json:"minStockThreshold" binding:"required"`
}

func (h *Handler) updateThreshold(c *gin.Context) {
	var req thresholdRequest
	if !bindJSON(c, &req) {
		return
	}

	product, err := h.ledger.UpdateThreshold(c.Request.Context(), actorFrom(c), c.Param("ref"), *req.MinStockThreshold)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) deleteProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	product, err := h.productBin.Delete(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) restoreProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	product, err := h.productBin.Restore(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) purgeProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.productBin.PermanentDelete(c.Request.Context(), actorFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) deletedProducts(c *gin.Context) {
	entries, err := h.productBin.ListDeleted(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *Handler) stockIn(c *gin.Context) {
	h.recordStock(c, h.ledger.StockIn)
}

func (h *Handler) stockOut(c *gin.Context) {
	h.recordStock(c, h.ledger.StockOut)
}

type stockFunc func(ctx context.Context, actor service.Actor, in *service.RecordTransactionInput) (*models.StockTransaction, error)

// recordStock applies one movement. The Idempotency-Key header makes a
// retried request return the original transaction.
func (h *Handler) recordStock(c *gin.Context, move stockFunc) {
	var req service.RecordTransactionInput
	if !bindJSON(c, &req) {
		return
	}
	req.IdempotencyKey = c.GetHeader("Idempotency-Key")

	txn, err := move(c.Request.Context(), actorFrom(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, txn)
}
