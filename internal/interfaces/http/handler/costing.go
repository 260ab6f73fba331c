package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	costingapp "github.com/glasserp/backend/internal/application/costing"
	"github.com/glasserp/backend/internal/domain/shared"
	"github.com/glasserp/backend/internal/interfaces/http/dto"
	"github.com/glasserp/backend/internal/interfaces/http/middleware"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// parseDateTime parses a datetime string in the formats clients send
func parseDateTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// CostingHandler handles inventory costing API endpoints
type CostingHandler struct {
	BaseHandler
	costingService *costingapp.CostingService
}

// NewCostingHandler creates a new CostingHandler
func NewCostingHandler(costingService *costingapp.CostingService) *CostingHandler {
	return &CostingHandler{
		costingService: costingService,
	}
}

// CreateItemRequest is the request body for registering an item
type CreateItemRequest struct {
	SKU  string `json:"sku" binding:"required,min=1,max=64"`
	Name string `json:"name" binding:"required,min=1,max=255"`
}

// RecordPurchaseRequest is the request body for an incoming purchase line
type RecordPurchaseRequest struct {
	ItemID              string  `json:"item_id" binding:"required,uuid"`
	Date                string  `json:"date" binding:"required"`
	UnitCost            float64 `json:"unit_cost" binding:"gte=0"`
	Quantity            float64 `json:"quantity" binding:"required,gt=0"`
	Warehouse           string  `json:"warehouse" binding:"required,min=1,max=64"`
	SourceTransactionID *string `json:"source_transaction_id"`
}

// RecordSaleRequest is the request body for an outgoing sale line
type RecordSaleRequest struct {
	ItemID    string  `json:"item_id" binding:"required,uuid"`
	Date      string  `json:"date" binding:"required"`
	Quantity  float64 `json:"quantity" binding:"required,gt=0"`
	Warehouse string  `json:"warehouse" binding:"required,min=1,max=64"`
}

// AverageCostResponse carries a recomputed weighted average cost
type AverageCostResponse struct {
	ItemID      string  `json:"item_id"`
	AverageCost float64 `json:"average_cost"`
}

// RegisterRoutes registers all costing routes on the given group
func (h *CostingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	items := rg.Group("/items")
	{
		items.POST("", h.CreateItem)
		items.GET("", h.ListItems)
		items.GET("/lookup", h.GetItemBySKU)
		items.GET("/:id", h.GetItem)
		items.GET("/:id/batches", h.ListBatches)
		items.GET("/:id/sales", h.ListSales)
		items.POST("/:id/replay", h.ReplayHistory)
		items.POST("/:id/average-cost", h.RecomputeAverageCost)
		items.DELETE("/:id/purchases/:source_id", h.UndoPurchase)
	}

	purchases := rg.Group("/purchases")
	{
		purchases.POST("", h.RecordPurchase)
	}

	sales := rg.Group("/sales")
	{
		sales.POST("", h.RecordSale)
		sales.POST("/:id/reverse", h.ReverseConsumption)
		sales.DELETE("/:id", h.UndoSale)
	}
}

// CreateItem registers a new item with an empty stock ledger
func (h *CostingHandler) CreateItem(c *gin.Context) {
	var req CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	item, err := h.costingService.CreateItem(c.Request.Context(), req.SKU, req.Name)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, item)
}

// GetItem returns one item by ID
func (h *CostingHandler) GetItem(c *gin.Context) {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid item ID format")
		return
	}

	item, err := h.costingService.GetItem(c.Request.Context(), itemID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, item)
}

// GetItemBySKU returns one item by SKU
func (h *CostingHandler) GetItemBySKU(c *gin.Context) {
	sku := c.Query("sku")
	if sku == "" {
		h.BadRequest(c, "Query parameter sku is required")
		return
	}

	item, err := h.costingService.GetItemBySKU(c.Request.Context(), sku)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, item)
}

// ListItems returns a page of items
func (h *CostingHandler) ListItems(c *gin.Context) {
	req := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	page, err := h.costingService.ListItems(c.Request.Context(), shared.Filter{
		Page:     req.Page,
		PageSize: req.PageSize,
		OrderBy:  req.OrderBy,
		OrderDir: req.OrderDir,
		Search:   req.Search,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// ListBatches returns an item's batches in consumption order. Pass
// active_only=true to exclude exhausted batches.
func (h *CostingHandler) ListBatches(c *gin.Context) {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid item ID format")
		return
	}
	activeOnly := c.Query("active_only") == "true"

	batches, err := h.costingService.ListBatches(c.Request.Context(), itemID, activeOnly)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, batches)
}

// ListSales returns an item's sale events in history order
func (h *CostingHandler) ListSales(c *gin.Context) {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid item ID format")
		return
	}

	sales, err := h.costingService.ListSales(c.Request.Context(), itemID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, sales)
}

// RecordPurchase creates a stock batch from an incoming purchase line
func (h *CostingHandler) RecordPurchase(c *gin.Context) {
	var req RecordPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	itemID, err := uuid.Parse(req.ItemID)
	if err != nil {
		h.BadRequest(c, "Invalid item ID format")
		return
	}
	date, err := parseDateTime(req.Date)
	if err != nil {
		h.BadRequest(c, "Invalid date format, expected RFC3339 or YYYY-MM-DD")
		return
	}

	batch, err := h.costingService.RecordPurchase(c.Request.Context(), costingapp.RecordPurchaseRequest{
		ItemID:              itemID,
		Date:                date,
		UnitCost:            decimal.NewFromFloat(req.UnitCost),
		Quantity:            decimal.NewFromFloat(req.Quantity),
		Warehouse:           req.Warehouse,
		SourceTransactionID: req.SourceTransactionID,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, batch)
}

// RecordSale consumes stock for an outgoing sale line and returns the
// cost allocation
func (h *CostingHandler) RecordSale(c *gin.Context) {
	var req RecordSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	itemID, err := uuid.Parse(req.ItemID)
	if err != nil {
		h.BadRequest(c, "Invalid item ID format")
		return
	}
	date, err := parseDateTime(req.Date)
	if err != nil {
		h.BadRequest(c, "Invalid date format, expected RFC3339 or YYYY-MM-DD")
		return
	}

	consumption, err := h.costingService.RecordSale(c.Request.Context(), costingapp.RecordSaleRequest{
		ItemID:    itemID,
		Date:      date,
		Quantity:  decimal.NewFromFloat(req.Quantity),
		Warehouse: req.Warehouse,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, consumption)
}

// ReverseConsumption undoes one sale by restoring its allocations to
// their source batches
func (h *CostingHandler) ReverseConsumption(c *gin.Context) {
	saleEventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid sale event ID format")
		return
	}

	record, err := h.costingService.ReverseConsumption(c.Request.Context(), saleEventID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, record)
}

// UndoSale removes a sale event from history and re-costs later sales
func (h *CostingHandler) UndoSale(c *gin.Context) {
	saleEventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid sale event ID format")
		return
	}

	result, err := h.costingService.UndoSale(c.Request.Context(), saleEventID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// UndoPurchase removes the batches created by one purchase transaction
// and re-costs the sales that consumed them
func (h *CostingHandler) UndoPurchase(c *gin.Context) {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid item ID format")
		return
	}
	sourceID := c.Param("source_id")

	result, err := h.costingService.UndoPurchase(c.Request.Context(), itemID, sourceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// ReplayHistory recomputes an item's batch state, recorded costs and
// ledger from its surviving history
func (h *CostingHandler) ReplayHistory(c *gin.Context) {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid item ID format")
		return
	}

	result, err := h.costingService.ReplayItemHistory(c.Request.Context(), itemID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// RecomputeAverageCost refreshes the weighted average cost over active
// batches
func (h *CostingHandler) RecomputeAverageCost(c *gin.Context) {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid item ID format")
		return
	}

	cost, err := h.costingService.RecomputeAverageCost(c.Request.Context(), itemID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, AverageCostResponse{
		ItemID:      itemID.String(),
		AverageCost: cost.InexactFloat64(),
	})
}
