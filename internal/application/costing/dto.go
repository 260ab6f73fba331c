package costing

import (
	"time"

	"github.com/glasserp/backend/internal/domain/costing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecordPurchaseRequest describes an incoming purchase line
type RecordPurchaseRequest struct {
	ItemID              uuid.UUID
	Date                time.Time
	UnitCost            decimal.Decimal
	Quantity            decimal.Decimal
	Warehouse           string
	SourceTransactionID *string
}

// RecordSaleRequest describes an outgoing sale line
type RecordSaleRequest struct {
	ItemID    uuid.UUID
	Date      time.Time
	Quantity  decimal.Decimal
	Warehouse string
}

// ItemResponse is the API view of an item aggregate
type ItemResponse struct {
	ID             string             `json:"id"`
	SKU            string             `json:"sku"`
	Name           string             `json:"name"`
	WarehouseStock map[string]float64 `json:"warehouse_stock"`
	TotalStock     float64            `json:"total_stock"`
	AverageCost    float64            `json:"average_cost"`
	TotalValue     float64            `json:"total_value"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
	Version        int                `json:"version"`
}

// BatchResponse is the API view of a stock batch
type BatchResponse struct {
	ID                  string    `json:"id"`
	ItemID              string    `json:"item_id"`
	SourceTransactionID *string   `json:"source_transaction_id,omitempty"`
	TransactionDate     time.Time `json:"transaction_date"`
	Warehouse           string    `json:"warehouse"`
	UnitCost            float64   `json:"unit_cost"`
	OriginalQuantity    float64   `json:"original_quantity"`
	RemainingQuantity   float64   `json:"remaining_quantity"`
	CreatedAt           time.Time `json:"created_at"`
}

// AllocationResponse is the API view of one allocation line
type AllocationResponse struct {
	BatchID       string  `json:"batch_id"`
	QuantityTaken float64 `json:"quantity_taken"`
	UnitCost      float64 `json:"unit_cost"`
}

// ConsumptionResponse is the API view of a consumption record
type ConsumptionResponse struct {
	SaleEventID       string               `json:"sale_event_id,omitempty"`
	ItemID            string               `json:"item_id"`
	RequestedQuantity float64              `json:"requested_quantity"`
	TotalCost         float64              `json:"total_cost"`
	Shortfall         float64              `json:"shortfall"`
	Allocations       []AllocationResponse `json:"allocations"`
}

// SaleEventResponse is the API view of a persisted sale event
type SaleEventResponse struct {
	ID              string               `json:"id"`
	ItemID          string               `json:"item_id"`
	Warehouse       string               `json:"warehouse"`
	Quantity        float64              `json:"quantity"`
	TransactionDate time.Time            `json:"transaction_date"`
	RecordedCost    float64              `json:"recorded_cost"`
	Shortfall       float64              `json:"shortfall"`
	Allocations     []AllocationResponse `json:"allocations"`
	CreatedAt       time.Time            `json:"created_at"`
}

// ReplayResponse summarizes a history replay
type ReplayResponse struct {
	ItemID         string  `json:"item_id"`
	BatchesChanged int     `json:"batches_changed"`
	CostsCorrected int     `json:"costs_corrected"`
	Shortfalls     int     `json:"shortfalls"`
	TotalStock     float64 `json:"total_stock"`
	AverageCost    float64 `json:"average_cost"`
}

// ToItemResponse converts a domain item to its API view
func ToItemResponse(item *costing.Item) ItemResponse {
	stock := make(map[string]float64, len(item.WarehouseStock))
	for warehouse, qty := range item.WarehouseStock {
		stock[warehouse] = qty.InexactFloat64()
	}
	return ItemResponse{
		ID:             item.ID.String(),
		SKU:            item.SKU,
		Name:           item.Name,
		WarehouseStock: stock,
		TotalStock:     item.TotalStock.InexactFloat64(),
		AverageCost:    item.AverageCost.InexactFloat64(),
		TotalValue:     item.TotalValue().InexactFloat64(),
		CreatedAt:      item.CreatedAt,
		UpdatedAt:      item.UpdatedAt,
		Version:        item.Version,
	}
}

// ToBatchResponse converts a domain batch to its API view
func ToBatchResponse(batch *costing.StockBatch) BatchResponse {
	return BatchResponse{
		ID:                  batch.ID.String(),
		ItemID:              batch.ItemID.String(),
		SourceTransactionID: batch.SourceTransactionID,
		TransactionDate:     batch.TransactionDate,
		Warehouse:           batch.Warehouse,
		UnitCost:            batch.UnitCost.InexactFloat64(),
		OriginalQuantity:    batch.OriginalQuantity.InexactFloat64(),
		RemainingQuantity:   batch.RemainingQuantity.InexactFloat64(),
		CreatedAt:           batch.CreatedAt,
	}
}

// ToBatchResponses converts a slice of batches
func ToBatchResponses(batches []*costing.StockBatch) []BatchResponse {
	out := make([]BatchResponse, len(batches))
	for i, b := range batches {
		out[i] = ToBatchResponse(b)
	}
	return out
}

func toAllocationResponses(allocations []costing.Allocation) []AllocationResponse {
	out := make([]AllocationResponse, len(allocations))
	for i, a := range allocations {
		out[i] = AllocationResponse{
			BatchID:       a.BatchID.String(),
			QuantityTaken: a.QuantityTaken.InexactFloat64(),
			UnitCost:      a.UnitCost.InexactFloat64(),
		}
	}
	return out
}

// ToConsumptionResponse converts a consumption record to its API view
func ToConsumptionResponse(saleEventID uuid.UUID, record *costing.ConsumptionRecord) ConsumptionResponse {
	resp := ConsumptionResponse{
		ItemID:            record.ItemID.String(),
		RequestedQuantity: record.RequestedQuantity.InexactFloat64(),
		TotalCost:         record.TotalCost.InexactFloat64(),
		Shortfall:         record.Shortfall.InexactFloat64(),
		Allocations:       toAllocationResponses(record.Allocations),
	}
	if saleEventID != uuid.Nil {
		resp.SaleEventID = saleEventID.String()
	}
	return resp
}

// ToSaleEventResponse converts a sale event to its API view
func ToSaleEventResponse(event *costing.SaleEvent) SaleEventResponse {
	return SaleEventResponse{
		ID:              event.ID.String(),
		ItemID:          event.ItemID.String(),
		Warehouse:       event.Warehouse,
		Quantity:        event.Quantity.InexactFloat64(),
		TransactionDate: event.TransactionDate,
		RecordedCost:    event.RecordedCost.InexactFloat64(),
		Shortfall:       event.Shortfall.InexactFloat64(),
		Allocations:     toAllocationResponses(event.Allocations),
		CreatedAt:       event.CreatedAt,
	}
}

// ToSaleEventResponses converts a slice of sale events
func ToSaleEventResponses(events []*costing.SaleEvent) []SaleEventResponse {
	out := make([]SaleEventResponse, len(events))
	for i, e := range events {
		out[i] = ToSaleEventResponse(e)
	}
	return out
}
