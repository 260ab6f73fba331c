package costing

import (
	"github.com/glasserp/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Event types for the costing domain
const (
	EventTypeBatchCreated          = "costing.batch_created"
	EventTypeStockConsumed         = "costing.stock_consumed"
	EventTypeConsumptionReversed   = "costing.consumption_reversed"
	EventTypePurchaseRevoked       = "costing.purchase_revoked"
	EventTypeHistoryReplayed       = "costing.history_replayed"
	EventTypeAverageCostChanged    = "costing.average_cost_changed"
	EventTypeNegativeStockDetected = "costing.negative_stock_detected"
)

const aggregateTypeItem = "Item"

// BatchCreatedEvent is emitted when a purchase creates a stock batch
type BatchCreatedEvent struct {
	shared.BaseDomainEvent
	Batch *StockBatch `json:"batch"`
}

// NewBatchCreatedEvent creates a new BatchCreatedEvent
func NewBatchCreatedEvent(item *Item, batch *StockBatch) *BatchCreatedEvent {
	return &BatchCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBatchCreated, aggregateTypeItem, item.ID),
		Batch:           batch,
	}
}

// StockConsumedEvent is emitted when a sale consumes stock FIFO
type StockConsumedEvent struct {
	shared.BaseDomainEvent
	Record *ConsumptionRecord `json:"record"`
}

// NewStockConsumedEvent creates a new StockConsumedEvent
func NewStockConsumedEvent(item *Item, record *ConsumptionRecord) *StockConsumedEvent {
	return &StockConsumedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockConsumed, aggregateTypeItem, item.ID),
		Record:          record,
	}
}

// ConsumptionReversedEvent is emitted when a sale's consumption is undone
type ConsumptionReversedEvent struct {
	shared.BaseDomainEvent
	Record *ConsumptionRecord `json:"record"`
}

// NewConsumptionReversedEvent creates a new ConsumptionReversedEvent
func NewConsumptionReversedEvent(item *Item, record *ConsumptionRecord) *ConsumptionReversedEvent {
	return &ConsumptionReversedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeConsumptionReversed, aggregateTypeItem, item.ID),
		Record:          record,
	}
}

// PurchaseRevokedEvent is emitted when a purchase's batches are removed
type PurchaseRevokedEvent struct {
	shared.BaseDomainEvent
	SourceTransactionID string `json:"source_transaction_id"`
	BatchesRemoved      int64  `json:"batches_removed"`
}

// NewPurchaseRevokedEvent creates a new PurchaseRevokedEvent
func NewPurchaseRevokedEvent(item *Item, sourceTransactionID string, removed int64) *PurchaseRevokedEvent {
	return &PurchaseRevokedEvent{
		BaseDomainEvent:     shared.NewBaseDomainEvent(EventTypePurchaseRevoked, aggregateTypeItem, item.ID),
		SourceTransactionID: sourceTransactionID,
		BatchesRemoved:      removed,
	}
}

// HistoryReplayedEvent is emitted after a full deterministic recomputation
type HistoryReplayedEvent struct {
	shared.BaseDomainEvent
	BatchesChanged int `json:"batches_changed"`
	CostsCorrected int `json:"costs_corrected"`
	Shortfalls     int `json:"shortfalls"`
}

// NewHistoryReplayedEvent creates a new HistoryReplayedEvent
func NewHistoryReplayedEvent(item *Item, result *ReplayResult) *HistoryReplayedEvent {
	return &HistoryReplayedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeHistoryReplayed, aggregateTypeItem, item.ID),
		BatchesChanged:  len(result.ChangedBatches),
		CostsCorrected:  len(result.Corrections),
		Shortfalls:      len(result.Shortfalls),
	}
}

// AverageCostChangedEvent is emitted when the recomputed average cost moved
type AverageCostChangedEvent struct {
	shared.BaseDomainEvent
	OldCost decimal.Decimal `json:"old_cost"`
	NewCost decimal.Decimal `json:"new_cost"`
}

// NewAverageCostChangedEvent creates a new AverageCostChangedEvent
func NewAverageCostChangedEvent(item *Item, oldCost, newCost decimal.Decimal) *AverageCostChangedEvent {
	return &AverageCostChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAverageCostChanged, aggregateTypeItem, item.ID),
		OldCost:         oldCost,
		NewCost:         newCost,
	}
}

// NegativeStockDetectedEvent is emitted when a ledger bucket would go
// negative. Handlers use it to trigger a consistency repair (replay).
type NegativeStockDetectedEvent struct {
	shared.BaseDomainEvent
	Warehouse string          `json:"warehouse"`
	Current   decimal.Decimal `json:"current"`
	Delta     decimal.Decimal `json:"delta"`
}

// NewNegativeStockDetectedEvent creates a new NegativeStockDetectedEvent
func NewNegativeStockDetectedEvent(item *Item, warehouse string, current, delta decimal.Decimal) *NegativeStockDetectedEvent {
	return &NegativeStockDetectedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeNegativeStockDetected, aggregateTypeItem, item.ID),
		Warehouse:       warehouse,
		Current:         current,
		Delta:           delta,
	}
}
