package costing

import (
	"time"

	"github.com/glasserp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleEvent is the persisted record of one FIFO consumption: a sale line
// that took stock from this item. The replay engine re-derives batch state
// and costs from the ordered sequence of these events.
//
// Replay ordering is by TransactionDate ascending with Seq as the stable
// tie-break; date alone is insufficient when several sales share a day.
type SaleEvent struct {
	shared.BaseEntity
	ItemID          uuid.UUID
	Warehouse       string
	Quantity        decimal.Decimal
	TransactionDate time.Time
	Seq             int64 // creation order, assigned by the store
	RecordedCost    decimal.Decimal
	Shortfall       decimal.Decimal
	Allocations     []Allocation
}

// NewSaleEvent creates a sale event from a consumption record
func NewSaleEvent(
	itemID uuid.UUID,
	warehouse string,
	transactionDate time.Time,
	record *ConsumptionRecord,
) (*SaleEvent, error) {
	if itemID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ITEM", "Item ID cannot be empty")
	}
	if warehouse == "" {
		return nil, shared.NewDomainError("INVALID_WAREHOUSE", "Warehouse is required")
	}
	if record == nil || record.RequestedQuantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.ErrInvalidQuantity
	}

	allocations := make([]Allocation, len(record.Allocations))
	copy(allocations, record.Allocations)

	return &SaleEvent{
		BaseEntity:      shared.NewBaseEntity(),
		ItemID:          itemID,
		Warehouse:       warehouse,
		Quantity:        record.RequestedQuantity,
		TransactionDate: transactionDate,
		RecordedCost:    record.TotalCost,
		Shortfall:       record.Shortfall,
		Allocations:     allocations,
	}, nil
}

// ApplyCorrection overwrites the recorded cost and allocations with freshly
// replayed values. Returns true if anything actually changed (self-healing
// of stale COGS after history edits).
func (e *SaleEvent) ApplyCorrection(record *ConsumptionRecord) bool {
	if e.RecordedCost.Equal(record.TotalCost) &&
		e.Shortfall.Equal(record.Shortfall) &&
		allocationsEqual(e.Allocations, record.Allocations) {
		return false
	}

	e.RecordedCost = record.TotalCost
	e.Shortfall = record.Shortfall
	e.Allocations = make([]Allocation, len(record.Allocations))
	copy(e.Allocations, record.Allocations)
	e.UpdatedAt = time.Now()
	return true
}

// Before reports whether e precedes other in replay order:
// transaction date ascending, then creation order ascending.
func (e *SaleEvent) Before(other *SaleEvent) bool {
	if !e.TransactionDate.Equal(other.TransactionDate) {
		return e.TransactionDate.Before(other.TransactionDate)
	}
	return e.Seq < other.Seq
}

// Record rebuilds the consumption record embedded in this event
func (e *SaleEvent) Record() *ConsumptionRecord {
	allocations := make([]Allocation, len(e.Allocations))
	copy(allocations, e.Allocations)
	return &ConsumptionRecord{
		ItemID:            e.ItemID,
		RequestedQuantity: e.Quantity,
		TotalCost:         e.RecordedCost,
		Shortfall:         e.Shortfall,
		Allocations:       allocations,
	}
}

func allocationsEqual(a, b []Allocation) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].BatchID != b[i].BatchID ||
			!a[i].QuantityTaken.Equal(b[i].QuantityTaken) ||
			!a[i].UnitCost.Equal(b[i].UnitCost) {
			return false
		}
	}
	return true
}
