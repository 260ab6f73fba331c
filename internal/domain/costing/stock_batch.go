package costing

import (
	"time"

	"github.com/glasserp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockBatch represents a lot of stock acquired at a single unit cost.
// UnitCost, OriginalQuantity and TransactionDate are immutable once the
// batch is created; only RemainingQuantity changes as sales consume it.
//
// FIFO ordering is by TransactionDate ascending with Seq as the stable
// tie-break when multiple batches share a date.
type StockBatch struct {
	shared.BaseEntity
	ItemID              uuid.UUID
	SourceTransactionID *string // nil for manually seeded opening balances
	TransactionDate     time.Time
	Seq                 int64 // creation order, assigned by the store
	Warehouse           string
	UnitCost            decimal.Decimal
	OriginalQuantity    decimal.Decimal
	RemainingQuantity   decimal.Decimal
}

// NewStockBatch creates a new stock batch from a purchase.
func NewStockBatch(
	itemID uuid.UUID,
	sourceTransactionID *string,
	transactionDate time.Time,
	warehouse string,
	unitCost decimal.Decimal,
	quantity decimal.Decimal,
) (*StockBatch, error) {
	if itemID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ITEM", "Item ID cannot be empty")
	}
	if warehouse == "" {
		return nil, shared.NewDomainError("INVALID_WAREHOUSE", "Warehouse is required")
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.ErrInvalidQuantity
	}
	if unitCost.IsNegative() {
		return nil, shared.NewDomainError("INVALID_COST", "Unit cost cannot be negative")
	}

	return &StockBatch{
		BaseEntity:          shared.NewBaseEntity(),
		ItemID:              itemID,
		SourceTransactionID: sourceTransactionID,
		TransactionDate:     transactionDate,
		Warehouse:           warehouse,
		UnitCost:            unitCost,
		OriginalQuantity:    quantity,
		RemainingQuantity:   quantity,
	}, nil
}

// Consume reduces the remaining quantity by the given amount.
// The amount must be positive and must not exceed the remaining quantity.
func (b *StockBatch) Consume(quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.ErrInvalidQuantity
	}
	if quantity.GreaterThan(b.RemainingQuantity) {
		return shared.ErrQuantityOutOfRange
	}
	b.RemainingQuantity = b.RemainingQuantity.Sub(quantity)
	b.UpdatedAt = time.Now()
	return nil
}

// Restore returns previously consumed quantity to the batch.
// The result must not exceed the original quantity.
func (b *StockBatch) Restore(quantity decimal.Decimal) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.ErrInvalidQuantity
	}
	restored := b.RemainingQuantity.Add(quantity)
	if restored.GreaterThan(b.OriginalQuantity) {
		return shared.ErrQuantityOutOfRange
	}
	b.RemainingQuantity = restored
	b.UpdatedAt = time.Now()
	return nil
}

// ResetRemaining restores the batch to its as-acquired state. Used by the
// replay engine on its in-memory working copy.
func (b *StockBatch) ResetRemaining() {
	b.RemainingQuantity = b.OriginalQuantity
}

// IsActive returns true if the batch still has unconsumed quantity
func (b *StockBatch) IsActive() bool {
	return b.RemainingQuantity.GreaterThan(decimal.Zero)
}

// RemainingValue returns the value of the unconsumed quantity
func (b *StockBatch) RemainingValue() decimal.Decimal {
	return b.RemainingQuantity.Mul(b.UnitCost)
}

// Before reports whether b precedes other in FIFO order:
// transaction date ascending, then creation order ascending.
func (b *StockBatch) Before(other *StockBatch) bool {
	if !b.TransactionDate.Equal(other.TransactionDate) {
		return b.TransactionDate.Before(other.TransactionDate)
	}
	return b.Seq < other.Seq
}
