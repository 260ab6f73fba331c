package costing

import (
	"context"

	"github.com/glasserp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemRepository defines the interface for item aggregate persistence
type ItemRepository interface {
	// FindByID finds an item by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Item, error)

	// FindBySKU finds an item by its SKU
	FindBySKU(ctx context.Context, sku string) (*Item, error)

	// FindAll finds items matching the filter
	FindAll(ctx context.Context, filter shared.Filter) ([]*Item, error)

	// Save creates or updates an item
	Save(ctx context.Context, item *Item) error

	// SaveWithLock saves with optimistic locking (checks version);
	// returns CONCURRENCY_CONFLICT if the stored version moved.
	SaveWithLock(ctx context.Context, item *Item) error

	// Delete deletes an item
	Delete(ctx context.Context, id uuid.UUID) error

	// Count counts items matching the filter
	Count(ctx context.Context, filter shared.Filter) (int64, error)
}

// StockBatchRepository defines the interface for stock batch persistence.
// Ordered queries return batches in FIFO order: transaction date ascending,
// then creation order ascending.
type StockBatchRepository interface {
	// FindByID finds a stock batch by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*StockBatch, error)

	// FindActiveByItem finds batches with remaining quantity, FIFO-ordered
	FindActiveByItem(ctx context.Context, itemID uuid.UUID) ([]*StockBatch, error)

	// FindAllByItem finds all batches including exhausted ones,
	// FIFO-ordered (needed by the replay engine)
	FindAllByItem(ctx context.Context, itemID uuid.UUID) ([]*StockBatch, error)

	// Create creates a new batch and assigns its creation sequence
	Create(ctx context.Context, batch *StockBatch) error

	// Save persists an updated remaining quantity
	Save(ctx context.Context, batch *StockBatch) error

	// SaveAll persists updated remaining quantities for multiple batches
	SaveAll(ctx context.Context, batches []*StockBatch) error

	// DeleteBySourceTransaction removes all batches created by a purchase
	// transaction and returns how many were removed
	DeleteBySourceTransaction(ctx context.Context, itemID uuid.UUID, sourceTransactionID string) (int64, error)

	// SumRemainingByItem sums remaining quantity across an item's batches
	SumRemainingByItem(ctx context.Context, itemID uuid.UUID) (decimal.Decimal, error)
}

// SaleEventRepository defines the interface for sale history persistence
type SaleEventRepository interface {
	// FindByID finds a sale event by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*SaleEvent, error)

	// FindByItem finds all sale events for an item in replay order:
	// transaction date ascending, then creation order ascending
	FindByItem(ctx context.Context, itemID uuid.UUID) ([]*SaleEvent, error)

	// Create creates a new sale event and assigns its creation sequence
	Create(ctx context.Context, event *SaleEvent) error

	// Save persists a corrected recorded cost and allocations
	Save(ctx context.Context, event *SaleEvent) error

	// Delete deletes a sale event
	Delete(ctx context.Context, id uuid.UUID) error

	// CountByItem counts sale events for an item
	CountByItem(ctx context.Context, itemID uuid.UUID) (int64, error)
}
