package costing

import (
	"errors"
	"testing"
	"time"

	"github.com/glasserp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBatch(t *testing.T, itemID uuid.UUID, date time.Time, seq int64, unitCost, quantity float64) *StockBatch {
	t.Helper()
	b, err := NewStockBatch(itemID, nil, date, "main", decimal.NewFromFloat(unitCost), decimal.NewFromFloat(quantity))
	require.NoError(t, err)
	b.Seq = seq
	return b
}

func day(n int) time.Time {
	return time.Date(2026, 1, n, 0, 0, 0, 0, time.UTC)
}

func TestAllocate(t *testing.T) {
	itemID := uuid.New()

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		_, err := Allocate(itemID, nil, decimal.Zero, ShortfallPolicyReject)
		assert.ErrorIs(t, err, shared.ErrInvalidQuantity)

		_, err = Allocate(itemID, nil, decimal.NewFromInt(-5), ShortfallPolicyReject)
		assert.ErrorIs(t, err, shared.ErrInvalidQuantity)
	})

	t.Run("consumes oldest batches first", func(t *testing.T) {
		batches := []*StockBatch{
			testBatch(t, itemID, day(3), 3, 30, 5),
			testBatch(t, itemID, day(1), 1, 10, 5),
			testBatch(t, itemID, day(2), 2, 20, 5),
		}

		record, err := Allocate(itemID, batches, decimal.NewFromInt(7), ShortfallPolicyReject)
		require.NoError(t, err)

		require.Len(t, record.Allocations, 2)
		assert.Equal(t, batches[1].ID, record.Allocations[0].BatchID)
		assert.True(t, record.Allocations[0].QuantityTaken.Equal(decimal.NewFromInt(5)))
		assert.Equal(t, batches[2].ID, record.Allocations[1].BatchID)
		assert.True(t, record.Allocations[1].QuantityTaken.Equal(decimal.NewFromInt(2)))

		// 5*10 + 2*20
		assert.True(t, record.TotalCost.Equal(decimal.NewFromInt(90)))
		assert.True(t, record.Shortfall.IsZero())

		assert.True(t, batches[1].RemainingQuantity.IsZero())
		assert.True(t, batches[2].RemainingQuantity.Equal(decimal.NewFromInt(3)))
		assert.True(t, batches[0].RemainingQuantity.Equal(decimal.NewFromInt(5)))
	})

	t.Run("breaks date ties by creation order", func(t *testing.T) {
		batches := []*StockBatch{
			testBatch(t, itemID, day(1), 2, 20, 5),
			testBatch(t, itemID, day(1), 1, 10, 5),
		}

		record, err := Allocate(itemID, batches, decimal.NewFromInt(6), ShortfallPolicyReject)
		require.NoError(t, err)

		require.Len(t, record.Allocations, 2)
		assert.Equal(t, batches[1].ID, record.Allocations[0].BatchID)
		assert.True(t, record.TotalCost.Equal(decimal.NewFromInt(70)))
	})

	t.Run("skips exhausted batches and other items", func(t *testing.T) {
		other := testBatch(t, uuid.New(), day(1), 1, 5, 100)
		exhausted := testBatch(t, itemID, day(1), 2, 10, 5)
		require.NoError(t, exhausted.Consume(decimal.NewFromInt(5)))
		live := testBatch(t, itemID, day(2), 3, 20, 10)

		record, err := Allocate(itemID, []*StockBatch{other, exhausted, live}, decimal.NewFromInt(4), ShortfallPolicyReject)
		require.NoError(t, err)

		require.Len(t, record.Allocations, 1)
		assert.Equal(t, live.ID, record.Allocations[0].BatchID)
		assert.True(t, other.RemainingQuantity.Equal(decimal.NewFromInt(100)))
	})

	t.Run("reject policy fails atomically on insufficient stock", func(t *testing.T) {
		batches := []*StockBatch{
			testBatch(t, itemID, day(1), 1, 10, 5),
			testBatch(t, itemID, day(2), 2, 20, 3),
		}

		_, err := Allocate(itemID, batches, decimal.NewFromInt(9), ShortfallPolicyReject)
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)

		// No batch was touched
		assert.True(t, batches[0].RemainingQuantity.Equal(decimal.NewFromInt(5)))
		assert.True(t, batches[1].RemainingQuantity.Equal(decimal.NewFromInt(3)))
	})

	t.Run("allow policy reports shortfall", func(t *testing.T) {
		batches := []*StockBatch{
			testBatch(t, itemID, day(1), 1, 10, 5),
		}

		record, err := Allocate(itemID, batches, decimal.NewFromInt(8), ShortfallPolicyAllow)
		require.NoError(t, err)

		assert.True(t, record.HasShortfall())
		assert.True(t, record.Shortfall.Equal(decimal.NewFromInt(3)))
		assert.True(t, record.ConsumedQuantity().Equal(decimal.NewFromInt(5)))
		assert.True(t, record.TotalCost.Equal(decimal.NewFromInt(50)))
		assert.True(t, batches[0].RemainingQuantity.IsZero())
	})

	t.Run("total cost equals sum of allocation costs", func(t *testing.T) {
		batches := []*StockBatch{
			testBatch(t, itemID, day(1), 1, 12.5, 4),
			testBatch(t, itemID, day(2), 2, 17.25, 6),
		}

		record, err := Allocate(itemID, batches, decimal.NewFromInt(8), ShortfallPolicyReject)
		require.NoError(t, err)

		sum := decimal.Zero
		taken := decimal.Zero
		for _, a := range record.Allocations {
			sum = sum.Add(a.Cost())
			taken = taken.Add(a.QuantityTaken)
		}
		assert.True(t, record.TotalCost.Equal(sum))
		assert.True(t, taken.Equal(record.RequestedQuantity))
	})
}

func TestShortfallPolicy(t *testing.T) {
	assert.True(t, ShortfallPolicyReject.IsValid())
	assert.True(t, ShortfallPolicyAllow.IsValid())
	assert.False(t, ShortfallPolicy("truncate").IsValid())
}

func TestStockBatchGuards(t *testing.T) {
	itemID := uuid.New()

	t.Run("creation rejects non-positive quantity", func(t *testing.T) {
		_, err := NewStockBatch(itemID, nil, day(1), "main", decimal.NewFromInt(10), decimal.Zero)
		assert.ErrorIs(t, err, shared.ErrInvalidQuantity)
	})

	t.Run("creation rejects negative cost", func(t *testing.T) {
		_, err := NewStockBatch(itemID, nil, day(1), "main", decimal.NewFromInt(-1), decimal.NewFromInt(10))
		var domainErr *shared.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, "INVALID_COST", domainErr.Code)
	})

	t.Run("consume cannot exceed remaining", func(t *testing.T) {
		b := testBatch(t, itemID, day(1), 1, 10, 5)
		err := b.Consume(decimal.NewFromInt(6))
		assert.ErrorIs(t, err, shared.ErrQuantityOutOfRange)
		assert.True(t, b.RemainingQuantity.Equal(decimal.NewFromInt(5)))
	})

	t.Run("restore cannot exceed original", func(t *testing.T) {
		b := testBatch(t, itemID, day(1), 1, 10, 5)
		require.NoError(t, b.Consume(decimal.NewFromInt(3)))
		err := b.Restore(decimal.NewFromInt(4))
		assert.ErrorIs(t, err, shared.ErrQuantityOutOfRange)
		assert.True(t, b.RemainingQuantity.Equal(decimal.NewFromInt(2)))
	})

	t.Run("consume then restore round-trips", func(t *testing.T) {
		b := testBatch(t, itemID, day(1), 1, 10, 5)
		require.NoError(t, b.Consume(decimal.NewFromInt(3)))
		require.NoError(t, b.Restore(decimal.NewFromInt(3)))
		assert.True(t, b.RemainingQuantity.Equal(b.OriginalQuantity))
	})
}
