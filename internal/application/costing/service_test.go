package costing

import (
	"context"
	"testing"
	"time"

	"github.com/glasserp/backend/internal/domain/costing"
	"github.com/glasserp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	store *memStore
	svc   *CostingService
}

func newFixture(t *testing.T, policy costing.ShortfallPolicy) *fixture {
	t.Helper()
	store := newMemStore()
	svc := NewCostingService(newMemScope(store), nil, zap.NewNop(), policy)
	return &fixture{store: store, svc: svc}
}

func (f *fixture) createItem(t *testing.T, sku string) uuid.UUID {
	t.Helper()
	resp, err := f.svc.CreateItem(context.Background(), sku, "Clear float glass 4mm")
	require.NoError(t, err)
	return uuid.MustParse(resp.ID)
}

func (f *fixture) purchase(t *testing.T, itemID uuid.UUID, date time.Time, cost, qty float64, warehouse, sourceTx string) *BatchResponse {
	t.Helper()
	req := RecordPurchaseRequest{
		ItemID:    itemID,
		Date:      date,
		UnitCost:  decimal.NewFromFloat(cost),
		Quantity:  decimal.NewFromFloat(qty),
		Warehouse: warehouse,
	}
	if sourceTx != "" {
		req.SourceTransactionID = &sourceTx
	}
	resp, err := f.svc.RecordPurchase(context.Background(), req)
	require.NoError(t, err)
	return resp
}

func (f *fixture) sale(t *testing.T, itemID uuid.UUID, date time.Time, qty float64, warehouse string) *ConsumptionResponse {
	t.Helper()
	resp, err := f.svc.RecordSale(context.Background(), RecordSaleRequest{
		ItemID:    itemID,
		Date:      date,
		Quantity:  decimal.NewFromFloat(qty),
		Warehouse: warehouse,
	})
	require.NoError(t, err)
	return resp
}

func (f *fixture) batchRemaining(itemID uuid.UUID) decimal.Decimal {
	sum := decimal.Zero
	for _, batch := range f.store.batches {
		if batch.ItemID == itemID {
			sum = sum.Add(batch.RemainingQuantity)
		}
	}
	return sum
}

func day(n int) time.Time {
	return time.Date(2026, 1, n, 0, 0, 0, 0, time.UTC)
}

func TestCreateItem(t *testing.T) {
	f := newFixture(t, costing.ShortfallPolicyReject)
	ctx := context.Background()

	t.Run("creates an item with empty ledger", func(t *testing.T) {
		resp, err := f.svc.CreateItem(ctx, "GLS-001", "Clear float glass 4mm")
		require.NoError(t, err)
		assert.Zero(t, resp.TotalStock)
		assert.Zero(t, resp.AverageCost)
	})

	t.Run("rejects a duplicate SKU", func(t *testing.T) {
		_, err := f.svc.CreateItem(ctx, "GLS-001", "duplicate")
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})
}

func TestRecordPurchase(t *testing.T) {
	ctx := context.Background()

	t.Run("credits the ledger and refreshes average cost", func(t *testing.T) {
		f := newFixture(t, costing.ShortfallPolicyReject)
		itemID := f.createItem(t, "GLS-001")

		f.purchase(t, itemID, day(1), 10, 5, "north", "")
		f.purchase(t, itemID, day(2), 20, 5, "south", "")

		item, err := f.svc.GetItem(ctx, itemID)
		require.NoError(t, err)
		assert.Equal(t, 10.0, item.TotalStock)
		assert.Equal(t, 15.0, item.AverageCost)
		assert.Equal(t, 5.0, item.WarehouseStock["north"])
		assert.Equal(t, 5.0, item.WarehouseStock["south"])
	})

	t.Run("fails for an unknown item", func(t *testing.T) {
		f := newFixture(t, costing.ShortfallPolicyReject)
		_, err := f.svc.RecordPurchase(ctx, RecordPurchaseRequest{
			ItemID:    uuid.New(),
			Date:      day(1),
			UnitCost:  decimal.NewFromInt(10),
			Quantity:  decimal.NewFromInt(5),
			Warehouse: "main",
		})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("rejects a non-positive quantity", func(t *testing.T) {
		f := newFixture(t, costing.ShortfallPolicyReject)
		itemID := f.createItem(t, "GLS-001")
		_, err := f.svc.RecordPurchase(ctx, RecordPurchaseRequest{
			ItemID:    itemID,
			Date:      day(1),
			UnitCost:  decimal.NewFromInt(10),
			Quantity:  decimal.Zero,
			Warehouse: "main",
		})
		assert.ErrorIs(t, err, shared.ErrInvalidQuantity)
	})
}

func TestRecordSale(t *testing.T) {
	ctx := context.Background()

	t.Run("consumes oldest batches first", func(t *testing.T) {
		f := newFixture(t, costing.ShortfallPolicyReject)
		itemID := f.createItem(t, "GLS-001")
		f.purchase(t, itemID, day(1), 10, 5, "main", "")
		f.purchase(t, itemID, day(2), 20, 5, "main", "")

		resp := f.sale(t, itemID, day(3), 7, "main")

		// 5*10 + 2*20
		assert.Equal(t, 90.0, resp.TotalCost)
		require.Len(t, resp.Allocations, 2)
		assert.Equal(t, 5.0, resp.Allocations[0].QuantityTaken)
		assert.Equal(t, 2.0, resp.Allocations[1].QuantityTaken)

		item, err := f.svc.GetItem(ctx, itemID)
		require.NoError(t, err)
		assert.Equal(t, 3.0, item.TotalStock)
		assert.Equal(t, 20.0, item.AverageCost)
	})

	t.Run("keeps ledger, batches and total in agreement", func(t *testing.T) {
		f := newFixture(t, costing.ShortfallPolicyReject)
		itemID := f.createItem(t, "GLS-001")
		f.purchase(t, itemID, day(1), 10, 5, "north", "")
		f.purchase(t, itemID, day(2), 20, 8, "south", "")
		f.sale(t, itemID, day(3), 7, "north")
		f.purchase(t, itemID, day(4), 12, 3, "north", "")
		f.sale(t, itemID, day(5), 2, "south")

		stored := f.store.items[itemID]
		assert.True(t, stored.TotalStock.Equal(f.batchRemaining(itemID)))
		assert.True(t, stored.WarehouseStock.Sum().Equal(stored.TotalStock))
	})

	t.Run("rejects insufficient stock atomically", func(t *testing.T) {
		f := newFixture(t, costing.ShortfallPolicyReject)
		itemID := f.createItem(t, "GLS-001")
		f.purchase(t, itemID, day(1), 10, 5, "main", "")

		_, err := f.svc.RecordSale(ctx, RecordSaleRequest{
			ItemID:    itemID,
			Date:      day(2),
			Quantity:  decimal.NewFromInt(9),
			Warehouse: "main",
		})
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)

		// Nothing was persisted
		assert.True(t, f.batchRemaining(itemID).Equal(decimal.NewFromInt(5)))
		sales, err := f.svc.ListSales(ctx, itemID)
		require.NoError(t, err)
		assert.Empty(t, sales)
	})

	t.Run("allow policy records the shortfall", func(t *testing.T) {
		f := newFixture(t, costing.ShortfallPolicyAllow)
		itemID := f.createItem(t, "GLS-001")
		f.purchase(t, itemID, day(1), 10, 5, "main", "")

		resp := f.sale(t, itemID, day(2), 8, "main")
		assert.Equal(t, 3.0, resp.Shortfall)
		assert.Equal(t, 50.0, resp.TotalCost)

		sales, err := f.svc.ListSales(ctx, itemID)
		require.NoError(t, err)
		require.Len(t, sales, 1)
		assert.Equal(t, 3.0, sales[0].Shortfall)
	})

	t.Run("retries once after a concurrency conflict", func(t *testing.T) {
		f := newFixture(t, costing.ShortfallPolicyReject)
		itemID := f.createItem(t, "GLS-001")
		f.purchase(t, itemID, day(1), 10, 5, "main", "")

		f.store.itemConflicts = 1
		resp := f.sale(t, itemID, day(2), 3, "main")
		assert.Equal(t, 30.0, resp.TotalCost)

		// The rolled-back first attempt left no trace
		sales, err := f.svc.ListSales(ctx, itemID)
		require.NoError(t, err)
		require.Len(t, sales, 1)
		assert.True(t, f.batchRemaining(itemID).Equal(decimal.NewFromInt(2)))
	})

	t.Run("repairs a drifted ledger and retries", func(t *testing.T) {
		f := newFixture(t, costing.ShortfallPolicyReject)
		itemID := f.createItem(t, "GLS-001")
		f.purchase(t, itemID, day(1), 5, 10, "main", "")

		// Corrupt the persisted ledger so it under-reports the batches.
		stored := f.store.items[itemID]
		stored.WarehouseStock = costing.WarehouseStock{"main": decimal.NewFromInt(2)}
		stored.TotalStock = decimal.NewFromInt(2)

		resp := f.sale(t, itemID, day(2), 5, "main")
		assert.Equal(t, 25.0, resp.TotalCost)

		item, err := f.svc.GetItem(ctx, itemID)
		require.NoError(t, err)
		assert.Equal(t, 5.0, item.TotalStock)
		assert.Equal(t, 5.0, item.WarehouseStock["main"])
	})
}

func TestReverseConsumption(t *testing.T) {
	ctx := context.Background()

	t.Run("restores batches and ledger and removes the event", func(t *testing.T) {
		f := newFixture(t, costing.ShortfallPolicyReject)
		itemID := f.createItem(t, "GLS-001")
		f.purchase(t, itemID, day(1), 5, 10, "main", "")
		saleResp := f.sale(t, itemID, day(2), 4, "main")

		reversed, err := f.svc.ReverseConsumption(ctx, uuid.MustParse(saleResp.SaleEventID))
		require.NoError(t, err)
		assert.Equal(t, 20.0, reversed.TotalCost)

		item, err := f.svc.GetItem(ctx, itemID)
		require.NoError(t, err)
		assert.Equal(t, 10.0, item.TotalStock)
		assert.True(t, f.batchRemaining(itemID).Equal(decimal.NewFromInt(10)))

		sales, err := f.svc.ListSales(ctx, itemID)
		require.NoError(t, err)
		assert.Empty(t, sales)
	})

	t.Run("fails for an unknown event", func(t *testing.T) {
		f := newFixture(t, costing.ShortfallPolicyReject)
		_, err := f.svc.ReverseConsumption(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestUndoSale(t *testing.T) {
	ctx := context.Background()

	t.Run("recosts later sales against freed stock", func(t *testing.T) {
		f := newFixture(t, costing.ShortfallPolicyReject)
		itemID := f.createItem(t, "GLS-001")
		f.purchase(t, itemID, day(1), 10, 5, "main", "")
		f.purchase(t, itemID, day(2), 20, 5, "main", "")

		first := f.sale(t, itemID, day(3), 5, "main")
		second := f.sale(t, itemID, day(4), 5, "main")
		require.Equal(t, 50.0, first.TotalCost)
		require.Equal(t, 100.0, second.TotalCost)

		result, err := f.svc.UndoSale(ctx, uuid.MustParse(first.SaleEventID))
		require.NoError(t, err)
		assert.Equal(t, 1, result.CostsCorrected)
		assert.Equal(t, 5.0, result.TotalStock)
		assert.Equal(t, 20.0, result.AverageCost)

		sales, err := f.svc.ListSales(ctx, itemID)
		require.NoError(t, err)
		require.Len(t, sales, 1)
		assert.Equal(t, 50.0, sales[0].RecordedCost)
	})
}

func TestUndoPurchase(t *testing.T) {
	ctx := context.Background()

	t.Run("recosts sales that consumed the revoked batches", func(t *testing.T) {
		f := newFixture(t, costing.ShortfallPolicyReject)
		itemID := f.createItem(t, "GLS-001")
		f.purchase(t, itemID, day(1), 4, 20, "main", "PO-1")
		f.purchase(t, itemID, day(2), 5, 10, "main", "PO-2")

		saleResp := f.sale(t, itemID, day(3), 10, "main")
		require.Equal(t, 40.0, saleResp.TotalCost)

		result, err := f.svc.UndoPurchase(ctx, itemID, "PO-1")
		require.NoError(t, err)
		assert.Equal(t, 1, result.CostsCorrected)
		assert.Equal(t, 0.0, result.TotalStock)

		sales, err := f.svc.ListSales(ctx, itemID)
		require.NoError(t, err)
		require.Len(t, sales, 1)
		assert.Equal(t, 50.0, sales[0].RecordedCost)

		item, err := f.svc.GetItem(ctx, itemID)
		require.NoError(t, err)
		assert.Equal(t, 0.0, item.TotalStock)
	})

	t.Run("fails when no batches match the source transaction", func(t *testing.T) {
		f := newFixture(t, costing.ShortfallPolicyReject)
		itemID := f.createItem(t, "GLS-001")
		f.purchase(t, itemID, day(1), 4, 20, "main", "PO-1")

		_, err := f.svc.UndoPurchase(ctx, itemID, "PO-9")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestReplayItemHistory(t *testing.T) {
	ctx := context.Background()

	t.Run("second run performs no writes", func(t *testing.T) {
		f := newFixture(t, costing.ShortfallPolicyReject)
		itemID := f.createItem(t, "GLS-001")
		f.purchase(t, itemID, day(1), 10, 5, "main", "")
		f.purchase(t, itemID, day(2), 20, 5, "main", "")
		f.sale(t, itemID, day(3), 7, "main")

		first, err := f.svc.ReplayItemHistory(ctx, itemID)
		require.NoError(t, err)
		assert.Zero(t, first.BatchesChanged)
		assert.Zero(t, first.CostsCorrected)

		second, err := f.svc.ReplayItemHistory(ctx, itemID)
		require.NoError(t, err)
		assert.Zero(t, second.BatchesChanged)
		assert.Zero(t, second.CostsCorrected)
	})

	t.Run("heals manually corrupted batch state", func(t *testing.T) {
		f := newFixture(t, costing.ShortfallPolicyReject)
		itemID := f.createItem(t, "GLS-001")
		batch := f.purchase(t, itemID, day(1), 10, 5, "main", "")
		f.sale(t, itemID, day(2), 3, "main")

		stored := f.store.batches[uuid.MustParse(batch.ID)]
		stored.RemainingQuantity = stored.OriginalQuantity

		result, err := f.svc.ReplayItemHistory(ctx, itemID)
		require.NoError(t, err)
		assert.Equal(t, 1, result.BatchesChanged)
		assert.True(t, f.batchRemaining(itemID).Equal(decimal.NewFromInt(2)))
	})
}

func TestRecomputeAverageCost(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, costing.ShortfallPolicyReject)
	itemID := f.createItem(t, "GLS-001")
	f.purchase(t, itemID, day(1), 10, 5, "main", "")
	f.purchase(t, itemID, day(2), 20, 5, "main", "")

	cost, err := f.svc.RecomputeAverageCost(ctx, itemID)
	require.NoError(t, err)
	assert.True(t, cost.Equal(decimal.NewFromInt(15)))
}
