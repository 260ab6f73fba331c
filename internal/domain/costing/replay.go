package costing

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleCorrection describes a sale event whose recorded cost or allocations
// changed during replay.
type SaleCorrection struct {
	SaleEventID uuid.UUID
	Record      *ConsumptionRecord
}

// ShortfallNote flags a sale that could not be fully covered during replay.
// Replay is documentation of historical state, not a validation pass, so
// shortfalls are reported rather than raised as errors.
type ShortfallNote struct {
	SaleEventID uuid.UUID
	Quantity    decimal.Decimal
}

// ReplayResult is the outcome of a deterministic recomputation of one
// item's batch state from its purchase and sale history.
type ReplayResult struct {
	// ChangedBatches holds the batches whose remaining quantity differs
	// from the persisted value; only these need to be written back.
	ChangedBatches []*StockBatch
	// Corrections holds the sale events whose recomputed record differs
	// from what was stored.
	Corrections []SaleCorrection
	// Shortfalls lists sales that exceeded available stock at their
	// position in history.
	Shortfalls []ShortfallNote
	// WarehouseStock and TotalStock are the recomputed ledger values.
	WarehouseStock WarehouseStock
	TotalStock     decimal.Decimal
	// AverageCost is the recomputed weighted average over active batches.
	AverageCost decimal.Decimal
}

// HasChanges returns true if the replay produced any batch or sale writes
func (r *ReplayResult) HasChanges() bool {
	return len(r.ChangedBatches) > 0 || len(r.Corrections) > 0
}

// Replay recomputes batch state and recorded costs for one item from the
// ordered history of its still-extant sale events:
//
//  1. Reset every batch's remaining quantity to its original quantity.
//  2. Re-run FIFO allocation for every sale, ordered by transaction date
//     ascending then creation order ascending.
//  3. Compare each recomputed record to the stored one and collect
//     corrections for those that drifted.
//  4. Collect the batches whose final remaining quantity differs from the
//     persisted value.
//
// The batches are mutated in place (they are the transaction's working
// copy); persistence of the result is the caller's concern. Running the
// replay twice with no intervening change yields an empty result, which is
// what makes the operation idempotent.
func Replay(itemID uuid.UUID, batches []*StockBatch, sales []*SaleEvent) *ReplayResult {
	persisted := make(map[uuid.UUID]decimal.Decimal, len(batches))
	for _, b := range batches {
		persisted[b.ID] = b.RemainingQuantity
		b.ResetRemaining()
	}

	ordered := make([]*SaleEvent, len(sales))
	copy(ordered, sales)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Before(ordered[j])
	})

	result := &ReplayResult{
		WarehouseStock: make(WarehouseStock),
	}

	for _, sale := range ordered {
		// Shortfalls must be tolerated here: the sale happened, whatever
		// today's batch state says about it.
		record, err := Allocate(itemID, batches, sale.Quantity, ShortfallPolicyAllow)
		if err != nil {
			// Only a non-positive quantity can fail under the allow
			// policy, and sale events are validated at creation.
			continue
		}

		if record.HasShortfall() {
			result.Shortfalls = append(result.Shortfalls, ShortfallNote{
				SaleEventID: sale.ID,
				Quantity:    record.Shortfall,
			})
		}
		if sale.ApplyCorrection(record) {
			result.Corrections = append(result.Corrections, SaleCorrection{
				SaleEventID: sale.ID,
				Record:      record,
			})
		}
	}

	for _, b := range batches {
		if !b.RemainingQuantity.Equal(persisted[b.ID]) {
			result.ChangedBatches = append(result.ChangedBatches, b)
		}
		if b.IsActive() {
			current := result.WarehouseStock[b.Warehouse]
			result.WarehouseStock[b.Warehouse] = current.Add(b.RemainingQuantity)
		}
		result.TotalStock = result.TotalStock.Add(b.RemainingQuantity)
	}
	result.AverageCost = WeightedAverageCost(batches)

	return result
}
