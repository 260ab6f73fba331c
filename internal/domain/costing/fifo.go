package costing

import (
	"sort"

	"github.com/glasserp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ShortfallPolicy controls what happens when a consumption request exceeds
// the total active batch quantity.
type ShortfallPolicy string

const (
	// ShortfallPolicyReject fails the whole operation with
	// INSUFFICIENT_STOCK and performs no mutation.
	ShortfallPolicyReject ShortfallPolicy = "reject"
	// ShortfallPolicyAllow partially consumes the available quantity and
	// reports the uncovered remainder on the result.
	ShortfallPolicyAllow ShortfallPolicy = "allow_shortfall"
)

// IsValid returns true if the policy is a known value
func (p ShortfallPolicy) IsValid() bool {
	return p == ShortfallPolicyReject || p == ShortfallPolicyAllow
}

// String returns the string representation of the policy
func (p ShortfallPolicy) String() string {
	return string(p)
}

// Allocate walks the item's batches oldest-first and takes
// min(remaining, still needed) from each until the request is covered,
// mutating the batches' remaining quantities in place.
//
// Batches are sorted by transaction date ascending with creation order as
// the stable tie-break, so callers do not need to pre-sort. Under the
// reject policy the total available quantity is checked up front and no
// batch is touched on failure.
func Allocate(
	itemID uuid.UUID,
	batches []*StockBatch,
	requested decimal.Decimal,
	policy ShortfallPolicy,
) (*ConsumptionRecord, error) {
	if requested.LessThanOrEqual(decimal.Zero) {
		return nil, shared.ErrInvalidQuantity
	}
	if !policy.IsValid() {
		policy = ShortfallPolicyReject
	}

	ordered := make([]*StockBatch, 0, len(batches))
	for _, b := range batches {
		if b.ItemID == itemID && b.IsActive() {
			ordered = append(ordered, b)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Before(ordered[j])
	})

	if policy == ShortfallPolicyReject {
		available := decimal.Zero
		for _, b := range ordered {
			available = available.Add(b.RemainingQuantity)
		}
		if available.LessThan(requested) {
			return nil, shared.ErrInsufficientStock
		}
	}

	record := &ConsumptionRecord{
		ItemID:            itemID,
		RequestedQuantity: requested,
		TotalCost:         decimal.Zero,
		Allocations:       make([]Allocation, 0, len(ordered)),
	}

	stillNeeded := requested
	for _, batch := range ordered {
		if stillNeeded.IsZero() {
			break
		}

		taken := decimal.Min(stillNeeded, batch.RemainingQuantity)
		if err := batch.Consume(taken); err != nil {
			return nil, err
		}

		record.Allocations = append(record.Allocations, Allocation{
			BatchID:       batch.ID,
			QuantityTaken: taken,
			UnitCost:      batch.UnitCost,
		})
		record.TotalCost = record.TotalCost.Add(taken.Mul(batch.UnitCost))
		stillNeeded = stillNeeded.Sub(taken)
	}

	record.Shortfall = stillNeeded
	return record, nil
}
