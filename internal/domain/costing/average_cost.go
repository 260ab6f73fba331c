package costing

import "github.com/shopspring/decimal"

// WeightedAverageCost derives an item's current average cost from its
// active batches: sum(remaining * unit cost) / sum(remaining).
// Returns zero when no quantity remains.
func WeightedAverageCost(batches []*StockBatch) decimal.Decimal {
	totalQty := decimal.Zero
	totalValue := decimal.Zero

	for _, b := range batches {
		if !b.IsActive() {
			continue
		}
		totalQty = totalQty.Add(b.RemainingQuantity)
		totalValue = totalValue.Add(b.RemainingValue())
	}

	if totalQty.IsZero() {
		return decimal.Zero
	}
	return totalValue.Div(totalQty).Round(4)
}
