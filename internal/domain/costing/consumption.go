package costing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Allocation records the quantity taken from a single batch during FIFO
// consumption, at that batch's acquisition cost.
type Allocation struct {
	BatchID       uuid.UUID       `json:"batch_id"`
	QuantityTaken decimal.Decimal `json:"quantity_taken"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
}

// Cost returns the cost contribution of this allocation
func (a Allocation) Cost() decimal.Decimal {
	return a.QuantityTaken.Mul(a.UnitCost)
}

// ConsumptionRecord is the result of allocating a requested quantity across
// batches oldest-first. Shortfall is non-zero only under the allow-shortfall
// policy, when active batches could not cover the full request.
//
// Invariants: sum of allocation quantities plus Shortfall equals
// RequestedQuantity, and TotalCost equals the sum of allocation costs.
type ConsumptionRecord struct {
	ItemID            uuid.UUID       `json:"item_id"`
	RequestedQuantity decimal.Decimal `json:"requested_quantity"`
	TotalCost         decimal.Decimal `json:"total_cost"`
	Shortfall         decimal.Decimal `json:"shortfall"`
	Allocations       []Allocation    `json:"allocations"`
}

// ConsumedQuantity returns the quantity actually taken from batches
func (r *ConsumptionRecord) ConsumedQuantity() decimal.Decimal {
	return r.RequestedQuantity.Sub(r.Shortfall)
}

// HasShortfall returns true if the request could not be fully covered
func (r *ConsumptionRecord) HasShortfall() bool {
	return r.Shortfall.GreaterThan(decimal.Zero)
}

// UnitCost returns the effective per-unit cost of the consumed quantity,
// zero when nothing was consumed.
func (r *ConsumptionRecord) UnitCost() decimal.Decimal {
	consumed := r.ConsumedQuantity()
	if consumed.IsZero() {
		return decimal.Zero
	}
	return r.TotalCost.Div(consumed).Round(4)
}
