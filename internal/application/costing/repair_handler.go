package costing

import (
	"context"

	"github.com/glasserp/backend/internal/domain/costing"
	"github.com/glasserp/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// RepairHandler reacts to ledger violations by replaying the affected
// item's history. A negative-stock event means the persisted ledger
// drifted from the batch state, which the replay reconciles.
type RepairHandler struct {
	service *CostingService
	logger  *zap.Logger
}

// NewRepairHandler creates a new RepairHandler
func NewRepairHandler(service *CostingService, logger *zap.Logger) *RepairHandler {
	return &RepairHandler{
		service: service,
		logger:  logger,
	}
}

// EventTypes returns the event types this handler subscribes to
func (h *RepairHandler) EventTypes() []string {
	return []string{costing.EventTypeNegativeStockDetected}
}

// Handle triggers a history replay for the item that reported the violation
func (h *RepairHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	itemID := event.AggregateID()
	h.logger.Warn("negative stock detected, replaying item history",
		zap.String("item_id", itemID.String()))

	result, err := h.service.ReplayItemHistory(ctx, itemID)
	if err != nil {
		h.logger.Error("consistency repair failed",
			zap.String("item_id", itemID.String()),
			zap.Error(err))
		return err
	}

	h.logger.Info("consistency repair finished",
		zap.String("item_id", itemID.String()),
		zap.Int("batches_changed", result.BatchesChanged),
		zap.Int("costs_corrected", result.CostsCorrected))
	return nil
}

var _ shared.EventHandler = (*RepairHandler)(nil)
