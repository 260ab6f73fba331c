package costing

import (
	"context"
	"errors"

	"github.com/glasserp/backend/internal/domain/costing"
	"github.com/glasserp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CostingService orchestrates FIFO inventory costing: purchases create
// stock batches, sales consume them oldest-first, and history edits are
// healed by a deterministic replay. Every compound operation runs inside
// a single transaction scope.
type CostingService struct {
	txScope   TransactionScope
	publisher shared.EventPublisher
	logger    *zap.Logger
	policy    costing.ShortfallPolicy
}

// NewCostingService creates a new costing service. An invalid shortfall
// policy falls back to reject.
func NewCostingService(
	txScope TransactionScope,
	publisher shared.EventPublisher,
	logger *zap.Logger,
	policy costing.ShortfallPolicy,
) *CostingService {
	if !policy.IsValid() {
		policy = costing.ShortfallPolicyReject
	}
	return &CostingService{
		txScope:   txScope,
		publisher: publisher,
		logger:    logger,
		policy:    policy,
	}
}

// CreateItem registers a new item with an empty stock ledger
func (s *CostingService) CreateItem(ctx context.Context, sku, name string) (*ItemResponse, error) {
	item, err := costing.NewItem(sku, name)
	if err != nil {
		return nil, err
	}

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		existing, err := repos.ItemRepo().FindBySKU(ctx, sku)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		if existing != nil {
			return shared.ErrAlreadyExists
		}
		return repos.ItemRepo().Save(ctx, item)
	})
	if err != nil {
		return nil, err
	}

	resp := ToItemResponse(item)
	return &resp, nil
}

// GetItem returns one item by ID
func (s *CostingService) GetItem(ctx context.Context, itemID uuid.UUID) (*ItemResponse, error) {
	var resp ItemResponse
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		item, err := repos.ItemRepo().FindByID(ctx, itemID)
		if err != nil {
			return err
		}
		resp = ToItemResponse(item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetItemBySKU returns one item by SKU
func (s *CostingService) GetItemBySKU(ctx context.Context, sku string) (*ItemResponse, error) {
	var resp ItemResponse
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		item, err := repos.ItemRepo().FindBySKU(ctx, sku)
		if err != nil {
			return err
		}
		resp = ToItemResponse(item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListItems returns a page of items
func (s *CostingService) ListItems(ctx context.Context, filter shared.Filter) (*shared.Paginated[ItemResponse], error) {
	var page shared.Paginated[ItemResponse]
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		items, err := repos.ItemRepo().FindAll(ctx, filter)
		if err != nil {
			return err
		}
		total, err := repos.ItemRepo().Count(ctx, filter)
		if err != nil {
			return err
		}
		responses := make([]ItemResponse, len(items))
		for i, item := range items {
			responses[i] = ToItemResponse(item)
		}
		page = shared.NewPaginated(responses, total, filter.Page, filter.PageSize)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// ListBatches returns an item's batches in FIFO order. With activeOnly,
// exhausted batches are excluded.
func (s *CostingService) ListBatches(ctx context.Context, itemID uuid.UUID, activeOnly bool) ([]BatchResponse, error) {
	var responses []BatchResponse
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if _, err := repos.ItemRepo().FindByID(ctx, itemID); err != nil {
			return err
		}
		var (
			batches []*costing.StockBatch
			err     error
		)
		if activeOnly {
			batches, err = repos.BatchRepo().FindActiveByItem(ctx, itemID)
		} else {
			batches, err = repos.BatchRepo().FindAllByItem(ctx, itemID)
		}
		if err != nil {
			return err
		}
		responses = ToBatchResponses(batches)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return responses, nil
}

// ListSales returns an item's sale events in replay order
func (s *CostingService) ListSales(ctx context.Context, itemID uuid.UUID) ([]SaleEventResponse, error) {
	var responses []SaleEventResponse
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if _, err := repos.ItemRepo().FindByID(ctx, itemID); err != nil {
			return err
		}
		sales, err := repos.SaleRepo().FindByItem(ctx, itemID)
		if err != nil {
			return err
		}
		responses = ToSaleEventResponses(sales)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return responses, nil
}

// RecordPurchase creates a stock batch from an incoming line, credits the
// warehouse ledger and refreshes the item's average cost.
func (s *CostingService) RecordPurchase(ctx context.Context, req RecordPurchaseRequest) (*BatchResponse, error) {
	batch, err := costing.NewStockBatch(
		req.ItemID, req.SourceTransactionID, req.Date,
		req.Warehouse, req.UnitCost, req.Quantity,
	)
	if err != nil {
		return nil, err
	}

	var events []shared.DomainEvent
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		item, err := repos.ItemRepo().FindByID(ctx, req.ItemID)
		if err != nil {
			return err
		}
		if err := repos.BatchRepo().Create(ctx, batch); err != nil {
			return err
		}
		if err := item.ApplyDelta(batch.Warehouse, batch.OriginalQuantity); err != nil {
			return err
		}
		active, err := repos.BatchRepo().FindActiveByItem(ctx, req.ItemID)
		if err != nil {
			return err
		}
		item.SetAverageCost(costing.WeightedAverageCost(active))
		item.AddDomainEvent(costing.NewBatchCreatedEvent(item, batch))
		if err := repos.ItemRepo().SaveWithLock(ctx, item); err != nil {
			return err
		}
		events = drainEvents(item)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events)
	resp := ToBatchResponse(batch)
	return &resp, nil
}

// RecordSale consumes stock FIFO for an outgoing line and persists the
// resulting sale event. A concurrency conflict is retried once against
// re-read state. A ledger violation triggers a history replay, then one
// retry; the violation means the persisted ledger had drifted from the
// batch state.
func (s *CostingService) RecordSale(ctx context.Context, req RecordSaleRequest) (*ConsumptionResponse, error) {
	resp, err := s.recordSaleOnce(ctx, req)
	if err == nil {
		return resp, nil
	}

	switch {
	case errors.Is(err, shared.ErrNegativeStock):
		s.logger.Warn("stock ledger violation on sale, replaying history",
			zap.String("item_id", req.ItemID.String()))
		if _, replayErr := s.ReplayItemHistory(ctx, req.ItemID); replayErr != nil {
			return nil, replayErr
		}
		return s.recordSaleOnce(ctx, req)
	case errors.Is(err, shared.ErrConcurrencyConflict):
		return s.recordSaleOnce(ctx, req)
	default:
		return nil, err
	}
}

func (s *CostingService) recordSaleOnce(ctx context.Context, req RecordSaleRequest) (*ConsumptionResponse, error) {
	var (
		resp   ConsumptionResponse
		events []shared.DomainEvent
	)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		item, err := repos.ItemRepo().FindByID(ctx, req.ItemID)
		if err != nil {
			return err
		}
		batches, err := repos.BatchRepo().FindActiveByItem(ctx, req.ItemID)
		if err != nil {
			return err
		}

		record, err := costing.Allocate(req.ItemID, batches, req.Quantity, s.policy)
		if err != nil {
			return err
		}

		sale, err := costing.NewSaleEvent(req.ItemID, req.Warehouse, req.Date, record)
		if err != nil {
			return err
		}
		if err := repos.SaleRepo().Create(ctx, sale); err != nil {
			return err
		}

		byID := make(map[uuid.UUID]*costing.StockBatch, len(batches))
		for _, b := range batches {
			byID[b.ID] = b
		}
		touched := make([]*costing.StockBatch, 0, len(record.Allocations))
		for _, alloc := range record.Allocations {
			batch := byID[alloc.BatchID]
			if err := item.ApplyDelta(batch.Warehouse, alloc.QuantityTaken.Neg()); err != nil {
				events = drainEvents(item)
				return err
			}
			touched = append(touched, batch)
		}
		if err := repos.BatchRepo().SaveAll(ctx, touched); err != nil {
			return err
		}

		item.SetAverageCost(costing.WeightedAverageCost(batches))
		item.AddDomainEvent(costing.NewStockConsumedEvent(item, record))
		if err := repos.ItemRepo().SaveWithLock(ctx, item); err != nil {
			return err
		}

		events = drainEvents(item)
		resp = ToConsumptionResponse(sale.ID, record)
		return nil
	})

	// Publish even on a ledger violation so the repair handler sees it.
	s.publish(ctx, events)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReverseConsumption undoes one sale by restoring its recorded allocations
// to their source batches and deleting the event. Only safe while the
// event is the latest consumption of those batches; for arbitrary history
// edits use UndoSale, which replays.
func (s *CostingService) ReverseConsumption(ctx context.Context, saleEventID uuid.UUID) (*ConsumptionResponse, error) {
	var (
		resp   ConsumptionResponse
		events []shared.DomainEvent
	)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		sale, err := repos.SaleRepo().FindByID(ctx, saleEventID)
		if err != nil {
			return err
		}
		item, err := repos.ItemRepo().FindByID(ctx, sale.ItemID)
		if err != nil {
			return err
		}
		batches, err := repos.BatchRepo().FindAllByItem(ctx, sale.ItemID)
		if err != nil {
			return err
		}
		byID := make(map[uuid.UUID]*costing.StockBatch, len(batches))
		for _, b := range batches {
			byID[b.ID] = b
		}

		touched := make([]*costing.StockBatch, 0, len(sale.Allocations))
		for _, alloc := range sale.Allocations {
			batch, ok := byID[alloc.BatchID]
			if !ok {
				return shared.ErrInvalidState
			}
			if err := batch.Restore(alloc.QuantityTaken); err != nil {
				return err
			}
			if err := item.ApplyDelta(batch.Warehouse, alloc.QuantityTaken); err != nil {
				return err
			}
			touched = append(touched, batch)
		}
		if err := repos.BatchRepo().SaveAll(ctx, touched); err != nil {
			return err
		}
		if err := repos.SaleRepo().Delete(ctx, sale.ID); err != nil {
			return err
		}

		record := sale.Record()
		item.SetAverageCost(costing.WeightedAverageCost(batches))
		item.AddDomainEvent(costing.NewConsumptionReversedEvent(item, record))
		if err := repos.ItemRepo().SaveWithLock(ctx, item); err != nil {
			return err
		}

		events = drainEvents(item)
		resp = ToConsumptionResponse(sale.ID, record)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events)
	return &resp, nil
}

// UndoSale removes a sale event from history and replays the item so that
// every later sale is re-costed against the freed stock.
func (s *CostingService) UndoSale(ctx context.Context, saleEventID uuid.UUID) (*ReplayResponse, error) {
	var (
		resp   ReplayResponse
		events []shared.DomainEvent
	)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		sale, err := repos.SaleRepo().FindByID(ctx, saleEventID)
		if err != nil {
			return err
		}
		item, err := repos.ItemRepo().FindByID(ctx, sale.ItemID)
		if err != nil {
			return err
		}
		if err := repos.SaleRepo().Delete(ctx, sale.ID); err != nil {
			return err
		}

		result, err := s.replayWithin(ctx, repos, item)
		if err != nil {
			return err
		}
		events = drainEvents(item)
		resp = toReplayResponse(item, result)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events)
	return &resp, nil
}

// UndoPurchase removes the batches created by one purchase transaction and
// replays the item; sales that had consumed those batches are re-costed
// onto the remaining ones.
func (s *CostingService) UndoPurchase(ctx context.Context, itemID uuid.UUID, sourceTransactionID string) (*ReplayResponse, error) {
	if sourceTransactionID == "" {
		return nil, shared.ErrInvalidInput
	}

	var (
		resp   ReplayResponse
		events []shared.DomainEvent
	)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		item, err := repos.ItemRepo().FindByID(ctx, itemID)
		if err != nil {
			return err
		}
		removed, err := repos.BatchRepo().DeleteBySourceTransaction(ctx, itemID, sourceTransactionID)
		if err != nil {
			return err
		}
		if removed == 0 {
			return shared.ErrNotFound
		}
		item.AddDomainEvent(costing.NewPurchaseRevokedEvent(item, sourceTransactionID, removed))

		result, err := s.replayWithin(ctx, repos, item)
		if err != nil {
			return err
		}
		events = drainEvents(item)
		resp = toReplayResponse(item, result)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events)
	return &resp, nil
}

// ReplayItemHistory deterministically recomputes one item's batch state,
// recorded sale costs, stock ledger and average cost from its surviving
// history. Only rows that actually drifted are written back, so a second
// run with no intervening change performs zero writes.
func (s *CostingService) ReplayItemHistory(ctx context.Context, itemID uuid.UUID) (*ReplayResponse, error) {
	var (
		resp   ReplayResponse
		events []shared.DomainEvent
	)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		item, err := repos.ItemRepo().FindByID(ctx, itemID)
		if err != nil {
			return err
		}
		result, err := s.replayWithin(ctx, repos, item)
		if err != nil {
			return err
		}
		events = drainEvents(item)
		resp = toReplayResponse(item, result)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events)
	return &resp, nil
}

// RecomputeAverageCost refreshes the weighted average over active batches
// and returns it.
func (s *CostingService) RecomputeAverageCost(ctx context.Context, itemID uuid.UUID) (decimal.Decimal, error) {
	var (
		cost   decimal.Decimal
		events []shared.DomainEvent
	)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		item, err := repos.ItemRepo().FindByID(ctx, itemID)
		if err != nil {
			return err
		}
		active, err := repos.BatchRepo().FindActiveByItem(ctx, itemID)
		if err != nil {
			return err
		}
		previous := item.AverageCost
		item.SetAverageCost(costing.WeightedAverageCost(active))
		cost = item.AverageCost
		if !previous.Equal(item.AverageCost) {
			if err := repos.ItemRepo().SaveWithLock(ctx, item); err != nil {
				return err
			}
		}
		events = drainEvents(item)
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	s.publish(ctx, events)
	return cost, nil
}

// replayWithin runs the replay for an already-loaded item inside the
// caller's transaction and persists whatever drifted.
func (s *CostingService) replayWithin(ctx context.Context, repos TransactionalRepositories, item *costing.Item) (*costing.ReplayResult, error) {
	batches, err := repos.BatchRepo().FindAllByItem(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	sales, err := repos.SaleRepo().FindByItem(ctx, item.ID)
	if err != nil {
		return nil, err
	}

	result := costing.Replay(item.ID, batches, sales)

	for _, note := range result.Shortfalls {
		s.logger.Warn("sale exceeded available stock during replay",
			zap.String("item_id", item.ID.String()),
			zap.String("sale_event_id", note.SaleEventID.String()),
			zap.String("shortfall", note.Quantity.String()))
	}

	if len(result.ChangedBatches) > 0 {
		if err := repos.BatchRepo().SaveAll(ctx, result.ChangedBatches); err != nil {
			return nil, err
		}
	}
	if len(result.Corrections) > 0 {
		byID := make(map[uuid.UUID]*costing.SaleEvent, len(sales))
		for _, sale := range sales {
			byID[sale.ID] = sale
		}
		for _, correction := range result.Corrections {
			if err := repos.SaleRepo().Save(ctx, byID[correction.SaleEventID]); err != nil {
				return nil, err
			}
		}
	}

	ledgerChanged := item.ReplaceStock(result.WarehouseStock, result.TotalStock)
	previous := item.AverageCost
	item.SetAverageCost(result.AverageCost)
	costChanged := !previous.Equal(item.AverageCost)

	if result.HasChanges() {
		item.AddDomainEvent(costing.NewHistoryReplayedEvent(item, result))
	}
	if result.HasChanges() || ledgerChanged || costChanged {
		if err := repos.ItemRepo().SaveWithLock(ctx, item); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *CostingService) publish(ctx context.Context, events []shared.DomainEvent) {
	if len(events) == 0 || s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.logger.Error("failed to publish domain events", zap.Error(err))
	}
}

func drainEvents(item *costing.Item) []shared.DomainEvent {
	events := item.GetDomainEvents()
	item.ClearDomainEvents()
	return events
}

func toReplayResponse(item *costing.Item, result *costing.ReplayResult) ReplayResponse {
	return ReplayResponse{
		ItemID:         item.ID.String(),
		BatchesChanged: len(result.ChangedBatches),
		CostsCorrected: len(result.Corrections),
		Shortfalls:     len(result.Shortfalls),
		TotalStock:     result.TotalStock.InexactFloat64(),
		AverageCost:    result.AverageCost.InexactFloat64(),
	}
}
