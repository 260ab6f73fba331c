package costing

import (
	"context"
	"sort"

	"github.com/glasserp/backend/internal/domain/costing"
	"github.com/glasserp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory backing store for the costing repositories.
// Reads and writes exchange clones so that a transaction rollback can
// restore the previous state, mirroring what the real database gives us.
type memStore struct {
	items   map[uuid.UUID]*costing.Item
	batches map[uuid.UUID]*costing.StockBatch
	sales   map[uuid.UUID]*costing.SaleEvent

	batchSeq int64
	saleSeq  int64

	// itemConflicts makes the next N SaveWithLock calls fail with a
	// concurrency conflict.
	itemConflicts int
}

func newMemStore() *memStore {
	return &memStore{
		items:   make(map[uuid.UUID]*costing.Item),
		batches: make(map[uuid.UUID]*costing.StockBatch),
		sales:   make(map[uuid.UUID]*costing.SaleEvent),
	}
}

type memSnapshot struct {
	items    map[uuid.UUID]*costing.Item
	batches  map[uuid.UUID]*costing.StockBatch
	sales    map[uuid.UUID]*costing.SaleEvent
	batchSeq int64
	saleSeq  int64
}

func (m *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		items:    make(map[uuid.UUID]*costing.Item, len(m.items)),
		batches:  make(map[uuid.UUID]*costing.StockBatch, len(m.batches)),
		sales:    make(map[uuid.UUID]*costing.SaleEvent, len(m.sales)),
		batchSeq: m.batchSeq,
		saleSeq:  m.saleSeq,
	}
	for id, item := range m.items {
		snap.items[id] = cloneItem(item)
	}
	for id, batch := range m.batches {
		snap.batches[id] = cloneBatch(batch)
	}
	for id, sale := range m.sales {
		snap.sales[id] = cloneSale(sale)
	}
	return snap
}

func (m *memStore) restore(snap memSnapshot) {
	m.items = snap.items
	m.batches = snap.batches
	m.sales = snap.sales
	m.batchSeq = snap.batchSeq
	m.saleSeq = snap.saleSeq
}

func cloneItem(item *costing.Item) *costing.Item {
	c := *item
	c.WarehouseStock = item.WarehouseStock.Clone()
	c.ClearDomainEvents()
	return &c
}

func cloneBatch(batch *costing.StockBatch) *costing.StockBatch {
	c := *batch
	return &c
}

func cloneSale(sale *costing.SaleEvent) *costing.SaleEvent {
	c := *sale
	c.Allocations = append([]costing.Allocation(nil), sale.Allocations...)
	return &c
}

// memScope implements TransactionScope over a memStore with snapshot
// rollback on error.
type memScope struct {
	store *memStore
}

func newMemScope(store *memStore) *memScope {
	return &memScope{store: store}
}

func (s *memScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	snap := s.store.snapshot()
	if err := fn(s); err != nil {
		s.store.restore(snap)
		return err
	}
	return nil
}

func (s *memScope) ItemRepo() costing.ItemRepository {
	return &memItemRepo{store: s.store}
}

func (s *memScope) BatchRepo() costing.StockBatchRepository {
	return &memBatchRepo{store: s.store}
}

func (s *memScope) SaleRepo() costing.SaleEventRepository {
	return &memSaleRepo{store: s.store}
}

type memItemRepo struct {
	store *memStore
}

func (r *memItemRepo) FindByID(_ context.Context, id uuid.UUID) (*costing.Item, error) {
	item, ok := r.store.items[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return cloneItem(item), nil
}

func (r *memItemRepo) FindBySKU(_ context.Context, sku string) (*costing.Item, error) {
	for _, item := range r.store.items {
		if item.SKU == sku {
			return cloneItem(item), nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memItemRepo) FindAll(_ context.Context, _ shared.Filter) ([]*costing.Item, error) {
	out := make([]*costing.Item, 0, len(r.store.items))
	for _, item := range r.store.items {
		out = append(out, cloneItem(item))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (r *memItemRepo) Save(_ context.Context, item *costing.Item) error {
	r.store.items[item.ID] = cloneItem(item)
	return nil
}

func (r *memItemRepo) SaveWithLock(_ context.Context, item *costing.Item) error {
	if r.store.itemConflicts > 0 {
		r.store.itemConflicts--
		return shared.ErrConcurrencyConflict
	}
	stored, ok := r.store.items[item.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Version != item.Version {
		return shared.ErrConcurrencyConflict
	}
	item.IncrementVersion()
	r.store.items[item.ID] = cloneItem(item)
	return nil
}

func (r *memItemRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.store.items, id)
	return nil
}

func (r *memItemRepo) Count(_ context.Context, _ shared.Filter) (int64, error) {
	return int64(len(r.store.items)), nil
}

type memBatchRepo struct {
	store *memStore
}

func (r *memBatchRepo) FindByID(_ context.Context, id uuid.UUID) (*costing.StockBatch, error) {
	batch, ok := r.store.batches[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return cloneBatch(batch), nil
}

func (r *memBatchRepo) FindActiveByItem(_ context.Context, itemID uuid.UUID) ([]*costing.StockBatch, error) {
	return r.find(itemID, true), nil
}

func (r *memBatchRepo) FindAllByItem(_ context.Context, itemID uuid.UUID) ([]*costing.StockBatch, error) {
	return r.find(itemID, false), nil
}

func (r *memBatchRepo) find(itemID uuid.UUID, activeOnly bool) []*costing.StockBatch {
	out := make([]*costing.StockBatch, 0)
	for _, batch := range r.store.batches {
		if batch.ItemID != itemID {
			continue
		}
		if activeOnly && !batch.IsActive() {
			continue
		}
		out = append(out, cloneBatch(batch))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func (r *memBatchRepo) Create(_ context.Context, batch *costing.StockBatch) error {
	r.store.batchSeq++
	batch.Seq = r.store.batchSeq
	r.store.batches[batch.ID] = cloneBatch(batch)
	return nil
}

func (r *memBatchRepo) Save(_ context.Context, batch *costing.StockBatch) error {
	r.store.batches[batch.ID] = cloneBatch(batch)
	return nil
}

func (r *memBatchRepo) SaveAll(_ context.Context, batches []*costing.StockBatch) error {
	for _, batch := range batches {
		r.store.batches[batch.ID] = cloneBatch(batch)
	}
	return nil
}

func (r *memBatchRepo) DeleteBySourceTransaction(_ context.Context, itemID uuid.UUID, sourceTransactionID string) (int64, error) {
	var removed int64
	for id, batch := range r.store.batches {
		if batch.ItemID != itemID || batch.SourceTransactionID == nil {
			continue
		}
		if *batch.SourceTransactionID == sourceTransactionID {
			delete(r.store.batches, id)
			removed++
		}
	}
	return removed, nil
}

func (r *memBatchRepo) SumRemainingByItem(_ context.Context, itemID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, batch := range r.store.batches {
		if batch.ItemID == itemID {
			sum = sum.Add(batch.RemainingQuantity)
		}
	}
	return sum, nil
}

type memSaleRepo struct {
	store *memStore
}

func (r *memSaleRepo) FindByID(_ context.Context, id uuid.UUID) (*costing.SaleEvent, error) {
	sale, ok := r.store.sales[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return cloneSale(sale), nil
}

func (r *memSaleRepo) FindByItem(_ context.Context, itemID uuid.UUID) ([]*costing.SaleEvent, error) {
	out := make([]*costing.SaleEvent, 0)
	for _, sale := range r.store.sales {
		if sale.ItemID == itemID {
			out = append(out, cloneSale(sale))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (r *memSaleRepo) Create(_ context.Context, event *costing.SaleEvent) error {
	r.store.saleSeq++
	event.Seq = r.store.saleSeq
	r.store.sales[event.ID] = cloneSale(event)
	return nil
}

func (r *memSaleRepo) Save(_ context.Context, event *costing.SaleEvent) error {
	r.store.sales[event.ID] = cloneSale(event)
	return nil
}

func (r *memSaleRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.store.sales, id)
	return nil
}

func (r *memSaleRepo) CountByItem(_ context.Context, itemID uuid.UUID) (int64, error) {
	var count int64
	for _, sale := range r.store.sales {
		if sale.ItemID == itemID {
			count++
		}
	}
	return count, nil
}
