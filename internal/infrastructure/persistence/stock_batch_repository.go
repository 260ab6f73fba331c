package persistence

import (
	"context"
	"errors"

	"github.com/glasserp/backend/internal/domain/costing"
	"github.com/glasserp/backend/internal/domain/shared"
	"github.com/glasserp/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// fifoOrder is the consumption and replay order for batches
const fifoOrder = "transaction_date ASC, seq ASC"

// GormStockBatchRepository implements StockBatchRepository using GORM
type GormStockBatchRepository struct {
	db *gorm.DB
}

// NewGormStockBatchRepository creates a new GormStockBatchRepository
func NewGormStockBatchRepository(db *gorm.DB) *GormStockBatchRepository {
	return &GormStockBatchRepository{db: db}
}

// FindByID finds a stock batch by its ID
func (r *GormStockBatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*costing.StockBatch, error) {
	var model models.StockBatchModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, persistErr(err)
	}
	return model.ToDomain(), nil
}

// FindActiveByItem finds batches with remaining quantity, FIFO-ordered
func (r *GormStockBatchRepository) FindActiveByItem(ctx context.Context, itemID uuid.UUID) ([]*costing.StockBatch, error) {
	var rows []models.StockBatchModel
	if err := r.db.WithContext(ctx).
		Where("item_id = ? AND remaining_quantity > 0", itemID).
		Order(fifoOrder).
		Find(&rows).Error; err != nil {
		return nil, persistErr(err)
	}
	return toDomainBatches(rows), nil
}

// FindAllByItem finds all batches including exhausted ones, FIFO-ordered
func (r *GormStockBatchRepository) FindAllByItem(ctx context.Context, itemID uuid.UUID) ([]*costing.StockBatch, error) {
	var rows []models.StockBatchModel
	if err := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order(fifoOrder).
		Find(&rows).Error; err != nil {
		return nil, persistErr(err)
	}
	return toDomainBatches(rows), nil
}

// Create creates a new batch and assigns its creation sequence. The
// sequence is the stable tie-break for same-date batches, so it must be
// taken inside the surrounding transaction.
func (r *GormStockBatchRepository) Create(ctx context.Context, batch *costing.StockBatch) error {
	var maxSeq int64
	row := r.db.WithContext(ctx).
		Model(&models.StockBatchModel{}).
		Select("COALESCE(MAX(seq), 0)").
		Row()
	if err := row.Scan(&maxSeq); err != nil {
		return persistErr(err)
	}
	batch.Seq = maxSeq + 1

	model := models.StockBatchModelFromDomain(batch)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return persistErr(err)
	}
	return nil
}

// Save persists an updated remaining quantity
func (r *GormStockBatchRepository) Save(ctx context.Context, batch *costing.StockBatch) error {
	model := models.StockBatchModelFromDomain(batch)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return persistErr(err)
	}
	return nil
}

// SaveAll persists updated remaining quantities for multiple batches
func (r *GormStockBatchRepository) SaveAll(ctx context.Context, batches []*costing.StockBatch) error {
	if len(batches) == 0 {
		return nil
	}
	rows := make([]models.StockBatchModel, len(batches))
	for i, batch := range batches {
		rows[i] = *models.StockBatchModelFromDomain(batch)
	}
	if err := r.db.WithContext(ctx).Save(&rows).Error; err != nil {
		return persistErr(err)
	}
	return nil
}

// DeleteBySourceTransaction removes all batches created by a purchase
// transaction and returns how many were removed
func (r *GormStockBatchRepository) DeleteBySourceTransaction(ctx context.Context, itemID uuid.UUID, sourceTransactionID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("item_id = ? AND source_transaction_id = ?", itemID, sourceTransactionID).
		Delete(&models.StockBatchModel{})
	if result.Error != nil {
		return 0, persistErr(result.Error)
	}
	return result.RowsAffected, nil
}

// SumRemainingByItem sums remaining quantity across an item's batches
func (r *GormStockBatchRepository) SumRemainingByItem(ctx context.Context, itemID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.Decimal
	row := r.db.WithContext(ctx).
		Model(&models.StockBatchModel{}).
		Where("item_id = ?", itemID).
		Select("COALESCE(SUM(remaining_quantity), 0)").
		Row()
	if err := row.Scan(&sum); err != nil {
		return decimal.Zero, persistErr(err)
	}
	return sum, nil
}

func toDomainBatches(rows []models.StockBatchModel) []*costing.StockBatch {
	batches := make([]*costing.StockBatch, len(rows))
	for i := range rows {
		batches[i] = rows[i].ToDomain()
	}
	return batches
}

var _ costing.StockBatchRepository = (*GormStockBatchRepository)(nil)
