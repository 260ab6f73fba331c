package persistence

import (
	"context"
	"errors"

	"github.com/glasserp/backend/internal/domain/costing"
	"github.com/glasserp/backend/internal/domain/shared"
	"github.com/glasserp/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSaleEventRepository implements SaleEventRepository using GORM
type GormSaleEventRepository struct {
	db *gorm.DB
}

// NewGormSaleEventRepository creates a new GormSaleEventRepository
func NewGormSaleEventRepository(db *gorm.DB) *GormSaleEventRepository {
	return &GormSaleEventRepository{db: db}
}

// FindByID finds a sale event by its ID
func (r *GormSaleEventRepository) FindByID(ctx context.Context, id uuid.UUID) (*costing.SaleEvent, error) {
	var model models.SaleEventModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, persistErr(err)
	}
	return model.ToDomain(), nil
}

// FindByItem finds all sale events for an item in replay order
func (r *GormSaleEventRepository) FindByItem(ctx context.Context, itemID uuid.UUID) ([]*costing.SaleEvent, error) {
	var rows []models.SaleEventModel
	if err := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("transaction_date ASC, seq ASC").
		Find(&rows).Error; err != nil {
		return nil, persistErr(err)
	}

	events := make([]*costing.SaleEvent, len(rows))
	for i := range rows {
		events[i] = rows[i].ToDomain()
	}
	return events, nil
}

// Create creates a new sale event and assigns its creation sequence
func (r *GormSaleEventRepository) Create(ctx context.Context, event *costing.SaleEvent) error {
	var maxSeq int64
	row := r.db.WithContext(ctx).
		Model(&models.SaleEventModel{}).
		Select("COALESCE(MAX(seq), 0)").
		Row()
	if err := row.Scan(&maxSeq); err != nil {
		return persistErr(err)
	}
	event.Seq = maxSeq + 1

	model := models.SaleEventModelFromDomain(event)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return persistErr(err)
	}
	return nil
}

// Save persists a corrected recorded cost and allocations
func (r *GormSaleEventRepository) Save(ctx context.Context, event *costing.SaleEvent) error {
	model := models.SaleEventModelFromDomain(event)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return persistErr(err)
	}
	return nil
}

// Delete deletes a sale event
func (r *GormSaleEventRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.SaleEventModel{}, "id = ?", id)
	if result.Error != nil {
		return persistErr(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CountByItem counts sale events for an item
func (r *GormSaleEventRepository) CountByItem(ctx context.Context, itemID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.SaleEventModel{}).
		Where("item_id = ?", itemID).
		Count(&count).Error; err != nil {
		return 0, persistErr(err)
	}
	return count, nil
}

var _ costing.SaleEventRepository = (*GormSaleEventRepository)(nil)
