package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glasserp/backend/internal/domain/costing"
	"github.com/glasserp/backend/internal/domain/shared"
	"github.com/glasserp/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormItemRepository implements ItemRepository using GORM
type GormItemRepository struct {
	db *gorm.DB
}

// NewGormItemRepository creates a new GormItemRepository
func NewGormItemRepository(db *gorm.DB) *GormItemRepository {
	return &GormItemRepository{db: db}
}

// FindByID finds an item by its ID
func (r *GormItemRepository) FindByID(ctx context.Context, id uuid.UUID) (*costing.Item, error) {
	var model models.ItemModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, persistErr(err)
	}
	return model.ToDomain(), nil
}

// FindBySKU finds an item by its SKU
func (r *GormItemRepository) FindBySKU(ctx context.Context, sku string) (*costing.Item, error) {
	var model models.ItemModel
	if err := r.db.WithContext(ctx).First(&model, "sku = ?", sku).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, persistErr(err)
	}
	return model.ToDomain(), nil
}

// FindAll finds items matching the filter
func (r *GormItemRepository) FindAll(ctx context.Context, filter shared.Filter) ([]*costing.Item, error) {
	var rows []models.ItemModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.ItemModel{}), filter)
	if err := query.Find(&rows).Error; err != nil {
		return nil, persistErr(err)
	}

	items := make([]*costing.Item, len(rows))
	for i := range rows {
		items[i] = rows[i].ToDomain()
	}
	return items, nil
}

// Save creates or updates an item without a version check
func (r *GormItemRepository) Save(ctx context.Context, item *costing.Item) error {
	model := models.ItemModelFromDomain(item)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return persistErr(err)
	}
	return nil
}

// SaveWithLock saves the item with an optimistic version check. The write
// only lands if the stored version matches the one the item was read at;
// otherwise another transaction got there first.
func (r *GormItemRepository) SaveWithLock(ctx context.Context, item *costing.Item) error {
	model := models.ItemModelFromDomain(item)
	model.Version = item.Version + 1
	model.UpdatedAt = time.Now()

	result := r.db.WithContext(ctx).
		Model(&models.ItemModel{}).
		Where("id = ? AND version = ?", item.ID, item.Version).
		Select("SKU", "Name", "WarehouseStock", "TotalStock", "AverageCost", "Version", "UpdatedAt").
		Updates(model)
	if result.Error != nil {
		return persistErr(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}

	item.IncrementVersion()
	return nil
}

// Delete deletes an item
func (r *GormItemRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.ItemModel{}, "id = ?", id)
	if result.Error != nil {
		return persistErr(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Count counts items matching the filter
func (r *GormItemRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.ItemModel{})
	if filter.Search != "" {
		query = applySearch(query, filter.Search)
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, persistErr(err)
	}
	return count, nil
}

func (r *GormItemRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		query = applySearch(query, filter.Search)
	}
	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset((filter.Page - 1) * filter.PageSize).Limit(filter.PageSize)
	}
	if filter.OrderBy != "" {
		orderDir := "ASC"
		if strings.ToLower(filter.OrderDir) == "desc" {
			orderDir = "DESC"
		}
		switch filter.OrderBy {
		case "sku", "name", "created_at", "updated_at", "total_stock", "average_cost":
			query = query.Order(filter.OrderBy + " " + orderDir)
		default:
			query = query.Order("created_at " + orderDir)
		}
	} else {
		query = query.Order("sku ASC")
	}
	return query
}

func applySearch(query *gorm.DB, search string) *gorm.DB {
	pattern := "%" + search + "%"
	return query.Where("sku LIKE ? OR name LIKE ?", pattern, pattern)
}

func persistErr(err error) error {
	return fmt.Errorf("%w: %v", shared.ErrPersistenceFailure, err)
}

var _ costing.ItemRepository = (*GormItemRepository)(nil)
