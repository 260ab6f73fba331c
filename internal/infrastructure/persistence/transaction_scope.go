package persistence

import (
	"context"

	appcosting "github.com/glasserp/backend/internal/application/costing"
	"github.com/glasserp/backend/internal/domain/costing"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// It provides atomic execution of multiple repository operations.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appcosting.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// gormTransactionalRepositories provides access to all repositories within
// a transaction
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// ItemRepo returns the item repository scoped to the current transaction
func (r *gormTransactionalRepositories) ItemRepo() costing.ItemRepository {
	return NewGormItemRepository(r.tx)
}

// BatchRepo returns the stock batch repository scoped to the current transaction
func (r *gormTransactionalRepositories) BatchRepo() costing.StockBatchRepository {
	return NewGormStockBatchRepository(r.tx)
}

// SaleRepo returns the sale event repository scoped to the current transaction
func (r *gormTransactionalRepositories) SaleRepo() costing.SaleEventRepository {
	return NewGormSaleEventRepository(r.tx)
}

var _ appcosting.TransactionScope = (*GormTransactionScope)(nil)
var _ appcosting.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
