package costing

import (
	"context"

	"github.com/glasserp/backend/internal/domain/costing"
)

// TransactionScope provides transactional access to costing repositories.
// When a function is executed within a transaction scope, all repository
// operations are part of the same database transaction and commit or roll
// back atomically. This is what keeps batch remaining quantities, the
// item's ledger and recorded costs from ever being observed in a torn
// state after a partial failure.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all costing repositories
// within a transaction. All repositories returned share the same
// underlying database transaction.
type TransactionalRepositories interface {
	// ItemRepo returns the item repository scoped to the current transaction
	ItemRepo() costing.ItemRepository
	// BatchRepo returns the stock batch repository scoped to the current transaction
	BatchRepo() costing.StockBatchRepository
	// SaleRepo returns the sale event repository scoped to the current transaction
	SaleRepo() costing.SaleEventRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use
// transactions. Useful for testing against in-memory repositories.
type NoOpTransactionScope struct {
	itemRepo  costing.ItemRepository
	batchRepo costing.StockBatchRepository
	saleRepo  costing.SaleEventRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	itemRepo costing.ItemRepository,
	batchRepo costing.StockBatchRepository,
	saleRepo costing.SaleEventRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		itemRepo:  itemRepo,
		batchRepo: batchRepo,
		saleRepo:  saleRepo,
	}
}

// Execute runs the function without a real transaction.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// ItemRepo returns the item repository.
func (s *NoOpTransactionScope) ItemRepo() costing.ItemRepository {
	return s.itemRepo
}

// BatchRepo returns the stock batch repository.
func (s *NoOpTransactionScope) BatchRepo() costing.StockBatchRepository {
	return s.batchRepo
}

// SaleRepo returns the sale event repository.
func (s *NoOpTransactionScope) SaleRepo() costing.SaleEventRepository {
	return s.saleRepo
}

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
