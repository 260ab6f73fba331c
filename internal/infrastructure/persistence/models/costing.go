package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/glasserp/backend/internal/domain/costing"
	"github.com/glasserp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WarehouseStockJSON stores the per-warehouse stock ledger as JSONB
type WarehouseStockJSON map[string]decimal.Decimal

// Value implements driver.Valuer
func (w WarehouseStockJSON) Value() (driver.Value, error) {
	if w == nil {
		w = WarehouseStockJSON{}
	}
	return json.Marshal(w)
}

// Scan implements sql.Scanner
func (w *WarehouseStockJSON) Scan(value any) error {
	if value == nil {
		*w = WarehouseStockJSON{}
		return nil
	}
	data, err := toBytes(value)
	if err != nil {
		return fmt.Errorf("failed to scan warehouse stock: %w", err)
	}
	return json.Unmarshal(data, w)
}

// AllocationJSON is one allocation line inside a sale event's JSONB column
type AllocationJSON struct {
	BatchID       uuid.UUID       `json:"batch_id"`
	QuantityTaken decimal.Decimal `json:"quantity_taken"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
}

// AllocationsJSON stores a sale event's ordered allocations as JSONB
type AllocationsJSON []AllocationJSON

// Value implements driver.Valuer
func (a AllocationsJSON) Value() (driver.Value, error) {
	if a == nil {
		a = AllocationsJSON{}
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner
func (a *AllocationsJSON) Scan(value any) error {
	if value == nil {
		*a = AllocationsJSON{}
		return nil
	}
	data, err := toBytes(value)
	if err != nil {
		return fmt.Errorf("failed to scan allocations: %w", err)
	}
	return json.Unmarshal(data, a)
}

func toBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported type %T", value)
	}
}

// ItemModel is the persistence model for the Item aggregate root
type ItemModel struct {
	AggregateModel
	SKU            string             `gorm:"type:varchar(64);not null;uniqueIndex"`
	Name           string             `gorm:"type:varchar(255);not null"`
	WarehouseStock WarehouseStockJSON `gorm:"type:jsonb;not null"`
	TotalStock     decimal.Decimal    `gorm:"type:decimal(18,4);not null;default:0"`
	AverageCost    decimal.Decimal    `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (ItemModel) TableName() string {
	return "items"
}

// ToDomain converts the persistence model to a domain Item aggregate
func (m *ItemModel) ToDomain() *costing.Item {
	stock := make(costing.WarehouseStock, len(m.WarehouseStock))
	for warehouse, qty := range m.WarehouseStock {
		stock[warehouse] = qty
	}
	return &costing.Item{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: m.BaseModel.ToDomain(),
			Version:    m.Version,
		},
		SKU:            m.SKU,
		Name:           m.Name,
		WarehouseStock: stock,
		TotalStock:     m.TotalStock,
		AverageCost:    m.AverageCost,
	}
}

// FromDomain populates the persistence model from a domain Item aggregate
func (m *ItemModel) FromDomain(item *costing.Item) {
	m.FromDomainAggregateRoot(item.BaseAggregateRoot)
	m.SKU = item.SKU
	m.Name = item.Name
	m.WarehouseStock = make(WarehouseStockJSON, len(item.WarehouseStock))
	for warehouse, qty := range item.WarehouseStock {
		m.WarehouseStock[warehouse] = qty
	}
	m.TotalStock = item.TotalStock
	m.AverageCost = item.AverageCost
}

// ItemModelFromDomain creates a persistence model from a domain Item
func ItemModelFromDomain(item *costing.Item) *ItemModel {
	m := &ItemModel{}
	m.FromDomain(item)
	return m
}

// StockBatchModel is the persistence model for the StockBatch entity
type StockBatchModel struct {
	BaseModel
	ItemID              uuid.UUID       `gorm:"type:uuid;not null;index:idx_stock_batches_fifo,priority:1"`
	SourceTransactionID *string         `gorm:"type:varchar(64);index"`
	TransactionDate     time.Time       `gorm:"not null;index:idx_stock_batches_fifo,priority:2"`
	Seq                 int64           `gorm:"not null;index:idx_stock_batches_fifo,priority:3"`
	Warehouse           string          `gorm:"type:varchar(64);not null"`
	UnitCost            decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	OriginalQuantity    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	RemainingQuantity   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (StockBatchModel) TableName() string {
	return "stock_batches"
}

// ToDomain converts the persistence model to a domain StockBatch
func (m *StockBatchModel) ToDomain() *costing.StockBatch {
	return &costing.StockBatch{
		BaseEntity:          m.BaseModel.ToDomain(),
		ItemID:              m.ItemID,
		SourceTransactionID: m.SourceTransactionID,
		TransactionDate:     m.TransactionDate,
		Seq:                 m.Seq,
		Warehouse:           m.Warehouse,
		UnitCost:            m.UnitCost,
		OriginalQuantity:    m.OriginalQuantity,
		RemainingQuantity:   m.RemainingQuantity,
	}
}

// FromDomain populates the persistence model from a domain StockBatch
func (m *StockBatchModel) FromDomain(batch *costing.StockBatch) {
	m.FromDomainBaseEntity(batch.BaseEntity)
	m.ItemID = batch.ItemID
	m.SourceTransactionID = batch.SourceTransactionID
	m.TransactionDate = batch.TransactionDate
	m.Seq = batch.Seq
	m.Warehouse = batch.Warehouse
	m.UnitCost = batch.UnitCost
	m.OriginalQuantity = batch.OriginalQuantity
	m.RemainingQuantity = batch.RemainingQuantity
}

// StockBatchModelFromDomain creates a persistence model from a domain StockBatch
func StockBatchModelFromDomain(batch *costing.StockBatch) *StockBatchModel {
	m := &StockBatchModel{}
	m.FromDomain(batch)
	return m
}

// SaleEventModel is the persistence model for the SaleEvent entity
type SaleEventModel struct {
	BaseModel
	ItemID          uuid.UUID       `gorm:"type:uuid;not null;index:idx_sale_events_replay,priority:1"`
	Warehouse       string          `gorm:"type:varchar(64);not null"`
	Quantity        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	TransactionDate time.Time       `gorm:"not null;index:idx_sale_events_replay,priority:2"`
	Seq             int64           `gorm:"not null;index:idx_sale_events_replay,priority:3"`
	RecordedCost    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Shortfall       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Allocations     AllocationsJSON `gorm:"type:jsonb;not null"`
}

// TableName returns the table name for GORM
func (SaleEventModel) TableName() string {
	return "sale_events"
}

// ToDomain converts the persistence model to a domain SaleEvent
func (m *SaleEventModel) ToDomain() *costing.SaleEvent {
	allocations := make([]costing.Allocation, len(m.Allocations))
	for i, a := range m.Allocations {
		allocations[i] = costing.Allocation{
			BatchID:       a.BatchID,
			QuantityTaken: a.QuantityTaken,
			UnitCost:      a.UnitCost,
		}
	}
	return &costing.SaleEvent{
		BaseEntity:      m.BaseModel.ToDomain(),
		ItemID:          m.ItemID,
		Warehouse:       m.Warehouse,
		Quantity:        m.Quantity,
		TransactionDate: m.TransactionDate,
		Seq:             m.Seq,
		RecordedCost:    m.RecordedCost,
		Shortfall:       m.Shortfall,
		Allocations:     allocations,
	}
}

// FromDomain populates the persistence model from a domain SaleEvent
func (m *SaleEventModel) FromDomain(event *costing.SaleEvent) {
	m.FromDomainBaseEntity(event.BaseEntity)
	m.ItemID = event.ItemID
	m.Warehouse = event.Warehouse
	m.Quantity = event.Quantity
	m.TransactionDate = event.TransactionDate
	m.Seq = event.Seq
	m.RecordedCost = event.RecordedCost
	m.Shortfall = event.Shortfall
	m.Allocations = make(AllocationsJSON, len(event.Allocations))
	for i, a := range event.Allocations {
		m.Allocations[i] = AllocationJSON{
			BatchID:       a.BatchID,
			QuantityTaken: a.QuantityTaken,
			UnitCost:      a.UnitCost,
		}
	}
}

// SaleEventModelFromDomain creates a persistence model from a domain SaleEvent
func SaleEventModelFromDomain(event *costing.SaleEvent) *SaleEventModel {
	m := &SaleEventModel{}
	m.FromDomain(event)
	return m
}
