package domain

import "time"

// StockRecord is the only shared mutable state in the system. It is
// treated as an immutable value: every change goes through the ledger
// store's compare-and-swap, which replaces the record atomically.
type StockRecord struct {
	ProductID        string
	WarehouseID      string
	Quantity         int
	Version          int64 // optimistic locking
	LastAdjustmentID string
	UpdatedAt        time.Time
}

// NewStockRecord returns the implicit zero-quantity record for a pair
// that has never been adjusted. Version 0 means "not yet persisted".
func NewStockRecord(productID, warehouseID string) StockRecord {
	return StockRecord{
		ProductID:   productID,
		WarehouseID: warehouseID,
	}
}
