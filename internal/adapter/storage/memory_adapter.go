package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nqvinh/inventory-core/internal/core/domain"
	"github.com/nqvinh/inventory-core/internal/port"
)

// MemoryAdapter backs the ledger store, adjustment log, catalog and
// notification sink with in-process maps. Used by unit tests and the
// stress tool; semantics mirror the MySQL adapter, including the
// unique-applied-key backstop.
type MemoryAdapter struct {
	mu          sync.Mutex
	records     map[string]domain.StockRecord
	events      []domain.AdjustmentEvent
	appliedKeys map[string]int // idempotency key -> index into events
	products    map[string]domain.Product
	warehouses  map[string]domain.Warehouse
	delivered   []domain.AlertNotification
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		records:     make(map[string]domain.StockRecord),
		appliedKeys: make(map[string]int),
		products:    make(map[string]domain.Product),
		warehouses:  make(map[string]domain.Warehouse),
	}
}

func pairKey(productID, warehouseID string) string {
	return productID + "|" + warehouseID
}

func (m *MemoryAdapter) AddProduct(p domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

func (m *MemoryAdapter) AddWarehouse(w domain.Warehouse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warehouses[w.ID] = w
}

func (m *MemoryAdapter) GetRecord(ctx context.Context, productID, warehouseID string) (*domain.StockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[pairKey(productID, warehouseID)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *MemoryAdapter) CompareAndSwap(ctx context.Context, rec domain.StockRecord, expectedVersion int64, newQuantity int, event domain.AdjustmentEvent) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.appliedKeys[event.IdempotencyKey]; exists {
		return 0, port.ErrDuplicateEvent
	}

	key := pairKey(rec.ProductID, rec.WarehouseID)
	current, exists := m.records[key]
	if exists && current.Version != expectedVersion {
		return 0, port.ErrVersionConflict
	}
	if !exists && expectedVersion != 0 {
		return 0, port.ErrVersionConflict
	}

	newVersion := expectedVersion + 1
	m.records[key] = domain.StockRecord{
		ProductID:        rec.ProductID,
		WarehouseID:      rec.WarehouseID,
		Quantity:         newQuantity,
		Version:          newVersion,
		LastAdjustmentID: event.ID,
		UpdatedAt:        time.Now(),
	}

	event.ResultingVersion = newVersion
	m.events = append(m.events, event)
	m.appliedKeys[event.IdempotencyKey] = len(m.events) - 1

	return newVersion, nil
}

func (m *MemoryAdapter) Append(ctx context.Context, event domain.AdjustmentEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, event)
	if event.Outcome == domain.OutcomeApplied {
		m.appliedKeys[event.IdempotencyKey] = len(m.events) - 1
	}
	return nil
}

func (m *MemoryAdapter) FindByIdempotencyKey(ctx context.Context, key string) (*domain.AdjustmentEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.appliedKeys[key]
	if !ok {
		return nil, nil
	}
	event := m.events[idx]
	return &event, nil
}

func (m *MemoryAdapter) History(ctx context.Context, productID, warehouseID string, since time.Time) ([]domain.AdjustmentEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.AdjustmentEvent
	for _, e := range m.events {
		if e.ProductID == productID && e.WarehouseID == warehouseID && !e.AppliedAt.Before(since) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].AppliedAt.Equal(out[j].AppliedAt) {
			return out[i].AppliedAt.Before(out[j].AppliedAt)
		}
		return out[i].ResultingVersion < out[j].ResultingVersion
	})
	return out, nil
}

func (m *MemoryAdapter) Product(ctx context.Context, id string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MemoryAdapter) Warehouse(ctx context.Context, id string) (*domain.Warehouse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.warehouses[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (m *MemoryAdapter) Notify(ctx context.Context, n domain.AlertNotification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delivered = append(m.delivered, n)
	return nil
}

// Delivered returns notifications received so far.
func (m *MemoryAdapter) Delivered() []domain.AlertNotification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.AlertNotification, len(m.delivered))
	copy(out, m.delivered)
	return out
}
