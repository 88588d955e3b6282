package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nqvinh/inventory-core/internal/adapter/storage"
	"github.com/nqvinh/inventory-core/internal/core/domain"
	"github.com/nqvinh/inventory-core/internal/port"
)

func newTestEnv() (*AdjustmentService, *storage.MemoryAdapter, *AlertEvaluator) {
	mem := storage.NewMemoryAdapter()
	mem.AddProduct(domain.Product{ID: "sku-1", Name: "widget", ReorderThreshold: 10})
	mem.AddWarehouse(domain.Warehouse{ID: "wh-1", Capacity: 100})

	alerts := NewAlertEvaluator(100)
	svc := NewAdjustmentService(mem, mem, mem, nil, alerts)
	return svc, mem, alerts
}

func newRequest(key string, delta int) domain.AdjustmentRequest {
	return domain.AdjustmentRequest{
		IdempotencyKey: key,
		ProductID:      "sku-1",
		WarehouseID:    "wh-1",
		Delta:          delta,
		Reason:         domain.ReasonReceipt,
		RequestedBy:    "tester",
	}
}

func TestApply_Receipt(t *testing.T) {
	svc, mem, _ := newTestEnv()

	res, err := svc.Apply(context.Background(), newRequest("req-1", 60))
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if res.Status != StatusApplied {
		t.Errorf("expected applied, got %s", res.Status)
	}
	if res.Event.ResultingQuantity != 60 {
		t.Errorf("expected quantity 60, got %d", res.Event.ResultingQuantity)
	}
	if res.Event.ResultingVersion != 1 {
		t.Errorf("expected version 1, got %d", res.Event.ResultingVersion)
	}

	rec, _ := mem.GetRecord(context.Background(), "sku-1", "wh-1")
	if rec == nil || rec.Quantity != 60 {
		t.Fatalf("expected persisted quantity 60, got %+v", rec)
	}
	if rec.LastAdjustmentID != res.Event.ID {
		t.Errorf("expected last adjustment %s, got %s", res.Event.ID, rec.LastAdjustmentID)
	}
}

func TestApply_InsufficientStock(t *testing.T) {
	svc, mem, _ := newTestEnv()

	_, err := svc.Apply(context.Background(), newRequest("req-1", -5))
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got: %v", err)
	}

	// The lazy zero record is never persisted by a rejection.
	rec, _ := mem.GetRecord(context.Background(), "sku-1", "wh-1")
	if rec != nil {
		t.Errorf("expected no record, got %+v", rec)
	}

	// But the rejection is on the audit log.
	events, _ := mem.History(context.Background(), "sku-1", "wh-1", time.Time{})
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Outcome != domain.OutcomeRejected || events[0].RejectReason != domain.RejectInsufficientStock {
		t.Errorf("unexpected event: %+v", events[0])
	}
}

func TestApply_CapacityExceeded(t *testing.T) {
	svc, _, _ := newTestEnv()
	ctx := context.Background()

	if _, err := svc.Apply(ctx, newRequest("req-1", 60)); err != nil {
		t.Fatalf("setup apply failed: %v", err)
	}

	_, err := svc.Apply(ctx, newRequest("req-2", 50))
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got: %v", err)
	}

	quantity, _, err := svc.CurrentLevel(ctx, "sku-1", "wh-1")
	if err != nil {
		t.Fatalf("CurrentLevel failed: %v", err)
	}
	if quantity != 60 {
		t.Errorf("expected quantity 60, got %d", quantity)
	}
}

func TestApply_Duplicate(t *testing.T) {
	svc, mem, _ := newTestEnv()
	ctx := context.Background()

	first, err := svc.Apply(ctx, newRequest("req-1", 60))
	if err != nil {
		t.Fatalf("first apply failed: %v", err)
	}
	if first.Status != StatusApplied {
		t.Fatalf("expected applied, got %s", first.Status)
	}

	second, err := svc.Apply(ctx, newRequest("req-1", 60))
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if second.Status != StatusDuplicate {
		t.Errorf("expected duplicate, got %s", second.Status)
	}
	if second.Event.ID != first.Event.ID {
		t.Errorf("expected prior event %s, got %s", first.Event.ID, second.Event.ID)
	}

	// One net change, one applied log entry.
	rec, _ := mem.GetRecord(ctx, "sku-1", "wh-1")
	if rec.Quantity != 60 || rec.Version != 1 {
		t.Errorf("expected quantity 60 version 1, got %+v", rec)
	}
	events, _ := mem.History(ctx, "sku-1", "wh-1", time.Time{})
	if len(events) != 1 {
		t.Errorf("expected 1 event, got %d", len(events))
	}
}

func TestApply_IdempotencyKeyReuse(t *testing.T) {
	svc, _, _ := newTestEnv()
	ctx := context.Background()

	if _, err := svc.Apply(ctx, newRequest("req-1", 60)); err != nil {
		t.Fatalf("first apply failed: %v", err)
	}

	_, err := svc.Apply(ctx, newRequest("req-1", 30))
	if !errors.Is(err, ErrIdempotencyKeyReuse) {
		t.Fatalf("expected ErrIdempotencyKeyReuse, got: %v", err)
	}
}

func TestApply_UnknownProductAndWarehouse(t *testing.T) {
	svc, _, _ := newTestEnv()
	ctx := context.Background()

	req := newRequest("req-1", 5)
	req.ProductID = "sku-missing"
	if _, err := svc.Apply(ctx, req); !errors.Is(err, ErrUnknownProduct) {
		t.Errorf("expected ErrUnknownProduct, got: %v", err)
	}

	req = newRequest("req-2", 5)
	req.WarehouseID = "wh-missing"
	if _, err := svc.Apply(ctx, req); !errors.Is(err, ErrUnknownWarehouse) {
		t.Errorf("expected ErrUnknownWarehouse, got: %v", err)
	}
}

// conflictLedger always reports a version conflict.
type conflictLedger struct {
	attempts atomic.Int32
}

func (c *conflictLedger) GetRecord(ctx context.Context, productID, warehouseID string) (*domain.StockRecord, error) {
	return nil, nil
}

func (c *conflictLedger) CompareAndSwap(ctx context.Context, rec domain.StockRecord, expectedVersion int64, newQuantity int, event domain.AdjustmentEvent) (int64, error) {
	c.attempts.Add(1)
	return 0, port.ErrVersionConflict
}

func TestApply_Contention(t *testing.T) {
	mem := storage.NewMemoryAdapter()
	mem.AddProduct(domain.Product{ID: "sku-1", ReorderThreshold: 10})
	mem.AddWarehouse(domain.Warehouse{ID: "wh-1", Capacity: 100})

	ledger := &conflictLedger{}
	svc := NewAdjustmentService(ledger, mem, mem, nil, NewAlertEvaluator(10))

	_, err := svc.Apply(context.Background(), newRequest("req-1", 5))
	if !errors.Is(err, ErrContention) {
		t.Fatalf("expected ErrContention, got: %v", err)
	}
	if got := ledger.attempts.Load(); got != defaultMaxAttempts {
		t.Errorf("expected %d attempts, got %d", defaultMaxAttempts, got)
	}
}

// brokenLedger simulates an unavailable store.
type brokenLedger struct{}

func (brokenLedger) GetRecord(ctx context.Context, productID, warehouseID string) (*domain.StockRecord, error) {
	return nil, nil
}

func (brokenLedger) CompareAndSwap(ctx context.Context, rec domain.StockRecord, expectedVersion int64, newQuantity int, event domain.AdjustmentEvent) (int64, error) {
	return 0, errors.New("connection refused")
}

func TestApply_StoreUnavailable(t *testing.T) {
	mem := storage.NewMemoryAdapter()
	mem.AddProduct(domain.Product{ID: "sku-1", ReorderThreshold: 10})
	mem.AddWarehouse(domain.Warehouse{ID: "wh-1", Capacity: 100})

	svc := NewAdjustmentService(brokenLedger{}, mem, mem, nil, NewAlertEvaluator(10))

	_, err := svc.Apply(context.Background(), newRequest("req-1", 5))
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrContention) || errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("store failure must not masquerade as a rejection, got: %v", err)
	}
}

func TestApply_Concurrent(t *testing.T) {
	svc, mem, _ := newTestEnv()
	svc.maxAttempts = 100 // plenty of retries under the storm

	totalRequests := 20
	var applied atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			res, err := svc.Apply(context.Background(), newRequest(fmt.Sprintf("req-%d", id), 1))
			if err != nil {
				t.Errorf("apply %d failed: %v", id, err)
				return
			}
			if res.Status == StatusApplied {
				applied.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if applied.Load() != int32(totalRequests) {
		t.Errorf("expected %d applied, got %d", totalRequests, applied.Load())
	}

	rec, _ := mem.GetRecord(context.Background(), "sku-1", "wh-1")
	if rec.Quantity != totalRequests {
		t.Errorf("expected quantity %d, got %d", totalRequests, rec.Quantity)
	}
	if rec.Version != int64(totalRequests) {
		t.Errorf("expected version %d, got %d", totalRequests, rec.Version)
	}
}

func TestApply_CapacityScenario(t *testing.T) {
	svc, _, alerts := newTestEnv()
	ctx := context.Background()

	res, err := svc.Apply(ctx, newRequest("req-1", 60))
	if err != nil || res.Event.ResultingQuantity != 60 {
		t.Fatalf("step 1: expected applied quantity 60, got %+v err %v", res, err)
	}

	if _, err := svc.Apply(ctx, newRequest("req-2", 50)); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("step 2: expected ErrCapacityExceeded, got: %v", err)
	}

	if _, err := svc.Apply(ctx, newRequest("req-3", -70)); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("step 3: expected ErrInsufficientStock, got: %v", err)
	}

	res, err = svc.Apply(ctx, newRequest("req-4", -60))
	if err != nil || res.Event.ResultingQuantity != 0 {
		t.Fatalf("step 4: expected applied quantity 0, got %+v err %v", res, err)
	}

	alerts.Close()
	var kinds []domain.AlertKind
	for n := range alerts.Notifications() {
		kinds = append(kinds, n.Kind)
	}
	// 0 -> 60 restocks, 60 -> 0 goes out of stock.
	if len(kinds) != 2 || kinds[0] != domain.AlertRestocked || kinds[1] != domain.AlertOutOfStock {
		t.Errorf("unexpected alert sequence: %v", kinds)
	}
}

func TestApply_LowStockCrossingOnce(t *testing.T) {
	svc, _, alerts := newTestEnv()
	ctx := context.Background()

	if _, err := svc.Apply(ctx, newRequest("req-1", 20)); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	res, err := svc.Apply(ctx, newRequest("req-2", -12))
	if err != nil || res.Event.ResultingQuantity != 8 {
		t.Fatalf("expected applied quantity 8, got %+v err %v", res, err)
	}

	// Already below the threshold; no second low-stock alert.
	if _, err := svc.Apply(ctx, newRequest("req-3", -3)); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	alerts.Close()
	var kinds []domain.AlertKind
	for n := range alerts.Notifications() {
		kinds = append(kinds, n.Kind)
	}
	if len(kinds) != 2 || kinds[0] != domain.AlertRestocked || kinds[1] != domain.AlertLowStock {
		t.Errorf("unexpected alert sequence: %v", kinds)
	}
}

// stubLevelCache is a map-backed port.LevelCache.
type stubLevelCache struct {
	mu     sync.Mutex
	levels map[string][2]int64
}

func newStubLevelCache() *stubLevelCache {
	return &stubLevelCache{levels: make(map[string][2]int64)}
}

func (c *stubLevelCache) SetLevel(ctx context.Context, productID, warehouseID string, quantity int, version int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.levels[productID+"|"+warehouseID] = [2]int64{int64(quantity), version}
	return nil
}

func (c *stubLevelCache) GetLevel(ctx context.Context, productID, warehouseID string) (int, int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.levels[productID+"|"+warehouseID]
	if !ok {
		return 0, 0, false, nil
	}
	return int(entry[0]), entry[1], true, nil
}

func TestCurrentLevel_CacheRefresh(t *testing.T) {
	mem := storage.NewMemoryAdapter()
	mem.AddProduct(domain.Product{ID: "sku-1", ReorderThreshold: 10})
	mem.AddWarehouse(domain.Warehouse{ID: "wh-1", Capacity: 100})

	cache := newStubLevelCache()
	svc := NewAdjustmentService(mem, mem, mem, cache, NewAlertEvaluator(10))
	ctx := context.Background()

	// Never-adjusted pair reads as zero.
	quantity, version, err := svc.CurrentLevel(ctx, "sku-1", "wh-1")
	if err != nil || quantity != 0 || version != 0 {
		t.Fatalf("expected 0/0, got %d/%d err %v", quantity, version, err)
	}

	if _, err := svc.Apply(ctx, newRequest("req-1", 25)); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	// The applied write refreshed the cache.
	cq, cv, ok, _ := cache.GetLevel(ctx, "sku-1", "wh-1")
	if !ok || cq != 25 || cv != 1 {
		t.Errorf("expected cached 25/1, got %d/%d ok=%v", cq, cv, ok)
	}

	quantity, version, err = svc.CurrentLevel(ctx, "sku-1", "wh-1")
	if err != nil || quantity != 25 || version != 1 {
		t.Errorf("expected 25/1, got %d/%d err %v", quantity, version, err)
	}
}

func TestHistory_OrderAndSinceFilter(t *testing.T) {
	svc, _, _ := newTestEnv()
	ctx := context.Background()

	for i, delta := range []int{30, -10, 5} {
		if _, err := svc.Apply(ctx, newRequest(fmt.Sprintf("req-%d", i), delta)); err != nil {
			t.Fatalf("apply %d failed: %v", i, err)
		}
	}

	events, err := svc.History(ctx, "sku-1", "wh-1", time.Time{})
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].ResultingVersion <= events[i-1].ResultingVersion {
			t.Errorf("events out of order: %d then %d", events[i-1].ResultingVersion, events[i].ResultingVersion)
		}
	}

	future, err := svc.History(ctx, "sku-1", "wh-1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(future) != 0 {
		t.Errorf("expected no events, got %d", len(future))
	}
}
