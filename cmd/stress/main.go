package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nqvinh/inventory-core/internal/adapter/storage"
	"github.com/nqvinh/inventory-core/internal/core/domain"
	"github.com/nqvinh/inventory-core/internal/core/service"
)

const (
	productID     = "stress-sku"
	warehouseID   = "stress-wh"
	capacity      = 100
	threshold     = 10
	totalRequests = 500
	queueSize     = 1024
)

// Fires concurrent +1/-1 adjustments at one (product, warehouse) pair
// over the in-memory adapter and checks the invariants afterwards.
func main() {
	ctx := context.Background()

	mem := storage.NewMemoryAdapter()
	mem.AddProduct(domain.Product{ID: productID, Name: "stress item", ReorderThreshold: threshold})
	mem.AddWarehouse(domain.Warehouse{ID: warehouseID, Capacity: capacity})

	alerts := service.NewAlertEvaluator(queueSize)

	var alertWg sync.WaitGroup
	alertWg.Add(1)
	go func() {
		defer alertWg.Done()
		for n := range alerts.Notifications() {
			mem.Notify(ctx, n)
		}
	}()

	svc := service.NewAdjustmentService(mem, mem, mem, nil, alerts)

	var applied, rejected, failed atomic.Int32
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			delta := 1
			if id%3 == 0 {
				delta = -1
			}

			_, err := svc.Apply(ctx, domain.AdjustmentRequest{
				IdempotencyKey: fmt.Sprintf("stress-%d", id),
				ProductID:      productID,
				WarehouseID:    warehouseID,
				Delta:          delta,
				Reason:         domain.ReasonRecount,
				RequestedBy:    fmt.Sprintf("worker-%d", id),
			})
			switch {
			case err == nil:
				applied.Add(1)
			case errors.Is(err, service.ErrInsufficientStock),
				errors.Is(err, service.ErrCapacityExceeded),
				errors.Is(err, service.ErrContention):
				rejected.Add(1)
			default:
				failed.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	alerts.Close()
	alertWg.Wait()

	rec, _ := mem.GetRecord(ctx, productID, warehouseID)
	events, _ := mem.History(ctx, productID, warehouseID, time.Time{})

	var sum int
	var appliedEvents int
	for _, e := range events {
		if e.Outcome == domain.OutcomeApplied {
			sum += e.Delta
			appliedEvents++
		}
	}

	fmt.Println("========== STRESS RESULTS ==========")
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Applied:          %d\n", applied.Load())
	fmt.Printf("Rejected:         %d\n", rejected.Load())
	fmt.Printf("Failed:           %d\n", failed.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Printf("Alerts delivered: %d\n", len(mem.Delivered()))
	fmt.Println("====================================")

	ok := true

	if failed.Load() != 0 {
		fmt.Printf("FAIL: %d requests errored\n", failed.Load())
		ok = false
	}

	if rec == nil {
		fmt.Println("FAIL: no stock record written")
		ok = false
	} else {
		if rec.Quantity < 0 || rec.Quantity > capacity {
			fmt.Printf("FAIL: quantity %d outside [0, %d]\n", rec.Quantity, capacity)
			ok = false
		}
		if rec.Quantity != sum {
			fmt.Printf("FAIL: quantity %d != sum of applied deltas %d\n", rec.Quantity, sum)
			ok = false
		}
		if rec.Version != int64(appliedEvents) {
			fmt.Printf("FAIL: version %d != applied events %d\n", rec.Version, appliedEvents)
			ok = false
		}
	}

	if int(applied.Load()) != appliedEvents {
		fmt.Printf("FAIL: %d applied responses but %d applied events\n", applied.Load(), appliedEvents)
		ok = false
	}

	if ok {
		fmt.Printf("PASS: final quantity %d, version %d, %d applied events\n", rec.Quantity, rec.Version, appliedEvents)
	}
}
