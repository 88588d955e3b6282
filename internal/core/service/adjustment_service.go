package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nqvinh/inventory-core/internal/core/domain"
	"github.com/nqvinh/inventory-core/internal/port"
)

var (
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrCapacityExceeded    = errors.New("warehouse capacity exceeded")
	ErrContention          = errors.New("adjustment retry budget exhausted")
	ErrIdempotencyKeyReuse = errors.New("idempotency key reused with different delta")
	ErrUnknownProduct      = errors.New("unknown product")
	ErrUnknownWarehouse    = errors.New("unknown warehouse")
)

const (
	defaultMaxAttempts = 5
	baseBackoff        = 5 * time.Millisecond
)

type ApplyStatus string

const (
	StatusApplied   ApplyStatus = "applied"
	StatusDuplicate ApplyStatus = "duplicate"
)

type ApplyResult struct {
	Status ApplyStatus
	Event  domain.AdjustmentEvent
}

// AdjustmentService is the single write entry point for stock levels.
// Contention on a (product, warehouse) pair is resolved optimistically:
// read, validate, compare-and-swap, retry on version conflict.
type AdjustmentService struct {
	ledger      port.LedgerStore
	log         port.AdjustmentLog
	catalog     port.Catalog
	levels      port.LevelCache
	alerts      *AlertEvaluator
	maxAttempts int
}

// NewAdjustmentService wires the engine. levels may be nil when no
// read cache is deployed.
func NewAdjustmentService(ledger port.LedgerStore, log port.AdjustmentLog, catalog port.Catalog, levels port.LevelCache, alerts *AlertEvaluator) *AdjustmentService {
	registerMetrics()
	return &AdjustmentService{
		ledger:      ledger,
		log:         log,
		catalog:     catalog,
		levels:      levels,
		alerts:      alerts,
		maxAttempts: defaultMaxAttempts,
	}
}

func (s *AdjustmentService) Apply(ctx context.Context, req domain.AdjustmentRequest) (ApplyResult, error) {
	if err := req.Validate(); err != nil {
		return ApplyResult{}, err
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now()
	}

	res, done, err := s.resolveIdempotency(ctx, req)
	if done || err != nil {
		return res, err
	}

	product, err := s.catalog.Product(ctx, req.ProductID)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("catalog product lookup: %w", err)
	}
	if product == nil {
		return ApplyResult{}, ErrUnknownProduct
	}

	warehouse, err := s.catalog.Warehouse(ctx, req.WarehouseID)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("catalog warehouse lookup: %w", err)
	}
	if warehouse == nil {
		return ApplyResult{}, ErrUnknownWarehouse
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := s.backoff(ctx, attempt); err != nil {
				return ApplyResult{}, err
			}
			// The conflicting writer may have been a retry carrying
			// the same key.
			res, done, err := s.resolveIdempotency(ctx, req)
			if done || err != nil {
				return res, err
			}
		}

		rec, err := s.ledger.GetRecord(ctx, req.ProductID, req.WarehouseID)
		if err != nil {
			return ApplyResult{}, fmt.Errorf("read stock record: %w", err)
		}
		if rec == nil {
			zero := domain.NewStockRecord(req.ProductID, req.WarehouseID)
			rec = &zero
		}

		candidate := rec.Quantity + req.Delta
		if candidate < 0 {
			return s.reject(ctx, req, domain.RejectInsufficientStock, ErrInsufficientStock)
		}
		if candidate > warehouse.Capacity {
			return s.reject(ctx, req, domain.RejectCapacityExceeded, ErrCapacityExceeded)
		}

		event := domain.AdjustmentEvent{
			ID:                uuid.NewString(),
			IdempotencyKey:    req.IdempotencyKey,
			ProductID:         req.ProductID,
			WarehouseID:       req.WarehouseID,
			Delta:             req.Delta,
			Reason:            req.Reason,
			RequestedBy:       req.RequestedBy,
			RequestedAt:       req.RequestedAt,
			ResultingQuantity: candidate,
			ResultingVersion:  rec.Version + 1,
			Outcome:           domain.OutcomeApplied,
			AppliedAt:         time.Now(),
		}

		newVersion, err := s.ledger.CompareAndSwap(ctx, *rec, rec.Version, candidate, event)
		if errors.Is(err, port.ErrVersionConflict) {
			versionConflicts.Inc()
			continue
		}
		if errors.Is(err, port.ErrDuplicateEvent) {
			// Lost the race against a request with the same key.
			prior, lookupErr := s.log.FindByIdempotencyKey(ctx, req.IdempotencyKey)
			if lookupErr != nil {
				return ApplyResult{}, fmt.Errorf("idempotency lookup: %w", lookupErr)
			}
			if prior != nil {
				adjustmentDuplicates.Inc()
				return ApplyResult{Status: StatusDuplicate, Event: *prior}, nil
			}
			return ApplyResult{}, err
		}
		if err != nil {
			return ApplyResult{}, fmt.Errorf("ledger store write: %w", err)
		}

		event.ResultingVersion = newVersion
		s.refreshLevel(ctx, req.ProductID, req.WarehouseID, candidate, newVersion)
		s.alerts.Evaluate(product, req.WarehouseID, rec.Quantity, candidate)
		adjustmentsApplied.Inc()

		logrus.WithFields(logrus.Fields{
			"productID":   req.ProductID,
			"warehouseID": req.WarehouseID,
			"delta":       req.Delta,
			"quantity":    candidate,
			"version":     newVersion,
			"requestedBy": req.RequestedBy,
		}).Info("adjustment applied")

		return ApplyResult{Status: StatusApplied, Event: event}, nil
	}

	return s.reject(ctx, req, domain.RejectContention, ErrContention)
}

// CurrentLevel serves dashboards: cache first, ledger on miss.
func (s *AdjustmentService) CurrentLevel(ctx context.Context, productID, warehouseID string) (int, int64, error) {
	if s.levels != nil {
		quantity, version, ok, err := s.levels.GetLevel(ctx, productID, warehouseID)
		if err != nil {
			logrus.WithError(err).Warn("level cache read failed")
		} else if ok {
			return quantity, version, nil
		}
	}

	rec, err := s.ledger.GetRecord(ctx, productID, warehouseID)
	if err != nil {
		return 0, 0, fmt.Errorf("read stock record: %w", err)
	}
	if rec == nil {
		return 0, 0, nil
	}

	s.refreshLevel(ctx, productID, warehouseID, rec.Quantity, rec.Version)
	return rec.Quantity, rec.Version, nil
}

func (s *AdjustmentService) History(ctx context.Context, productID, warehouseID string, since time.Time) ([]domain.AdjustmentEvent, error) {
	events, err := s.log.History(ctx, productID, warehouseID, since)
	if err != nil {
		return nil, fmt.Errorf("adjustment history: %w", err)
	}
	return events, nil
}

// resolveIdempotency short-circuits replayed requests. done is true
// when res/err already answer the request.
func (s *AdjustmentService) resolveIdempotency(ctx context.Context, req domain.AdjustmentRequest) (ApplyResult, bool, error) {
	prior, err := s.log.FindByIdempotencyKey(ctx, req.IdempotencyKey)
	if err != nil {
		return ApplyResult{}, true, fmt.Errorf("idempotency lookup: %w", err)
	}
	if prior == nil {
		return ApplyResult{}, false, nil
	}
	if prior.Delta != req.Delta {
		res, err := s.reject(ctx, req, domain.RejectIdempotencyKeyReuse, ErrIdempotencyKeyReuse)
		return res, true, err
	}

	adjustmentDuplicates.Inc()
	return ApplyResult{Status: StatusDuplicate, Event: *prior}, true, nil
}

// reject records the outcome for audit and returns the terminal error.
// The audit append is best-effort; the rejection stands either way.
func (s *AdjustmentService) reject(ctx context.Context, req domain.AdjustmentRequest, reason domain.RejectReason, cause error) (ApplyResult, error) {
	event := domain.AdjustmentEvent{
		ID:             uuid.NewString(),
		IdempotencyKey: req.IdempotencyKey,
		ProductID:      req.ProductID,
		WarehouseID:    req.WarehouseID,
		Delta:          req.Delta,
		Reason:         req.Reason,
		RequestedBy:    req.RequestedBy,
		RequestedAt:    req.RequestedAt,
		Outcome:        domain.OutcomeRejected,
		RejectReason:   reason,
		AppliedAt:      time.Now(),
	}

	if err := s.log.Append(ctx, event); err != nil {
		logrus.WithFields(logrus.Fields{
			"idempotencyKey": req.IdempotencyKey,
			"reason":         reason,
		}).WithError(err).Warn("failed to record rejected adjustment")
	}
	adjustmentsRejected.WithLabelValues(string(reason)).Inc()

	return ApplyResult{}, cause
}

func (s *AdjustmentService) refreshLevel(ctx context.Context, productID, warehouseID string, quantity int, version int64) {
	if s.levels == nil {
		return
	}
	if err := s.levels.SetLevel(ctx, productID, warehouseID, quantity, version); err != nil {
		logrus.WithError(err).Warn("level cache refresh failed")
	}
}

func (s *AdjustmentService) backoff(ctx context.Context, attempt int) error {
	jitter := time.Duration(rand.Int63n(int64(baseBackoff)))
	delay := baseBackoff*time.Duration(attempt-1) + jitter

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}
