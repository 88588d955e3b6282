package port

import (
	"context"
	"errors"

	"github.com/nqvinh/inventory-core/internal/core/domain"
)

var (
	// ErrVersionConflict means the record changed since the caller's
	// read; re-read and retry.
	ErrVersionConflict = errors.New("stock record version conflict")

	// ErrDuplicateEvent means an applied event with the same
	// idempotency key already exists. Backstop for two in-flight
	// requests carrying the same key.
	ErrDuplicateEvent = errors.New("duplicate applied adjustment event")
)

type LedgerStore interface {
	// GetRecord retrieves the stock record for a pair, nil if the pair
	// has never been written.
	GetRecord(ctx context.Context, productID, warehouseID string) (*domain.StockRecord, error)

	// CompareAndSwap replaces the record's quantity and appends the
	// applied event in a single atomic unit. expectedVersion 0 inserts
	// the record. Returns the new version, ErrVersionConflict on a
	// version mismatch, or ErrDuplicateEvent on an idempotency-key hit.
	CompareAndSwap(ctx context.Context, rec domain.StockRecord, expectedVersion int64, newQuantity int, event domain.AdjustmentEvent) (int64, error)
}
