package port

import (
	"context"
	"time"

	"github.com/nqvinh/inventory-core/internal/core/domain"
)

// AdjustmentLog is append-only. Entries are never rewritten or deleted;
// corrections are modeled as new compensating adjustments.
type AdjustmentLog interface {
	// Append records a processed adjustment. Applied outcomes normally
	// ride the CompareAndSwap transaction; this path exists for
	// rejected outcomes.
	Append(ctx context.Context, event domain.AdjustmentEvent) error

	// FindByIdempotencyKey returns the applied event for a key, nil if
	// the key has never been applied. Rejected outcomes do not count.
	FindByIdempotencyKey(ctx context.Context, key string) (*domain.AdjustmentEvent, error)

	// History returns events for a pair since the given time, ordered
	// by application time then version.
	History(ctx context.Context, productID, warehouseID string, since time.Time) ([]domain.AdjustmentEvent, error)
}
