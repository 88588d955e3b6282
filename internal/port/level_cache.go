package port

import "context"

// LevelCache serves the dashboard read path. Entries are refreshed
// best-effort after each applied adjustment; the ledger store remains
// the source of truth.
type LevelCache interface {
	// SetLevel caches the current quantity and version for a pair.
	SetLevel(ctx context.Context, productID, warehouseID string, quantity int, version int64) error

	// GetLevel returns the cached level; ok is false on a miss.
	GetLevel(ctx context.Context, productID, warehouseID string) (quantity int, version int64, ok bool, err error)
}
