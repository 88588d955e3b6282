package port

import (
	"context"

	"github.com/nqvinh/inventory-core/internal/core/domain"
)

// Catalog resolves product and warehouse reference data. Both are owned
// by external services; the core only reads thresholds and capacities.
type Catalog interface {
	// Product returns the product, nil if unknown.
	Product(ctx context.Context, id string) (*domain.Product, error)

	// Warehouse returns the warehouse, nil if unknown.
	Warehouse(ctx context.Context, id string) (*domain.Warehouse, error)
}
