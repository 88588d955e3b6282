package domain

// Product identity is immutable; display attributes are owned by the
// external catalog service and only mirrored here.
type Product struct {
	ID               string
	Name             string
	Barcode          string // optional, unique when set
	ReorderThreshold int    // 0 disables alerting for this product
}
