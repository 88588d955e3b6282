package domain

import (
	"errors"
	"time"
)

type ReasonCode string

const (
	ReasonReceipt    ReasonCode = "receipt"
	ReasonSale       ReasonCode = "sale"
	ReasonRecount    ReasonCode = "recount"
	ReasonCorrection ReasonCode = "correction"
	ReasonDamage     ReasonCode = "damage"
)

type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeRejected  Outcome = "rejected"
	OutcomeDuplicate Outcome = "duplicate"
)

type RejectReason string

const (
	RejectInsufficientStock   RejectReason = "insufficient_stock"
	RejectCapacityExceeded    RejectReason = "capacity_exceeded"
	RejectContention          RejectReason = "contention"
	RejectIdempotencyKeyReuse RejectReason = "idempotency_key_reuse"
)

var (
	ErrMissingIdempotencyKey = errors.New("adjustment: missing idempotency key")
	ErrMissingProduct        = errors.New("adjustment: missing product id")
	ErrMissingWarehouse      = errors.New("adjustment: missing warehouse id")
	ErrZeroDelta             = errors.New("adjustment: delta must be non-zero")
)

// AdjustmentRequest is one logical stock mutation. The idempotency key
// is chosen by the caller and must be resent verbatim on retries.
type AdjustmentRequest struct {
	IdempotencyKey string
	ProductID      string
	WarehouseID    string
	Delta          int // positive = receipt, negative = issue
	Reason         ReasonCode
	RequestedBy    string
	RequestedAt    time.Time
}

func (r AdjustmentRequest) Validate() error {
	if r.IdempotencyKey == "" {
		return ErrMissingIdempotencyKey
	}
	if r.ProductID == "" {
		return ErrMissingProduct
	}
	if r.WarehouseID == "" {
		return ErrMissingWarehouse
	}
	if r.Delta == 0 {
		return ErrZeroDelta
	}
	return nil
}

// AdjustmentEvent is the append-only log entry for a processed request.
// Immutable once written; corrections are new compensating adjustments.
type AdjustmentEvent struct {
	ID                string
	IdempotencyKey    string
	ProductID         string
	WarehouseID       string
	Delta             int
	Reason            ReasonCode
	RequestedBy       string
	RequestedAt       time.Time
	ResultingQuantity int
	ResultingVersion  int64
	Outcome           Outcome
	RejectReason      RejectReason // set only when Outcome is rejected
	AppliedAt         time.Time
}
