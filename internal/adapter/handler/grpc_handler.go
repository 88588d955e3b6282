package handler

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/nqvinh/inventory-core/internal/core/domain"
	"github.com/nqvinh/inventory-core/internal/core/service"
)

type GRPCHandler struct {
	adjustments *service.AdjustmentService
}

func NewGRPCHandler(adjustments *service.AdjustmentService) *GRPCHandler {
	return &GRPCHandler{adjustments: adjustments}
}

func (h *GRPCHandler) Adjust(ctx context.Context, req *AdjustRequest) (*AdjustResponse, error) {
	res, err := h.adjustments.Apply(ctx, domain.AdjustmentRequest{
		IdempotencyKey: req.IdempotencyKey,
		ProductID:      req.ProductID,
		WarehouseID:    req.WarehouseID,
		Delta:          req.Delta,
		Reason:         domain.ReasonCode(req.Reason),
		RequestedBy:    req.RequestedBy,
		RequestedAt:    time.Now(),
	})
	if err != nil {
		return nil, adjustStatusError(err)
	}

	return &AdjustResponse{
		Outcome:  string(res.Status),
		EventID:  res.Event.ID,
		Quantity: res.Event.ResultingQuantity,
		Version:  res.Event.ResultingVersion,
	}, nil
}

func (h *GRPCHandler) CurrentLevel(ctx context.Context, req *LevelRequest) (*LevelResponse, error) {
	if req.ProductID == "" || req.WarehouseID == "" {
		return nil, status.Error(codes.InvalidArgument, "product_id and warehouse_id are required")
	}

	quantity, version, err := h.adjustments.CurrentLevel(ctx, req.ProductID, req.WarehouseID)
	if err != nil {
		return nil, status.Error(codes.Unavailable, "ledger store unavailable")
	}

	return &LevelResponse{Quantity: quantity, Version: version}, nil
}

func (h *GRPCHandler) History(ctx context.Context, req *HistoryRequest) (*HistoryResponse, error) {
	if req.ProductID == "" || req.WarehouseID == "" {
		return nil, status.Error(codes.InvalidArgument, "product_id and warehouse_id are required")
	}

	var since time.Time
	if req.Since != "" {
		parsed, err := time.Parse(time.RFC3339, req.Since)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "since must be RFC3339")
		}
		since = parsed
	}

	events, err := h.adjustments.History(ctx, req.ProductID, req.WarehouseID, since)
	if err != nil {
		return nil, status.Error(codes.Unavailable, "ledger store unavailable")
	}

	out := make([]EventHTTPResponse, 0, len(events))
	for _, e := range events {
		out = append(out, eventResponse(e))
	}
	return &HistoryResponse{Events: out}, nil
}

func adjustStatusError(err error) error {
	switch {
	case errors.Is(err, service.ErrInsufficientStock):
		return status.Error(codes.FailedPrecondition, "insufficient stock")
	case errors.Is(err, service.ErrCapacityExceeded):
		return status.Error(codes.FailedPrecondition, "warehouse capacity exceeded")
	case errors.Is(err, service.ErrContention):
		return status.Error(codes.Aborted, "too much contention, retry later")
	case errors.Is(err, service.ErrIdempotencyKeyReuse):
		return status.Error(codes.InvalidArgument, "idempotency key reused with different delta")
	case errors.Is(err, service.ErrUnknownProduct):
		return status.Error(codes.NotFound, "unknown product")
	case errors.Is(err, service.ErrUnknownWarehouse):
		return status.Error(codes.NotFound, "unknown warehouse")
	case errors.Is(err, domain.ErrMissingIdempotencyKey),
		errors.Is(err, domain.ErrMissingProduct),
		errors.Is(err, domain.ErrMissingWarehouse),
		errors.Is(err, domain.ErrZeroDelta):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
