package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/nqvinh/inventory-core/internal/core/domain"
	"github.com/nqvinh/inventory-core/internal/core/service"
)

type HTTPHandler struct {
	adjustments *service.AdjustmentService
}

type AdjustmentHTTPRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
	ProductID      string `json:"product_id"`
	WarehouseID    string `json:"warehouse_id"`
	Delta          int    `json:"delta"`
	Reason         string `json:"reason"`
	RequestedBy    string `json:"requested_by"`
}

type AdjustmentHTTPResponse struct {
	Outcome  string `json:"outcome"`
	EventID  string `json:"event_id,omitempty"`
	Quantity int    `json:"quantity"`
	Version  int64  `json:"version"`
	Message  string `json:"message,omitempty"`
}

type LevelHTTPResponse struct {
	ProductID   string `json:"product_id"`
	WarehouseID string `json:"warehouse_id"`
	Quantity    int    `json:"quantity"`
	Version     int64  `json:"version"`
}

type EventHTTPResponse struct {
	ID                string `json:"id"`
	IdempotencyKey    string `json:"idempotency_key"`
	ProductID         string `json:"product_id"`
	WarehouseID       string `json:"warehouse_id"`
	Delta             int    `json:"delta"`
	Reason            string `json:"reason"`
	RequestedBy       string `json:"requested_by"`
	RequestedAt       string `json:"requested_at"`
	ResultingQuantity int    `json:"resulting_quantity"`
	ResultingVersion  int64  `json:"resulting_version"`
	Outcome           string `json:"outcome"`
	RejectReason      string `json:"reject_reason,omitempty"`
	AppliedAt         string `json:"applied_at"`
}

func NewHTTPHandler(adjustments *service.AdjustmentService) *HTTPHandler {
	return &HTTPHandler{adjustments: adjustments}
}

func (h *HTTPHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req AdjustmentHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, AdjustmentHTTPResponse{Message: "invalid request body"})
		return
	}

	res, err := h.adjustments.Apply(r.Context(), domain.AdjustmentRequest{
		IdempotencyKey: req.IdempotencyKey,
		ProductID:      req.ProductID,
		WarehouseID:    req.WarehouseID,
		Delta:          req.Delta,
		Reason:         domain.ReasonCode(req.Reason),
		RequestedBy:    req.RequestedBy,
		RequestedAt:    time.Now(),
	})
	if err != nil {
		status, message := adjustErrorStatus(err)
		writeJSON(w, status, AdjustmentHTTPResponse{Outcome: string(domain.OutcomeRejected), Message: message})
		return
	}

	writeJSON(w, http.StatusOK, AdjustmentHTTPResponse{
		Outcome:  string(res.Status),
		EventID:  res.Event.ID,
		Quantity: res.Event.ResultingQuantity,
		Version:  res.Event.ResultingVersion,
	})
}

func (h *HTTPHandler) Level(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	productID := r.URL.Query().Get("product_id")
	warehouseID := r.URL.Query().Get("warehouse_id")
	if productID == "" || warehouseID == "" {
		http.Error(w, "product_id and warehouse_id are required", http.StatusBadRequest)
		return
	}

	quantity, version, err := h.adjustments.CurrentLevel(r.Context(), productID, warehouseID)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, LevelHTTPResponse{
		ProductID:   productID,
		WarehouseID: warehouseID,
		Quantity:    quantity,
		Version:     version,
	})
}

func (h *HTTPHandler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	productID := r.URL.Query().Get("product_id")
	warehouseID := r.URL.Query().Get("warehouse_id")
	if productID == "" || warehouseID == "" {
		http.Error(w, "product_id and warehouse_id are required", http.StatusBadRequest)
		return
	}

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "since must be RFC3339", http.StatusBadRequest)
			return
		}
		since = parsed
	}

	events, err := h.adjustments.History(r.Context(), productID, warehouseID, since)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	out := make([]EventHTTPResponse, 0, len(events))
	for _, e := range events {
		out = append(out, eventResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func eventResponse(e domain.AdjustmentEvent) EventHTTPResponse {
	return EventHTTPResponse{
		ID:                e.ID,
		IdempotencyKey:    e.IdempotencyKey,
		ProductID:         e.ProductID,
		WarehouseID:       e.WarehouseID,
		Delta:             e.Delta,
		Reason:            string(e.Reason),
		RequestedBy:       e.RequestedBy,
		RequestedAt:       e.RequestedAt.Format(time.RFC3339Nano),
		ResultingQuantity: e.ResultingQuantity,
		ResultingVersion:  e.ResultingVersion,
		Outcome:           string(e.Outcome),
		RejectReason:      string(e.RejectReason),
		AppliedAt:         e.AppliedAt.Format(time.RFC3339Nano),
	}
}

func adjustErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInsufficientStock):
		return http.StatusConflict, "insufficient stock"
	case errors.Is(err, service.ErrCapacityExceeded):
		return http.StatusConflict, "warehouse capacity exceeded"
	case errors.Is(err, service.ErrContention):
		return http.StatusServiceUnavailable, "too much contention, retry later"
	case errors.Is(err, service.ErrIdempotencyKeyReuse):
		return http.StatusUnprocessableEntity, "idempotency key reused with different delta"
	case errors.Is(err, service.ErrUnknownProduct):
		return http.StatusNotFound, "unknown product"
	case errors.Is(err, service.ErrUnknownWarehouse):
		return http.StatusNotFound, "unknown warehouse"
	case errors.Is(err, domain.ErrMissingIdempotencyKey),
		errors.Is(err, domain.ErrMissingProduct),
		errors.Is(err, domain.ErrMissingWarehouse),
		errors.Is(err, domain.ErrZeroDelta):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
