package service

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nqvinh/inventory-core/internal/core/domain"
)

// AlertEvaluator turns threshold crossings into notifications. It only
// enqueues; delivery workers drain Notifications() into the external
// sink. A full queue drops the notification rather than blocking the
// write path.
type AlertEvaluator struct {
	queue chan domain.AlertNotification
}

func NewAlertEvaluator(queueSize int) *AlertEvaluator {
	registerMetrics()
	return &AlertEvaluator{
		queue: make(chan domain.AlertNotification, queueSize),
	}
}

func (e *AlertEvaluator) Evaluate(product *domain.Product, warehouseID string, prevQuantity, newQuantity int) []domain.AlertNotification {
	kinds := domain.ThresholdCrossings(prevQuantity, newQuantity, product.ReorderThreshold)
	if len(kinds) == 0 {
		return nil
	}

	emitted := make([]domain.AlertNotification, 0, len(kinds))
	for _, kind := range kinds {
		n := domain.AlertNotification{
			ProductID:   product.ID,
			WarehouseID: warehouseID,
			Quantity:    newQuantity,
			Threshold:   product.ReorderThreshold,
			Kind:        kind,
			EmittedAt:   time.Now(),
		}

		select {
		case e.queue <- n:
			alertsEmitted.WithLabelValues(string(kind)).Inc()
			emitted = append(emitted, n)
		default:
			logrus.WithFields(logrus.Fields{
				"productID":   product.ID,
				"warehouseID": warehouseID,
				"kind":        kind,
			}).Warn("alert queue full, dropping notification")
		}
	}

	return emitted
}

func (e *AlertEvaluator) Notifications() <-chan domain.AlertNotification {
	return e.queue
}

func (e *AlertEvaluator) Close() {
	close(e.queue)
}
