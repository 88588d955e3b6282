package domain

import "time"

type AlertKind string

const (
	AlertLowStock   AlertKind = "low_stock"
	AlertOutOfStock AlertKind = "out_of_stock"
	AlertRestocked  AlertKind = "restocked"
)

// AlertNotification is ephemeral; it is handed to the notification
// collaborator and never stored by the core.
type AlertNotification struct {
	ProductID   string
	WarehouseID string
	Quantity    int
	Threshold   int
	Kind        AlertKind
	EmittedAt   time.Time
}

// ThresholdCrossings reports which alert boundaries were crossed by a
// quantity change. Detection is edge-triggered: sitting below the
// threshold emits nothing until the level crosses it again. A threshold
// of zero disables alerting for the product entirely.
func ThresholdCrossings(prev, next, threshold int) []AlertKind {
	if threshold <= 0 {
		return nil
	}

	var kinds []AlertKind
	switch {
	case next == 0 && prev > 0:
		kinds = append(kinds, AlertOutOfStock)
	case next <= threshold && prev > threshold:
		kinds = append(kinds, AlertLowStock)
	}

	if next > threshold && prev <= threshold {
		kinds = append(kinds, AlertRestocked)
	}

	return kinds
}
