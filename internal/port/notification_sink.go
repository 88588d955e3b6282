package port

import (
	"context"

	"github.com/nqvinh/inventory-core/internal/core/domain"
)

type NotificationSink interface {
	// Notify forwards an alert to the external notification
	// collaborator. Delivery is best-effort; failures never roll back
	// the adjustment that produced the alert.
	Notify(ctx context.Context, n domain.AlertNotification) error
}
