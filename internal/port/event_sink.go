package port

import (
	"context"

	"github.com/ltran/shopfulfill/internal/core/domain"
)

// EventSink receives order status-change events. Delivery is best-effort,
// at-least-once; the core never blocks an operation on sink failures.
type EventSink interface {
	Publish(ctx context.Context, event domain.OrderEvent) error
}
