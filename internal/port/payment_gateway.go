package port

import (
	"context"

	"github.com/shopspring/decimal"
)

// PaymentGateway creates external payment intents. The gateway's
// succeeded/failed/cancelled outcome arrives later through the webhook path,
// correlated by the returned intent reference.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (string, error)
}
