package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ltran/shopfulfill/pkg/logging"
)

// Gateway issues payment intent references. The real processor sits behind
// this adapter; outcomes arrive asynchronously on the webhook endpoint
// correlated by the intent reference returned here.
type Gateway struct {
	currency string
}

func NewGateway(currency string) *Gateway {
	return &Gateway{currency: currency}
}

func (g *Gateway) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (string, error) {
	if currency == "" {
		currency = g.currency
	}
	ref := "pi_" + uuid.NewString()
	logging.Log(logging.Fields{
		Service: "payment",
		Step:    "create_intent",
		Status:  "created",
		Message: ref + " " + amount.StringFixed(2) + " " + currency,
	})
	return ref, nil
}
