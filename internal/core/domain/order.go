package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusProcessing     OrderStatus = "processing"
	OrderStatusShipped        OrderStatus = "shipped"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
	OrderStatusRefunded       OrderStatus = "refunded"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusSucceeded  PaymentStatus = "succeeded"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// validTransitions defines the allowed status transitions. Refund is further
// gated on payment status by CanTransition.
var validTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:        {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:      {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing:     {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:        {OrderStatusOutForDelivery},
	OrderStatusOutForDelivery: {OrderStatusDelivered},
	OrderStatusDelivered:      {OrderStatusRefunded},
	OrderStatusCancelled:      {},
	OrderStatusRefunded:       {},
}

// OrderLine is an immutable snapshot of a cart line plus the product details
// at order time. It survives later edits or deletion of the source product.
type OrderLine struct {
	ProductID    string
	VariantID    string
	ProductName  string
	ProductSKU   string
	ProductImage string
	Quantity     int
	UnitPrice    decimal.Decimal
	LineTotal    decimal.Decimal
}

// StatusEntry is one append-only status history record.
type StatusEntry struct {
	Status    OrderStatus
	Note      string
	Actor     string
	Timestamp time.Time
}

type Payment struct {
	Method       string
	Status       PaymentStatus
	IntentRef    string
	Amount       decimal.Decimal
	PaidAt       *time.Time
	RefundedAt   *time.Time
	RefundAmount decimal.Decimal
	RefundReason string
}

type Pricing struct {
	Subtotal decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

type ShippingInfo struct {
	Method            string
	Cost              decimal.Decimal
	TrackingNumber    string
	Carrier           string
	EstimatedDelivery *time.Time
	DeliveredAt       *time.Time
}

type Order struct {
	ID            string
	OrderNumber   string
	UserID        string
	Lines         []OrderLine
	Status        OrderStatus
	StatusHistory []StatusEntry
	Payment       Payment
	Pricing       Pricing
	Shipping      ShippingInfo
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CanTransition reports whether the order may move to the target status.
// delivered -> refunded additionally requires a succeeded payment.
func (o *Order) CanTransition(target OrderStatus) bool {
	if target == OrderStatusRefunded && o.Payment.Status != PaymentStatusSucceeded {
		return false
	}
	for _, s := range validTransitions[o.Status] {
		if s == target {
			return true
		}
	}
	return false
}

// Transition appends a history entry and sets the new status. Callers persist
// both in one write; concurrent transitions are serialized by the store's
// conditional update on the previous status.
func (o *Order) Transition(target OrderStatus, note, actor string) error {
	if !o.CanTransition(target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, target)
	}
	now := time.Now()
	o.StatusHistory = append(o.StatusHistory, StatusEntry{
		Status:    target,
		Note:      note,
		Actor:     actor,
		Timestamp: now,
	})
	o.Status = target
	o.UpdatedAt = now
	return nil
}

// CanCancel reports whether cancellation (with stock release) is allowed.
func (o *Order) CanCancel() bool {
	switch o.Status {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing:
		return true
	}
	return false
}

// CanRefund reports whether a refund may be requested.
func (o *Order) CanRefund() bool {
	return o.Status == OrderStatusDelivered && o.Payment.Status == PaymentStatusSucceeded
}

var taxRate = decimal.NewFromFloat(0.08)

var shippingRates = map[string]decimal.Decimal{
	"standard":  decimal.NewFromFloat(5.99),
	"express":   decimal.NewFromFloat(12.99),
	"overnight": decimal.NewFromFloat(24.99),
	"pickup":    decimal.Zero,
}

// ShippingCost returns the flat cost for a shipping method, defaulting to
// standard for unknown methods.
func ShippingCost(method string) decimal.Decimal {
	if cost, ok := shippingRates[method]; ok {
		return cost
	}
	return shippingRates["standard"]
}

// ComputePricing derives the order pricing breakdown. The total is clamped at
// zero so an oversized discount can never produce a negative charge.
func ComputePricing(subtotal, shipping, discount decimal.Decimal) Pricing {
	tax := subtotal.Mul(taxRate).Round(2)
	total := subtotal.Add(shipping).Add(tax).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return Pricing{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Discount: discount,
		Total:    total,
	}
}

// OrderEvent is the payload emitted to the event sink on every status change.
type OrderEvent struct {
	OrderID     string      `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	UserID      string      `json:"user_id"`
	Status      OrderStatus `json:"status"`
	Note        string      `json:"note,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}
