package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ltran/shopfulfill/internal/core/domain"
	"github.com/ltran/shopfulfill/internal/port"
	"github.com/ltran/shopfulfill/pkg/logging"
)

type OrderService struct {
	orders   port.OrderRepository
	carts    port.CartRepository
	catalog  port.CatalogRepository
	sequence port.SequenceRepository
	payments port.PaymentGateway
	events   port.EventSink
	currency string
}

func NewOrderService(
	orders port.OrderRepository,
	carts port.CartRepository,
	catalog port.CatalogRepository,
	sequence port.SequenceRepository,
	payments port.PaymentGateway,
	events port.EventSink,
) *OrderService {
	return &OrderService{
		orders:   orders,
		carts:    carts,
		catalog:  catalog,
		sequence: sequence,
		payments: payments,
		events:   events,
		currency: "USD",
	}
}

type CreateOrderInput struct {
	ShippingMethod string
	PaymentMethod  string
	CouponCode     string
}

// PaymentEvent is the asynchronous gateway outcome delivered on the webhook
// path, correlated by intent reference.
type PaymentEvent struct {
	IntentRef string
	Status    domain.PaymentStatus
}

// Create builds an order from the user's cart: validates lines, prices the
// order, snapshots the lines, reserves stock per line with compensating
// release on partial failure, clears the cart, and sets up payment when the
// method needs external authorization.
func (s *OrderService) Create(ctx context.Context, userID string, input CreateOrderInput) (*domain.Order, error) {
	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil || cart.IsEmpty() {
		return nil, domain.ErrEmptyCart
	}

	messages, products, err := s.validateCart(ctx, cart)
	if err != nil {
		return nil, err
	}
	if len(messages) > 0 {
		return nil, &domain.ValidationError{Messages: messages}
	}

	subtotal := cart.TotalAmount
	shippingCost := domain.ShippingCost(input.ShippingMethod)

	// Coupon failure is non-fatal to checkout: the order proceeds without a
	// discount and the caller sees the reason in the response.
	discount := decimal.Zero
	if input.CouponCode != "" {
		discount, err = domain.EvaluateCoupon(input.CouponCode, subtotal)
		if err != nil {
			logging.Log(logging.Fields{
				Service: "order",
				UserID:  userID,
				Step:    "coupon",
				Status:  "skipped",
				Message: err.Error(),
			})
			discount = decimal.Zero
		}
	}

	pricing := domain.ComputePricing(subtotal, shippingCost, discount)

	now := time.Now()
	order := &domain.Order{
		ID:      uuid.NewString(),
		UserID:  userID,
		Status:  domain.OrderStatusPending,
		Pricing: pricing,
		Payment: domain.Payment{
			Method: input.PaymentMethod,
			Status: domain.PaymentStatusPending,
			Amount: pricing.Total,
		},
		Shipping: domain.ShippingInfo{
			Method: input.ShippingMethod,
			Cost:   shippingCost,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, line := range cart.Lines {
		product := products[line.ProductID]
		order.Lines = append(order.Lines, domain.OrderLine{
			ProductID:    line.ProductID,
			VariantID:    line.VariantID,
			ProductName:  product.Name,
			ProductSKU:   product.SKU,
			ProductImage: product.ImageURL,
			Quantity:     line.Quantity,
			UnitPrice:    line.UnitPrice,
			LineTotal:    line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))),
		})
	}

	order.OrderNumber, err = s.nextOrderNumber(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("assign order number: %w", err)
	}

	order.StatusHistory = append(order.StatusHistory, domain.StatusEntry{
		Status:    domain.OrderStatusPending,
		Note:      "Order created",
		Actor:     userID,
		Timestamp: now,
	})

	if err := s.reserveLines(ctx, order); err != nil {
		return nil, err
	}

	if input.PaymentMethod == "card" && s.payments != nil {
		ref, err := s.payments.CreateIntent(ctx, pricing.Total, s.currency, map[string]string{
			"order_id":     order.ID,
			"order_number": order.OrderNumber,
		})
		if err != nil {
			s.releaseLines(ctx, order, len(order.Lines))
			return nil, fmt.Errorf("%w: %v", domain.ErrPaymentSetup, err)
		}
		order.Payment.IntentRef = ref
		order.Payment.Status = domain.PaymentStatusProcessing
	}

	if err := s.orders.Create(ctx, order); err != nil {
		s.releaseLines(ctx, order, len(order.Lines))
		return nil, fmt.Errorf("persist order: %w", err)
	}

	if err := s.carts.DeleteCart(ctx, userID); err != nil {
		logging.Log(logging.Fields{
			Service: "order",
			UserID:  userID,
			OrderID: order.ID,
			Step:    "clear_cart",
			Status:  "failed",
			Message: err.Error(),
		})
	}

	s.emit(ctx, order, "Order created")
	return order, nil
}

func (s *OrderService) validateCart(ctx context.Context, cart *domain.Cart) ([]string, map[string]*domain.Product, error) {
	var messages []string
	products := make(map[string]*domain.Product, len(cart.Lines))
	for _, line := range cart.Lines {
		product, err := s.catalog.GetProduct(ctx, line.ProductID)
		if err != nil {
			return nil, nil, err
		}
		switch {
		case product == nil:
			messages = append(messages, fmt.Sprintf("product %s not found", line.ProductID))
		case !product.Active:
			messages = append(messages, fmt.Sprintf("product %s is no longer available", product.Name))
		case product.Stock < line.Quantity:
			messages = append(messages, fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
				product.Name, line.Quantity, product.Stock))
		default:
			products[line.ProductID] = product
		}
	}
	return messages, products, nil
}

func (s *OrderService) nextOrderNumber(ctx context.Context, now time.Time) (string, error) {
	day := now.Format("20060102")
	n, err := s.sequence.NextOrderSequence(ctx, day)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ORD-%s-%04d", day, n), nil
}

// reserveLines reserves stock line by line. If any reservation fails, the
// ones already applied are released before the error is surfaced, so a
// partially reserved order never leaks stock.
func (s *OrderService) reserveLines(ctx context.Context, order *domain.Order) error {
	for i, line := range order.Lines {
		if err := s.catalog.ReserveStock(ctx, line.ProductID, line.Quantity); err != nil {
			s.releaseLines(ctx, order, i)
			return err
		}
	}
	return nil
}

// releaseLines releases the first n reserved lines. Release failures are
// logged, not propagated: the caller is already unwinding.
func (s *OrderService) releaseLines(ctx context.Context, order *domain.Order, n int) {
	for i := 0; i < n; i++ {
		line := order.Lines[i]
		if err := s.catalog.ReleaseStock(ctx, line.ProductID, line.Quantity); err != nil {
			logging.Log(logging.Fields{
				Service:   "order",
				OrderID:   order.ID,
				ProductID: line.ProductID,
				Step:      "release_stock",
				Status:    "failed",
				Message:   err.Error(),
			})
		}
	}
}

// Get returns the order after an ownership check.
func (s *OrderService) Get(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, orderID)
	}
	if order.UserID != userID {
		return nil, domain.ErrForbidden
	}
	return order, nil
}

func (s *OrderService) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// StatusUpdate carries an operator-driven transition. Tracking fields apply
// when moving to shipped.
type StatusUpdate struct {
	Status         domain.OrderStatus
	Note           string
	Actor          string
	TrackingNumber string
	Carrier        string
}

// UpdateStatus applies a guarded transition. The history append and status
// write persist in one transaction, conditional on the previous status, so
// concurrent transitions cannot both succeed. Cancelled and refunded are not
// reachable here: those transitions carry stock release and payment
// bookkeeping, so they only happen through Cancel and RequestRefund.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, upd StatusUpdate) error {
	if upd.Status == domain.OrderStatusCancelled || upd.Status == domain.OrderStatusRefunded {
		return fmt.Errorf("%w: %s is not reachable through a status update", domain.ErrInvalidTransition, upd.Status)
	}

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return fmt.Errorf("%w: order %s", domain.ErrNotFound, orderID)
	}

	previous := order.Status
	if err := order.Transition(upd.Status, upd.Note, upd.Actor); err != nil {
		return err
	}

	switch upd.Status {
	case domain.OrderStatusShipped:
		order.Shipping.TrackingNumber = upd.TrackingNumber
		order.Shipping.Carrier = upd.Carrier
		estimated := time.Now().Add(5 * 24 * time.Hour)
		order.Shipping.EstimatedDelivery = &estimated
	case domain.OrderStatusDelivered:
		delivered := time.Now()
		order.Shipping.DeliveredAt = &delivered
	}

	if err := s.orders.UpdateStatus(ctx, order, previous); err != nil {
		return err
	}

	s.emit(ctx, order, upd.Note)
	return nil
}

// Cancel transitions the order to cancelled and releases its reserved stock.
// The conditional status write runs first so only one of two racing cancels
// releases stock; a cancel on an already-cancelled order fails with
// ErrInvalidTransition and releases nothing.
func (s *OrderService) Cancel(ctx context.Context, userID, orderID, reason string) error {
	order, err := s.Get(ctx, userID, orderID)
	if err != nil {
		return err
	}
	if !order.CanCancel() {
		return fmt.Errorf("%w: cannot cancel order in status %s", domain.ErrInvalidTransition, order.Status)
	}

	previous := order.Status
	if err := order.Transition(domain.OrderStatusCancelled, reason, userID); err != nil {
		return err
	}
	if order.Payment.Status == domain.PaymentStatusPending || order.Payment.Status == domain.PaymentStatusProcessing {
		order.Payment.Status = domain.PaymentStatusCancelled
	}

	if err := s.orders.UpdateStatus(ctx, order, previous); err != nil {
		return err
	}

	s.releaseLines(ctx, order, len(order.Lines))
	s.emit(ctx, order, reason)
	return nil
}

// RequestRefund marks a delivered, paid order as refunded. Stock is not
// released: the goods were delivered.
func (s *OrderService) RequestRefund(ctx context.Context, userID, orderID, reason string) error {
	order, err := s.Get(ctx, userID, orderID)
	if err != nil {
		return err
	}
	if !order.CanRefund() {
		return fmt.Errorf("%w: order must be delivered with a succeeded payment", domain.ErrInvalidTransition)
	}

	previous := order.Status
	if err := order.Transition(domain.OrderStatusRefunded, reason, userID); err != nil {
		return err
	}
	refundedAt := time.Now()
	order.Payment.Status = domain.PaymentStatusRefunded
	order.Payment.RefundedAt = &refundedAt
	order.Payment.RefundAmount = order.Pricing.Total
	order.Payment.RefundReason = reason

	if err := s.orders.UpdateStatus(ctx, order, previous); err != nil {
		return err
	}

	s.emit(ctx, order, reason)
	return nil
}

// HandlePaymentEvent applies an asynchronous gateway outcome. A succeeded
// payment confirms the order; failed and cancelled payments both cancel it
// and release reserved stock through the same compensation path.
func (s *OrderService) HandlePaymentEvent(ctx context.Context, event PaymentEvent) error {
	order, err := s.orders.GetByIntentRef(ctx, event.IntentRef)
	if err != nil {
		return err
	}
	if order == nil {
		return fmt.Errorf("%w: intent %s", domain.ErrNotFound, event.IntentRef)
	}

	previous := order.Status

	switch event.Status {
	case domain.PaymentStatusSucceeded:
		if err := order.Transition(domain.OrderStatusConfirmed, "Payment succeeded", "payment-gateway"); err != nil {
			return err
		}
		paidAt := time.Now()
		order.Payment.Status = domain.PaymentStatusSucceeded
		order.Payment.PaidAt = &paidAt

		if err := s.orders.UpdateStatus(ctx, order, previous); err != nil {
			return err
		}
		s.emit(ctx, order, "Payment succeeded")
		return nil

	case domain.PaymentStatusFailed, domain.PaymentStatusCancelled:
		note := "Payment failed"
		if event.Status == domain.PaymentStatusCancelled {
			note = "Payment cancelled"
		}
		if err := order.Transition(domain.OrderStatusCancelled, note, "payment-gateway"); err != nil {
			return err
		}
		order.Payment.Status = event.Status

		if err := s.orders.UpdateStatus(ctx, order, previous); err != nil {
			return err
		}
		s.releaseLines(ctx, order, len(order.Lines))
		s.emit(ctx, order, note)
		return nil

	default:
		return fmt.Errorf("unknown payment status %q for intent %s", event.Status, event.IntentRef)
	}
}

// emit publishes a status-change event. Fire-and-forget: sink errors are
// logged and never fail the operation.
func (s *OrderService) emit(ctx context.Context, order *domain.Order, note string) {
	if s.events == nil {
		return
	}
	err := s.events.Publish(ctx, domain.OrderEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Status:      order.Status,
		Note:        note,
		Timestamp:   time.Now(),
	})
	if err != nil {
		logging.Log(logging.Fields{
			Service: "order",
			OrderID: order.ID,
			Step:    "emit_event",
			Status:  "failed",
			Message: err.Error(),
		})
	}
}
