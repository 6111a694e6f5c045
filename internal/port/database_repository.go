package port

import (
	"context"

	"github.com/ltran/shopfulfill/internal/core/domain"
)

type CartRepository interface {
	// GetCart returns the user's cart, or nil when the user has none yet.
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)

	// SaveCart upserts the whole cart aggregate in one write.
	SaveCart(ctx context.Context, cart *domain.Cart) error

	// DeleteCart removes the user's cart in one atomic statement. Deleting
	// an absent cart succeeds.
	DeleteCart(ctx context.Context, userID string) error
}

type CatalogRepository interface {
	// GetProduct returns the catalog entry, or nil when it does not exist.
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)

	// ReserveStock atomically decrements available stock, failing with
	// domain.ErrInsufficientStock when fewer than quantity units remain.
	ReserveStock(ctx context.Context, productID string, quantity int) error

	// ReleaseStock returns previously reserved units to available stock.
	ReleaseStock(ctx context.Context, productID string, quantity int) error
}

type OrderRepository interface {
	// Create persists a new order with its lines and initial history entry.
	Create(ctx context.Context, order *domain.Order) error

	// GetOrder returns the order with lines and history, or nil when absent.
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)

	// GetByIntentRef resolves an order from its payment intent reference.
	GetByIntentRef(ctx context.Context, intentRef string) (*domain.Order, error)

	// ListByUser returns the user's orders, newest first.
	ListByUser(ctx context.Context, userID string) ([]*domain.Order, error)

	// UpdateStatus persists the order's current status, payment, and shipping
	// fields together with its newest history entry, conditional on the
	// stored status still being previous. A lost race surfaces as
	// domain.ErrInvalidTransition so concurrent transitions cannot both win.
	UpdateStatus(ctx context.Context, order *domain.Order, previous domain.OrderStatus) error
}
