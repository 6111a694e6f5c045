package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ltran/shopfulfill/internal/core/domain"
	"github.com/ltran/shopfulfill/internal/port"
)

// DefaultLockTTL bounds how long an abandoned lock can block a cart. It is a
// deadlock-safety valve only; release correctness rests on the
// compare-before-delete check in the lock adapter.
const DefaultLockTTL = 5 * time.Second

type CartService struct {
	carts   port.CartRepository
	catalog port.CatalogRepository
	locks   port.LockRepository
	lockTTL time.Duration
}

func NewCartService(carts port.CartRepository, catalog port.CatalogRepository, locks port.LockRepository) *CartService {
	return &CartService{
		carts:   carts,
		catalog: catalog,
		locks:   locks,
		lockTTL: DefaultLockTTL,
	}
}

// Get returns the user's cart, creating an empty one lazily on first access.
func (s *CartService) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		cart = domain.NewCart(userID)
	}
	return cart, nil
}

// withLock runs mutate on the user's cart while holding the (user, product)
// lock. The key scopes the lock to one product, so concurrent edits to
// different products in the same cart proceed in parallel. A held lock is
// reported as ErrLockBusy immediately; retry policy belongs to the caller.
func (s *CartService) withLock(ctx context.Context, userID, productID string, mutate func(*domain.Cart) error) error {
	key := fmt.Sprintf("%s:%s", userID, productID)
	token := uuid.NewString()

	ok, err := s.locks.Acquire(ctx, key, token, s.lockTTL)
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: user %s product %s", domain.ErrLockBusy, userID, productID)
	}
	defer s.locks.Release(ctx, key, token)

	cart, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := mutate(cart); err != nil {
		return err
	}
	return s.carts.SaveCart(ctx, cart)
}

// AddItem adds quantity units of a product to the cart at the product's
// current catalog price.
func (s *CartService) AddItem(ctx context.Context, userID, productID, variantID string, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if product == nil || !product.Active {
		return fmt.Errorf("%w: product %s", domain.ErrNotFound, productID)
	}

	return s.withLock(ctx, userID, productID, func(cart *domain.Cart) error {
		return cart.AddItem(productID, variantID, quantity, product.EffectivePrice())
	})
}

// UpdateItem sets the line quantity exactly; zero or less removes the line.
func (s *CartService) UpdateItem(ctx context.Context, userID, productID, variantID string, quantity int) error {
	return s.withLock(ctx, userID, productID, func(cart *domain.Cart) error {
		return cart.UpdateItem(productID, variantID, quantity)
	})
}

// RemoveItem deletes the matching line; removing an absent line succeeds.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID, variantID string) error {
	return s.withLock(ctx, userID, productID, func(cart *domain.Cart) error {
		cart.RemoveItem(productID, variantID)
		return nil
	})
}

// Clear drops the whole cart in one atomic delete. The per-product locks do
// not cover it: a single-line mutation that read the cart before the delete
// and saves after it will resurrect its lines. Callers that need the cart to
// stay empty must stop issuing mutations first.
func (s *CartService) Clear(ctx context.Context, userID string) error {
	return s.carts.DeleteCart(ctx, userID)
}

// ValidateItems checks every cart line against the catalog: the product must
// exist, be active, and have enough stock. Read-only, no lock. Returns
// human-readable messages in line order; empty means valid.
func (s *CartService) ValidateItems(ctx context.Context, userID string) ([]string, error) {
	cart, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	var messages []string
	for _, line := range cart.Lines {
		product, err := s.catalog.GetProduct(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}
		switch {
		case product == nil:
			messages = append(messages, fmt.Sprintf("product %s not found", line.ProductID))
		case !product.Active:
			messages = append(messages, fmt.Sprintf("product %s is no longer available", product.Name))
		case product.Stock < line.Quantity:
			messages = append(messages, fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
				product.Name, line.Quantity, product.Stock))
		}
	}
	return messages, nil
}
