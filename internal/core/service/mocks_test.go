package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ltran/shopfulfill/internal/core/domain"
)

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// mockLockRepo implements set-if-absent semantics in memory.
type mockLockRepo struct {
	mu    sync.Mutex
	locks map[string]string
}

func newMockLockRepo() *mockLockRepo {
	return &mockLockRepo{locks: make(map[string]string)}
}

func (m *mockLockRepo) Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.locks[key]; held {
		return false, nil
	}
	m.locks[key] = token
	return true, nil
}

func (m *mockLockRepo) Release(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[key] == token {
		delete(m.locks, key)
	}
	return nil
}

type mockCartRepo struct {
	mu       sync.Mutex
	carts    map[string]*domain.Cart
	saveHook func() // runs inside Save, before the write
}

func newMockCartRepo() *mockCartRepo {
	return &mockCartRepo{carts: make(map[string]*domain.Cart)}
}

func (m *mockCartRepo) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart, ok := m.carts[userID]
	if !ok {
		return nil, nil
	}
	copied := *cart
	copied.Lines = append([]domain.CartLine(nil), cart.Lines...)
	return &copied, nil
}

func (m *mockCartRepo) SaveCart(ctx context.Context, cart *domain.Cart) error {
	if m.saveHook != nil {
		m.saveHook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *cart
	copied.Lines = append([]domain.CartLine(nil), cart.Lines...)
	m.carts[cart.UserID] = &copied
	return nil
}

func (m *mockCartRepo) DeleteCart(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, userID)
	return nil
}

type mockCatalogRepo struct {
	mu          sync.Mutex
	products    map[string]*domain.Product
	failReserve map[string]bool // reservation fails even though GetProduct reports stock
}

func newMockCatalogRepo() *mockCatalogRepo {
	return &mockCatalogRepo{
		products:    make(map[string]*domain.Product),
		failReserve: make(map[string]bool),
	}
}

func (m *mockCatalogRepo) addProduct(id, name string, price string, stock int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[id] = &domain.Product{
		ID:     id,
		Name:   name,
		SKU:    "SKU-" + id,
		Price:  decimal.RequireFromString(price),
		Stock:  stock,
		Active: true,
	}
}

func (m *mockCatalogRepo) stock(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].Stock
}

func (m *mockCatalogRepo) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (m *mockCatalogRepo) ReserveStock(ctx context.Context, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok || p.Stock < quantity || m.failReserve[productID] {
		return fmt.Errorf("%w: product %s", domain.ErrInsufficientStock, productID)
	}
	p.Stock -= quantity
	return nil
}

func (m *mockCatalogRepo) ReleaseStock(ctx context.Context, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.products[productID]; ok {
		p.Stock += quantity
	}
	return nil
}

type mockOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[string]*domain.Order)}
}

func copyOrder(o *domain.Order) *domain.Order {
	copied := *o
	copied.Lines = append([]domain.OrderLine(nil), o.Lines...)
	copied.StatusHistory = append([]domain.StatusEntry(nil), o.StatusHistory...)
	return &copied
}

func (m *mockOrderRepo) Create(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = copyOrder(order)
	return nil
}

func (m *mockOrderRepo) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return nil, nil
	}
	return copyOrder(order), nil
}

func (m *mockOrderRepo) GetByIntentRef(ctx context.Context, intentRef string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, order := range m.orders {
		if order.Payment.IntentRef == intentRef {
			return copyOrder(order), nil
		}
	}
	return nil, nil
}

func (m *mockOrderRepo) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Order
	for _, order := range m.orders {
		if order.UserID == userID {
			out = append(out, copyOrder(order))
		}
	}
	return out, nil
}

func (m *mockOrderRepo) UpdateStatus(ctx context.Context, order *domain.Order, previous domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.orders[order.ID]
	if !ok {
		return fmt.Errorf("%w: order %s", domain.ErrNotFound, order.ID)
	}
	if stored.Status != previous {
		return fmt.Errorf("%w: order %s no longer in status %s", domain.ErrInvalidTransition, order.ID, previous)
	}
	m.orders[order.ID] = copyOrder(order)
	return nil
}

type mockSequenceRepo struct {
	mu       sync.Mutex
	counters map[string]int64
}

func newMockSequenceRepo() *mockSequenceRepo {
	return &mockSequenceRepo{counters: make(map[string]int64)}
}

func (m *mockSequenceRepo) NextOrderSequence(ctx context.Context, day string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[day]++
	return m.counters[day], nil
}

type mockGateway struct {
	mu      sync.Mutex
	intents int
	fail    bool
}

func (m *mockGateway) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return "", fmt.Errorf("gateway unavailable")
	}
	m.intents++
	return fmt.Sprintf("pi_test_%d", m.intents), nil
}

type mockEventSink struct {
	mu     sync.Mutex
	events []domain.OrderEvent
}

func (m *mockEventSink) Publish(ctx context.Context, event domain.OrderEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *mockEventSink) statuses() []domain.OrderStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.OrderStatus, len(m.events))
	for i, ev := range m.events {
		out[i] = ev.Status
	}
	return out
}
