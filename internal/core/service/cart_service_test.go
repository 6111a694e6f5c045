package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ltran/shopfulfill/internal/core/domain"
)

func newCartFixture() (*CartService, *mockCartRepo, *mockCatalogRepo, *mockLockRepo) {
	carts := newMockCartRepo()
	catalog := newMockCatalogRepo()
	locks := newMockLockRepo()
	return NewCartService(carts, catalog, locks), carts, catalog, locks
}

func TestCartServiceAddItem(t *testing.T) {
	svc, carts, catalog, _ := newCartFixture()
	catalog.addProduct("p1", "Widget", "10.00", 5)

	require.NoError(t, svc.AddItem(context.Background(), "user-1", "p1", "", 2))

	cart, err := carts.GetCart(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, cart)
	assert.Equal(t, 2, cart.TotalItems)
	assert.True(t, cart.TotalAmount.Equal(money("20.00")))
}

func TestCartServiceAddItemUnknownProduct(t *testing.T) {
	svc, _, _, _ := newCartFixture()
	err := svc.AddItem(context.Background(), "user-1", "missing", "", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCartServiceAddItemInactiveProduct(t *testing.T) {
	svc, _, catalog, _ := newCartFixture()
	catalog.addProduct("p1", "Widget", "10.00", 5)
	catalog.products["p1"].Active = false

	err := svc.AddItem(context.Background(), "user-1", "p1", "", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCartServiceLockBusy(t *testing.T) {
	svc, _, catalog, locks := newCartFixture()
	catalog.addProduct("p1", "Widget", "10.00", 5)

	// Simulate another in-flight mutation holding the (user, product) lock
	held, err := locks.Acquire(context.Background(), "user-1:p1", "other-holder", DefaultLockTTL)
	require.NoError(t, err)
	require.True(t, held)

	err = svc.AddItem(context.Background(), "user-1", "p1", "", 1)
	assert.ErrorIs(t, err, domain.ErrLockBusy)

	// A different product for the same user is not blocked
	catalog.addProduct("p2", "Gadget", "4.00", 5)
	assert.NoError(t, svc.AddItem(context.Background(), "user-1", "p2", "", 1))
}

func TestCartServiceMutualExclusion(t *testing.T) {
	svc, carts, catalog, _ := newCartFixture()
	catalog.addProduct("p1", "Widget", "10.00", 100)

	// Stall the save so the first writer holds the lock while the second
	// attempts to acquire it.
	inSave := make(chan struct{})
	releaseSave := make(chan struct{})
	var once sync.Once
	carts.saveHook = func() {
		once.Do(func() {
			close(inSave)
			<-releaseSave
		})
	}

	var busyCount atomic.Int32
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := svc.AddItem(context.Background(), "user-1", "p1", "", 1); err != nil {
			busyCount.Add(1)
		}
	}()

	<-inSave
	// First caller is mid-mutation with the lock held
	err := svc.AddItem(context.Background(), "user-1", "p1", "", 1)
	assert.ErrorIs(t, err, domain.ErrLockBusy)

	close(releaseSave)
	wg.Wait()
	assert.Equal(t, int32(0), busyCount.Load(), "first caller should have succeeded")

	// After release the lock is free again
	assert.NoError(t, svc.AddItem(context.Background(), "user-1", "p1", "", 1))
}

func TestCartServiceUpdateAndRemove(t *testing.T) {
	svc, carts, catalog, _ := newCartFixture()
	catalog.addProduct("p1", "Widget", "10.00", 5)
	ctx := context.Background()

	require.NoError(t, svc.AddItem(ctx, "user-1", "p1", "", 2))
	require.NoError(t, svc.UpdateItem(ctx, "user-1", "p1", "", 4))

	cart, _ := carts.GetCart(ctx, "user-1")
	assert.Equal(t, 4, cart.TotalItems)

	require.NoError(t, svc.RemoveItem(ctx, "user-1", "p1", ""))
	// Second remove of an absent line still succeeds
	require.NoError(t, svc.RemoveItem(ctx, "user-1", "p1", ""))

	cart, _ = carts.GetCart(ctx, "user-1")
	assert.True(t, cart.IsEmpty())
}

func TestCartServiceClearDeletesCart(t *testing.T) {
	svc, carts, catalog, _ := newCartFixture()
	catalog.addProduct("p1", "Widget", "10.00", 5)
	ctx := context.Background()

	require.NoError(t, svc.AddItem(ctx, "user-1", "p1", "", 2))
	require.NoError(t, svc.Clear(ctx, "user-1"))

	stored, err := carts.GetCart(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, stored)

	// Clearing an absent cart succeeds
	require.NoError(t, svc.Clear(ctx, "user-2"))

	// The service still reports an empty cart lazily
	cart, err := svc.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}

func TestCartServiceValidateItems(t *testing.T) {
	svc, carts, catalog, _ := newCartFixture()
	catalog.addProduct("p1", "Widget", "10.00", 1)
	catalog.addProduct("p2", "Gadget", "4.00", 10)
	catalog.products["p2"].Active = false
	ctx := context.Background()

	cart := domain.NewCart("user-1")
	require.NoError(t, cart.AddItem("p1", "", 3, money("10.00")))
	require.NoError(t, cart.AddItem("p2", "", 1, money("4.00")))
	require.NoError(t, cart.AddItem("ghost", "", 1, money("1.00")))
	require.NoError(t, carts.SaveCart(ctx, cart))

	messages, err := svc.ValidateItems(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Contains(t, messages[0], "insufficient stock for Widget")
	assert.Contains(t, messages[1], "no longer available")
	assert.Contains(t, messages[2], "product ghost not found")
}

func TestCartServiceGetCreatesLazily(t *testing.T) {
	svc, _, _, _ := newCartFixture()
	cart, err := svc.Get(context.Background(), "fresh-user")
	require.NoError(t, err)
	require.NotNil(t, cart)
	assert.True(t, cart.IsEmpty())
	assert.Equal(t, "fresh-user", cart.UserID)
}
