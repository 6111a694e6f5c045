package storage

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestAcquireRelease(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, "cartlock:user-1:item-1")

	ok, err := adapter.Acquire(ctx, "user-1:item-1", "token-a", 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected acquire to succeed")
	}

	// Second acquire while held must fail immediately
	ok, err = adapter.Acquire(ctx, "user-1:item-1", "token-b", 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected acquire to fail while lock is held")
	}

	if err := adapter.Release(ctx, "user-1:item-1", "token-a"); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	ok, err = adapter.Acquire(ctx, "user-1:item-1", "token-c", 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected acquire to succeed after release")
	}
	adapter.Release(ctx, "user-1:item-1", "token-c")
}

func TestReleaseWrongTokenIsNoOp(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, "cartlock:user-1:item-1")

	ok, _ := adapter.Acquire(ctx, "user-1:item-1", "token-a", 5*time.Second)
	if !ok {
		t.Fatal("expected acquire to succeed")
	}

	// A stale holder releasing with its old token must not delete the lock
	if err := adapter.Release(ctx, "user-1:item-1", "stale-token"); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	ok, _ = adapter.Acquire(ctx, "user-1:item-1", "token-b", 5*time.Second)
	if ok {
		t.Error("lock should still be held by token-a")
	}

	adapter.Release(ctx, "user-1:item-1", "token-a")
}

func TestAcquireExpiresAfterTTL(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, "cartlock:user-1:item-1")

	ok, _ := adapter.Acquire(ctx, "user-1:item-1", "token-a", 100*time.Millisecond)
	if !ok {
		t.Fatal("expected acquire to succeed")
	}

	time.Sleep(200 * time.Millisecond)

	ok, _ = adapter.Acquire(ctx, "user-1:item-1", "token-b", 5*time.Second)
	if !ok {
		t.Error("expected acquire to succeed after TTL expiry")
	}
	adapter.Release(ctx, "user-1:item-1", "token-b")
}

func TestAcquireConcurrent(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, "cartlock:user-1:contested")

	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			ok, err := adapter.Acquire(ctx, "user-1:contested", "token", 5*time.Second)
			if err == nil && ok {
				successCount.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if successCount.Load() != 1 {
		t.Errorf("expected exactly 1 successful acquire, got %d", successCount.Load())
	}

	client.Del(ctx, "cartlock:user-1:contested")
}

func TestNextOrderSequence(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, "ordseq:20260101")

	first, err := adapter.NextOrderSequence(ctx, "20260101")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := adapter.NextOrderSequence(ctx, "20260101")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first != 1 || second != 2 {
		t.Errorf("expected 1 then 2, got %d then %d", first, second)
	}

	// Independent counter per day
	client.Del(ctx, "ordseq:20260102")
	n, err := adapter.NextOrderSequence(ctx, "20260102")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected new day to start at 1, got %d", n)
	}

	client.Del(ctx, "ordseq:20260101", "ordseq:20260102")
}

func TestNextOrderSequenceConcurrent(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, "ordseq:20260103")

	const total = 50
	seen := make(chan int64, total)
	var wg sync.WaitGroup

	for i := 0; i < total; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := adapter.NextOrderSequence(ctx, "20260103")
			if err == nil {
				seen <- n
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[int64]bool)
	for n := range seen {
		if unique[n] {
			t.Errorf("duplicate sequence value %d", n)
		}
		unique[n] = true
	}
	if len(unique) != total {
		t.Errorf("expected %d unique values, got %d", total, len(unique))
	}

	client.Del(ctx, "ordseq:20260103")
}
