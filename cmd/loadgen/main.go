package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/ltran/shopfulfill/internal/adapter/storage"
	"github.com/ltran/shopfulfill/internal/core/domain"
	"github.com/ltran/shopfulfill/internal/core/service"
)

// Concurrent checkout hammer: seeds one product with limited stock, fills a
// cart per user, then fires all checkouts at once. With N units of stock and
// M > N buyers, exactly N checkouts must succeed and stock must end at zero.
const (
	productID    = "loadgen-item"
	initialStock = 20
	totalBuyers  = 50
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	ctx := context.Background()

	rdb := redis.NewClient(&redis.Options{Addr: envOr("REDIS_ADDR", "localhost:6379")})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	db, err := sql.Open("mysql", envOr("MYSQL_DSN", "root:root@tcp(localhost:3306)/shopfulfill?parseTime=true"))
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}

	// Seed the product with fresh stock
	_, err = db.ExecContext(ctx, `
		INSERT INTO products (id, name, sku, image_url, price, stock, active, created_at, updated_at)
		VALUES (?, 'Load Test Item', 'LOAD-001', '', 10.00, ?, 1, NOW(), NOW())
		ON DUPLICATE KEY UPDATE stock = VALUES(stock), active = 1`,
		productID, initialStock,
	)
	if err != nil {
		log.Fatalf("failed to seed product: %v", err)
	}

	redisAdapter := storage.NewRedisAdapter(rdb)
	mysqlAdapter := storage.NewMySQLAdapter(db)
	cartService := service.NewCartService(mysqlAdapter, mysqlAdapter, redisAdapter)
	orderService := service.NewOrderService(mysqlAdapter, mysqlAdapter, mysqlAdapter, redisAdapter, nil, nil)

	// Fill one cart per buyer before the contention starts
	for i := 0; i < totalBuyers; i++ {
		userID := fmt.Sprintf("loadgen-user-%d", i)
		if err := cartService.Clear(ctx, userID); err != nil {
			log.Fatalf("failed to clear cart: %v", err)
		}
		if err := cartService.AddItem(ctx, userID, productID, "", 1); err != nil {
			log.Fatalf("failed to fill cart for %s: %v", userID, err)
		}
	}

	var successCount atomic.Int32
	var soldOutCount atomic.Int32
	var failCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalBuyers; i++ {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()

			_, err := orderService.Create(ctx, userID, service.CreateOrderInput{
				ShippingMethod: "standard",
				PaymentMethod:  "cod",
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock), errors.Is(err, domain.ErrValidationFailed):
				soldOutCount.Add(1)
			default:
				log.Printf("checkout %s: %v", userID, err)
				failCount.Add(1)
			}
		}(fmt.Sprintf("loadgen-user-%d", i))
	}

	wg.Wait()
	elapsed := time.Since(start)

	var remaining int
	if err := db.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = ?`, productID).Scan(&remaining); err != nil {
		log.Fatalf("failed to read remaining stock: %v", err)
	}

	fmt.Printf("\n=== results ===\n")
	fmt.Printf("buyers:     %d\n", totalBuyers)
	fmt.Printf("succeeded:  %d\n", successCount.Load())
	fmt.Printf("sold out:   %d\n", soldOutCount.Load())
	fmt.Printf("errors:     %d\n", failCount.Load())
	fmt.Printf("stock left: %d\n", remaining)
	fmt.Printf("elapsed:    %s\n", elapsed)

	if remaining < 0 || int(successCount.Load()) > initialStock {
		fmt.Println("OVERSOLD — stock invariant violated")
		os.Exit(1)
	}
}
