package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/ltran/shopfulfill/internal/adapter/events"
	"github.com/ltran/shopfulfill/internal/adapter/handler"
	"github.com/ltran/shopfulfill/internal/adapter/payment"
	"github.com/ltran/shopfulfill/internal/adapter/storage"
	"github.com/ltran/shopfulfill/internal/core/service"
	"github.com/ltran/shopfulfill/internal/port"
)

const (
	defaultHTTPAddr  = ":8080"
	defaultMySQLDSN  = "root:root@tcp(localhost:3306)/shopfulfill?parseTime=true"
	defaultRedisAddr = "localhost:6379"
	eventTopic       = "order-events"
	eventQueueSize   = 1024
	eventWorkers     = 4
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize MySQL
	db, err := sql.Open("mysql", envOr("MYSQL_DSN", defaultMySQLDSN))
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}
	log.Println("connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     envOr("REDIS_ADDR", defaultRedisAddr),
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	log.Println("connected to redis")

	// Initialize adapters
	redisAdapter := storage.NewRedisAdapter(rdb)
	mysqlAdapter := storage.NewMySQLAdapter(db)
	gateway := payment.NewGateway("USD")

	var sink *events.KafkaSink
	var eventSink port.EventSink
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		sink = events.NewKafkaSink(strings.Split(brokers, ","), eventTopic, eventQueueSize, eventWorkers)
		eventSink = sink
		log.Printf("event sink publishing to %s", eventTopic)
	} else {
		log.Println("KAFKA_BROKERS not set, event sink disabled")
	}

	// Initialize services
	cartService := service.NewCartService(mysqlAdapter, mysqlAdapter, redisAdapter)
	orderService := service.NewOrderService(mysqlAdapter, mysqlAdapter, mysqlAdapter, redisAdapter, gateway, eventSink)

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(cartService, orderService)
	mux := http.NewServeMux()
	httpHandler.Register(mux)

	httpServer := &http.Server{
		Addr:    envOr("HTTP_ADDR", defaultHTTPAddr),
		Handler: mux,
	}

	go func() {
		log.Printf("HTTP server listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	log.Println("HTTP server stopped")

	if sink != nil {
		sink.Close()
		log.Println("event sink drained")
	}

	rdb.Close()
	db.Close()
	log.Println("connections closed")
}
