package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/lta97/junkpool/internal/adapter/assets"
	"github.com/lta97/junkpool/internal/adapter/handler"
	"github.com/lta97/junkpool/internal/adapter/storage"
	"github.com/lta97/junkpool/internal/config"
	"github.com/lta97/junkpool/internal/core/domain"
	"github.com/lta97/junkpool/internal/core/market"
	"github.com/lta97/junkpool/internal/core/service"
	"github.com/lta97/junkpool/internal/port"
)

const poolIdentity = domain.Address("junkpool")

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	log.Printf("instance %s starting", cfg.InstanceID)

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
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
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	log.Println("connected to redis")

	// Initialize adapters
	redisAdapter := storage.NewRedisAdapter(rdb, cfg.EventChannel)
	mysqlAdapter := storage.NewMySQLAdapter(db)
	ledger := assets.NewLedger(poolIdentity)

	// Initialize core
	pool, err := market.NewMarket(cfg.Auction(), ledger, ledger)
	if err != nil {
		log.Fatalf("failed to initialize market: %v", err)
	}
	marketService := service.NewMarketService(pool, redisAdapter, cfg.QueueSize)

	if cfg.InitialFund.Sign() > 0 {
		if err := marketService.Fund(cfg.Owner, cfg.InitialFund); err != nil {
			log.Fatalf("failed to fund pool: %v", err)
		}
		log.Printf("funded pool with %s", cfg.InitialFund)
	}

	// Start worker pool draining notifications to the journal and
	// publisher
	var wg sync.WaitGroup
	for i := 0; i < cfg.WorkerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			workerLoop(id, marketService.GetEventQueue(), mysqlAdapter, redisAdapter)
		}(i)
	}
	log.Printf("started %d workers", cfg.WorkerCount)

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(marketService, mysqlAdapter)
	mux := http.NewServeMux()
	httpHandler.Register(mux)

	httpServer := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: mux,
	}

	go func() {
		log.Printf("HTTP server listening on :%s", cfg.ServerPort)
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

	// Close event queue and wait for workers
	marketService.Close()
	wg.Wait()
	log.Println("workers stopped")

	// Close connections
	rdb.Close()
	db.Close()
	log.Println("connections closed")
}

func workerLoop(id int, queue <-chan domain.Event, journal port.EventJournal, publisher port.EventPublisher) {
	for event := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)

		if err := journal.AppendEvent(ctx, event); err != nil {
			log.Printf("worker %d: failed to journal event %s (%s): %v", id, event.ID, event.Type, err)
		}
		if err := publisher.PublishEvent(ctx, event); err != nil {
			log.Printf("worker %d: failed to publish event %s (%s): %v", id, event.ID, event.Type, err)
		}

		cancel()
	}
}
