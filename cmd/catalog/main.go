package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rl1809/book-catalog/internal/adapter/handler"
	"github.com/rl1809/book-catalog/internal/adapter/pricing"
	"github.com/rl1809/book-catalog/internal/adapter/storage"
	"github.com/rl1809/book-catalog/internal/config"
	"github.com/rl1809/book-catalog/internal/core/service"
	"github.com/rl1809/book-catalog/internal/port"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	books, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.Store).Msg("failed to open book store")
	}
	defer closeStore()

	priceClient := pricing.NewClient(cfg)
	stockService := service.NewStockService(books)
	catalogService := service.NewCatalogService(books, stockService, priceClient)

	mux := http.NewServeMux()
	handler.NewHTTPHandler(catalogService).Register(mux)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.CatalogPort),
		Handler: handler.RequestID(mux),
	}

	go func() {
		log.Info().Int("port", cfg.CatalogPort).Msg("catalog service listening")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	log.Info().Msg("catalog service stopped")
}

// openStore builds the configured BookRepository and returns a cleanup
// for its connections.
func openStore(ctx context.Context, cfg config.Config) (port.BookRepository, func(), error) {
	switch cfg.Store {
	case "memory":
		return storage.NewMemoryAdapter(), func() {}, nil

	case "mysql":
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open mysql: %w", err)
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ping mysql: %w", err)
		}

		adapter := storage.NewMySQLAdapter(db)
		if err := adapter.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Info().Msg("connected to mysql")
		return adapter, func() { db.Close() }, nil

	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 100,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		log.Info().Msg("connected to redis")
		return storage.NewRedisAdapter(rdb), func() { rdb.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}
