package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rl1809/book-catalog/internal/adapter/handler"
	"github.com/rl1809/book-catalog/internal/config"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	cfg := config.Load()

	mux := http.NewServeMux()
	handler.NewPricingHandler(cfg).Register(mux)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.PricingPort),
		Handler: mux,
	}

	go func() {
		log.Info().
			Int("port", cfg.PricingPort).
			Bool("simulate_delay", cfg.SimulateDelay).
			Bool("simulate_failure", cfg.SimulateFailure).
			Msg("pricing service listening")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	log.Info().Msg("pricing service stopped")
}
