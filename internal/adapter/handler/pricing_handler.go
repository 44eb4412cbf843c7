package handler

import (
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rl1809/book-catalog/internal/config"
)

// PricingHandler serves deterministic mock prices and can inject delay
// and random failures to behave like an unreliable dependency.
type PricingHandler struct {
	simulateDelay   bool
	delayMs         int
	simulateFailure bool
	failureRate     int
}

type PricingStatus struct {
	Service         string `json:"service"`
	Status          string `json:"status"`
	SimulateDelay   bool   `json:"simulateDelay"`
	DelayMs         int    `json:"delayMs"`
	SimulateFailure bool   `json:"simulateFailure"`
	FailureRate     int    `json:"failureRate"`
}

func NewPricingHandler(cfg config.Config) *PricingHandler {
	return &PricingHandler{
		simulateDelay:   cfg.SimulateDelay,
		delayMs:         cfg.DelayMs,
		simulateFailure: cfg.SimulateFailure,
		failureRate:     cfg.FailureRate,
	}
}

func (h *PricingHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/prices", h.Status)
	mux.HandleFunc("GET /api/prices/health", h.Health)
	mux.HandleFunc("GET /api/prices/{bookId}", h.GetPrice)
}

// GetPrice returns a bare JSON number derived from the book ID.
func (h *PricingHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("bookId"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid book id"})
		return
	}

	if h.simulateDelay && h.delayMs > 0 {
		select {
		case <-time.After(time.Duration(h.delayMs) * time.Millisecond):
		case <-r.Context().Done():
			return
		}
	}

	if h.simulateFailure && rand.IntN(100) < h.failureRate {
		log.Warn().Int64("book_id", id).Msg("simulating pricing failure")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "simulated failure"})
		return
	}

	price := MockPrice(id)
	log.Info().Int64("book_id", id).Float64("price", price).Msg("price served")
	writeJSON(w, http.StatusOK, price)
}

func (h *PricingHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PricingStatus{
		Service:         "pricing-service",
		Status:          "UP",
		SimulateDelay:   h.simulateDelay,
		DelayMs:         h.delayMs,
		SimulateFailure: h.simulateFailure,
		FailureRate:     h.failureRate,
	})
}

func (h *PricingHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "UP"})
}

// MockPrice derives a deterministic price from the book ID, rounded to
// two decimals.
func MockPrice(bookID int64) float64 {
	base := 9.99 + float64(bookID%10)*5.0
	return math.Round(base*100) / 100
}
