package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/rl1809/book-catalog/internal/core/domain"
	"github.com/rl1809/book-catalog/internal/core/service"
)

type HTTPHandler struct {
	catalog *service.CatalogService
}

type PricingResponse struct {
	BookID int64   `json:"bookId"`
	Price  float64 `json:"price"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func NewHTTPHandler(catalog *service.CatalogService) *HTTPHandler {
	return &HTTPHandler{catalog: catalog}
}

func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/books", h.CreateBook)
	mux.HandleFunc("GET /api/books", h.ListBooks)
	mux.HandleFunc("GET /api/books/health", h.Health)
	mux.HandleFunc("GET /api/books/{id}", h.GetBook)
	mux.HandleFunc("POST /api/books/{id}/borrow", h.BorrowBook)
	mux.HandleFunc("GET /api/books/{id}/price", h.GetBookWithPrice)
	mux.HandleFunc("GET /api/books/{id}/pricing", h.GetPricing)
}

func (h *HTTPHandler) CreateBook(w http.ResponseWriter, r *http.Request) {
	var book domain.Book
	if err := json.NewDecoder(r.Body).Decode(&book); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	created, err := h.catalog.CreateBook(r.Context(), book)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *HTTPHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.catalog.ListBooks(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if books == nil {
		books = []*domain.Book{}
	}
	writeJSON(w, http.StatusOK, books)
}

func (h *HTTPHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}

	book, err := h.catalog.GetBook(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (h *HTTPHandler) BorrowBook(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}

	book, err := h.catalog.Borrow(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (h *HTTPHandler) GetBookWithPrice(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}

	book, err := h.catalog.GetBookWithPrice(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// GetPricing is the raw price lookup. It never fails: the price client
// substitutes its fallback value when the dependency is down.
func (h *HTTPHandler) GetPricing(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, PricingResponse{
		BookID: id,
		Price:  h.catalog.GetPrice(r.Context(), id),
	})
}

func (h *HTTPHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "UP"})
}

// RequestID tags every request with an X-Request-Id (generated when the
// caller sent none) and logs the request once served.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", requestID)

		start := time.Now()
		next.ServeHTTP(w, r)

		log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request served")
	})
}

func bookID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid book id"})
		return 0, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
		message = "book not found"
	case errors.Is(err, service.ErrOutOfStock):
		status = http.StatusConflict
		message = "out of stock"
	case errors.Is(err, service.ErrInvalidBook):
		status = http.StatusBadRequest
		message = err.Error()
	}

	writeJSON(w, status, ErrorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
