package tests

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/rl1809/book-catalog/internal/adapter/handler"
	"github.com/rl1809/book-catalog/internal/adapter/pricing"
	"github.com/rl1809/book-catalog/internal/adapter/storage"
	"github.com/rl1809/book-catalog/internal/config"
	"github.com/rl1809/book-catalog/internal/core/domain"
	"github.com/rl1809/book-catalog/internal/core/service"
	"github.com/rl1809/book-catalog/internal/port"
)

type testEnv struct {
	catalog *httptest.Server
	pricing *httptest.Server
	books   port.BookRepository
}

// setupTestEnv wires both services in-process: a real pricing mock behind
// httptest and the catalog stack on top of the given store.
func setupTestEnv(t *testing.T, books port.BookRepository, pricingCfg config.Config) *testEnv {
	t.Helper()

	pricingMux := http.NewServeMux()
	handler.NewPricingHandler(pricingCfg).Register(pricingMux)
	pricingServer := httptest.NewServer(pricingMux)
	t.Cleanup(pricingServer.Close)

	clientCfg := config.Config{
		PricingURL:          pricingServer.URL,
		BreakerWindowSize:   5,
		BreakerFailureRatio: 0.5,
		BreakerCooldown:     100 * time.Millisecond,
		RetryMaxAttempts:    2,
		RetryDelay:          time.Millisecond,
		CallTimeout:         time.Second,
	}
	priceClient := pricing.NewClient(clientCfg)

	stock := service.NewStockService(books)
	catalog := service.NewCatalogService(books, stock, priceClient)

	catalogMux := http.NewServeMux()
	handler.NewHTTPHandler(catalog).Register(catalogMux)
	catalogServer := httptest.NewServer(handler.RequestID(catalogMux))
	t.Cleanup(catalogServer.Close)

	return &testEnv{
		catalog: catalogServer,
		pricing: pricingServer,
		books:   books,
	}
}

func createBook(t *testing.T, env *testEnv, title string, stock int) domain.Book {
	t.Helper()

	body, _ := json.Marshal(map[string]interface{}{
		"title":  title,
		"author": "integration",
		"stock":  stock,
	})
	resp, err := http.Post(env.catalog.URL+"/api/books", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("create book: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create book returned status %d", resp.StatusCode)
	}

	var book domain.Book
	if err := json.NewDecoder(resp.Body).Decode(&book); err != nil {
		t.Fatalf("decode created book: %v", err)
	}
	return book
}

func TestIntegration_ConcurrentBorrowFlow(t *testing.T) {
	env := setupTestEnv(t, storage.NewMemoryAdapter(), config.Config{})

	initialStock := 20
	totalRequests := 50
	book := createBook(t, env, "integration-borrow-book", initialStock)

	borrowURL := fmt.Sprintf("%s/api/books/%d/borrow", env.catalog.URL, book.ID)

	var successCount atomic.Int32
	var conflictCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Post(borrowURL, "application/json", nil)
			if err != nil {
				t.Errorf("borrow request failed: %v", err)
				return
			}
			resp.Body.Close()

			switch resp.StatusCode {
			case http.StatusOK:
				successCount.Add(1)
			case http.StatusConflict:
				conflictCount.Add(1)
			default:
				t.Errorf("unexpected status %d", resp.StatusCode)
			}
		}()
	}
	wg.Wait()

	if successCount.Load() != int32(initialStock) {
		t.Errorf("expected %d successful borrows, got %d", initialStock, successCount.Load())
	}
	if conflictCount.Load() != int32(totalRequests-initialStock) {
		t.Errorf("expected %d conflicts, got %d", totalRequests-initialStock, conflictCount.Load())
	}

	final, err := env.books.Get(context.Background(), book.ID)
	if err != nil {
		t.Fatalf("get final book: %v", err)
	}
	if final.Stock != 0 {
		t.Errorf("expected final stock 0, got %d", final.Stock)
	}
}

func TestIntegration_SingleUnitStress(t *testing.T) {
	env := setupTestEnv(t, storage.NewMemoryAdapter(), config.Config{})
	book := createBook(t, env, "integration-last-unit-book", 1)

	borrowURL := fmt.Sprintf("%s/api/books/%d/borrow", env.catalog.URL, book.ID)

	var successCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Post(borrowURL, "application/json", nil)
			if err != nil {
				return
			}
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	if successCount.Load() != 1 {
		t.Errorf("expected exactly 1 successful borrow of the last unit, got %d", successCount.Load())
	}
}

func TestIntegration_PriceEnrichment(t *testing.T) {
	env := setupTestEnv(t, storage.NewMemoryAdapter(), config.Config{})
	book := createBook(t, env, "integration-price-book", 2)

	resp, err := http.Get(fmt.Sprintf("%s/api/books/%d/price", env.catalog.URL, book.ID))
	if err != nil {
		t.Fatalf("price request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var enriched domain.Book
	if err := json.NewDecoder(resp.Body).Decode(&enriched); err != nil {
		t.Fatalf("decode book: %v", err)
	}

	want := handler.MockPrice(book.ID)
	if enriched.Price != want {
		t.Errorf("expected live price %v, got %v", want, enriched.Price)
	}

	// The enriched price is never written back
	stored, _ := env.books.Get(context.Background(), book.ID)
	if stored.Price != 0 {
		t.Errorf("expected stored price untouched, got %v", stored.Price)
	}
}

func TestIntegration_PricingOutageDegradesToFallback(t *testing.T) {
	env := setupTestEnv(t, storage.NewMemoryAdapter(), config.Config{})
	book := createBook(t, env, "integration-outage-book", 2)

	// Take the dependency down
	env.pricing.Close()

	resp, err := http.Get(fmt.Sprintf("%s/api/books/%d/pricing", env.catalog.URL, book.ID))
	if err != nil {
		t.Fatalf("pricing request failed: %v", err)
	}
	defer resp.Body.Close()

	// The raw lookup never fails
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 despite outage, got %d", resp.StatusCode)
	}

	var out handler.PricingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode pricing response: %v", err)
	}
	if out.Price != pricing.FallbackPrice {
		t.Errorf("expected fallback price %v, got %v", pricing.FallbackPrice, out.Price)
	}

	// The enriched fetch still succeeds, with the fallback price
	resp2, err := http.Get(fmt.Sprintf("%s/api/books/%d/price", env.catalog.URL, book.ID))
	if err != nil {
		t.Fatalf("price request failed: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Errorf("expected 200 despite outage, got %d", resp2.StatusCode)
	}
}

func TestIntegration_MySQLBorrowFlow(t *testing.T) {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/bookcatalog?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	adapter := storage.NewMySQLAdapter(db)
	if err := adapter.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	env := setupTestEnv(t, adapter, config.Config{})

	initialStock := 5
	book := createBook(t, env, "integration-mysql-book", initialStock)
	defer db.ExecContext(context.Background(), `DELETE FROM books WHERE id = ?`, book.ID)

	borrowURL := fmt.Sprintf("%s/api/books/%d/borrow", env.catalog.URL, book.ID)

	var successCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Post(borrowURL, "application/json", nil)
			if err != nil {
				return
			}
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	if successCount.Load() != int32(initialStock) {
		t.Errorf("expected %d successful borrows, got %d", initialStock, successCount.Load())
	}

	final, _ := adapter.Get(context.Background(), book.ID)
	if final.Stock != 0 {
		t.Errorf("expected final stock 0, got %d", final.Stock)
	}
}
