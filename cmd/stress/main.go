package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Fires concurrent borrow requests at a freshly created book and checks
// that exactly initialStock of them succeed.

const (
	baseURL       = "http://localhost:8080"
	initialStock  = 20
	totalRequests = 50
)

type book struct {
	ID    int64 `json:"id"`
	Stock int   `json:"stock"`
}

func main() {
	client := &http.Client{Timeout: 10 * time.Second}

	// Create the target book
	body, _ := json.Marshal(map[string]interface{}{
		"title":  "stress-test-book",
		"author": "stress",
		"stock":  initialStock,
	})
	resp, err := client.Post(baseURL+"/api/books", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("failed to create book: %v", err)
	}
	var created book
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		log.Fatalf("failed to decode created book: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		log.Fatalf("create returned status %d", resp.StatusCode)
	}

	borrowURL := fmt.Sprintf("%s/api/books/%d/borrow", baseURL, created.ID)

	var successCount atomic.Int32
	var outOfStockCount atomic.Int32
	var errorCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			resp, err := client.Post(borrowURL, "application/json", nil)
			if err != nil {
				errorCount.Add(1)
				return
			}
			resp.Body.Close()

			switch resp.StatusCode {
			case http.StatusOK:
				successCount.Add(1)
			case http.StatusConflict:
				outOfStockCount.Add(1)
			default:
				errorCount.Add(1)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	outOfStock := outOfStockCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Out of Stock:     %d\n", outOfStock)
	fmt.Printf("Errors:           %d\n", errorCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == initialStock && outOfStock == totalRequests-initialStock {
		fmt.Printf("PASS: Exactly %d borrows succeeded, %d rejected\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d rejected, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, outOfStock)
	}

	// Verify final stock
	resp, err = client.Get(fmt.Sprintf("%s/api/books/%d", baseURL, created.ID))
	if err != nil {
		log.Fatalf("failed to fetch book: %v", err)
	}
	var final book
	json.NewDecoder(resp.Body).Decode(&final)
	resp.Body.Close()

	fmt.Printf("Final Stock: %d\n", final.Stock)
	if final.Stock == 0 {
		fmt.Println("PASS: Stock depleted to 0")
	} else {
		fmt.Printf("FAIL: Expected stock 0, got %d\n", final.Stock)
	}
}
