package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rl1809/vending/internal/adapter/payment"
	"github.com/rl1809/vending/internal/adapter/storage"
	"github.com/rl1809/vending/internal/core/domain"
	"github.com/rl1809/vending/internal/core/inventory"
	"github.com/rl1809/vending/internal/core/service"
)

const (
	redisAddr     = "localhost:6379"
	accountID     = "stress-test-card"
	itemCode      = "stress-cola"
	initialStock  = 20
	totalRequests = 50
	queueSize     = 100
)

var (
	itemPrice      = decimal.RequireFromString("1.50")
	initialBalance = decimal.NewFromInt(1000)
)

func main() {
	ctx := context.Background()

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	// Initialize wallet, inventory and service
	redisAdapter := storage.NewRedisAdapter(rdb)
	if err := redisAdapter.SetBalance(ctx, accountID, payment.ToMinor(initialBalance)); err != nil {
		log.Fatalf("failed to set balance: %v", err)
	}
	card := payment.NewCardHandler(redisAdapter, accountID)

	vendingService := service.NewVendingService(inventory.NewStore(inventory.DefaultCapacity), card,
		service.WithSaleQueue(queueSize))
	defer vendingService.Close()

	pos := 0
	if err := vendingService.Stock(ctx, domain.NewProduct(itemCode, "Stress Cola", initialStock, itemPrice), &pos); err != nil {
		log.Fatalf("failed to stock item: %v", err)
	}

	// Drain the sale queue in background
	var sold atomic.Int32
	go func() {
		for range vendingService.SaleQueue() {
			sold.Add(1)
		}
	}()

	// Counters
	var successCount atomic.Int32
	var unavailableCount atomic.Int32
	var failCount atomic.Int32

	// Spawn concurrent buyers
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := vendingService.Buy(ctx, pos)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, service.ErrUnavailable):
				unavailableCount.Add(1)
			default:
				failCount.Add(1)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := successCount.Load()
	unavailable := unavailableCount.Load()
	fail := failCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Unavailable:      %d\n", unavailable)
	fmt.Printf("Other Failures:   %d\n", fail)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Assertions
	if success == int32(initialStock) && unavailable == int32(totalRequests-initialStock) && fail == 0 {
		fmt.Printf("PASS: Exactly %d purchases succeeded, %d found the slot empty\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d unavailable, got %d/%d (%d other)\n",
			initialStock, totalRequests-initialStock, success, unavailable, fail)
	}

	// Verify the wallet was charged once per dispensed item
	balance, err := card.Balance(ctx)
	if err != nil {
		log.Fatalf("failed to read balance: %v", err)
	}
	expected := initialBalance.Sub(itemPrice.Mul(decimal.NewFromInt(int64(success))))
	fmt.Printf("Final Card Balance: %s\n", balance.StringFixed(2))

	if balance.Equal(expected) {
		fmt.Println("PASS: Revenue matches dispensed items")
	} else {
		fmt.Printf("FAIL: Expected balance %s, got %s\n", expected.StringFixed(2), balance.StringFixed(2))
	}

	if _, err := vendingService.Pick(ctx, pos); errors.Is(err, service.ErrUnavailable) {
		fmt.Println("PASS: Stock depleted to 0")
	} else {
		fmt.Printf("FAIL: Expected empty slot, got %v\n", err)
	}
	fmt.Printf("Sales Published:  %d\n", sold.Load())
}
