package storage

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestDebit_Success(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	// Setup
	client.Del(ctx, "wallet:test-card")
	adapter.SetBalance(ctx, "test-card", 500)

	// Test
	ok, err := adapter.Debit(ctx, "test-card", 150)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected success")
	}

	// Verify
	balance, _ := adapter.Balance(ctx, "test-card")
	if balance != 350 {
		t.Errorf("expected balance 350, got %d", balance)
	}
}

func TestDebit_InsufficientBalance(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, "wallet:test-card")
	adapter.SetBalance(ctx, "test-card", 100)

	ok, err := adapter.Debit(ctx, "test-card", 150)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected failure due to insufficient balance")
	}

	balance, _ := adapter.Balance(ctx, "test-card")
	if balance != 100 {
		t.Errorf("expected balance 100, got %d", balance)
	}
}

func TestDebit_UnknownAccount(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, "wallet:nonexistent")

	ok, err := adapter.Debit(ctx, "nonexistent", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected failure for unknown account")
	}

	balance, err := adapter.Balance(ctx, "nonexistent")
	if err != nil || balance != 0 {
		t.Errorf("expected zero balance, got %d (%v)", balance, err)
	}
}

func TestDebit_Concurrent(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	initialBalance := int64(2000)
	price := int64(100)
	totalRequests := 50

	client.Del(ctx, "wallet:concurrent-card")
	adapter.SetBalance(ctx, "concurrent-card", initialBalance)

	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := adapter.Debit(ctx, "concurrent-card", price)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				successCount.Add(1)
			}
		}()
	}

	wg.Wait()

	if successCount.Load() != int32(initialBalance/price) {
		t.Errorf("expected %d successes, got %d", initialBalance/price, successCount.Load())
	}

	balance, _ := adapter.Balance(ctx, "concurrent-card")
	if balance != 0 {
		t.Errorf("expected balance 0, got %d", balance)
	}
}

func TestRefund_OncePerTransaction(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	txID := uuid.New()

	client.Del(ctx, "wallet:test-card")
	adapter.SetBalance(ctx, "test-card", 50)

	ok, err := adapter.Refund(ctx, "test-card", txID, 150)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected first refund to apply")
	}

	ok, err = adapter.Refund(ctx, "test-card", txID, 150)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected replayed refund to be ignored")
	}

	balance, _ := adapter.Balance(ctx, "test-card")
	if balance != 200 {
		t.Errorf("expected balance 200, got %d", balance)
	}

	client.Del(ctx, "refund:"+txID.String())
}

func TestSetIdempotency_Success(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	// Setup
	client.Del(ctx, "purchase:test-idem-key")

	// First call should succeed
	ok, err := adapter.SetIdempotency(ctx, "test-idem-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected first call to succeed")
	}

	// Second call should fail (key exists)
	ok, err = adapter.SetIdempotency(ctx, "test-idem-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected second call to fail")
	}
}

func TestReleaseIdempotency(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, "purchase:release-idem-key")
	defer client.Del(ctx, "purchase:release-idem-key")

	if ok, err := adapter.SetIdempotency(ctx, "release-idem-key"); err != nil || !ok {
		t.Fatalf("expected first call to succeed, got ok=%v err=%v", ok, err)
	}
	if err := adapter.ReleaseIdempotency(ctx, "release-idem-key"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// a released key can be taken again
	ok, err := adapter.SetIdempotency(ctx, "release-idem-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected released key to be available")
	}
}

func TestSetIdempotency_Concurrent(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, "purchase:concurrent-idem-key")

	var successCount atomic.Int32
	var wg sync.WaitGroup
	concurrency := 100

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := adapter.SetIdempotency(ctx, "concurrent-idem-key")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				successCount.Add(1)
			}
		}()
	}

	wg.Wait()

	// Only one should succeed
	if successCount.Load() != 1 {
		t.Errorf("expected exactly 1 success, got %d", successCount.Load())
	}
}
