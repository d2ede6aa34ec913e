package handler

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rl1809/vending/internal/adapter/payment"
	"github.com/rl1809/vending/internal/core/domain"
	"github.com/rl1809/vending/internal/core/inventory"
	"github.com/rl1809/vending/internal/core/service"
)

// Mock IdempotencyRepository
type mockIdempotency struct {
	mu       sync.Mutex
	seen     map[string]bool
	released []string
	err      error
}

func newMockIdempotency() *mockIdempotency {
	return &mockIdempotency{seen: make(map[string]bool)}
}

func (m *mockIdempotency) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return false, m.err
	}
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

func (m *mockIdempotency) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	delete(m.seen, key)
	m.released = append(m.released, key)
	return nil
}

// jammedItem always passes Check and never dispenses.
type jammedItem struct{}

func (jammedItem) Code() string           { return "jammed" }
func (jammedItem) Count() int             { return 1 }
func (jammedItem) AddCount(int)           {}
func (jammedItem) Price() decimal.Decimal { return decimal.NewFromInt(1) }
func (jammedItem) Check() bool            { return true }
func (jammedItem) Mod() bool              { return false }

// newCashMachine stocks cola (1.50) at 0, chips (2.00) at 2 and a jammed
// item at 4.
func newCashMachine() (*service.VendingService, *payment.CashHandler) {
	store := inventory.NewStore(5)
	store.PutAt(domain.NewProduct("cola", "Cola", 2, decimal.RequireFromString("1.50")), 0)
	store.PutAt(domain.NewProduct("chips", "Chips", 1, decimal.RequireFromString("2.00")), 2)
	store.PutAt(jammedItem{}, 4)

	cash := payment.NewCashHandler()
	return service.NewVendingService(store, cash), cash
}

// nonCashHandler approves everything and takes no cash.
type nonCashHandler struct{}

func (nonCashHandler) Process(ctx context.Context, amount decimal.Decimal) (*domain.Tx, error) {
	return domain.NewTx(amount, domain.TxStatusDone, ""), nil
}

func (nonCashHandler) Reverse(ctx context.Context, tx *domain.Tx) (bool, error) {
	return true, nil
}

func (nonCashHandler) Method() domain.PaymentMethod { return domain.PaymentMethodCard }
