package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/vending/internal/core/domain"
)

const insufficientFunds = "insufficient funds"

// CashHandler pays from inserted credit. Charges stay reversible until the
// next Settle hands the remaining credit back as change.
type CashHandler struct {
	mu      sync.Mutex
	credit  decimal.Decimal
	pending map[uuid.UUID]decimal.Decimal // charged, not yet settled
}

func NewCashHandler() *CashHandler {
	return &CashHandler{pending: make(map[uuid.UUID]decimal.Decimal)}
}

func (h *CashHandler) Method() domain.PaymentMethod {
	return domain.PaymentMethodCash
}

func (h *CashHandler) Credit() decimal.Decimal {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.credit
}

func (h *CashHandler) Add(ctx context.Context, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("add cash: non-positive amount %s", amount)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.credit = h.credit.Add(amount)
	return nil
}

func (h *CashHandler) Process(ctx context.Context, amount decimal.Decimal) (*domain.Tx, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("process cash: negative amount %s", amount)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.credit.LessThan(amount) {
		return domain.NewTx(amount, domain.TxStatusFailed, insufficientFunds), nil
	}
	h.credit = h.credit.Sub(amount)
	tx := domain.NewTx(amount, domain.TxStatusDone, "")
	h.pending[tx.ID] = amount
	return tx, nil
}

// Reverse returns a charge to the credit. Failed and already reversed
// transactions need no work; settled ones are final and are refused.
func (h *CashHandler) Reverse(ctx context.Context, tx *domain.Tx) (bool, error) {
	if tx == nil {
		return false, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	switch tx.Status {
	case domain.TxStatusFailed, domain.TxStatusReversed:
		return true, nil
	}

	amount, ok := h.pending[tx.ID]
	if !ok {
		return false, nil
	}
	delete(h.pending, tx.ID)
	h.credit = h.credit.Add(amount)
	tx.Status = domain.TxStatusReversed
	return true, nil
}

func (h *CashHandler) Settle(ctx context.Context) (decimal.NullDecimal, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clear(h.pending)
	if !h.credit.IsPositive() {
		return decimal.NullDecimal{}, nil
	}
	change := decimal.NewNullDecimal(h.credit)
	h.credit = decimal.Zero
	return change, nil
}
