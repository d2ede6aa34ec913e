package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/vending/internal/core/domain"
	"github.com/rl1809/vending/internal/port"
)

// minor units per major unit, e.g. cents
const currencyExponent = 2

// CardHandler charges a prepaid wallet account. A charge can be refunded
// until it is captured.
type CardHandler struct {
	wallet    port.WalletRepository
	accountID string

	mu      sync.Mutex
	pending map[uuid.UUID]struct{}
}

func NewCardHandler(wallet port.WalletRepository, accountID string) *CardHandler {
	return &CardHandler{
		wallet:    wallet,
		accountID: accountID,
		pending:   make(map[uuid.UUID]struct{}),
	}
}

func (h *CardHandler) Method() domain.PaymentMethod {
	return domain.PaymentMethodCard
}

func (h *CardHandler) Process(ctx context.Context, amount decimal.Decimal) (*domain.Tx, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("process card: negative amount %s", amount)
	}

	ok, err := h.wallet.Debit(ctx, h.accountID, ToMinor(amount))
	if err != nil {
		return nil, fmt.Errorf("debit wallet: %w", err)
	}
	if !ok {
		return domain.NewTx(amount, domain.TxStatusFailed, insufficientFunds), nil
	}

	tx := domain.NewTx(amount, domain.TxStatusDone, "")
	h.mu.Lock()
	h.pending[tx.ID] = struct{}{}
	h.mu.Unlock()
	return tx, nil
}

// Reverse refunds an uncaptured debit and refuses captured or unknown ones.
// Refunds are keyed by transaction ID so the wallet never credits twice.
func (h *CardHandler) Reverse(ctx context.Context, tx *domain.Tx) (bool, error) {
	if tx == nil {
		return false, nil
	}
	switch tx.Status {
	case domain.TxStatusFailed, domain.TxStatusReversed:
		return true, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.pending[tx.ID]; !ok {
		return false, nil
	}
	if _, err := h.wallet.Refund(ctx, h.accountID, tx.ID, ToMinor(tx.Amount)); err != nil {
		return false, fmt.Errorf("refund wallet: %w", err)
	}
	delete(h.pending, tx.ID)
	tx.Status = domain.TxStatusReversed
	return true, nil
}

// Capture finalizes a debit once the item is out.
func (h *CardHandler) Capture(ctx context.Context, tx *domain.Tx) error {
	if tx == nil {
		return nil
	}
	h.mu.Lock()
	delete(h.pending, tx.ID)
	h.mu.Unlock()
	return nil
}

func (h *CardHandler) Balance(ctx context.Context) (decimal.Decimal, error) {
	minor, err := h.wallet.Balance(ctx, h.accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return FromMinor(minor), nil
}

func ToMinor(amount decimal.Decimal) int64 {
	return amount.Shift(currencyExponent).Round(0).IntPart()
}

func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -currencyExponent)
}
