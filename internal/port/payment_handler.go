package port

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/rl1809/vending/internal/core/domain"
)

type PaymentHandler interface {
	// Process charges amount. A declined payment is a failed Tx, not an error;
	// the error is reserved for infrastructure faults.
	Process(ctx context.Context, amount decimal.Decimal) (*domain.Tx, error)

	// Reverse undoes a processed payment, returns false if the handler refuses
	Reverse(ctx context.Context, tx *domain.Tx) (bool, error)

	Method() domain.PaymentMethod
}

// CashHandler is a PaymentHandler that accepts inserted money and returns change.
type CashHandler interface {
	PaymentHandler

	Add(ctx context.Context, amount decimal.Decimal) error

	// Settle returns the remaining credit as change and resets it
	Settle(ctx context.Context) (decimal.NullDecimal, error)
}

// CaptureHandler is a PaymentHandler whose charges stay reversible until
// captured. A captured charge is never reversed.
type CaptureHandler interface {
	PaymentHandler

	Capture(ctx context.Context, tx *domain.Tx) error
}
