package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodCash PaymentMethod = "cash"
	PaymentMethodCard PaymentMethod = "card"
)

type Sale struct {
	ID        string
	TxID      uuid.UUID
	Code      string
	Position  int
	Price     decimal.Decimal
	Change    decimal.NullDecimal
	Method    PaymentMethod
	CreatedAt time.Time
}
