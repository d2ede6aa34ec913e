package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TxStatus string

const (
	TxStatusDone     TxStatus = "done"
	TxStatusFailed   TxStatus = "failed"
	TxStatusReversed TxStatus = "reversed"
)

type Tx struct {
	ID        uuid.UUID
	Amount    decimal.Decimal
	Status    TxStatus
	Message   string // set by the handler when the payment failed
	CreatedAt time.Time
}

func NewTx(amount decimal.Decimal, status TxStatus, message string) *Tx {
	return &Tx{
		ID:        uuid.New(),
		Amount:    amount,
		Status:    status,
		Message:   message,
		CreatedAt: time.Now(),
	}
}

func (t *Tx) Done() bool {
	return t != nil && t.Status == TxStatusDone
}
