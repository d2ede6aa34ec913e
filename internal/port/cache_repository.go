package port

import (
	"context"

	"github.com/google/uuid"
)

type IdempotencyRepository interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ReleaseIdempotency frees a key so the request can be retried
	ReleaseIdempotency(ctx context.Context, key string) error
}

// WalletRepository holds prepaid balances in minor currency units.
type WalletRepository interface {
	// Debit atomically decreases the balance, returns false if insufficient
	Debit(ctx context.Context, accountID string, amount int64) (bool, error)

	// Refund restores a debit once per transaction, returns false if the
	// transaction was already refunded
	Refund(ctx context.Context, accountID string, txID uuid.UUID, amount int64) (bool, error)

	Balance(ctx context.Context, accountID string) (int64, error)
}
