package port

import (
	"context"

	"github.com/rl1809/vending/internal/core/domain"
)

type SaleRepository interface {
	// RecordSale appends a completed sale to the ledger
	RecordSale(ctx context.Context, sale domain.Sale) error
}
