package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/vending/internal/core/domain"
	"github.com/rl1809/vending/internal/port"
)

const saleWriteTimeout = 5 * time.Second

// StartSaleWorkers drains queue into every sink until the queue is closed.
// Wait on the returned group after closing the queue.
func StartSaleWorkers(count int, queue <-chan domain.Sale, sinks []port.SaleRepository, logger *zap.Logger) *sync.WaitGroup {
	var wg sync.WaitGroup
	for i := 0; i < count; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			saleWorkerLoop(id, queue, sinks, logger)
		}(i)
	}
	return &wg
}

func saleWorkerLoop(id int, queue <-chan domain.Sale, sinks []port.SaleRepository, logger *zap.Logger) {
	for sale := range queue {
		for _, sink := range sinks {
			ctx, cancel := context.WithTimeout(context.Background(), saleWriteTimeout)
			if err := sink.RecordSale(ctx, sale); err != nil {
				logger.Error("failed to record sale",
					zap.Int("worker", id),
					zap.String("sale_id", sale.ID),
					zap.String("code", sale.Code),
					zap.Error(err),
				)
			} else {
				logger.Debug("sale recorded", zap.Int("worker", id), zap.String("sale_id", sale.ID))
			}
			cancel()
		}
	}
}
