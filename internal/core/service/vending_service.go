package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/vending/internal/core/domain"
	"github.com/rl1809/vending/internal/core/inventory"
	"github.com/rl1809/vending/internal/port"
)

const defaultTxMessage = "tx failed"

var tracer = otel.Tracer("github.com/rl1809/vending/internal/core/service")

type Slot struct {
	Position int
	Item     domain.Item
}

type Purchase struct {
	Position int
	Item     domain.Item
	Tx       *domain.Tx
	Change   decimal.NullDecimal
}

type Option func(*VendingService)

func WithLogger(logger *zap.Logger) Option {
	return func(s *VendingService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSaleQueue publishes every completed sale to a buffered queue, see SaleQueue.
func WithSaleQueue(size int) Option {
	return func(s *VendingService) {
		s.sales = make(chan domain.Sale, size)
	}
}

// WithReleaseOnSuccess clears the active transaction once a purchase
// completes. Without it a completed transaction stays active until the next
// Buy or a Cancel.
func WithReleaseOnSuccess() Option {
	return func(s *VendingService) {
		s.releaseOnSuccess = true
	}
}

// VendingService drives purchases against one store and one payment handler.
// All operations are serialized by a single mutex.
type VendingService struct {
	mu      sync.Mutex
	store   *inventory.Store
	handler port.PaymentHandler
	cash    port.CashHandler    // nil when the handler takes no cash
	capture port.CaptureHandler // nil when charges need no capture
	tx      *domain.Tx

	releaseOnSuccess bool
	sales            chan domain.Sale
	closed           bool
	logger           *zap.Logger
}

func NewVendingService(store *inventory.Store, handler port.PaymentHandler, opts ...Option) *VendingService {
	s := &VendingService{
		store:   store,
		handler: handler,
		logger:  zap.NewNop(),
	}
	s.cash, _ = handler.(port.CashHandler)
	s.capture, _ = handler.(port.CaptureHandler)

	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *VendingService) AcceptsCash() bool {
	return s.cash != nil
}

// ActiveTx returns a copy of the pending transaction, or nil when idle.
func (s *VendingService) ActiveTx() *domain.Tx {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		return nil
	}
	tx := *s.tx
	return &tx
}

// List returns the sellable items ordered by position.
func (s *VendingService) List(ctx context.Context) []Slot {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.store.List()
	slots := make([]Slot, 0, len(items))
	for _, item := range items {
		pos, ok := s.store.Find(item.Code())
		if !ok {
			continue
		}
		slots = append(slots, Slot{Position: pos, Item: item})
	}
	sort.Slice(slots, func(i, j int) bool {
		return slots[i].Position < slots[j].Position
	})
	return slots
}

func (s *VendingService) Pick(ctx context.Context, pos int) (domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pick(pos)
}

func (s *VendingService) pick(pos int) (domain.Item, error) {
	item, ok := s.store.GetAt(pos)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPosition, pos)
	}
	if !item.Check() {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, item.Code())
	}
	return item, nil
}

func (s *VendingService) AddMoney(ctx context.Context, amount decimal.Decimal) error {
	ctx, span := tracer.Start(ctx, "VendingService.AddMoney",
		trace.WithAttributes(attribute.String("vending.amount", amount.String())))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cash == nil {
		return failSpan(span, ErrCashNotSupported)
	}
	if !amount.IsPositive() {
		return failSpan(span, fmt.Errorf("%w: %s", ErrInvalidAmount, amount))
	}
	if err := s.cash.Add(ctx, amount); err != nil {
		return failSpan(span, fmt.Errorf("add money: %w", err))
	}

	s.logger.Info("money added", zap.String("amount", amount.String()))
	return nil
}

func (s *VendingService) Buy(ctx context.Context, pos int) (*Purchase, error) {
	ctx, span := tracer.Start(ctx, "VendingService.Buy",
		trace.WithAttributes(attribute.Int("vending.position", pos)))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	purchase, err := s.buy(ctx, pos)
	if err != nil {
		return nil, failSpan(span, err)
	}
	span.SetAttributes(
		attribute.String("vending.code", purchase.Item.Code()),
		attribute.String("vending.tx_id", purchase.Tx.ID.String()),
	)
	return purchase, nil
}

func (s *VendingService) buy(ctx context.Context, pos int) (*Purchase, error) {
	item, err := s.pick(pos)
	if err != nil {
		return nil, err
	}

	tx, err := s.handler.Process(ctx, item.Price())
	if err != nil {
		return nil, fmt.Errorf("process payment: %w", err)
	}
	// kept before the status check so a failed payment can still be cancelled
	s.tx = tx

	if !tx.Done() {
		msg := tx.Message
		if msg == "" {
			msg = defaultTxMessage
		}
		return nil, fmt.Errorf("%w: %s", ErrTransactionFailed, msg)
	}

	if !item.Mod() {
		s.logger.Warn("dispense failed, reversing payment",
			zap.String("code", item.Code()),
			zap.String("tx_id", tx.ID.String()),
		)
		ok, revErr := s.handler.Reverse(ctx, tx)
		if revErr != nil || !ok {
			s.logger.Error("CRITICAL reversal failed after dispense failure",
				zap.String("tx_id", tx.ID.String()),
				zap.String("amount", tx.Amount.String()),
				zap.Error(revErr),
			)
			return nil, errors.Join(ErrDispenseFailed, reversalError(revErr))
		}
		return nil, ErrDispenseFailed
	}

	if s.capture != nil {
		if err := s.capture.Capture(ctx, tx); err != nil {
			s.logger.Error("capture failed after dispense",
				zap.String("tx_id", tx.ID.String()),
				zap.Error(err),
			)
		}
	}

	var change decimal.NullDecimal
	if s.cash != nil {
		change, err = s.cash.Settle(ctx)
		if err != nil {
			// the item is already out, so report the sale and leave the credit
			s.logger.Error("settle failed after dispense",
				zap.String("tx_id", tx.ID.String()),
				zap.Error(err),
			)
			change = decimal.NullDecimal{}
		}
	}
	if s.releaseOnSuccess {
		s.tx = nil
	}

	s.logger.Info("item dispensed",
		zap.String("code", item.Code()),
		zap.Int("position", pos),
		zap.String("price", tx.Amount.String()),
		zap.String("tx_id", tx.ID.String()),
	)
	s.publish(domain.Sale{
		ID:        uuid.NewString(),
		TxID:      tx.ID,
		Code:      item.Code(),
		Position:  pos,
		Price:     tx.Amount,
		Change:    change,
		Method:    s.handler.Method(),
		CreatedAt: time.Now(),
	})

	return &Purchase{Position: pos, Item: item, Tx: tx, Change: change}, nil
}

// Cancel reverses the active transaction and returns any change. A refused
// reversal keeps the transaction active so Cancel can be retried.
func (s *VendingService) Cancel(ctx context.Context) (decimal.NullDecimal, error) {
	ctx, span := tracer.Start(ctx, "VendingService.Cancel")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		return decimal.NullDecimal{}, failSpan(span, ErrNoTransaction)
	}
	tx := s.tx
	span.SetAttributes(attribute.String("vending.tx_id", tx.ID.String()))

	ok, err := s.handler.Reverse(ctx, tx)
	if err != nil || !ok {
		return decimal.NullDecimal{}, failSpan(span, reversalError(err))
	}

	var change decimal.NullDecimal
	if s.cash != nil {
		change, err = s.cash.Settle(ctx)
		if err != nil {
			s.tx = nil
			return decimal.NullDecimal{}, failSpan(span, fmt.Errorf("settle: %w", err))
		}
	}
	s.tx = nil

	s.logger.Info("transaction cancelled",
		zap.String("tx_id", tx.ID.String()),
		zap.String("status", string(tx.Status)),
	)
	return change, nil
}

// Stock places item in the store. A nil pos takes the first free slot.
func (s *VendingService) Stock(ctx context.Context, item domain.Item, pos *int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ok bool
	if pos == nil {
		ok = s.store.Put(item)
	} else {
		ok = s.store.PutAt(item, *pos)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrSlotUnavailable, item.Code())
	}

	s.logger.Info("item stocked", zap.String("code", item.Code()), zap.Int("count", item.Count()))
	return nil
}

func (s *VendingService) Remove(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.store.Remove(code) {
		return fmt.Errorf("%w: %s", ErrUnknownItem, code)
	}
	s.logger.Info("item removed", zap.String("code", code))
	return nil
}

func (s *VendingService) publish(sale domain.Sale) {
	if s.sales == nil || s.closed {
		return
	}
	select {
	case s.sales <- sale:
	default:
		s.logger.Warn("sale queue full, dropping sale", zap.String("sale_id", sale.ID))
	}
}

// SaleQueue returns completed sales; nil unless WithSaleQueue was given.
func (s *VendingService) SaleQueue() <-chan domain.Sale {
	return s.sales
}

// Close stops sale publishing and closes the sale queue.
func (s *VendingService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sales != nil && !s.closed {
		close(s.sales)
		s.closed = true
	}
}

func reversalError(err error) error {
	if err == nil {
		return fmt.Errorf("%w: %w", ErrReversalFailed, ErrAlreadySettled)
	}
	return fmt.Errorf("%w: %w", ErrReversalFailed, err)
}

func failSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
