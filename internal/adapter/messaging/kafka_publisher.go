package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/rl1809/vending/internal/core/domain"
)

const saleCompletedEvent = "sale.completed"

type SaleEvent struct {
	SaleID    string              `json:"sale_id"`
	TxID      string              `json:"tx_id"`
	Code      string              `json:"code"`
	Position  int                 `json:"position"`
	Price     decimal.Decimal     `json:"price"`
	Change    decimal.NullDecimal `json:"change"`
	Method    string              `json:"method"`
	CreatedAt time.Time           `json:"created_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher emits completed sales to a topic, keyed by item code so
// every sale of one item lands on the same partition.
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *KafkaPublisher) RecordSale(ctx context.Context, sale domain.Sale) error {
	payload, err := json.Marshal(SaleEvent{
		SaleID:    sale.ID,
		TxID:      sale.TxID.String(),
		Code:      sale.Code,
		Position:  sale.Position,
		Price:     sale.Price,
		Change:    sale.Change,
		Method:    string(sale.Method),
		CreatedAt: sale.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal sale event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(sale.Code),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(saleCompletedEvent)},
		},
		Time: sale.CreatedAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write sale event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
