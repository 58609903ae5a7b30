// Package notify publishes order lifecycle events for downstream consumers
// (confirmation mails, fulfilment).
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vox-be/internal/logger"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	EventOrderPlaced        = "order.placed"
	EventOrderPaid          = "order.paid"
	EventOrderPaymentFailed = "order.payment_failed"
)

type Event struct {
	Type            string    `json:"type"`
	OrderID         string    `json:"orderId"`
	SequentialID    int64     `json:"sequentialId"`
	UserID          *string   `json:"userId,omitempty"`
	Amount          int64     `json:"amount"`
	Currency        string    `json:"currency"`
	PaymentMethod   string    `json:"paymentMethod"`
	Status          string    `json:"status"`
	RazorpayOrderID string    `json:"razorpayOrderId,omitempty"`
	PaymentID       string    `json:"razorpayPaymentId,omitempty"`
	OccurredAt      time.Time `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(topic string, brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}
	return &KafkaPublisher{writer: w}
}

// Publish keys messages by order id so events of one order stay ordered.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(e.OrderID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher is used when no brokers are configured.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, e Event) error {
	logger.FromCtx(ctx).Info("order event",
		zap.String("event", e.Type),
		zap.String("order_id", e.OrderID),
		zap.Int64("sequential_id", e.SequentialID),
		zap.String("status", e.Status),
	)
	return nil
}

func (LogPublisher) Close() error { return nil }
