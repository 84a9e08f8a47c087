package notifier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"fund_transfer_back/models"
)

const (
	EventConfirmed = "transfer.confirmed"
	EventFailed    = "transfer.failed"
)

type TransferEvent struct {
	Type               string          `json:"type"`
	TransactionID      string          `json:"transaction_id"`
	AccountOrigin      string          `json:"account_origin"`
	AccountDestination string          `json:"account_destination"`
	Value              decimal.Decimal `json:"value"`
	Status             string          `json:"status"`
	Reason             string          `json:"reason,omitempty"`
	OccurredAt         time.Time       `json:"occurred_at"`
}

func NewTransferEvent(t models.Transfer, at time.Time) TransferEvent {
	eventType := EventFailed
	if t.Status == models.StatusConfirmed {
		eventType = EventConfirmed
	}
	return TransferEvent{
		Type:               eventType,
		TransactionID:      t.TransactionID,
		AccountOrigin:      t.AccountOrigin,
		AccountDestination: t.AccountDestination,
		Value:              t.Value,
		Status:             string(t.Status),
		Reason:             t.Message(),
		OccurredAt:         at,
	}
}

type EventPublisher interface {
	Publish(ctx context.Context, event TransferEvent) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.Hash{},
		},
	}
}

// Publish keys messages by transaction id so events of one transfer stay ordered.
func (p *KafkaPublisher) Publish(ctx context.Context, event TransferEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal transfer event")
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.TransactionID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	})
	return errors.Wrapf(err, "publish %s for %s", event.Type, event.TransactionID)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
