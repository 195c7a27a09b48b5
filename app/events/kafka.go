package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type envelope struct {
	ID     string          `json:"id"`
	Source string          `json:"source"`
	Type   string          `json:"type"`
	Time   time.Time       `json:"time"`
	Data   DivergenceEvent `json:"data"`
}

// KafkaNotifier publishes divergence events keyed by subscription id so all
// events for one subscription land on the same partition.
type KafkaNotifier struct {
	writer messageWriter
	source string
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
}

func NewKafkaNotifier(writer messageWriter, source string) *KafkaNotifier {
	return &KafkaNotifier{writer: writer, source: source}
}

func (n *KafkaNotifier) NotifyDivergence(ctx context.Context, event DivergenceEvent) error {
	payload, err := json.Marshal(envelope{
		ID:     uuid.NewString(),
		Source: n.source,
		Type:   DivergenceEventType,
		Time:   time.Now().UTC(),
		Data:   event,
	})
	if err != nil {
		return fmt.Errorf("encode divergence event: %w", err)
	}

	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.SubscriptionID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "ce_type", Value: []byte(DivergenceEventType)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish divergence event: %w", err)
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
