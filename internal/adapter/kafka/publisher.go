package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/storm-dol-service/internal/engine"
)

// Publisher produces inference audit records to a Kafka topic.
// It implements engine.Publisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the audit topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish serializes one audit record and writes it to the audit topic.
func (p *Publisher) Publish(ctx context.Context, record engine.AuditRecord) error {
	msg, err := serializeToMessage(record)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals an AuditRecord into a Kafka message keyed by
// request ID so retries of the same request land on one partition.
func serializeToMessage(record engine.AuditRecord) (kafkago.Message, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize audit record: %w", err)
	}
	recommended := ""
	if record.Result.RecommendedDate != nil {
		recommended = record.Result.RecommendedDate.Format(time.RFC3339)
	}
	return kafkago.Message{
		Key:   []byte(record.RequestID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "request_id", Value: []byte(record.RequestID)},
			{Key: "recommended_date", Value: []byte(recommended)},
		},
	}, nil
}
