// Package kafka publishes prediction records to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/disaster-prediction/internal/domain"
)

// SinkName labels this publisher in metrics and logs.
const SinkName = "kafka"

// Publisher produces one message per prediction record.
// It implements history.Sink.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the prediction topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		// Records arrive one at a time from the recorder pool.
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Publisher{writer: w, logger: logger}
}

// Name implements history.Sink.
func (p *Publisher) Name() string { return SinkName }

// Save publishes rec keyed by its ID.
func (p *Publisher) Save(ctx context.Context, rec domain.PredictionRecord) error {
	msg, err := serializeToMessage(rec)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish prediction %s: %w", rec.ID, err)
	}
	p.logger.Debug("prediction published", "record_id", rec.ID, "topic", p.writer.Topic)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a PredictionRecord into a Kafka message.
func serializeToMessage(rec domain.PredictionRecord) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize prediction record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(rec.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "disaster_type", Value: []byte(rec.Prediction.DisasterType)},
			{Key: "bundle_version", Value: []byte(rec.BundleVersion)},
			{Key: "timestamp", Value: []byte(rec.Timestamp.Format(time.RFC3339))},
		},
	}, nil
}
