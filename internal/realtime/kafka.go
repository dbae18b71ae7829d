package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaExporter appends every store change to a Kafka topic, keyed by
// table and row id so one row's changes stay on one partition.
// Notifications are not exported.
type KafkaExporter struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewKafkaExporter(brokers []string, topic string, logger *slog.Logger) *KafkaExporter {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	logger.Info("kafka exporter initialized", "brokers", brokers, "topic", topic)
	return &KafkaExporter{writer: w, logger: logger}
}

func (k *KafkaExporter) Forward(ctx context.Context, e Event) error {
	if e.Type != EventChange || e.Change == nil {
		return nil
	}
	msg, err := changeMessage(*e.Change)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, msg)
}

func (k *KafkaExporter) Close() error {
	return k.writer.Close()
}

func changeMessage(c Change) (kafka.Message, error) {
	value, err := json.Marshal(c)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encoding change: %w", err)
	}
	return kafka.Message{
		Key:   []byte(string(c.Table) + ":" + c.ID),
		Value: value,
		Time:  c.At,
		Headers: []kafka.Header{
			{Key: "table", Value: []byte(c.Table)},
			{Key: "op", Value: []byte(c.Op)},
		},
	}, nil
}
