package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/radar-rain-alert/internal/config"
	"github.com/couchcryptid/radar-rain-alert/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// EventTypeRainDetected is the event_type header on published detections.
const EventTypeRainDetected = "rain_detected"

// Writer produces detection events to a Kafka topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured detection topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishDetection serializes a positive run result and writes it to the topic.
func (w *Writer) PublishDetection(ctx context.Context, result domain.RunResult) error {
	msg, err := serializeToMessage(result)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write detection event: %w", err)
	}
	w.logger.Info("detection event published", "topic", w.writer.Topic, "key", string(msg.Key))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a RunResult into a Kafka message keyed by the
// watched location, so detections for one place stay on one partition.
func serializeToMessage(result domain.RunResult) (kafkago.Message, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize run result: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(locationKey(result.Target)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(EventTypeRainDetected)},
			{Key: "checked_at", Value: []byte(result.CheckedAt.Format(time.RFC3339))},
			{Key: "alignment", Value: []byte(result.Alignment.Outcome.String())},
		},
	}, nil
}

func locationKey(p domain.GeoPoint) string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lon)
}
