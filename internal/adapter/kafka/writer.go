package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/water-forecast-service/internal/config"
	"github.com/couchcryptid/water-forecast-service/internal/domain"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer the adapter needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes forecast series to a Kafka topic.
// It implements pipeline.Loader.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
	clock  clockwork.Clock
}

// NewWriter creates a Kafka producer for the configured forecast topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger, clock: clockwork.NewRealClock()}
}

// Load publishes one message per series record in a single WriteMessages call.
// Records are keyed by year so a republished forecast replaces the previous
// one on a compacted topic.
func (w *Writer) Load(ctx context.Context, result domain.Result) error {
	if len(result.Series) == 0 {
		return nil
	}
	generatedAt := w.clock.Now().UTC()
	msgs := make([]kafkago.Message, len(result.Series))
	for i := range result.Series {
		msg, err := serializeToMessage(result.Series[i], result.Fingerprint, generatedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish forecast: %w", err)
	}
	w.logger.Info("forecast published", "records", len(msgs), "fingerprint", result.Fingerprint)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a series record into a Kafka message.
func serializeToMessage(rec domain.SeriesRecord, fingerprint string, generatedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize series record %d: %w", rec.Year, err)
	}
	return kafkago.Message{
		Key:   []byte(strconv.Itoa(rec.Year)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "origin", Value: []byte(rec.Origin)},
			{Key: "fingerprint", Value: []byte(fingerprint)},
			{Key: "generated_at", Value: []byte(generatedAt.Format(time.RFC3339))},
		},
	}, nil
}
