//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/water-forecast-service/internal/adapter/kafka"
	"github.com/couchcryptid/water-forecast-service/internal/adapter/table"
	"github.com/couchcryptid/water-forecast-service/internal/config"
	"github.com/couchcryptid/water-forecast-service/internal/domain"
	"github.com/couchcryptid/water-forecast-service/internal/observability"
	"github.com/couchcryptid/water-forecast-service/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testTopic = "test-water-forecast"

// publishedMessage holds a deserialized message read from the forecast topic.
type publishedMessage struct {
	Record  domain.SeriesRecord
	Key     string
	Headers map[string]string
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("water-forecast-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from forecast topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var rec domain.SeriesRecord
	require.NoError(t, json.Unmarshal(msg.Value, &rec), "unmarshal forecast message")
	return publishedMessage{Record: rec, Key: string(msg.Key), Headers: headers}
}

// TestPipelinePublishesForecast runs the mock dataset through the pipeline with
// the Kafka writer as loader and reads every series record back.
func TestPipelinePublishesForecast(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	p := pipeline.New(domain.DefaultParams(), []pipeline.Loader{writer}, discardLogger(), observability.NewMetricsForTesting())
	source := table.FileSource{Path: filepath.Join("..", "..", "data", "mock", "historique_1996_2018.csv")}

	result, err := p.Run(ctx, source)
	require.NoError(t, err)
	require.Len(t, result.Series, 34)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	for i, want := range result.Series {
		got := readPublished(ctx, t, consumer)
		assert.Equal(t, strconv.Itoa(want.Year), got.Key, "message %d", i)
		assert.Equal(t, want, got.Record)
		assert.Equal(t, string(want.Origin), got.Headers["origin"])
		assert.Equal(t, result.Fingerprint, got.Headers["fingerprint"])
		_, err := time.Parse(time.RFC3339, got.Headers["generated_at"])
		assert.NoError(t, err, "generated_at should be valid RFC3339")
	}
}
