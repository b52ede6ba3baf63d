//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/couchcryptid/quake-feed-service/internal/adapter/kafka"
	"github.com/couchcryptid/quake-feed-service/internal/adapter/kandilli"
	"github.com/couchcryptid/quake-feed-service/internal/config"
	"github.com/couchcryptid/quake-feed-service/internal/domain"
	"github.com/couchcryptid/quake-feed-service/internal/feed"
	"github.com/couchcryptid/quake-feed-service/internal/observability"
	"github.com/couchcryptid/quake-feed-service/internal/relay"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTopic = "test-earthquake-records"

type publishedRecord struct {
	Record  domain.EarthquakeRecord
	Key     string
	Headers map[string]string
}

func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedRecord {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var rec domain.EarthquakeRecord
	require.NoError(t, json.Unmarshal(msg.Value, &rec), "unmarshal record")

	return publishedRecord{Record: rec, Key: string(msg.Key), Headers: headers}
}

func newConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

// TestWriter_LoadSnapshot verifies the writer's keys, headers and payload
// against a real broker.
func TestWriter_LoadSnapshot(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	fetched := time.Date(2025, time.April, 23, 9, 50, 0, 0, time.UTC)
	require.NoError(t, writer.LoadSnapshot(ctx, domain.Snapshot{
		Sequence:  1,
		FetchedAt: fetched,
		Records: []domain.EarthquakeRecord{{
			ID:          "6808b5d2b5ec3f6b8f3c0a11",
			Title:       "MARMARA DENIZI",
			Magnitude:   6.2,
			Coordinates: domain.Coordinates{Lon: 28.2, Lat: 40.86},
		}},
	}))

	got := readPublished(ctx, t, newConsumer(t, broker))
	assert.Equal(t, "6808b5d2b5ec3f6b8f3c0a11", got.Key)
	assert.Equal(t, "severe", got.Headers[kafka.HeaderTier])
	assert.Equal(t, "1", got.Headers[kafka.HeaderSequence])
	assert.Equal(t, fetched.Format(time.RFC3339), got.Headers[kafka.HeaderFetchedAt])
	assert.Equal(t, "MARMARA DENIZI", got.Record.Title)
}

// TestFeedToKafka wires feed client, controller, relay and writer and checks
// that every fixture record reaches the topic.
func TestFeedToKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)
	srv := fixtureFeed(t)

	metrics := observability.NewMetricsForTesting()
	client := kandilli.NewClient(srv.URL, 5*time.Second, discardLogger())
	controller := feed.NewController(client, discardLogger(), metrics)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	r := relay.New(controller, writer, discardLogger(), metrics, nil)
	relayCtx, relayCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(relayCtx) }()

	require.NoError(t, controller.Start(time.Hour, 100))
	t.Cleanup(controller.Stop)

	consumer := newConsumer(t, broker)
	received := make(map[string]publishedRecord)
	for len(received) < 3 {
		pr := readPublished(ctx, t, consumer)
		received[pr.Key] = pr
	}

	relayCancel()
	require.NoError(t, <-errCh)
	assert.True(t, r.Ready())

	marmara, ok := received["6808b5d2b5ec3f6b8f3c0a11"]
	require.True(t, ok)
	assert.Equal(t, "severe", marmara.Headers[kafka.HeaderTier])
	assert.Equal(t, "Marmara Denizi", marmara.Record.EpicenterName())

	ege, ok := received["6808977eb5ec3f6b8f3c0a0d"]
	require.True(t, ok)
	assert.Equal(t, "low", ege.Headers[kafka.HeaderTier])
	assert.Nil(t, ege.Record.Location)
}
