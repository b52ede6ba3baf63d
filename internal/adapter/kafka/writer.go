package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/quake-feed-service/internal/config"
	"github.com/couchcryptid/quake-feed-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Header keys set on every published record.
const (
	HeaderTier      = "magnitude_tier"
	HeaderSequence  = "snapshot_seq"
	HeaderFetchedAt = "fetched_at"
)

// messageWriter is the subset of *kafkago.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes earthquake snapshots to a Kafka topic.
// It implements relay.SnapshotLoader.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadSnapshot publishes every record of snap in a single WriteMessages call.
// Records are keyed by id so updates to the same event share a partition.
func (w *Writer) LoadSnapshot(ctx context.Context, snap domain.Snapshot) error {
	if len(snap.Records) == 0 {
		w.logger.Debug("empty snapshot, nothing to publish", "seq", snap.Sequence)
		return nil
	}
	msgs := make([]kafkago.Message, len(snap.Records))
	for i := range snap.Records {
		msg, err := serializeToMessage(snap.Records[i], snap.Sequence, snap.FetchedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write snapshot %d: %w", snap.Sequence, err)
	}
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an EarthquakeRecord into a Kafka message.
func serializeToMessage(rec domain.EarthquakeRecord, seq uint64, fetchedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize earthquake record %s: %w", rec.ID, err)
	}
	return kafkago.Message{
		Key:   []byte(rec.ID),
		Value: data,
		Time:  fetchedAt,
		Headers: []kafkago.Header{
			{Key: HeaderTier, Value: []byte(rec.Tier())},
			{Key: HeaderSequence, Value: []byte(strconv.FormatUint(seq, 10))},
			{Key: HeaderFetchedAt, Value: []byte(fetchedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
