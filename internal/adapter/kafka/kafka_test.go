package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafkago.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func testWriter(fw *fakeWriter) *Writer {
	return &Writer{writer: fw, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestSerializeToMessage(t *testing.T) {
	fetched := time.Date(2025, 4, 23, 9, 50, 0, 0, time.UTC)
	rec := domain.EarthquakeRecord{
		ID:          "6808b5d2b5ec3f6b8f3c0a11",
		Title:       "MARMARA DENIZI",
		Magnitude:   6.2,
		Coordinates: domain.Coordinates{Lon: 28.2, Lat: 40.86},
	}

	msg, err := serializeToMessage(rec, 7, fetched)
	require.NoError(t, err)

	assert.Equal(t, []byte("6808b5d2b5ec3f6b8f3c0a11"), msg.Key)
	assert.Contains(t, string(msg.Value), `"title":"MARMARA DENIZI"`)
	assert.Equal(t, fetched, msg.Time)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, HeaderTier, msg.Headers[0].Key)
	assert.Equal(t, []byte("severe"), msg.Headers[0].Value)
	assert.Equal(t, HeaderSequence, msg.Headers[1].Key)
	assert.Equal(t, []byte("7"), msg.Headers[1].Value)
	assert.Equal(t, HeaderFetchedAt, msg.Headers[2].Key)
	assert.Equal(t, []byte(fetched.Format(time.RFC3339)), msg.Headers[2].Value)
}

func TestLoadSnapshot_OneMessagePerRecord(t *testing.T) {
	fw := &fakeWriter{}
	w := testWriter(fw)

	snap := domain.Snapshot{
		Sequence:  3,
		FetchedAt: time.Date(2025, 4, 23, 9, 50, 0, 0, time.UTC),
		Records: []domain.EarthquakeRecord{
			{ID: "a", Magnitude: 2.1},
			{ID: "b", Magnitude: 4.4},
		},
	}
	require.NoError(t, w.LoadSnapshot(context.Background(), snap))

	require.Len(t, fw.msgs, 2)
	assert.Equal(t, []byte("a"), fw.msgs[0].Key)
	assert.Equal(t, []byte("b"), fw.msgs[1].Key)

	var got domain.EarthquakeRecord
	require.NoError(t, json.Unmarshal(fw.msgs[1].Value, &got))
	assert.Equal(t, "b", got.ID)
	assert.Equal(t, 4.4, got.Magnitude)
}

func TestLoadSnapshot_Empty(t *testing.T) {
	fw := &fakeWriter{err: errors.New("should not be called")}
	w := testWriter(fw)

	require.NoError(t, w.LoadSnapshot(context.Background(), domain.Snapshot{Sequence: 1}))
	assert.Empty(t, fw.msgs)
}

func TestLoadSnapshot_WriteError(t *testing.T) {
	fw := &fakeWriter{err: errors.New("leader not available")}
	w := testWriter(fw)

	err := w.LoadSnapshot(context.Background(), domain.Snapshot{
		Sequence: 9,
		Records:  []domain.EarthquakeRecord{{ID: "a"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot 9")
	assert.Contains(t, err.Error(), "leader not available")
}
