// Package relay forwards each newly fetched record set to a downstream sink.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
	"github.com/couchcryptid/quake-feed-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Subscriber provides feed state updates.
type Subscriber interface {
	Subscribe() (<-chan domain.FeedState, func())
}

// SnapshotLoader writes a snapshot to the destination.
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context, snap domain.Snapshot) error
}

// Relay keeps the sink caught up with the latest snapshot the feed applied.
// Snapshots go out in increasing sequence order and at most once each;
// snapshots superseded while a publish is running are skipped. A failed
// publish is retried with backoff until it succeeds or a newer snapshot
// replaces it.
type Relay struct {
	feed    Subscriber
	loader  SnapshotLoader
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock
	ready   atomic.Bool
	lastSeq uint64
}

// New creates a Relay. A nil clock uses the real clock.
func New(feed Subscriber, loader SnapshotLoader, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *Relay {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Relay{
		feed:    feed,
		loader:  loader,
		logger:  logger,
		metrics: metrics,
		clock:   clock,
	}
}

// CheckReadiness returns nil once a snapshot has been published.
func (r *Relay) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("relay has not published any snapshot yet")
	}
	return nil
}

// Ready reports whether a snapshot has been published.
func (r *Relay) Ready() bool { return r.ready.Load() }

// Run forwards snapshots until the context is cancelled or the subscription
// closes.
func (r *Relay) Run(ctx context.Context) error {
	updates, unsubscribe := r.feed.Subscribe()
	defer unsubscribe()

	r.logger.Info("relay started")
	backoff := initialBackoff
	var pending *domain.Snapshot

	for {
		if pending == nil {
			select {
			case <-ctx.Done():
				r.logger.Info("relay stopping", "reason", ctx.Err())
				return nil
			case state, ok := <-updates:
				if !ok {
					return nil
				}
				pending = r.newer(state, pending)
			}
			continue
		}

		if r.publish(ctx, *pending) {
			r.lastSeq = pending.Sequence
			pending = nil
			backoff = initialBackoff
			continue
		}
		if ctx.Err() != nil {
			return nil
		}

		// Wait out the backoff, but let a newer snapshot replace the failed one.
		select {
		case <-ctx.Done():
			return nil
		case <-r.clock.After(backoff):
		case state, ok := <-updates:
			if !ok {
				return nil
			}
			pending = r.newer(state, pending)
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
}

// newer returns the snapshot in state if it has not been published and is
// more recent than current.
func (r *Relay) newer(state domain.FeedState, current *domain.Snapshot) *domain.Snapshot {
	snap, ok := domain.SnapshotOf(state)
	if !ok || snap.Sequence <= r.lastSeq {
		return current
	}
	if current != nil && snap.Sequence <= current.Sequence {
		return current
	}
	if current != nil {
		r.logger.Debug("replacing unpublished snapshot", "old_seq", current.Sequence, "new_seq", snap.Sequence)
	}
	return &snap
}

func (r *Relay) publish(ctx context.Context, snap domain.Snapshot) bool {
	if err := r.loader.LoadSnapshot(ctx, snap); err != nil {
		if ctx.Err() != nil {
			return false
		}
		r.metrics.SnapshotPublishErrs.Inc()
		r.logger.Error("publish snapshot failed", "error", err, "seq", snap.Sequence, "records", len(snap.Records))
		return false
	}
	r.metrics.SnapshotsPublished.Inc()
	r.metrics.RecordsPublished.Add(float64(len(snap.Records)))
	r.ready.Store(true)
	r.logger.Debug("snapshot published", "seq", snap.Sequence, "records", len(snap.Records))
	return true
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
