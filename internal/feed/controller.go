package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
	"github.com/couchcryptid/quake-feed-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

const (
	defaultLimit        = 50
	defaultFetchTimeout = 15 * time.Second

	msgFetchFailed   = "Failed to fetch earthquake data. Please try again later."
	msgRefreshing    = "Refreshing earthquake data..."
	msgRefreshed     = "Earthquake data updated"
	msgRefreshFailed = "Failed to refresh data"
)

// ErrInvalidArgument is returned by Start for a non-positive interval or limit.
var ErrInvalidArgument = errors.New("invalid argument")

// Source fetches up to limit records from the upstream feed.
type Source interface {
	Fetch(ctx context.Context, limit int) ([]domain.EarthquakeRecord, error)
}

// Trigger records why a fetch ran.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the real clock, mainly for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithGeocoder enables reverse geocoding of records that lack a region name.
func WithGeocoder(g domain.Geocoder) Option {
	return func(c *Controller) { c.geocoder = g }
}

// WithFetchTimeout bounds each fetch, including enrichment.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// WithDefaultLimit sets the limit used by RefreshNow before Start is called.
func WithDefaultLimit(limit int) Option {
	return func(c *Controller) {
		if limit > 0 {
			c.limit = limit
		}
	}
}

// Controller polls the feed and owns the single FeedState. It is the only
// writer; readers take copies via Snapshot or Subscribe.
type Controller struct {
	source       Source
	geocoder     domain.Geocoder
	clock        clockwork.Clock
	logger       *slog.Logger
	metrics      *observability.Metrics
	fetchTimeout time.Duration
	ready        atomic.Bool

	mu         sync.Mutex
	state      domain.FeedState
	limit      int
	inFlight   int
	nextSeq    uint64
	outcomeSeq uint64
	loopCancel context.CancelFunc
	loopDone   chan struct{}

	fetches sync.WaitGroup

	// subMu is always acquired before mu.
	subMu   sync.Mutex
	subs    map[int]chan domain.FeedState
	nextSub int
}

// NewController creates a stopped Controller.
func NewController(source Source, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Controller {
	c := &Controller{
		source:       source,
		clock:        clockwork.NewRealClock(),
		logger:       logger,
		metrics:      metrics,
		fetchTimeout: defaultFetchTimeout,
		limit:        defaultLimit,
		subs:         make(map[int]chan domain.FeedState),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start fetches immediately and then every interval. The first fetch is
// already in flight when Start returns. Calling Start while polling is a
// no-op; calling it after Stop starts a new schedule.
func (c *Controller) Start(interval time.Duration, limit int) error {
	if interval <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %s", ErrInvalidArgument, interval)
	}
	if limit <= 0 {
		return fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidArgument, limit)
	}

	c.mu.Lock()
	if c.loopDone != nil {
		c.mu.Unlock()
		c.logger.Debug("polling already started, ignoring start")
		return nil
	}
	c.limit = limit
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.loopCancel = cancel
	c.loopDone = done
	ticker := c.clock.NewTicker(interval)
	seq, lim := c.beginLocked(TriggerScheduled)
	c.mu.Unlock()

	c.metrics.FeedPolling.Set(1)
	c.logger.Info("polling started", "interval", interval, "limit", limit)
	c.publish()

	go c.runFetch(seq, lim, TriggerScheduled) //nolint:errcheck // outcome is recorded in state
	go c.loop(ctx, ticker, done)
	return nil
}

// Stop cancels the schedule and waits for the polling loop to exit. Fetches
// already in flight are not aborted and their results are still applied.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel, done := c.loopCancel, c.loopDone
	c.loopCancel, c.loopDone = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	c.metrics.FeedPolling.Set(0)
	c.logger.Info("polling stopped")
}

// Running reports whether the polling schedule is active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loopDone != nil
}

// RefreshNow runs one fetch outside the schedule without touching the ticker
// and returns its error. If ctx ends first the fetch keeps running and its
// result is still applied.
func (c *Controller) RefreshNow(ctx context.Context) error {
	c.mu.Lock()
	seq, lim := c.beginLocked(TriggerManual)
	c.mu.Unlock()
	c.publish()

	errCh := make(chan error, 1)
	go func() { errCh <- c.runFetch(seq, lim, TriggerManual) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() domain.FeedState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Subscribe returns a channel that receives the current state immediately and
// again after every change. Slow readers only ever see the latest state. The
// returned func unsubscribes and closes the channel.
func (c *Controller) Subscribe() (<-chan domain.FeedState, func()) {
	ch := make(chan domain.FeedState, 1)

	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.Snapshot()
	c.subMu.Unlock()

	return ch, sync.OnceFunc(func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.subs, id)
		close(ch)
	})
}

// CheckReadiness returns nil once a fetch has succeeded.
func (c *Controller) CheckReadiness(_ context.Context) error {
	if !c.ready.Load() {
		return errors.New("no successful feed fetch yet")
	}
	return nil
}

// Drain waits for in-flight fetches to finish or ctx to end. Callers must
// Stop polling and stop issuing RefreshNow before calling Drain.
func (c *Controller) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.fetches.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) loop(ctx context.Context, ticker clockwork.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			c.tick()
		}
	}
}

// tick starts a scheduled fetch unless one is still running.
func (c *Controller) tick() {
	c.mu.Lock()
	if c.inFlight > 0 {
		c.mu.Unlock()
		c.logger.Debug("fetch still in flight, skipping scheduled tick")
		return
	}
	seq, lim := c.beginLocked(TriggerScheduled)
	c.mu.Unlock()
	c.publish()

	go c.runFetch(seq, lim, TriggerScheduled) //nolint:errcheck // outcome is recorded in state
}

// beginLocked marks a new attempt as in flight. Caller holds mu.
func (c *Controller) beginLocked(trigger Trigger) (uint64, int) {
	c.nextSeq++
	c.inFlight++
	c.fetches.Add(1)
	c.state.Loading = true
	c.state.Err = nil
	if trigger == TriggerManual {
		c.state.Notice = c.newNotice(domain.NoticeRefreshing, msgRefreshing)
	}
	return c.nextSeq, c.limit
}

func (c *Controller) runFetch(seq uint64, limit int, trigger Trigger) error {
	defer c.fetches.Done()

	start := c.clock.Now()
	ctx, cancel := context.WithTimeout(context.Background(), c.fetchTimeout)
	defer cancel()

	records, err := c.source.Fetch(ctx, limit)
	if err == nil {
		records = domain.EnrichAll(ctx, records, c.geocoder, c.logger)
	}
	if err != nil && !errors.Is(err, domain.ErrTransport) && !errors.Is(err, domain.ErrMalformedPayload) {
		err = fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}
	c.metrics.FeedFetchDuration.WithLabelValues(string(trigger)).Observe(c.clock.Since(start).Seconds())

	c.complete(seq, trigger, records, err)
	return err
}

// complete applies a finished attempt. Records are applied only when seq is
// newer than the records already held, and the error/success outcome only
// when seq is newer than the last applied outcome, so a slow older response
// never overwrites a newer one.
func (c *Controller) complete(seq uint64, trigger Trigger, records []domain.EarthquakeRecord, err error) {
	c.mu.Lock()
	c.inFlight--
	c.state.Loading = c.inFlight > 0

	applyOutcome := seq > c.outcomeSeq
	if applyOutcome {
		c.outcomeSeq = seq
	}

	appliedRecords := false
	if err == nil && seq > c.state.Sequence {
		c.state.Records = records
		c.state.Sequence = seq
		c.state.LastUpdated = c.clock.Now()
		appliedRecords = true
	}
	if applyOutcome {
		c.state.Err = err
	}

	switch {
	case trigger == TriggerManual && err == nil:
		c.state.Notice = c.newNotice(domain.NoticeRefreshed, msgRefreshed)
	case trigger == TriggerManual:
		c.state.Notice = c.newNotice(domain.NoticeRefreshFailed, msgRefreshFailed)
	case err != nil && applyOutcome:
		c.state.Notice = c.newNotice(domain.NoticeFetchFailed, msgFetchFailed)
	}

	count := len(c.state.Records)
	updated := c.state.LastUpdated
	c.mu.Unlock()

	c.metrics.FeedFetches.WithLabelValues(string(trigger), outcomeLabel(err)).Inc()

	switch {
	case err != nil && applyOutcome:
		c.logger.Warn("feed fetch failed", "trigger", trigger, "seq", seq, "error", err)
	case err != nil:
		c.metrics.FeedSuperseded.Inc()
		c.logger.Debug("discarding superseded fetch failure", "trigger", trigger, "seq", seq, "error", err)
	case appliedRecords:
		c.ready.Store(true)
		c.metrics.FeedRecords.Set(float64(count))
		c.metrics.FeedLastSuccess.Set(float64(updated.Unix()))
		c.logger.Info("feed updated", "trigger", trigger, "seq", seq, "records", count)
	default:
		c.metrics.FeedSuperseded.Inc()
		c.logger.Debug("discarding superseded fetch result", "trigger", trigger, "seq", seq)
	}

	c.publish()
}

func (c *Controller) newNotice(kind domain.NoticeKind, msg string) *domain.Notice {
	return &domain.Notice{Kind: kind, Message: msg, At: c.clock.Now()}
}

// publish sends the current state to every subscriber, replacing any value
// the subscriber has not read yet.
func (c *Controller) publish() {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	if len(c.subs) == 0 {
		return
	}
	state := c.Snapshot()
	for _, ch := range c.subs {
		select {
		case ch <- state.Clone():
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- state.Clone():
		default:
		}
	}
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrMalformedPayload):
		return "malformed"
	default:
		return "transport_error"
	}
}
