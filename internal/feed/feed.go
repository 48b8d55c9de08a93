// Package feed owns the current registry snapshot. It follows a store
// subscription, normalizes every delivery once and swaps the snapshot
// wholesale, so readers never see a partially applied update.
package feed

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"giftregistry/internal/core"
	"giftregistry/internal/log"
	"giftregistry/internal/metrics"
	"giftregistry/internal/store"
)

// Snapshot is an immutable view of the registry. Records must not be
// modified by readers.
type Snapshot struct {
	// Version increases by one for every applied delivery. Zero means no
	// data has arrived yet.
	Version   uint64
	Records   []core.GiftRecord
	UpdatedAt time.Time
	// LastError is the most recent subscription or reload failure since the
	// last successful delivery.
	LastError error
}

// Ready reports whether at least one delivery has been applied.
func (s *Snapshot) Ready() bool { return s.Version > 0 }

type Feed struct {
	source  store.Subscriber
	lister  store.Lister
	logger  *log.Logger
	metrics *metrics.Metrics

	current atomic.Pointer[Snapshot]

	mu        sync.Mutex
	listeners []func(*Snapshot)

	reloads singleflight.Group

	retryMin time.Duration
	retryMax time.Duration
	now      func() time.Time
}

// Option configures a Feed.
type Option func(*Feed)

// WithRetry sets the resubscribe backoff bounds.
func WithRetry(lo, hi time.Duration) Option {
	return func(f *Feed) {
		f.retryMin, f.retryMax = lo, hi
	}
}

// WithMetrics records snapshot and error counts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Feed) { f.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(f *Feed) { f.now = now }
}

// New creates a feed. lister may be nil when Reload is never used.
func New(source store.Subscriber, lister store.Lister, logger *log.Logger, opts ...Option) *Feed {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	f := &Feed{
		source:   source,
		lister:   lister,
		logger:   logger.WithComponent(log.ComponentFeed),
		retryMin: time.Second,
		retryMax: 30 * time.Second,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.current.Store(&Snapshot{Records: []core.GiftRecord{}})
	return f
}

// Current returns the latest snapshot. It never returns nil.
func (f *Feed) Current() *Snapshot {
	return f.current.Load()
}

// OnChange registers fn to run after every applied delivery, in order.
func (f *Feed) OnChange(fn func(*Snapshot)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
}

// Run follows the subscription until ctx is done, resubscribing with
// exponential backoff whenever it breaks.
func (f *Feed) Run(ctx context.Context) error {
	delay := f.retryMin
	for {
		err := f.source.Subscribe(ctx, f.deliver, f.fail)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			// Subscription ended without an error; start over immediately.
			delay = f.retryMin
			continue
		}
		f.logger.WarnContext(ctx, "Snapshot subscription ended, retrying",
			log.FieldError, err, "retry_in", delay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = min(delay*2, f.retryMax)
	}
}

// Reload pulls the registry through the lister and applies it. Concurrent
// calls share one store read. On failure the previous records are kept.
// A read that finishes after a newer delivery has been applied is dropped
// and the current snapshot is returned instead.
func (f *Feed) Reload(ctx context.Context) (*Snapshot, error) {
	if f.lister == nil {
		return f.Current(), fmt.Errorf("reload: no lister configured")
	}
	v, err, _ := f.reloads.Do("reload", func() (any, error) {
		base := f.Current().Version
		records, err := f.lister.ListGifts(ctx)
		if err != nil {
			err = fmt.Errorf("reload gifts: %w", err)
			f.fail(err)
			return nil, err
		}
		next, applied := f.applyIf(records, base)
		if !applied {
			f.logger.DebugContext(ctx, "Stale reload dropped",
				"read_at_version", base, log.FieldVersion, next.Version)
		}
		return next, nil
	})
	if err != nil {
		return f.Current(), err
	}
	return v.(*Snapshot), nil
}

func (f *Feed) deliver(records []core.GiftRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applyLocked(records)
}

// applyIf applies records only while the current version is still base.
func (f *Feed) applyIf(records []core.GiftRecord, base uint64) (*Snapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if prev := f.current.Load(); prev.Version != base {
		return prev, false
	}
	return f.applyLocked(records), true
}

func (f *Feed) applyLocked(records []core.GiftRecord) *Snapshot {
	prev := f.current.Load()
	next := &Snapshot{
		Version:   prev.Version + 1,
		Records:   core.NormalizeRecords(records),
		UpdatedAt: f.now(),
	}
	f.current.Store(next)

	if f.metrics != nil {
		f.metrics.Snapshots.Inc()
		f.metrics.SnapshotRecords.Set(float64(len(next.Records)))
	}
	f.logger.Debug("Snapshot applied", log.FieldVersion, next.Version, log.FieldRecords, len(next.Records))

	for _, fn := range f.listeners {
		fn(next)
	}
	return next
}

// fail records err without touching the current records.
func (f *Feed) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev := f.current.Load()
	next := *prev
	next.LastError = err
	f.current.Store(&next)

	if f.metrics != nil {
		f.metrics.SubscriptionErrors.Inc()
	}
	f.logger.Error("Snapshot delivery failed, keeping last known records",
		log.FieldError, err, log.FieldVersion, prev.Version, log.FieldRecords, len(prev.Records))
}
