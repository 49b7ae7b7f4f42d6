// Package statsync is the process-wide stats client. It owns the one
// connection to the stats service, applies every incoming update to the cache
// exactly once and then fans it out to subscribers.
package statsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/expl-one/livestats/internal/model"
	"github.com/expl-one/livestats/internal/statscache"
)

// ErrClosed is returned by Pull after Close.
var ErrClosed = errors.New("statsync: client closed")

// Connection describes the shared channel. Connect returns the same value to
// every caller.
type Connection struct {
	Transport string
	OpenedAt  time.Time
}

// Client is constructed once at startup and handed to every binding.
type Client struct {
	source  model.StatsSource
	fetcher model.SnapshotFetcher
	cache   *statscache.Cache
	now     func() time.Time
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	connectOnce sync.Once
	conn        *Connection
	done        chan struct{}
	started     atomic.Bool
	closed      atomic.Bool

	// applyMu serialises cache writes with the fan-out that follows them, so
	// updates reach the cache and subscribers in arrival order.
	applyMu    sync.Mutex
	updateSubs registry[model.StatsUpdate]

	// stateMu serialises transitions with state subscription, so a new
	// subscriber sees the current state before any later transition. state is
	// written under stateMu and readable without it.
	stateMu   sync.Mutex
	state     atomic.Int32
	stateSubs registry[model.ConnectionState]

	pulls     singleflight.Group
	roundTrip atomic.Int64
}

// Option customises a Client.
type Option func(*Client)

// WithClock replaces time.Now for staleness checks and pull stamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithRequestTimeout bounds each round trip of Pull. The bound belongs to the
// client, not to the callers waiting on the pull.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New wires a client. source delivers pushed (or polled) updates, fetcher
// serves pulls, cache is the shared StatsCache.
func New(source model.StatsSource, fetcher model.SnapshotFetcher, cache *statscache.Cache, opts ...Option) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		source:  source,
		fetcher: fetcher,
		cache:   cache,
		now:     time.Now,
		timeout: model.DefaultRequestTimeout,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	c.state.Store(int32(model.StateDisconnected))
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cache returns the shared cache.
func (c *Client) Cache() *statscache.Cache { return c.cache }

// Connect opens the shared connection on first call and returns it. Later
// calls, from any goroutine, return the same Connection without side effects.
// The connection lives until Close; unsubscribing never tears it down.
func (c *Client) Connect() *Connection {
	c.connectOnce.Do(func() {
		c.conn = &Connection{Transport: c.source.Name(), OpenedAt: c.now()}
		if c.closed.Load() {
			close(c.done)
			return
		}
		c.started.Store(true)
		c.HandleState(model.StateConnecting)
		log.Info().Str("transport", c.conn.Transport).Msg("opening stats connection")
		go func() {
			defer close(c.done)
			if err := c.source.Run(c.ctx, c); err != nil {
				log.Error().Err(err).Str("transport", c.conn.Transport).Msg("stats source stopped")
			}
		}()
	})
	return c.conn
}

// State returns the current connection state.
func (c *Client) State() model.ConnectionState {
	return model.ConnectionState(c.state.Load())
}

// SubscribeToUpdates registers fn for every update event. The returned func
// unsubscribes and is idempotent. Once it returns, no later delivery reaches
// fn; a delivery already in progress on another goroutine may still complete.
// It may be called from inside fn.
func (c *Client) SubscribeToUpdates(fn func(model.StatsUpdate)) func() {
	return c.updateSubs.add(fn)
}

// SubscribeToConnectionState registers fn, calls it immediately with the
// current state and again on every transition.
func (c *Client) SubscribeToConnectionState(fn func(model.ConnectionState)) func() {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	unsubscribe := c.stateSubs.add(fn)
	fn(c.State())
	return unsubscribe
}

// HandleUpdate applies u to the cache once, then fans it out.
// It implements model.UpdateHandler for the active source.
func (c *Client) HandleUpdate(u model.StatsUpdate) {
	if u.ReceivedAt.IsZero() {
		u.ReceivedAt = c.now()
	}

	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	c.apply(u)
	c.updateSubs.publish(u)
}

func (c *Client) apply(u model.StatsUpdate) {
	c.cache.Apply(u)
	if u.Full {
		c.cache.MarkPulled(u.ReceivedAt)
	}
	if !u.Stats.Empty() {
		if agg, ok := c.cache.Aggregate(); ok && !agg.Consistent() {
			log.Warn().
				Int64("today", agg.Today).
				Int64("thisWeek", agg.ThisWeek).
				Int64("thisMonth", agg.ThisMonth).
				Int64("thisYear", agg.ThisYear).
				Int64("total", agg.Total).
				Msg("aggregate rollups do not nest")
		}
	}
}

// HandleState records a transition and notifies subscribers. Repeated states
// are collapsed.
func (c *Client) HandleState(s model.ConnectionState) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	prev := c.State()
	if s == prev {
		return
	}
	log.Debug().Str("from", prev.String()).Str("to", s.String()).Msg("connection state")
	c.state.Store(int32(s))
	c.stateSubs.publish(s)
}

// Pull makes sure the cache holds a snapshot younger than its TTL. Within the
// window it returns without a round trip; concurrent callers share one
// request. A successful pull replaces the entity map and is fanned out like a
// pushed update. On failure the cache keeps its last known values.
//
// ctx only bounds how long this caller waits. The shared request runs on the
// client's own context, so a caller giving up never fails the pull for the
// others.
func (c *Client) Pull(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if c.cache.Fresh(c.now()) {
		return nil
	}
	ch := c.pulls.DoChan("snapshot", func() (any, error) {
		return nil, c.fetch()
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return fmt.Errorf("statsync: pull: %w", ctx.Err())
	}
}

func (c *Client) fetch() error {
	if c.cache.Fresh(c.now()) {
		return nil
	}
	ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	defer cancel()

	c.roundTrip.Add(1)
	snap, err := c.fetcher.FetchSnapshot(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("stats pull failed")
		return fmt.Errorf("statsync: pull: %w", err)
	}
	u := snap.Update(c.now())

	c.applyMu.Lock()
	defer c.applyMu.Unlock()
	c.apply(u)
	c.cache.MarkPulled(u.ReceivedAt)
	c.updateSubs.publish(u)
	return nil
}

// Fresh reports whether a Pull right now would be served from the cache.
func (c *Client) Fresh() bool { return c.cache.Fresh(c.now()) }

// RoundTrips returns how many pulls reached the network.
func (c *Client) RoundTrips() int64 { return c.roundTrip.Load() }

// Close stops the source and waits for it to return. It is meant for process
// shutdown; bindings never call it.
func (c *Client) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.cancel()
	if c.started.Load() {
		<-c.done
	}
}
