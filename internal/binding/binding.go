// Package binding turns the shared stats client into per-widget views. A
// ProjectBinding follows one tracked entity, an AggregateBinding follows the
// ecosystem-wide rollup and flags fields that just changed.
//
// Callbacks run on the goroutine that delivered the update and must not call
// Pull on the client or block for long.
package binding

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/expl-one/livestats/internal/model"
	"github.com/expl-one/livestats/internal/statscache"
	"github.com/expl-one/livestats/internal/statsync"
)

// Client is the part of statsync.Client a binding depends on.
type Client interface {
	Connect() *statsync.Connection
	Pull(ctx context.Context) error
	Fresh() bool
	Cache() *statscache.Cache
	SubscribeToUpdates(fn func(model.StatsUpdate)) func()
	SubscribeToConnectionState(fn func(model.ConnectionState)) func()
}

type options struct {
	now         func() time.Time // derived day counts only
	highlight   time.Duration
	pullTimeout time.Duration
}

// Option customises a binding.
type Option func(*options)

// WithClock replaces time.Now for derived day counts.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithHighlight sets how long a changed aggregate field stays flagged.
func WithHighlight(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.highlight = d
		}
	}
}

// WithPullTimeout bounds the initial pull issued on activation.
func WithPullTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pullTimeout = d
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		now:         time.Now,
		highlight:   model.DefaultHighlight,
		pullTimeout: model.DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// emitter serialises view delivery and drops everything after close.
type emitter[V any] struct {
	mu     sync.Mutex
	closed atomic.Bool
	fn     func(V)
}

func (e *emitter[V]) emit(view func() V) {
	if e.fn == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed.Load() {
		return
	}
	e.fn(view())
}

// close reports whether this call did the closing.
func (e *emitter[V]) close() bool {
	return e.closed.CompareAndSwap(false, true)
}

// startPull runs the activation pull in the background and calls done with
// its result. The returned func cancels it.
func startPull(c Client, timeout time.Duration, done func(error)) context.CancelFunc {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	go func() {
		defer cancel()
		done(c.Pull(ctx))
	}()
	return cancel
}
