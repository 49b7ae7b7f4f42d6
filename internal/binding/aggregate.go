package binding

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/expl-one/livestats/internal/model"
)

// Field names one tracked aggregate field.
type Field int

const (
	FieldLastUpdate Field = iota
	FieldToday
	FieldThisWeek
	FieldThisMonth
	FieldThisYear
	FieldTotal

	numFields
)

// Fields lists the tracked fields in display order.
var Fields = [numFields]Field{FieldLastUpdate, FieldToday, FieldThisWeek, FieldThisMonth, FieldThisYear, FieldTotal}

func (f Field) String() string {
	switch f {
	case FieldLastUpdate:
		return "lastUpdate"
	case FieldToday:
		return "today"
	case FieldThisWeek:
		return "thisWeek"
	case FieldThisMonth:
		return "thisMonth"
	case FieldThisYear:
		return "thisYear"
	case FieldTotal:
		return "total"
	default:
		return "unknown"
	}
}

// Label is the human-readable caption for f.
func (f Field) Label() string {
	switch f {
	case FieldLastUpdate:
		return "Last update"
	case FieldToday:
		return "Today"
	case FieldThisWeek:
		return "This week"
	case FieldThisMonth:
		return "This month"
	case FieldThisYear:
		return "This year"
	case FieldTotal:
		return "Total"
	default:
		return ""
	}
}

func fieldValue(a model.AggregateStats, f Field) string {
	switch f {
	case FieldLastUpdate:
		return a.LastUpdate
	case FieldToday:
		return strconv.FormatInt(a.Today, 10)
	case FieldThisWeek:
		return strconv.FormatInt(a.ThisWeek, 10)
	case FieldThisMonth:
		return strconv.FormatInt(a.ThisMonth, 10)
	case FieldThisYear:
		return strconv.FormatInt(a.ThisYear, 10)
	case FieldTotal:
		return strconv.FormatInt(a.Total, 10)
	default:
		return ""
	}
}

// AggregateView is what the stats strip renders.
type AggregateView struct {
	Stats model.AggregateStats
	// Loading is true until a value arrives or the activation pull gives up.
	Loading bool
	// Placeholder is true when loading ended without any value.
	Placeholder bool
	Changed     [numFields]bool
	State       model.ConnectionState
}

// IsChanged reports whether f changed within the highlight window.
func (v AggregateView) IsChanged(f Field) bool {
	if f < 0 || f >= numFields {
		return false
	}
	return v.Changed[f]
}

// Value returns the display text for f. The last update reads "-" until known.
func (v AggregateView) Value(f Field) string {
	s := fieldValue(v.Stats, f)
	if f == FieldLastUpdate && (s == "" || v.Loading || v.Placeholder) {
		return "-"
	}
	return s
}

// AggregateBinding follows the aggregate rollup. Each binding keeps its own
// previous value, so two bindings created at different times may disagree on
// what just changed.
type AggregateBinding struct {
	client Client
	opts   options

	mu          sync.Mutex
	prev        model.AggregateStats
	hasPrev     bool
	loading     bool
	placeholder bool
	changed     [numFields]bool
	timers      [numFields]*time.Timer
	gen         [numFields]uint64
	state       model.ConnectionState

	out              emitter[AggregateView]
	unsubscribe      func()
	unsubscribeState func()
	cancelPull       context.CancelFunc
}

// NewAggregate activates an aggregate binding. onChange may be nil.
func NewAggregate(c Client, onChange func(AggregateView), opts ...Option) *AggregateBinding {
	b := &AggregateBinding{
		client: c,
		opts:   buildOptions(opts),
		out:    emitter[AggregateView]{fn: onChange},
	}

	if agg, ok := c.Cache().Aggregate(); ok {
		b.prev, b.hasPrev = agg, true
	}
	b.loading = !b.hasPrev

	c.Connect()
	b.unsubscribeState = c.SubscribeToConnectionState(func(s model.ConnectionState) {
		b.mu.Lock()
		b.state = s
		b.mu.Unlock()
		b.out.emit(b.View)
	})
	b.unsubscribe = c.SubscribeToUpdates(func(u model.StatsUpdate) {
		if u.Stats.Empty() {
			return
		}
		if agg, ok := c.Cache().Aggregate(); ok {
			b.observe(agg)
		}
	})

	b.mu.Lock()
	needPull := !b.hasPrev || !c.Fresh()
	b.mu.Unlock()
	if needPull {
		b.cancelPull = startPull(c, b.opts.pullTimeout, b.pullDone)
	}
	return b
}

func (b *AggregateBinding) pullDone(err error) {
	b.mu.Lock()
	if !b.hasPrev {
		// a pull that reached the network has already been observed through
		// the update subscription; anything else leaves the placeholder
		if agg, ok := b.client.Cache().Aggregate(); ok {
			b.prev, b.hasPrev = agg, true
		} else {
			b.placeholder = true
		}
	}
	b.loading = false
	b.mu.Unlock()

	if err != nil {
		log.Debug().Err(err).Msg("initial aggregate pull failed")
	}
	b.out.emit(b.View)
}

func (b *AggregateBinding) observe(agg model.AggregateStats) {
	b.mu.Lock()
	if b.out.closed.Load() {
		b.mu.Unlock()
		return
	}
	if b.hasPrev {
		for _, f := range Fields {
			if fieldValue(b.prev, f) != fieldValue(agg, f) {
				b.flag(f)
			}
		}
	}
	b.prev, b.hasPrev = agg, true
	b.loading, b.placeholder = false, false
	b.mu.Unlock()

	b.out.emit(b.View)
}

// flag marks f changed and (re)starts its clear timer. Callers hold b.mu.
func (b *AggregateBinding) flag(f Field) {
	b.changed[f] = true
	b.gen[f]++
	gen := b.gen[f]
	if t := b.timers[f]; t != nil {
		t.Stop()
	}
	b.timers[f] = time.AfterFunc(b.opts.highlight, func() { b.unflag(f, gen) })
}

func (b *AggregateBinding) unflag(f Field, gen uint64) {
	b.mu.Lock()
	if b.out.closed.Load() || b.gen[f] != gen {
		b.mu.Unlock()
		return
	}
	b.changed[f] = false
	b.timers[f] = nil
	b.mu.Unlock()

	b.out.emit(b.View)
}

// View returns the current aggregate view.
func (b *AggregateBinding) View() AggregateView {
	b.mu.Lock()
	defer b.mu.Unlock()
	return AggregateView{
		Stats:       b.prev,
		Loading:     b.loading,
		Placeholder: b.placeholder,
		Changed:     b.changed,
		State:       b.state,
	}
}

// Close unsubscribes and cancels every pending highlight timer. It is
// idempotent; no onChange call starts after it returns.
func (b *AggregateBinding) Close() {
	if !b.out.close() {
		return
	}
	b.unsubscribe()
	b.unsubscribeState()
	if b.cancelPull != nil {
		b.cancelPull()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i, t := range b.timers {
		if t != nil {
			t.Stop()
			b.timers[i] = nil
		}
	}
}
