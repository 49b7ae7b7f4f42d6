package statsync

import (
	"sync"
	"sync/atomic"
)

type subscriber[T any] struct {
	fn     func(T)
	active atomic.Bool
}

// registry is a set of callbacks. publish works on a snapshot, so callbacks
// may subscribe or unsubscribe while being invoked. Unsubscribing does not
// wait for a call already running on another goroutine; it only keeps every
// publish that starts afterwards from reaching the callback.
type registry[T any] struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*subscriber[T]
}

func (r *registry[T]) add(fn func(T)) func() {
	s := &subscriber[T]{fn: fn}
	s.active.Store(true)

	r.mu.Lock()
	if r.subs == nil {
		r.subs = make(map[uint64]*subscriber[T])
	}
	r.nextID++
	id := r.nextID
	r.subs[id] = s
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.active.Store(false)
			r.mu.Lock()
			delete(r.subs, id)
			r.mu.Unlock()
		})
	}
}

func (r *registry[T]) publish(v T) {
	r.mu.Lock()
	snapshot := make([]*subscriber[T], 0, len(r.subs))
	for _, s := range r.subs {
		snapshot = append(snapshot, s)
	}
	r.mu.Unlock()

	for _, s := range snapshot {
		if s.active.Load() {
			s.fn(v)
		}
	}
}

func (r *registry[T]) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}
