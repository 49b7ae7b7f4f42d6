package statsync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expl-one/livestats/internal/model"
	"github.com/expl-one/livestats/internal/statscache"
)

type fakeSource struct {
	runs    atomic.Int32
	started chan model.UpdateHandler
}

func newFakeSource() *fakeSource {
	return &fakeSource{started: make(chan model.UpdateHandler, 8)}
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Run(ctx context.Context, h model.UpdateHandler) error {
	f.runs.Add(1)
	f.started <- h
	<-ctx.Done()
	return nil
}

type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	snap  *model.Snapshot
	err   error
	delay time.Duration

	// gate, when set, holds every fetch until it is closed or ctx is done.
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeFetcher) FetchSnapshot(ctx context.Context) (*model.Snapshot, error) {
	f.mu.Lock()
	f.calls++
	snap, err, delay, gate := f.snap, f.err, f.delay, f.gate
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if gate != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return snap, err
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func i64(v int64) *int64 { return &v }

func pumpSnapshot(commits int64) *model.Snapshot {
	return &model.Snapshot{
		AggregatePatch: model.AggregatePatch{Today: i64(1), Total: i64(10)},
		Repos: map[string]model.RepoStats{
			"expl-one-pump": {Name: "expl-one-pump", Commits: commits},
		},
	}
}

func newTestClient(t *testing.T, fetcher *fakeFetcher, opts ...Option) (*Client, *fakeSource) {
	t.Helper()
	src := newFakeSource()
	c := New(src, fetcher, statscache.New(60*time.Second), opts...)
	t.Cleanup(c.Close)
	return c, src
}

func TestConnect_OpensExactlyOnce(t *testing.T) {
	c, src := newTestClient(t, &fakeFetcher{})

	const callers = 16
	conns := make([]*Connection, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conns[i] = c.Connect()
		}(i)
	}
	wg.Wait()

	<-src.started
	for _, conn := range conns {
		assert.Same(t, conns[0], conn)
	}
	assert.Equal(t, int32(1), src.runs.Load())
	assert.Equal(t, "fake", conns[0].Transport)
}

func TestHandleUpdate_AppliesOnceAndFansOut(t *testing.T) {
	c, _ := newTestClient(t, &fakeFetcher{})

	const subscribers = 5
	var counts [subscribers]atomic.Int32
	for i := 0; i < subscribers; i++ {
		i := i
		c.SubscribeToUpdates(func(u model.StatsUpdate) {
			// The cache already holds the update when subscribers run.
			rs, ok := c.Cache().Entity("A")
			assert.True(t, ok)
			assert.Equal(t, int64(7), rs.Commits)
			counts[i].Add(1)
		})
	}

	c.HandleUpdate(model.StatsUpdate{RepoStats: map[string]model.RepoStats{"A": {Name: "A", Commits: 7}}})

	for i := range counts {
		assert.Equal(t, int32(1), counts[i].Load(), "subscriber %d", i)
	}
}

func TestHandleUpdate_CacheWrittenOnceRegardlessOfSubscribers(t *testing.T) {
	c, _ := newTestClient(t, &fakeFetcher{})
	c.Cache().SetAggregate(model.AggregateStats{Today: 1, Total: 1})

	for i := 0; i < 3; i++ {
		c.SubscribeToUpdates(func(model.StatsUpdate) {})
	}
	c.HandleUpdate(model.StatsUpdate{Stats: &model.AggregatePatch{Today: i64(2)}})

	agg, ok := c.Cache().Aggregate()
	require.True(t, ok)
	assert.Equal(t, int64(2), agg.Today)
	assert.Equal(t, int64(1), agg.Total)
}

func TestUnsubscribe_Silences(t *testing.T) {
	c, _ := newTestClient(t, &fakeFetcher{})

	var calls atomic.Int32
	unsubscribe := c.SubscribeToUpdates(func(model.StatsUpdate) { calls.Add(1) })

	c.HandleUpdate(model.StatsUpdate{})
	unsubscribe()
	unsubscribe()
	c.HandleUpdate(model.StatsUpdate{})
	c.HandleUpdate(model.StatsUpdate{})

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 0, c.updateSubs.len())
}

func TestUnsubscribe_FromInsideCallback(t *testing.T) {
	c, _ := newTestClient(t, &fakeFetcher{})

	var calls atomic.Int32
	var unsubscribe func()
	unsubscribe = c.SubscribeToUpdates(func(model.StatsUpdate) {
		calls.Add(1)
		unsubscribe()
	})

	c.HandleUpdate(model.StatsUpdate{})
	c.HandleUpdate(model.StatsUpdate{})

	assert.Equal(t, int32(1), calls.Load())
}

func TestUnsubscribe_NoDeliveryStartsAfterReturn(t *testing.T) {
	c, _ := newTestClient(t, &fakeFetcher{})

	var seq, cutoff atomic.Int64
	cutoff.Store(-1)
	var mu sync.Mutex
	var seen []int64

	unsubscribe := c.SubscribeToUpdates(func(u model.StatsUpdate) {
		mu.Lock()
		seen = append(seen, u.ReceivedAt.UnixNano())
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				n := seq.Add(1)
				c.HandleUpdate(model.StatsUpdate{ReceivedAt: time.Unix(0, n)})
			}
		}()
	}

	time.Sleep(time.Millisecond)
	unsubscribe()
	cutoff.Store(seq.Load())
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for _, n := range seen {
		assert.LessOrEqual(t, n, cutoff.Load(), "delivery %d started after unsubscribe returned", n)
	}
}

func TestHandleUpdate_LastWriteWins(t *testing.T) {
	c, _ := newTestClient(t, &fakeFetcher{})
	c.HandleUpdate(model.StatsUpdate{RepoStats: map[string]model.RepoStats{"A": {Name: "A", Commits: 5}}})

	c.HandleUpdate(model.StatsUpdate{RepoStats: map[string]model.RepoStats{"A": {Name: "A", Commits: 7}}})
	c.HandleUpdate(model.StatsUpdate{RepoStats: map[string]model.RepoStats{"A": {Name: "A", Commits: 6}}})

	rs, _ := c.Cache().Entity("A")
	assert.Equal(t, int64(6), rs.Commits)
}

func TestSubscribeToConnectionState_ImmediateAndTransitions(t *testing.T) {
	c, src := newTestClient(t, &fakeFetcher{})

	var mu sync.Mutex
	var seen []model.ConnectionState
	record := func(s model.ConnectionState) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	}

	c.SubscribeToConnectionState(record)
	c.Connect()
	h := <-src.started
	h.HandleState(model.StateConnected)
	h.HandleState(model.StateConnected)
	h.HandleState(model.StateDisconnected)

	late := model.ConnectionState(-1)
	c.SubscribeToConnectionState(func(s model.ConnectionState) { late = s })

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []model.ConnectionState{
		model.StateDisconnected,
		model.StateConnecting,
		model.StateConnected,
		model.StateDisconnected,
	}, seen)
	assert.Equal(t, model.StateDisconnected, late)
}

func TestPull_StalenessWindow(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	fetcher := &fakeFetcher{snap: pumpSnapshot(10)}
	c, _ := newTestClient(t, fetcher, WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, c.Pull(ctx))
	clock.Advance(10 * time.Second)
	require.NoError(t, c.Pull(ctx))
	assert.Equal(t, 1, fetcher.Calls())

	clock.Advance(60 * time.Second)
	require.NoError(t, c.Pull(ctx))
	assert.Equal(t, 2, fetcher.Calls())
	assert.Equal(t, int64(2), c.RoundTrips())
}

func TestPull_ConcurrentCallersShareOneRequest(t *testing.T) {
	fetcher := &fakeFetcher{snap: pumpSnapshot(10), delay: 50 * time.Millisecond}
	c, _ := newTestClient(t, fetcher)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Pull(context.Background()))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, fetcher.Calls())
}

func TestPull_CallerGivingUpDoesNotFailOthers(t *testing.T) {
	fetcher := &fakeFetcher{
		snap:    pumpSnapshot(10),
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	c, _ := newTestClient(t, fetcher)

	first, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() { firstErr <- c.Pull(first) }()

	select {
	case <-fetcher.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("fetch never started")
	}

	secondErr := make(chan error, 1)
	go func() { secondErr <- c.Pull(context.Background()) }()

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(fetcher.gate)
	require.NoError(t, <-secondErr)

	rs, ok := c.Cache().Entity("expl-one-pump")
	require.True(t, ok)
	assert.Equal(t, int64(10), rs.Commits)
	assert.Equal(t, 1, fetcher.Calls())
}

func TestPull_RequestTimeoutBelongsToClient(t *testing.T) {
	fetcher := &fakeFetcher{
		snap:    pumpSnapshot(10),
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	c, _ := newTestClient(t, fetcher, WithRequestTimeout(20*time.Millisecond))

	err := c.Pull(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	_, ok := c.Cache().Entity("expl-one-pump")
	assert.False(t, ok)
}

func TestPull_PopulatesCacheAndFansOut(t *testing.T) {
	c, _ := newTestClient(t, &fakeFetcher{snap: pumpSnapshot(10)})

	var got model.StatsUpdate
	c.SubscribeToUpdates(func(u model.StatsUpdate) { got = u })

	require.NoError(t, c.Pull(context.Background()))

	rs, ok := c.Cache().Entity("expl-one-pump")
	require.True(t, ok)
	assert.Equal(t, int64(10), rs.Commits)
	agg, ok := c.Cache().Aggregate()
	require.True(t, ok)
	assert.Equal(t, int64(10), agg.Total)
	assert.True(t, got.Full)
	assert.True(t, got.HasRepo("expl-one-pump"))
}

func TestPull_FailureKeepsLastKnownValues(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	fetcher := &fakeFetcher{snap: pumpSnapshot(10)}
	c, _ := newTestClient(t, fetcher, WithClock(clock.Now))

	require.NoError(t, c.Pull(context.Background()))

	clock.Advance(2 * time.Minute)
	fetcher.mu.Lock()
	fetcher.err = errors.New("network down")
	fetcher.mu.Unlock()

	err := c.Pull(context.Background())
	require.Error(t, err)

	rs, ok := c.Cache().Entity("expl-one-pump")
	require.True(t, ok)
	assert.Equal(t, int64(10), rs.Commits)
}

func TestPushDoesNotExtendPullWindow(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	fetcher := &fakeFetcher{snap: pumpSnapshot(10)}
	c, _ := newTestClient(t, fetcher, WithClock(clock.Now))

	require.NoError(t, c.Pull(context.Background()))
	clock.Advance(59 * time.Second)
	c.HandleUpdate(model.StatsUpdate{RepoStats: map[string]model.RepoStats{"expl-one-pump": {Commits: 11}}})
	clock.Advance(2 * time.Second)

	require.NoError(t, c.Pull(context.Background()))
	assert.Equal(t, 2, fetcher.Calls())
}

func TestClose(t *testing.T) {
	c, src := newTestClient(t, &fakeFetcher{snap: pumpSnapshot(1)})
	c.Connect()
	<-src.started

	c.Close()
	c.Close()

	assert.ErrorIs(t, c.Pull(context.Background()), ErrClosed)
}
