package statsserver

import (
	"context"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/expl-one/livestats/internal/model"
)

// Simulator publishes a commit to a random active repository on every tick.
type Simulator struct {
	srv      *Server
	interval time.Duration
	rng      *rand.Rand
	now      func() time.Time
}

// NewSimulator creates a simulator for srv. seed makes the sequence repeatable.
func NewSimulator(srv *Server, interval time.Duration, seed uint64) *Simulator {
	return &Simulator{
		srv:      srv,
		interval: interval,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now:      time.Now,
	}
}

// Run ticks until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Step()
		}
	}
}

// Step publishes one simulated commit. It reports false when there is no
// active repository to commit to.
func (s *Simulator) Step() bool {
	snap := s.srv.Snapshot()
	var keys []string
	for k, rs := range snap.Repos {
		if rs.Commits > 0 {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return false
	}
	slices.Sort(keys)
	key := keys[s.rng.IntN(len(keys))]

	now := s.now().UTC()
	rs := snap.Repos[key]
	rs.Commits++
	rs.LastCommitDate = now.Format(time.RFC3339)

	agg := snap.AggregatePatch.Apply(model.AggregateStats{}, nil)
	agg.Today++
	agg.ThisWeek++
	agg.ThisMonth++
	agg.ThisYear++
	agg.Total++
	agg.LastUpdate = now.Format("2006-01-02 15:04")
	patch := model.PatchOf(agg)
	patch.Timestamp = now.UnixMilli()

	s.srv.Publish(model.StatsUpdate{
		Stats:     patch,
		RepoStats: map[string]model.RepoStats{key: rs},
	})
	log.Debug().Str("repo", key).Int64("commits", rs.Commits).Msg("simulated commit")
	return true
}
