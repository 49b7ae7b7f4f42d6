package binding

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/expl-one/livestats/internal/model"
	"github.com/expl-one/livestats/internal/timestamp"
)

// Resolver maps a project identifier to an entity key.
type Resolver interface {
	Resolve(project string) string
}

// ProjectView is what a project card renders.
type ProjectView struct {
	Project string
	Key     string

	// Known is false until the cache holds an entry for Key.
	Known bool
	// Loading is true while the activation pull is in flight and nothing is known.
	Loading bool

	CommitCount       int64
	DaysSinceCreation int64
	DaysSinceStart    int64
	LastCommitDate    string
	// DaysSinceLastCommit is nil when the last commit date is missing or unparseable.
	DaysSinceLastCommit *int64
	IsActive            bool
}

// ProjectBinding follows the stats of one project.
type ProjectBinding struct {
	client  Client
	project string
	key     string
	opts    options

	mu      sync.Mutex
	loading bool

	out         emitter[ProjectView]
	unsubscribe func()
	cancelPull  context.CancelFunc
}

// NewProject activates a binding for project: it makes sure the shared
// connection exists, starts a pull when the cache is stale and subscribes to
// updates for the resolved key. onChange may be nil.
func NewProject(c Client, r Resolver, project string, onChange func(ProjectView), opts ...Option) *ProjectBinding {
	b := &ProjectBinding{
		client:  c,
		project: project,
		key:     r.Resolve(project),
		opts:    buildOptions(opts),
		out:     emitter[ProjectView]{fn: onChange},
	}

	c.Connect()
	b.unsubscribe = c.SubscribeToUpdates(func(u model.StatsUpdate) {
		if !u.HasRepo(b.key) {
			return
		}
		b.out.emit(b.View)
	})

	if !c.Fresh() {
		b.mu.Lock()
		b.loading = true
		b.mu.Unlock()
		b.cancelPull = startPull(c, b.opts.pullTimeout, b.pullDone)
	}
	return b
}

func (b *ProjectBinding) pullDone(err error) {
	if err != nil {
		log.Debug().Err(err).Str("project", b.project).Msg("initial pull failed")
	}
	b.mu.Lock()
	b.loading = false
	b.mu.Unlock()
	b.out.emit(b.View)
}

// Key returns the resolved entity key.
func (b *ProjectBinding) Key() string { return b.key }

// View derives the current view from the cache.
func (b *ProjectBinding) View() ProjectView {
	b.mu.Lock()
	loading := b.loading
	b.mu.Unlock()

	v := ProjectView{Project: b.project, Key: b.key}
	rs, ok := b.client.Cache().Entity(b.key)
	if !ok {
		v.Loading = loading
		return v
	}
	v.Known = true
	v.CommitCount = rs.Commits
	v.DaysSinceCreation = rs.DaysSinceCreation
	v.DaysSinceStart = rs.DaysSinceCreation
	v.LastCommitDate = rs.LastCommitDate
	v.IsActive = rs.Commits > 0
	v.DaysSinceLastCommit = daysSince(rs.LastCommitDate, b.opts.now())
	return v
}

// Close unsubscribes. It is idempotent and leaves the shared connection open.
func (b *ProjectBinding) Close() {
	if !b.out.close() {
		return
	}
	b.unsubscribe()
	if b.cancelPull != nil {
		b.cancelPull()
	}
}

func daysSince(date string, now time.Time) *int64 {
	t, ok := timestamp.Parse(date)
	if !ok || timestamp.IsUnset(t) {
		return nil
	}
	days := int64(math.Floor(now.Sub(t).Hours() / 24))
	return &days
}
