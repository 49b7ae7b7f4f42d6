package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/expl-one/livestats/internal/binding"
)

// FeedMsg carries the latest binding views into the update loop.
type FeedMsg struct {
	Aggregate    binding.AggregateView
	HasAggregate bool
	Projects     map[string]binding.ProjectView
}

// Feed collects binding callbacks and hands them to the program. Callbacks
// never block: views are coalesced and the program reads the latest ones.
type Feed struct {
	mu           sync.Mutex
	aggregate    binding.AggregateView
	hasAggregate bool
	projects     map[string]binding.ProjectView
	dirty        chan struct{}
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{
		projects: make(map[string]binding.ProjectView),
		dirty:    make(chan struct{}, 1),
	}
}

// Aggregate is an AggregateBinding callback.
func (f *Feed) Aggregate(v binding.AggregateView) {
	f.mu.Lock()
	f.aggregate, f.hasAggregate = v, true
	f.mu.Unlock()
	f.signal()
}

// Project is a ProjectBinding callback.
func (f *Feed) Project(v binding.ProjectView) {
	f.mu.Lock()
	f.projects[v.Project] = v
	f.mu.Unlock()
	f.signal()
}

func (f *Feed) signal() {
	select {
	case f.dirty <- struct{}{}:
	default:
	}
}

// Snapshot returns the latest views.
func (f *Feed) Snapshot() FeedMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	projects := make(map[string]binding.ProjectView, len(f.projects))
	for k, v := range f.projects {
		projects[k] = v
	}
	return FeedMsg{Aggregate: f.aggregate, HasAggregate: f.hasAggregate, Projects: projects}
}

// Wait returns a command that delivers the next FeedMsg.
func (f *Feed) Wait() tea.Cmd {
	return func() tea.Msg {
		<-f.dirty
		return f.Snapshot()
	}
}
