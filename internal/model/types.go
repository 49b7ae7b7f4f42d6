package model

import (
	"encoding/json"
	"time"
)

// RepoStats is the last known snapshot for one tracked entity.
type RepoStats struct {
	Name              string `json:"name" yaml:"name"`
	Commits           int64  `json:"commits" yaml:"commits"`
	DaysSinceCreation int64  `json:"daysSinceCreation" yaml:"daysSinceCreation"`
	LastCommitDate    string `json:"lastCommitDate,omitempty" yaml:"lastCommitDate"` // ISO 8601, empty or epoch when there are no commits
	CreatedAt         string `json:"createdAt,omitempty" yaml:"createdAt"`
}

// AggregateStats is the ecosystem-wide commit rollup. Exactly one exists per process.
type AggregateStats struct {
	LastUpdate string `json:"lastUpdate" yaml:"lastUpdate"`
	Today      int64  `json:"today" yaml:"today"`
	ThisWeek   int64  `json:"thisWeek" yaml:"thisWeek"`
	ThisMonth  int64  `json:"thisMonth" yaml:"thisMonth"`
	ThisYear   int64  `json:"thisYear" yaml:"thisYear"`
	Total      int64  `json:"total" yaml:"total"`
	Timestamp  string `json:"timestamp,omitempty" yaml:"timestamp"` // producer event time, display only
}

// Consistent reports whether the rollups nest (total >= year >= month >= week >= today).
// The client never clamps; callers only log violations.
func (a AggregateStats) Consistent() bool {
	return a.Total >= a.ThisYear &&
		a.ThisYear >= a.ThisMonth &&
		a.ThisMonth >= a.ThisWeek &&
		a.ThisWeek >= a.Today &&
		a.Today >= 0
}

// AggregatePatch is an aggregate as received on the wire. Nil fields were absent
// from the payload and mean "no change".
type AggregatePatch struct {
	LastUpdate *string `json:"lastUpdate,omitempty"`
	Today      *int64  `json:"today,omitempty"`
	ThisWeek   *int64  `json:"thisWeek,omitempty"`
	ThisMonth  *int64  `json:"thisMonth,omitempty"`
	ThisYear   *int64  `json:"thisYear,omitempty"`
	Total      *int64  `json:"total,omitempty"`
	Timestamp  any     `json:"timestamp,omitempty"` // string or unix number depending on the producer
}

// Empty reports whether the patch carries no field at all.
func (p *AggregatePatch) Empty() bool {
	if p == nil {
		return true
	}
	return p.LastUpdate == nil && p.Today == nil && p.ThisWeek == nil &&
		p.ThisMonth == nil && p.ThisYear == nil && p.Total == nil && p.Timestamp == nil
}

// Apply returns prev with every present field of p written over it.
// The result is meant to replace the aggregate slot as a whole.
func (p *AggregatePatch) Apply(prev AggregateStats, formatTime func(any) (string, bool)) AggregateStats {
	if p == nil {
		return prev
	}
	next := prev
	if p.LastUpdate != nil {
		next.LastUpdate = *p.LastUpdate
	}
	if p.Today != nil {
		next.Today = *p.Today
	}
	if p.ThisWeek != nil {
		next.ThisWeek = *p.ThisWeek
	}
	if p.ThisMonth != nil {
		next.ThisMonth = *p.ThisMonth
	}
	if p.ThisYear != nil {
		next.ThisYear = *p.ThisYear
	}
	if p.Total != nil {
		next.Total = *p.Total
	}
	if p.Timestamp != nil && formatTime != nil {
		if s, ok := formatTime(p.Timestamp); ok {
			next.Timestamp = s
		}
	}
	return next
}

// PatchOf converts a full aggregate into a patch with every field present.
func PatchOf(a AggregateStats) *AggregatePatch {
	p := &AggregatePatch{
		LastUpdate: &a.LastUpdate,
		Today:      &a.Today,
		ThisWeek:   &a.ThisWeek,
		ThisMonth:  &a.ThisMonth,
		ThisYear:   &a.ThisYear,
		Total:      &a.Total,
	}
	if a.Timestamp != "" {
		p.Timestamp = a.Timestamp
	}
	return p
}

// StatsUpdate is the payload of one stats-update event. Every source produces
// this shape regardless of transport.
type StatsUpdate struct {
	Stats     *AggregatePatch      `json:"stats,omitempty"`
	RepoStats map[string]RepoStats `json:"repoStats"`

	// Full marks a complete snapshot (polled source); the entity map is
	// replaced instead of merged.
	Full bool `json:"-"`
	// ReceivedAt is stamped by the source when the event arrives.
	ReceivedAt time.Time `json:"-"`
}

// HasRepo reports whether the update carries an entry for key.
func (u StatsUpdate) HasRepo(key string) bool {
	_, ok := u.RepoStats[key]
	return ok
}

// Snapshot is the body returned by the pull endpoint: the aggregate fields at
// top level plus an optional repos map.
type Snapshot struct {
	AggregatePatch
	Repos map[string]RepoStats `json:"repos,omitempty"`
}

// Update converts a pulled snapshot into the common update shape.
func (s Snapshot) Update(receivedAt time.Time) StatsUpdate {
	agg := s.AggregatePatch
	u := StatsUpdate{
		RepoStats:  s.Repos,
		Full:       s.Repos != nil,
		ReceivedAt: receivedAt,
	}
	if !agg.Empty() {
		u.Stats = &agg
	}
	return u
}

// PushFrame is one message on the websocket push channel.
type PushFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ConnectionState is the lifecycle of the shared push channel.
type ConnectionState int

const (
	StateConnecting ConnectionState = iota
	StateConnected
	StateDisconnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}
