package model

import "time"

// Shared defaults used by both the client and the development backend.
const (
	DefaultBaseURL           = "https://api-landing.expl.one"
	DefaultCacheTTL          = 60 * time.Second
	DefaultPollInterval      = 30 * time.Second
	DefaultReconnectAttempts = 5
	DefaultReconnectDelay    = time.Second
	DefaultHighlight         = 2 * time.Second
	DefaultRequestTimeout    = 10 * time.Second

	// EventStatsUpdate is the only event type carried by the push channel.
	EventStatsUpdate = "stats-update"

	StatsPath  = "/api/stats"
	StreamPath = "/api/stats/stream"
	PushPath   = "/ws"
)
