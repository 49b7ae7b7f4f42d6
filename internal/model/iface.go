package model

import "context"

// UpdateHandler receives everything a stats source produces. Sources call it
// from a single goroutine, in arrival order.
type UpdateHandler interface {
	HandleUpdate(u StatsUpdate)
	HandleState(s ConnectionState)
}

// StatsSource is one transport able to deliver stats-update events: push over
// websocket, push over an event stream, or periodic polling.
type StatsSource interface {
	Name() string
	// Run delivers events to h until ctx is cancelled. Transport failures are
	// reported through HandleState and retried internally; Run only returns
	// once ctx is done.
	Run(ctx context.Context, h UpdateHandler) error
}

// SnapshotFetcher performs one pull of the full snapshot.
type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context) (*Snapshot, error)
}
