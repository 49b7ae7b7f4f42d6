// Package stream implements the transports that deliver stats-update events:
// a websocket push channel, a server-sent event stream and the legacy periodic
// poll. All three produce model.StatsUpdate values, so the cache and bindings
// never know which one is active.
package stream

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/expl-one/livestats/internal/model"
)

// ErrUnknownTransport is returned by New for an unsupported transport name.
var ErrUnknownTransport = errors.New("stream: unknown transport")

// Transport names accepted by New.
const (
	TransportPush = "push"
	TransportSSE  = "sse"
	TransportPoll = "poll"
)

// Config carries the settings shared by every transport.
type Config struct {
	BaseURL string

	// Reconnect policy for push transports: Attempts tries per episode with a
	// fixed Delay between them. After an exhausted episode the source waits
	// EpisodePause and starts a fresh one.
	Attempts     int
	Delay        time.Duration
	EpisodePause time.Duration

	// PollInterval and Fetcher are used by the poll transport.
	PollInterval time.Duration
	Fetcher      model.SnapshotFetcher

	// Now stamps received updates. Defaults to time.Now.
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Attempts <= 0 {
		c.Attempts = model.DefaultReconnectAttempts
	}
	if c.Delay <= 0 {
		c.Delay = model.DefaultReconnectDelay
	}
	if c.EpisodePause <= 0 {
		c.EpisodePause = c.Delay * time.Duration(c.Attempts)
	}
	if c.PollInterval <= 0 {
		c.PollInterval = model.DefaultPollInterval
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// New builds the source for transport.
func New(transport string, cfg Config) (model.StatsSource, error) {
	switch strings.ToLower(strings.TrimSpace(transport)) {
	case TransportPush, "":
		return NewPushSource(cfg)
	case TransportSSE:
		return NewSSESource(cfg)
	case TransportPoll:
		return NewPolledSource(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, transport)
	}
}

func parseBase(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(raw), "/"))
	if err != nil {
		return nil, fmt.Errorf("stream: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("stream: base url %q must be http or https", raw)
	}
	return u, nil
}
