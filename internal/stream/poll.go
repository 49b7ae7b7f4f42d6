package stream

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/expl-one/livestats/internal/model"
)

// PolledSource is the legacy transport: it pulls the full snapshot on a fixed
// interval and emits it as a full update.
type PolledSource struct {
	cfg Config
}

// NewPolledSource creates a poll source. cfg.Fetcher is required.
func NewPolledSource(cfg Config) (*PolledSource, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("stream: poll transport needs a snapshot fetcher")
	}
	return &PolledSource{cfg: cfg.withDefaults()}, nil
}

func (s *PolledSource) Name() string { return TransportPoll }

// Run polls immediately and then every PollInterval until ctx is cancelled.
func (s *PolledSource) Run(ctx context.Context, h model.UpdateHandler) error {
	h.HandleState(model.StateConnecting)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		s.pollOnce(ctx, h)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *PolledSource) pollOnce(ctx context.Context, h model.UpdateHandler) {
	snap, err := s.cfg.Fetcher.FetchSnapshot(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		h.HandleState(model.StateDisconnected)
		log.Warn().Err(err).Str("source", TransportPoll).Msg("poll failed")
		return
	}
	h.HandleState(model.StateConnected)
	h.HandleUpdate(snap.Update(s.cfg.Now()))
}
