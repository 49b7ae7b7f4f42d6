package stream

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"

	"github.com/expl-one/livestats/internal/model"
)

// session is one live connection of a push transport.
type session interface {
	// Serve reads events until the connection fails or ctx is done.
	Serve(ctx context.Context, h model.UpdateHandler) error
	Close() error
}

type dialFunc func(ctx context.Context) (session, error)

// keepAlive holds a session open for as long as ctx lives. Each failure
// episode gets cfg.Attempts dial tries with a fixed delay; an exhausted episode
// is followed by cfg.EpisodePause and a fresh episode, so reconnection never
// gives up. State transitions are the only failure signal.
func keepAlive(ctx context.Context, name string, cfg Config, h model.UpdateHandler, dial dialFunc) error {
	logger := log.With().Str("source", name).Logger()

	for ctx.Err() == nil {
		h.HandleState(model.StateConnecting)

		attempt := 0
		sess, err := backoff.Retry(ctx, func() (session, error) {
			attempt++
			s, err := dial(ctx)
			if err != nil {
				h.HandleState(model.StateDisconnected)
				logger.Warn().Err(err).Int("attempt", attempt).Msg("connect failed")
				return nil, err
			}
			return s, nil
		},
			backoff.WithBackOff(backoff.NewConstantBackOff(cfg.Delay)),
			backoff.WithMaxTries(uint(cfg.Attempts)),
			backoff.WithMaxElapsedTime(0),
		)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			h.HandleState(model.StateDisconnected)
			logger.Warn().Int("attempts", attempt).Dur("pause", cfg.EpisodePause).Msg("reconnect episode exhausted")
			if !sleepCtx(ctx, cfg.EpisodePause) {
				return nil
			}
			continue
		}

		h.HandleState(model.StateConnected)
		logger.Info().Msg("connected")

		err = sess.Serve(ctx, h)
		_ = sess.Close()
		if ctx.Err() != nil {
			return nil
		}
		h.HandleState(model.StateDisconnected)
		logger.Warn().Err(err).Msg("connection lost")
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
