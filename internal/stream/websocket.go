package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/websocket"

	"github.com/expl-one/livestats/internal/model"
)

// PushSource receives stats-update frames over a websocket.
type PushSource struct {
	cfg    Config
	wsURL  string
	origin string
}

// NewPushSource creates a websocket source for cfg.BaseURL + model.PushPath.
func NewPushSource(cfg Config) (*PushSource, error) {
	base, err := parseBase(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	ws := *base
	if ws.Scheme == "https" {
		ws.Scheme = "wss"
	} else {
		ws.Scheme = "ws"
	}
	ws.Path = ws.Path + model.PushPath

	return &PushSource{
		cfg:    cfg.withDefaults(),
		wsURL:  ws.String(),
		origin: base.String(),
	}, nil
}

func (s *PushSource) Name() string { return TransportPush }

// Run keeps the websocket open until ctx is cancelled.
func (s *PushSource) Run(ctx context.Context, h model.UpdateHandler) error {
	return keepAlive(ctx, s.Name(), s.cfg, h, s.dial)
}

func (s *PushSource) dial(ctx context.Context) (session, error) {
	wsCfg, err := websocket.NewConfig(s.wsURL, s.origin)
	if err != nil {
		return nil, fmt.Errorf("stream: websocket config: %w", err)
	}
	conn, err := wsCfg.DialContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("stream: websocket dial: %w", err)
	}
	return &wsSession{conn: conn, now: s.cfg.Now}, nil
}

type wsSession struct {
	conn      *websocket.Conn
	now       func() time.Time
	closeOnce sync.Once
}

func (w *wsSession) Serve(ctx context.Context, h model.UpdateHandler) error {
	stop := context.AfterFunc(ctx, func() { _ = w.Close() })
	defer stop()

	for {
		var frame model.PushFrame
		if err := websocket.JSON.Receive(w.conn, &frame); err != nil {
			return fmt.Errorf("stream: websocket receive: %w", err)
		}
		if frame.Event != model.EventStatsUpdate {
			continue
		}
		var u model.StatsUpdate
		if err := json.Unmarshal(frame.Data, &u); err != nil {
			log.Warn().Err(err).Str("source", TransportPush).Msg("dropping malformed stats-update frame")
			continue
		}
		u.ReceivedAt = w.now()
		h.HandleUpdate(u)
	}
}

func (w *wsSession) Close() error {
	var err error
	w.closeOnce.Do(func() { err = w.conn.Close() })
	return err
}
