package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/rs/zerolog/log"

	"github.com/expl-one/livestats/internal/model"
)

// SSESource receives stats-update events from a text/event-stream endpoint.
type SSESource struct {
	cfg       Config
	streamURL string
	client    *http.Client
}

// NewSSESource creates an event-stream source for cfg.BaseURL + model.StreamPath.
func NewSSESource(cfg Config) (*SSESource, error) {
	base, err := parseBase(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	u := *base
	u.Path = u.Path + model.StreamPath
	return &SSESource{
		cfg:       cfg.withDefaults(),
		streamURL: u.String(),
		// No client timeout: the response body stays open for the life of the stream.
		client: &http.Client{},
	}, nil
}

func (s *SSESource) Name() string { return TransportSSE }

// Run keeps the event stream open until ctx is cancelled.
func (s *SSESource) Run(ctx context.Context, h model.UpdateHandler) error {
	return keepAlive(ctx, s.Name(), s.cfg, h, s.dial)
}

func (s *SSESource) dial(ctx context.Context) (session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.streamURL, nil)
	if err != nil {
		return nil, fmt.Errorf("stream: build sse request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stream: sse connect: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("stream: sse connect: status %d", resp.StatusCode)
	}
	return &sseSession{body: resp.Body, now: s.cfg.Now}, nil
}

type sseSession struct {
	body      io.ReadCloser
	now       func() time.Time
	closeOnce sync.Once
}

func (s *sseSession) Serve(ctx context.Context, h model.UpdateHandler) error {
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	r := bufio.NewReader(s.body)
	var block bytes.Buffer
	for {
		line, err := r.ReadString('\n')
		if len(line) > 0 {
			block.WriteString(line)
		}
		if strings.TrimRight(line, "\r\n") == "" && block.Len() > 0 {
			s.dispatch(block.Bytes(), h)
			block.Reset()
		}
		if err != nil {
			return fmt.Errorf("stream: sse read: %w", err)
		}
	}
}

// dispatch decodes one blank-line terminated event block.
func (s *sseSession) dispatch(block []byte, h model.UpdateHandler) {
	events, err := sse.Decode(bytes.NewReader(block))
	if err != nil {
		log.Warn().Err(err).Str("source", TransportSSE).Msg("dropping undecodable event block")
		return
	}
	for _, ev := range events {
		if ev.Event != model.EventStatsUpdate {
			continue
		}
		var data []byte
		switch d := ev.Data.(type) {
		case string:
			data = []byte(d)
		case []byte:
			data = d
		default:
			continue
		}
		var u model.StatsUpdate
		if err := json.Unmarshal(data, &u); err != nil {
			log.Warn().Err(err).Str("source", TransportSSE).Msg("dropping malformed stats-update event")
			continue
		}
		u.ReceivedAt = s.now()
		h.HandleUpdate(u)
	}
}

func (s *sseSession) Close() error {
	var err error
	s.closeOnce.Do(func() { err = s.body.Close() })
	return err
}
