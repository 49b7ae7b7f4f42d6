// Package statsserver is a development stats backend. It serves the pull
// endpoint, a websocket push channel and an event stream, and broadcasts every
// published update to connected peers.
package statsserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/websocket"

	"github.com/expl-one/livestats/internal/model"
	"github.com/expl-one/livestats/internal/timestamp"
)

// Server holds the current snapshot and the connected push peers.
type Server struct {
	addr      string
	server    *http.Server
	listener  net.Listener
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
	hub       *hub

	mu        sync.RWMutex
	aggregate model.AggregateStats
	repos     map[string]model.RepoStats
}

// NewServer creates a server that will listen on addr.
func NewServer(addr string) *Server {
	if addr == "" {
		addr = "127.0.0.1:3001"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      addr,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
		hub:       newHub(),
		repos:     make(map[string]model.RepoStats),
	}
}

// Handler returns the routed gin engine.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/api/health", s.handleHealth)
	r.GET(model.StatsPath, s.handleStats)
	r.GET(model.StreamPath, s.handleStream)
	r.GET(model.PushPath, gin.WrapH(websocket.Handler(s.serveWS)))
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	// No read/write timeouts: push connections stay open indefinitely.
	s.server = &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("statsserver: listen: %w", err)
	}
	s.listener = listener
	s.startTime = time.Now()

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("stats server stopped")
		}
	}()
	log.Info().Str("addr", listener.Addr().String()).Msg("stats server listening")
	return nil
}

// Addr returns the bound address once started, or the configured one.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop disconnects every peer and shuts the server down.
func (s *Server) Stop() error {
	s.cancel()
	s.hub.closeAll()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// SetSnapshot replaces the served state without notifying peers.
func (s *Server) SetSnapshot(agg model.AggregateStats, repos map[string]model.RepoStats) {
	next := make(map[string]model.RepoStats, len(repos))
	maps.Copy(next, repos)

	s.mu.Lock()
	s.aggregate = agg
	s.repos = next
	s.mu.Unlock()
}

// Snapshot returns the body served by the pull endpoint.
func (s *Server) Snapshot() model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	repos := make(map[string]model.RepoStats, len(s.repos))
	maps.Copy(repos, s.repos)
	return model.Snapshot{AggregatePatch: *model.PatchOf(s.aggregate), Repos: repos}
}

// Publish merges u into the served state and broadcasts it to every peer.
func (s *Server) Publish(u model.StatsUpdate) {
	s.mu.Lock()
	if u.Full {
		s.repos = make(map[string]model.RepoStats, len(u.RepoStats))
	}
	maps.Copy(s.repos, u.RepoStats)
	s.aggregate = u.Stats.Apply(s.aggregate, timestamp.Format)
	s.mu.Unlock()

	s.hub.broadcast(u)
}

// DropPeers disconnects every push peer. Clients reconnect on their own.
func (s *Server) DropPeers() { s.hub.closeAll() }

// Peers returns the number of connected push peers.
func (s *Server) Peers() int { return s.hub.len() }

func (s *Server) handleHealth(c *gin.Context) {
	s.mu.RLock()
	repos := len(s.repos)
	s.mu.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
		"peers":  s.hub.len(),
		"repos":  repos,
	})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.Snapshot())
}

func (s *Server) handleStream(c *gin.Context) {
	p := s.hub.join("sse")
	defer s.hub.leave(p)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	c.Stream(func(_ io.Writer) bool {
		select {
		case u, ok := <-p.updates:
			if !ok {
				return false
			}
			data, err := json.Marshal(u)
			if err != nil {
				log.Warn().Err(err).Msg("encode stats-update event")
				return true
			}
			c.SSEvent(model.EventStatsUpdate, string(data))
			return true
		case <-c.Request.Context().Done():
			return false
		case <-s.ctx.Done():
			return false
		}
	})
}

func (s *Server) serveWS(conn *websocket.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Time{})

	p := s.hub.join("ws")
	defer s.hub.leave(p)

	// Clients never send; reading only detects the close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		var discard []byte
		for {
			if err := websocket.Message.Receive(conn, &discard); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case u, ok := <-p.updates:
			if !ok {
				return
			}
			data, err := json.Marshal(u)
			if err != nil {
				log.Warn().Err(err).Msg("encode stats-update frame")
				continue
			}
			frame := model.PushFrame{Event: model.EventStatsUpdate, Data: data}
			if err := websocket.JSON.Send(conn, frame); err != nil {
				log.Debug().Err(err).Str("peer", p.id).Msg("websocket send failed")
				return
			}
		case <-gone:
			return
		case <-s.ctx.Done():
			return
		}
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
