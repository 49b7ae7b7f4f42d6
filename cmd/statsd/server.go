package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/expl-one/livestats/internal/logging"
	"github.com/expl-one/livestats/internal/statsserver"
)

// runServer serves the seeded snapshot and, when enabled, simulates commits
// until SIGINT or SIGTERM.
func runServer(cfg serverConfig) error {
	if err := logging.Console(os.Stderr, cfg.LogLevel); err != nil {
		return err
	}

	seed, err := statsserver.LoadSeed(cfg.SeedFile)
	if err != nil {
		return err
	}

	srv := statsserver.NewServer(cfg.Addr)
	seed.Apply(srv)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start stats server: %w", err)
	}
	defer func() {
		if err := srv.Stop(); err != nil {
			log.Warn().Err(err).Msg("stats server shutdown")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		log.Info().Msg("shutting down gracefully (press Ctrl+C again to force)")
		cancel()

		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			log.Warn().Msg("force shutdown")
		case <-deadline.C:
			log.Warn().Msg("shutdown timed out, forcing exit")
		}
		os.Exit(1)
	}()

	log.Info().
		Str("addr", srv.Addr()).
		Int("repos", len(seed.Repos)).
		Dur("simulate", cfg.SimulateInterval).
		Str("config", cfg.ConfigPath).
		Msg("statsd ready")

	if err := serve(ctx, srv, cfg); err != nil {
		log.Error().Err(err).Msg("statsd: exited with error")
	}
	return nil
}

// serve runs the background work of a started server until ctx is done.
func serve(ctx context.Context, srv *statsserver.Server, cfg serverConfig) error {
	g, gctx := errgroup.WithContext(ctx)
	if cfg.SimulateInterval > 0 {
		sim := statsserver.NewSimulator(srv, cfg.SimulateInterval, cfg.SimulateSeed)
		g.Go(func() error { return sim.Run(gctx) })
	}

	<-gctx.Done()
	return g.Wait()
}
