package main

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"github.com/expl-one/livestats/internal/binding"
	"github.com/expl-one/livestats/internal/logging"
	"github.com/expl-one/livestats/internal/projects"
	"github.com/expl-one/livestats/internal/statsapi"
	"github.com/expl-one/livestats/internal/statscache"
	"github.com/expl-one/livestats/internal/stream"
	"github.com/expl-one/livestats/internal/statsync"
	"github.com/expl-one/livestats/internal/tui"
)

// newClient builds the process-wide stats client from cfg.
func newClient(cfg clientConfig) (*statsync.Client, error) {
	api, err := statsapi.New(cfg.BaseURL, statsapi.WithTimeout(cfg.RequestTimeout))
	if err != nil {
		return nil, err
	}
	src, err := stream.New(cfg.Transport, stream.Config{
		BaseURL:      cfg.BaseURL,
		Attempts:     cfg.ReconnectAttempts,
		Delay:        cfg.ReconnectDelay,
		PollInterval: cfg.PollInterval,
		Fetcher:      api,
	})
	if err != nil {
		return nil, err
	}
	return statsync.New(src, api, statscache.New(cfg.CacheTTL),
		statsync.WithRequestTimeout(cfg.RequestTimeout),
	), nil
}

// bindAll activates the aggregate binding and one binding per catalog
// project, all reporting into feed. The returned func closes them.
func bindAll(client binding.Client, cat *projects.Catalog, feed *tui.Feed, opts ...binding.Option) func() {
	agg := binding.NewAggregate(client, feed.Aggregate, opts...)
	closers := []func(){agg.Close}
	for _, p := range cat.Projects() {
		b := binding.NewProject(client, cat, p.ID, feed.Project, opts...)
		feed.Project(b.View())
		closers = append(closers, b.Close)
	}
	return func() {
		for _, c := range closers {
			c()
		}
	}
}

func runDashboard(cfg clientConfig) error {
	closeLog, err := logging.File("explstats", cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer closeLog()

	cat := projects.Default()
	if res := projects.Validate(cat); !res.Clean() {
		projects.LogValidation(res)
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	log.Info().Str("base_url", cfg.BaseURL).Str("transport", cfg.Transport).Msg("starting dashboard")

	feed := tui.NewFeed()
	unbind := bindAll(client, cat, feed,
		binding.WithHighlight(cfg.HighlightDuration),
		binding.WithPullTimeout(cfg.RequestTimeout),
	)
	defer unbind()

	refresh := func(ctx context.Context) error { return client.Pull(ctx) }
	app := tui.NewApp(
		tui.NewDashboardPage(cat, feed, refresh),
		tui.NewCatalogPage(cat),
	)

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		if strings.Contains(err.Error(), "TTY") || strings.Contains(err.Error(), "/dev/tty") {
			return fmt.Errorf("dashboard requires a real terminal")
		}
		return fmt.Errorf("error running dashboard: %w", err)
	}
	return nil
}
