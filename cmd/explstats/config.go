package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/expl-one/livestats/internal/model"
	"github.com/expl-one/livestats/internal/stream"
)

// defaultBaseURL is the stats service used when base-url is not configured.
// Builds for other environments set it with
// -ldflags "-X main.defaultBaseURL=https://...".
var defaultBaseURL = model.DefaultBaseURL

// clientConfig holds dashboard configuration.
type clientConfig struct {
	BaseURL           string        `mapstructure:"base-url"`
	Transport         string        `mapstructure:"transport"`
	PollInterval      time.Duration `mapstructure:"poll-interval"`
	ReconnectAttempts int           `mapstructure:"reconnect-attempts"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect-delay"`
	CacheTTL          time.Duration `mapstructure:"cache-ttl"`
	HighlightDuration time.Duration `mapstructure:"highlight-duration"`
	RequestTimeout    time.Duration `mapstructure:"request-timeout"`
	LogLevel          string        `mapstructure:"log-level"`
	LogFile           string        `mapstructure:"log-file"`
}

func loadClientConfig(configPath string) (clientConfig, error) {
	var cfg clientConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("EXPL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("base-url", defaultBaseURL)
	v.SetDefault("transport", stream.TransportPush)
	v.SetDefault("poll-interval", model.DefaultPollInterval)
	v.SetDefault("reconnect-attempts", model.DefaultReconnectAttempts)
	v.SetDefault("reconnect-delay", model.DefaultReconnectDelay)
	v.SetDefault("cache-ttl", model.DefaultCacheTTL)
	v.SetDefault("highlight-duration", model.DefaultHighlight)
	v.SetDefault("request-timeout", model.DefaultRequestTimeout)
	v.SetDefault("log-level", "info")
	v.SetDefault("log-file", "")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "explstats", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}

	if strings.HasPrefix(cfg.LogFile, "~/") {
		cfg.LogFile = filepath.Join(home, cfg.LogFile[2:])
	}
	if cfg.ReconnectAttempts <= 0 {
		return cfg, fmt.Errorf("invalid reconnect-attempts: %d", cfg.ReconnectAttempts)
	}
	if cfg.CacheTTL <= 0 {
		return cfg, fmt.Errorf("invalid cache-ttl: %s", cfg.CacheTTL)
	}
	return cfg, nil
}
