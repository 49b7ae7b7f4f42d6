package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultAddr             = "127.0.0.1:3001"
	defaultSimulateInterval = 5 * time.Second
)

// serverConfig is the statsd runtime configuration.
type serverConfig struct {
	Addr             string        `mapstructure:"addr"`
	SeedFile         string        `mapstructure:"seed-file"`
	SimulateInterval time.Duration `mapstructure:"simulate-interval"`
	SimulateSeed     uint64        `mapstructure:"simulate-seed"`
	LogLevel         string        `mapstructure:"log-level"`
	ConfigPath       string        `mapstructure:"-"` // not from config file
}

func loadConfig(configPath string) (serverConfig, error) {
	var cfg serverConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("EXPL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("addr", defaultAddr)
	v.SetDefault("seed-file", "")
	v.SetDefault("simulate-interval", defaultSimulateInterval)
	v.SetDefault("simulate-seed", uint64(time.Now().UnixNano()))
	v.SetDefault("log-level", "info")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "explstats", "statsd.yml"))
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
	cfg.ConfigPath = v.ConfigFileUsed()

	if strings.HasPrefix(cfg.SeedFile, "~/") {
		cfg.SeedFile = filepath.Join(home, cfg.SeedFile[2:])
	}
	if cfg.SimulateInterval < 0 {
		return cfg, fmt.Errorf("invalid simulate-interval: %s", cfg.SimulateInterval)
	}
	return cfg, nil
}
