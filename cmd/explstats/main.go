package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/expl-one/livestats/internal/logging"
	"github.com/expl-one/livestats/internal/projects"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	var configPath string
	var baseURL string
	var transport string
	var validate bool
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/explstats/config.yml)")
	flag.StringVar(&baseURL, "base-url", "", "override stats service base URL")
	flag.StringVar(&transport, "transport", "", "override transport: push, sse or poll")
	flag.BoolVar(&validate, "validate", false, "validate the project catalog and exit")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("explstats - live ecosystem stats\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	cfg, err := loadClientConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if transport != "" {
		cfg.Transport = transport
	}

	if validate {
		os.Exit(runValidate(cfg))
	}

	if err := runDashboard(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runValidate logs the catalog check to stderr and returns the exit code.
func runValidate(cfg clientConfig) int {
	if err := logging.Console(os.Stderr, cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	res := projects.Validate(projects.Default())
	projects.LogValidation(res)
	if !res.Valid() {
		log.Error().Int("errors", len(res.Errors)).Msg("catalog is invalid")
		return 1
	}
	return 0
}
