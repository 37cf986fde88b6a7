package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// flagOverrides holds serve flags that take precedence over the environment
type flagOverrides struct {
	port         string
	roundSeconds int
	logLevel     string
	resultsStore string
	nats         bool
}

func loadConfig(cmd *cobra.Command, flags flagOverrides) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if flags.port != "" {
		cfg.Port = flags.port
	}
	if flags.roundSeconds != 0 {
		cfg.RoundSeconds = flags.roundSeconds
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if flags.resultsStore != "" {
		cfg.ResultsStore = strings.ToLower(flags.resultsStore)
	}
	if cmd.Flags().Changed("nats") {
		cfg.NATSEnabled = flags.nats
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func setupLogging(cfg *config.Config) {
	if cfg.LogFormat == config.LogFormatConsole {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
