package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "swiftroyale",
		Short:         "Real-time multiplayer typing race server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if it exists
			if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
				log.Warn().Err(err).Msg("could not load .env file")
			}
		},
	}

	root.AddCommand(
		newServeCmd(),
		newRoomsCmd(),
	)
	return root
}

func newServeCmd() *cobra.Command {
	var overrides flagOverrides

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the race server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, overrides)
			if err != nil {
				return err
			}
			setupLogging(cfg)
			return serve(cfg)
		},
	}

	cmd.Flags().StringVarP(&overrides.port, "port", "p", "", "listen port (overrides PORT)")
	cmd.Flags().IntVar(&overrides.roundSeconds, "round-seconds", 0, "round length in seconds (overrides ROUND_SECONDS)")
	cmd.Flags().StringVar(&overrides.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	cmd.Flags().StringVar(&overrides.resultsStore, "results-store", "", "memory or postgres (overrides RESULTS_STORE)")
	cmd.Flags().BoolVar(&overrides.nats, "nats", false, "publish race events to NATS JetStream (overrides NATS_ENABLED)")
	return cmd
}

func serve(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services, err := setupServices(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to setup services: %w", err)
	}

	server := setupServer(cfg, services)

	// Start gateway service (connection manager and phase timers)
	gatewayDone := make(chan struct{})
	go func() {
		defer close(gatewayDone)
		if err := services.Gateway.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("http server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case err := <-serverErr:
		log.Error().Err(err).Msg("http server failed")
		runErr = fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}

	// Stop accepting frames, cancel timers, then flush the relay
	cancel()
	<-gatewayDone
	services.Close()

	log.Info().Msg("swiftroyale shutdown complete")
	return runErr
}
