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
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var version = "dev"

const (
	FlagConfig  = "config"
	FlagEnvFile = "env-file"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "eventclock",
		Short: "Server-side event timer with push and poll delivery",
		Long: `eventclock runs a single authoritative countdown/count-up timer.

Control panels start, pause and reset it over REST, and every connected
display receives timer_update pushes over WebSocket at a fixed cadence.
Displays that cannot hold a socket poll GET /api/timer/state instead.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String(FlagConfig, "", "YAML config file with timer presets (default: $TIMER_CONFIG)")
	rootCmd.PersistentFlags().String(FlagEnvFile, ".env", "dotenv file loaded before reading the environment")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the timer server",
		RunE:  runServe,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("eventclock %s\n", version)
		},
	}

	rootCmd.RunE = runServe
	rootCmd.AddCommand(serveCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	envFile, _ := cmd.Flags().GetString(FlagEnvFile)
	if err := godotenv.Load(envFile); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	configPath, _ := cmd.Flags().GetString(FlagConfig)
	if configPath == "" {
		configPath = os.Getenv("TIMER_CONFIG")
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logs, err := setupLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}
	defer logs.Close()

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services, err := setupServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer services.Close()

	server := setupServer(cfg, services)
	server.ReadHeaderTimeout = 10 * time.Second
	server.IdleTimeout = 120 * time.Second

	log.Info().
		Str("port", cfg.Port).
		Dur("broadcast_interval", cfg.BroadcastInterval).
		Int("presets", len(cfg.Presets)).
		Msg("starting eventclock")

	done := make(chan struct{})
	go func() {
		defer close(done)
		services.Run(ctx)
	}()

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal or server failure
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case runErr = <-serverErr:
		log.Error().Err(runErr).Msg("HTTP server failed")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	// Stop the broadcaster and flush the journal
	cancel()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn().Msg("timed out waiting for services to stop")
	}

	log.Info().Msg("eventclock shutdown complete")
	return runErr
}
