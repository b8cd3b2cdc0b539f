package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/landingboard"
	"github.com/jpalmerr/landingboard/config"
)

const (
	shutdownTimeout = 10 * time.Second
)

// newLogger creates a JSON logger for CLI use.
func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: lvl,
	})), nil
}

// serveCmd starts polling and serving the snapshot.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll the platform and serve the aggregated snapshot",
	Long: `Start landingboard.

The server will:
  - Read the platform URL and credentials from the environment
  - Apply the optional YAML tuning file (port, intervals, timeouts)
  - Poll the four platform endpoints continuously
  - Serve the latest snapshot at / and liveness at /healthz

The server runs until interrupted (Ctrl+C) or receives SIGTERM. It exits
non-zero if the snapshot becomes unwritable.

Example:
  landingboard serve
  landingboard serve --env-file .env -c tuning.yaml --log-level debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to YAML tuning file (optional)")
	serveCmd.Flags().String("env-file", "", "path to a dotenv file (optional)")
	serveCmd.Flags().String("log-level", "info", "log level: debug, info, warn or error")
}

// loadConfig reads the tuning file and environment and validates the result.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")

	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.LoadEnv(envFile); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// boardOptions converts a validated config into board options.
func boardOptions(cfg *config.Config, logger *slog.Logger) []landingboard.Option {
	return []landingboard.Option{
		landingboard.WithAPIURL(cfg.APIURL),
		landingboard.WithCredentials(landingboard.Credentials{
			TokenURL:     cfg.OIDC.TokenURL,
			ClientID:     cfg.OIDC.ClientID,
			ClientSecret: cfg.OIDC.ClientSecret,
			Username:     cfg.OIDC.Username,
			Password:     cfg.OIDC.Password,
		}),
		landingboard.WithPort(cfg.Port),
		landingboard.WithRequestTimeout(cfg.RequestTimeout.Duration()),
		landingboard.WithTokenTTL(cfg.TokenTTL.Duration()),
		landingboard.WithMaxBodySize(cfg.MaxBodySize.Bytes()),
		landingboard.WithInterval(landingboard.CategoryStatus, cfg.Intervals.Status.Duration()),
		landingboard.WithInterval(landingboard.CategoryCapacities, cfg.Intervals.Capacities.Duration()),
		landingboard.WithInterval(landingboard.CategoryStats, cfg.Intervals.Stats.Duration()),
		landingboard.WithInterval(landingboard.CategoryJobs, cfg.Intervals.Jobs.Duration()),
		landingboard.WithLogger(logger),
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	level, _ := cmd.Flags().GetString("log-level")
	logger, err := newLogger(level)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger.Info("config loaded",
		"api_url", cfg.APIURL,
		"port", cfg.Port,
		"request_timeout", cfg.RequestTimeout.Duration().String(),
		"max_body_size", cfg.MaxBodySize.String(),
	)

	board, err := landingboard.New(boardOptions(cfg, logger)...)
	if err != nil {
		return fmt.Errorf("failed to create board: %w", err)
	}

	// cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- board.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
